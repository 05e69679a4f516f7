package provider

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/illarion/keybridge/internal/keyspec"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyExists   = errors.New("key already exists")
)

// KeyRecord is a persisted key
type KeyRecord struct {
	ID        string    `json:"id"`
	Algorithm string    `json:"algorithm"` // Canonical keyspec form
	Material  []byte    `json:"material"`  // Raw secret or PKCS#8 private key
	Created   time.Time `json:"created"`
}

// KeyInfo is the public part of a KeyRecord
type KeyInfo struct {
	ID        string    `json:"id"`
	Algorithm string    `json:"algorithm"`
	Created   time.Time `json:"created"`
}

// Kind returns the key kind derived from the algorithm
func (k KeyInfo) Kind() keyspec.Kind {
	return keyspec.Classify(k.Algorithm)
}

// Info returns the public part of the record
func (r *KeyRecord) Info() KeyInfo {
	return KeyInfo{ID: r.ID, Algorithm: r.Algorithm, Created: r.Created}
}

// KeyStore persists key records
type KeyStore interface {
	// Put stores a new record, failing with ErrKeyExists if the id is taken
	Put(rec *KeyRecord) error
	// Get returns the record or ErrKeyNotFound
	Get(id string) (*KeyRecord, error)
	// Delete removes the record or fails with ErrKeyNotFound
	Delete(id string) error
	// List returns public info for all records, ordered by id
	List() ([]KeyInfo, error)
}

// MemoryStore is a process-local KeyStore
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]KeyRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]KeyRecord)}
}

func (m *MemoryStore) Put(rec *KeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[rec.ID]; ok {
		return ErrKeyExists
	}
	cp := *rec
	cp.Material = append([]byte(nil), rec.Material...)
	m.keys[rec.ID] = cp
	return nil
}

func (m *MemoryStore) Get(id string) (*KeyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.keys[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	rec.Material = append([]byte(nil), rec.Material...)
	return &rec, nil
}

func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[id]; !ok {
		return ErrKeyNotFound
	}
	delete(m.keys, id)
	return nil
}

func (m *MemoryStore) List() ([]KeyInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]KeyInfo, 0, len(m.keys))
	for _, rec := range m.keys {
		infos = append(infos, rec.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}
