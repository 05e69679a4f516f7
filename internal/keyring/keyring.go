package keyring

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/illarion/keybridge/internal/provider"
	"github.com/zalando/go-keyring"
)

const serviceName = "keybridge"

const (
	indexUser = "index"
	keyPrefix = "key:"
)

// SavePassphrase stores a store passphrase in the OS keyring
func SavePassphrase(storeID string, passphrase string) error {
	return keyring.Set(serviceName, storeID, passphrase)
}

// GetPassphrase retrieves a store passphrase from the OS keyring
func GetPassphrase(storeID string) (string, error) {
	return keyring.Get(serviceName, storeID)
}

// DeletePassphrase removes a store passphrase from the OS keyring
func DeletePassphrase(storeID string) error {
	return keyring.Delete(serviceName, storeID)
}

// HasPassphrase checks if a passphrase is stored in the keyring
func HasPassphrase(storeID string) bool {
	_, err := keyring.Get(serviceName, storeID)
	return err == nil
}

// Store is a provider.KeyStore keeping each key as one keyring secret.
// Keyrings cannot enumerate entries, so ids are tracked in an index secret.
type Store struct {
	mu      sync.Mutex
	service string
}

var _ provider.KeyStore = (*Store)(nil)

// NewStore creates a keyring-backed store. namespace separates independent stores.
func NewStore(namespace string) *Store {
	service := serviceName
	if namespace != "" {
		service = serviceName + "/" + namespace
	}
	return &Store{service: service}
}

// Put implements provider.KeyStore
func (s *Store) Put(rec *provider.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.index()
	if err != nil {
		return err
	}
	if contains(ids, rec.ID) {
		return provider.ErrKeyExists
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := keyring.Set(s.service, keyPrefix+rec.ID, string(data)); err != nil {
		return fmt.Errorf("failed to save key to keyring: %w", err)
	}
	if err := s.saveIndex(append(ids, rec.ID)); err != nil {
		keyring.Delete(s.service, keyPrefix+rec.ID)
		return err
	}
	return nil
}

// Get implements provider.KeyStore
func (s *Store) Get(id string) (*provider.KeyRecord, error) {
	data, err := keyring.Get(s.service, keyPrefix+id)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, provider.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key from keyring: %w", err)
	}

	var rec provider.KeyRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("corrupt keyring entry for %s: %w", id, err)
	}
	return &rec, nil
}

// Delete implements provider.KeyStore
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := keyring.Delete(s.service, keyPrefix+id)
	if errors.Is(err, keyring.ErrNotFound) {
		return provider.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete key from keyring: %w", err)
	}

	ids, err := s.index()
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return s.saveIndex(kept)
}

// List implements provider.KeyStore
func (s *Store) List() ([]provider.KeyInfo, error) {
	s.mu.Lock()
	ids, err := s.index()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	infos := make([]provider.KeyInfo, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(id)
		if errors.Is(err, provider.ErrKeyNotFound) {
			// Removed outside keybridge
			continue
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, rec.Info())
	}
	return infos, nil
}

func (s *Store) index() ([]string, error) {
	data, err := keyring.Get(s.service, indexUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("corrupt keyring index: %w", err)
	}
	return ids, nil
}

func (s *Store) saveIndex(ids []string) error {
	sort.Strings(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := keyring.Set(s.service, indexUser, string(data)); err != nil {
		return fmt.Errorf("failed to save keyring index: %w", err)
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
