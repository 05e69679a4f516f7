package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/illarion/keybridge/internal/crypto"
	"github.com/illarion/keybridge/internal/provider"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket  = []byte("config")  // KDF params, store id, timestamps - unencrypted
	IndexBucket   = []byte("index")   // Public key info for listing - unencrypted
	KeysBucket    = []byte("keys")    // Sealed key material
	PrivateBucket = []byte("private") // Sealed passphrase check
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
	ConfigSalt     = []byte("salt")
	ConfigIters    = []byte("iterations")
	ConfigStoreID  = []byte("store_id")
)

const (
	checkKey    = "check"
	checkString = "keybridge-passphrase-check"
)

var (
	ErrNotInitialized    = errors.New("key store not initialized")
	ErrAlreadyExists     = errors.New("key store already initialized")
	ErrWrongPassphrase   = errors.New("wrong passphrase")
	ErrPassphraseMissing = errors.New("key store is locked")
)

// Store is a passphrase-protected provider.KeyStore in a BBolt file
type Store struct {
	db      *bolt.DB
	wrapper *crypto.Wrapper
}

var _ provider.KeyStore = (*Store)(nil)

// Open opens or creates a key store database
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close locks the store and closes the database
func (s *Store) Close() error {
	s.Lock()
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.db.Path()
}

// Initialize creates the bucket structure and protects it with passphrase.
// The store is left unlocked.
func (s *Store) Initialize(passphrase []byte) error {
	initialized, err := s.IsInitialized()
	if err != nil {
		return err
	}
	if initialized {
		return ErrAlreadyExists
	}

	kdf, err := crypto.NewKDF()
	if err != nil {
		return fmt.Errorf("failed to create KDF: %w", err)
	}
	wrapper, err := wrapperFor(kdf, passphrase)
	if err != nil {
		return err
	}

	check, err := sealedCheck(wrapper)
	if err != nil {
		wrapper.Destroy()
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, IndexBucket, KeysBucket, PrivateBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		now, _ := time.Now().MarshalBinary()
		iters := make([]byte, 4)
		binary.BigEndian.PutUint32(iters, uint32(kdf.Iterations))

		for k, v := range map[string][]byte{
			string(ConfigVersion):  []byte("1"),
			string(ConfigCreated):  now,
			string(ConfigModified): now,
			string(ConfigSalt):     kdf.Salt,
			string(ConfigIters):    iters,
		} {
			if err := config.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return tx.Bucket(PrivateBucket).Put([]byte(checkKey), check)
	})
	if err != nil {
		wrapper.Destroy()
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	s.wrapper = wrapper
	return nil
}

// IsInitialized checks if the database has been initialized
func (s *Store) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// Unlock verifies passphrase and enables access to key material
func (s *Store) Unlock(passphrase []byte) error {
	kdf, err := s.loadKDF()
	if err != nil {
		return err
	}
	wrapper, err := wrapperFor(kdf, passphrase)
	if err != nil {
		return err
	}
	if err := s.verify(wrapper); err != nil {
		wrapper.Destroy()
		return err
	}

	s.Lock()
	s.wrapper = wrapper
	return nil
}

// Lock forgets the wrapping key
func (s *Store) Lock() {
	if s.wrapper != nil {
		s.wrapper.Destroy()
		s.wrapper = nil
	}
}

// Put implements provider.KeyStore
func (s *Store) Put(rec *provider.KeyRecord) error {
	if s.wrapper == nil {
		return ErrPassphraseMissing
	}
	sealed, err := s.wrapper.Seal(rec.ID, rec.Material)
	if err != nil {
		return fmt.Errorf("failed to seal key material: %w", err)
	}
	info, err := json.Marshal(rec.Info())
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		index, keys, err := keyBuckets(tx)
		if err != nil {
			return err
		}
		if index.Get([]byte(rec.ID)) != nil {
			return provider.ErrKeyExists
		}
		if err := index.Put([]byte(rec.ID), info); err != nil {
			return err
		}
		if err := keys.Put([]byte(rec.ID), sealed); err != nil {
			return err
		}
		return touch(tx)
	})
}

// Get implements provider.KeyStore
func (s *Store) Get(id string) (*provider.KeyRecord, error) {
	if s.wrapper == nil {
		return nil, ErrPassphraseMissing
	}

	var info provider.KeyInfo
	var sealed []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		index, keys, err := keyBuckets(tx)
		if err != nil {
			return err
		}
		data := index.Get([]byte(id))
		if data == nil {
			return provider.ErrKeyNotFound
		}
		if err := json.Unmarshal(data, &info); err != nil {
			return fmt.Errorf("corrupt index entry for %s: %w", id, err)
		}
		sealed = keys.Get([]byte(id))
		if sealed == nil {
			return fmt.Errorf("key material for %s missing: %w", id, provider.ErrKeyNotFound)
		}
		// Make a copy since the slice is only valid during the transaction
		sealed = append([]byte(nil), sealed...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	material, err := s.wrapper.Open(id, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open key material for %s: %w", id, err)
	}
	return &provider.KeyRecord{ID: info.ID, Algorithm: info.Algorithm, Material: material, Created: info.Created}, nil
}

// Delete implements provider.KeyStore. It does not need the passphrase.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		index, keys, err := keyBuckets(tx)
		if err != nil {
			return err
		}
		if index.Get([]byte(id)) == nil {
			return provider.ErrKeyNotFound
		}
		if err := index.Delete([]byte(id)); err != nil {
			return err
		}
		if err := keys.Delete([]byte(id)); err != nil {
			return err
		}
		return touch(tx)
	})
}

// List implements provider.KeyStore. It does not need the passphrase.
func (s *Store) List() ([]provider.KeyInfo, error) {
	var infos []provider.KeyInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return ErrNotInitialized
		}
		// BBolt iterates in byte order, so the result is sorted by id
		return index.ForEach(func(k, v []byte) error {
			var info provider.KeyInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return fmt.Errorf("corrupt index entry for %s: %w", k, err)
			}
			infos = append(infos, info)
			return nil
		})
	})
	return infos, err
}

// ChangePassphrase re-seals every key under a new passphrase in one transaction
func (s *Store) ChangePassphrase(current, next []byte) error {
	if err := s.Unlock(current); err != nil {
		return err
	}

	kdf, err := crypto.NewKDF()
	if err != nil {
		return fmt.Errorf("failed to create KDF: %w", err)
	}
	nextWrapper, err := wrapperFor(kdf, next)
	if err != nil {
		return err
	}
	check, err := sealedCheck(nextWrapper)
	if err != nil {
		nextWrapper.Destroy()
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		_, keys, err := keyBuckets(tx)
		if err != nil {
			return err
		}

		resealed := make(map[string][]byte)
		err = keys.ForEach(func(k, v []byte) error {
			material, err := s.wrapper.Open(string(k), v)
			if err != nil {
				return fmt.Errorf("failed to open key %s: %w", k, err)
			}
			defer crypto.ClearBytes(material)
			sealed, err := nextWrapper.Seal(string(k), material)
			if err != nil {
				return err
			}
			resealed[string(k)] = sealed
			return nil
		})
		if err != nil {
			return err
		}
		for id, sealed := range resealed {
			if err := keys.Put([]byte(id), sealed); err != nil {
				return err
			}
		}

		config := tx.Bucket(ConfigBucket)
		iters := make([]byte, 4)
		binary.BigEndian.PutUint32(iters, uint32(kdf.Iterations))
		if err := config.Put(ConfigSalt, kdf.Salt); err != nil {
			return err
		}
		if err := config.Put(ConfigIters, iters); err != nil {
			return err
		}
		if err := tx.Bucket(PrivateBucket).Put([]byte(checkKey), check); err != nil {
			return err
		}
		return touch(tx)
	})
	if err != nil {
		nextWrapper.Destroy()
		return fmt.Errorf("failed to change passphrase: %w", err)
	}

	s.Lock()
	s.wrapper = nextWrapper
	return nil
}

// GetModified retrieves the last modified timestamp
func (s *Store) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// GetStoreID retrieves the store ID from config bucket
func (s *Store) GetStoreID() (string, error) {
	var storeID string
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data := config.Get(ConfigStoreID)
		if data == nil {
			return fmt.Errorf("store_id not found")
		}
		storeID = string(data)
		return nil
	})
	return storeID, err
}

// GetOrCreateStoreID retrieves existing store ID or generates a new one
func (s *Store) GetOrCreateStoreID() (string, error) {
	storeID, err := s.GetStoreID()
	if err == nil {
		return storeID, nil
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate store ID: %w", err)
	}
	storeID = hex.EncodeToString(b)

	err = s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		return config.Put(ConfigStoreID, []byte(storeID))
	})
	if err != nil {
		return "", err
	}

	return storeID, nil
}

// Compact creates a compacted copy of the database, removing unused space.
// This is useful after deleting keys to reclaim disk space.
func (s *Store) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	if err := bolt.Compact(dst, s.db, 0); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	s.db, err = bolt.Open(srcPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}

func (s *Store) loadKDF() (*crypto.KDF, error) {
	var salt []byte
	var iterations uint32
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		salt = append([]byte(nil), config.Get(ConfigSalt)...)
		iters := config.Get(ConfigIters)
		if len(iters) != 4 {
			return fmt.Errorf("iterations not found")
		}
		iterations = binary.BigEndian.Uint32(iters)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return crypto.LoadKDF(salt, int(iterations))
}

func (s *Store) verify(wrapper *crypto.Wrapper) error {
	var sealed []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		private := tx.Bucket(PrivateBucket)
		if private == nil {
			return ErrNotInitialized
		}
		sealed = append([]byte(nil), private.Get([]byte(checkKey))...)
		return nil
	})
	if err != nil {
		return err
	}

	got, err := wrapper.Open(checkKey, sealed)
	if err != nil {
		return ErrWrongPassphrase
	}
	want := checkValue()
	if !crypto.ConstantTimeCompare(got, want) {
		return ErrWrongPassphrase
	}
	return nil
}

func wrapperFor(kdf *crypto.KDF, passphrase []byte) (*crypto.Wrapper, error) {
	key := kdf.DeriveKey(passphrase)
	defer crypto.ClearBytes(key)
	return crypto.NewWrapper(key)
}

func sealedCheck(wrapper *crypto.Wrapper) ([]byte, error) {
	check, err := wrapper.Seal(checkKey, checkValue())
	if err != nil {
		return nil, fmt.Errorf("failed to seal passphrase check: %w", err)
	}
	return check, nil
}

func checkValue() []byte {
	sum := sha256.Sum256([]byte(checkString))
	return []byte(hex.EncodeToString(sum[:]))
}

func keyBuckets(tx *bolt.Tx) (*bolt.Bucket, *bolt.Bucket, error) {
	index := tx.Bucket(IndexBucket)
	keys := tx.Bucket(KeysBucket)
	if index == nil || keys == nil {
		return nil, nil, ErrNotInitialized
	}
	return index, keys, nil
}

func touch(tx *bolt.Tx) error {
	modified, _ := time.Now().MarshalBinary()
	return tx.Bucket(ConfigBucket).Put(ConfigModified, modified)
}
