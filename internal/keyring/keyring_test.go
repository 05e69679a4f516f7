package keyring

import (
	"testing"
	"time"

	"github.com/illarion/keybridge/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func record(id string) *provider.KeyRecord {
	return &provider.KeyRecord{
		ID:        id,
		Algorithm: "RSA;2048;SHA-256;PKCS1",
		Material:  []byte{0x00, 0x01, 0xFF},
		Created:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPassphrase(t *testing.T) {
	keyring.MockInit()

	assert.False(t, HasPassphrase("store-1"))
	require.NoError(t, SavePassphrase("store-1", "secret"))
	assert.True(t, HasPassphrase("store-1"))

	got, err := GetPassphrase("store-1")
	require.NoError(t, err)
	assert.Equal(t, "secret", got)

	require.NoError(t, DeletePassphrase("store-1"))
	assert.False(t, HasPassphrase("store-1"))
}

func TestStorePutGet(t *testing.T) {
	keyring.MockInit()
	s := NewStore("test")

	require.NoError(t, s.Put(record("k1")))
	assert.ErrorIs(t, s.Put(record("k1")), provider.ErrKeyExists)

	got, err := s.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, record("k1"), got)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, provider.ErrKeyNotFound)
}

func TestStoreListAndDelete(t *testing.T) {
	keyring.MockInit()
	s := NewStore("test")

	for _, id := range []string{"b", "c", "a"} {
		require.NoError(t, s.Put(record(id)))
	}

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "a", infos[0].ID)
	assert.Equal(t, "c", infos[2].ID)

	require.NoError(t, s.Delete("b"))
	assert.ErrorIs(t, s.Delete("b"), provider.ErrKeyNotFound)

	infos, err = s.List()
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestStoreNamespaces(t *testing.T) {
	keyring.MockInit()

	require.NoError(t, NewStore("one").Put(record("k1")))
	_, err := NewStore("two").Get("k1")
	assert.ErrorIs(t, err, provider.ErrKeyNotFound)
}

func TestStoreWithEngine(t *testing.T) {
	keyring.MockInit()
	engine := provider.NewEngine(NewStore("engine"))

	require.NoError(t, engine.Generate("aes", "AES-128-CBC"))
	require.NoError(t, engine.Load("aes"))

	ct, err := engine.Encrypt([]byte("hello"))
	require.NoError(t, err)

	reloaded := provider.NewEngine(NewStore("engine"))
	require.NoError(t, reloaded.Load("aes"))
	pt, err := reloaded.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), pt)
}
