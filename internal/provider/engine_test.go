package provider

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineSymmetricRoundTrip(t *testing.T) {
	specs := []string{
		"AES-128-CBC",
		"AES;192;CBC;PKCS7Padding",
		"AES;256;GCM;NoPadding",
		"AES;128;CTR;NoPadding",
		"DESede;168;CBC;PKCS7Padding",
		"ChaCha20;256;Poly1305",
		"RSA;2048;SHA-256;PKCS1",
	}
	inputs := [][]byte{{}, {1, 0, 255}, bytes.Repeat([]byte{0xff}, 33)}

	for _, spec := range specs {
		t.Run(spec, func(t *testing.T) {
			eng := NewEngine(NewMemoryStore())
			require.NoError(t, eng.Generate("k", spec))

			for _, in := range inputs {
				ct, err := eng.Encrypt(in)
				require.NoError(t, err)
				pt, err := eng.Decrypt(ct)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(in, pt), "got %x, want %x", pt, in)
			}
		})
	}
}

func TestEngineDecryptSurvivesReload(t *testing.T) {
	store := NewMemoryStore()
	eng := NewEngine(store)
	require.NoError(t, eng.Generate("k1", "AES-128-CBC"))
	ct, err := eng.Encrypt([]byte{1, 0, 255})
	require.NoError(t, err)

	// A fresh engine only has the stored material; the IV travels with the ciphertext
	other := NewEngine(store)
	require.NoError(t, other.Load("k1"))
	pt, err := other.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 255}, pt)
}

func TestEngineSignVerify(t *testing.T) {
	for _, spec := range []string{"RSA-2048", "RSA;2048;SHA-512;PSS", "EC;secp256r1;SHA-256", "EC;secp384r1;SHA-384"} {
		t.Run(spec, func(t *testing.T) {
			eng := NewEngine(NewMemoryStore())
			require.NoError(t, eng.Generate("asym", spec))

			sig, err := eng.Sign([]byte{1, 0, 255})
			require.NoError(t, err)

			ok, err := eng.Verify([]byte{1, 0, 255}, sig)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = eng.Verify([]byte{1, 0, 254}, sig)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestEngineErrors(t *testing.T) {
	eng := NewEngine(NewMemoryStore())

	_, err := eng.Encrypt([]byte{1})
	assert.ErrorIs(t, err, ErrNoKeyLoaded)

	assert.ErrorIs(t, eng.Load("missing"), ErrKeyNotFound)
	assert.ErrorIs(t, eng.Generate("", "AES-128-CBC"), ErrInvalidKeyName)

	require.NoError(t, eng.Generate("sym", "AES-128-CBC"))
	assert.ErrorIs(t, eng.Generate("sym", "AES-128-CBC"), ErrKeyExists)
	assert.Equal(t, "sym", eng.Current())

	_, err = eng.Sign([]byte{1})
	assert.ErrorIs(t, err, ErrUnsupportedOp)

	_, err = eng.Decrypt([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrBadCiphertext))

	require.NoError(t, eng.Generate("ec", "EC"))
	_, err = eng.Encrypt([]byte{1})
	assert.ErrorIs(t, err, ErrUnsupportedOp)
}

func TestEngineFailedLoadKeepsCurrent(t *testing.T) {
	eng := NewEngine(NewMemoryStore())
	require.NoError(t, eng.Generate("a", "AES-128-CBC"))
	require.Error(t, eng.Load("b"))
	assert.Equal(t, "a", eng.Current())
}

func TestPKCS7(t *testing.T) {
	padded := pkcs7Pad([]byte{1, 2, 3}, 8)
	assert.Len(t, padded, 8)
	out, err := pkcs7Unpad(padded, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out)

	_, err = pkcs7Unpad([]byte{1, 2, 3, 9}, 8)
	assert.ErrorIs(t, err, ErrBadPadding)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(&KeyRecord{ID: "b", Algorithm: "RSA;2048;SHA-256;PKCS1", Material: []byte{1}}))
	require.NoError(t, store.Put(&KeyRecord{ID: "a", Algorithm: "AES;128;CBC;PKCS7Padding", Material: []byte{2}}))
	assert.ErrorIs(t, store.Put(&KeyRecord{ID: "a"}), ErrKeyExists)

	infos, err := store.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].ID)

	rec, err := store.Get("a")
	require.NoError(t, err)
	rec.Material[0] = 99
	again, _ := store.Get("a")
	assert.Equal(t, byte(2), again.Material[0], "Get must return a copy")

	require.NoError(t, store.Delete("a"))
	assert.ErrorIs(t, store.Delete("a"), ErrKeyNotFound)
	_, err = store.Get("a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
