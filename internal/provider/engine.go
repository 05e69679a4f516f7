package provider

import (
	"bytes"
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	_ "crypto/sha512"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/illarion/keybridge/internal/keyspec"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrNoKeyLoaded    = errors.New("no key loaded")
	ErrUnsupportedOp  = errors.New("operation not supported by key")
	ErrBadCiphertext  = errors.New("ciphertext too short or corrupt")
	ErrBadPadding     = errors.New("invalid padding")
	ErrInvalidKeyName = errors.New("invalid key id")
)

// Engine performs key operations against the currently loaded key
type Engine struct {
	store   KeyStore
	current *loadedKey
}

type loadedKey struct {
	id     string
	alg    keyspec.Algorithm
	secret []byte
	signer crypto.Signer
}

// NewEngine creates an engine with no loaded key
func NewEngine(store KeyStore) *Engine {
	return &Engine{store: store}
}

// Current returns the id of the loaded key, or "" if none
func (e *Engine) Current() string {
	if e.current == nil {
		return ""
	}
	return e.current.id
}

// Generate creates and persists a key, then makes it current
func (e *Engine) Generate(id, info string) error {
	if id == "" {
		return ErrInvalidKeyName
	}
	alg, err := keyspec.Parse(info)
	if err != nil {
		return err
	}

	material, err := generateMaterial(alg)
	if err != nil {
		return fmt.Errorf("failed to generate %s key: %w", alg.Family, err)
	}

	rec := &KeyRecord{ID: id, Algorithm: alg.String(), Material: material, Created: time.Now().UTC()}
	if err := e.store.Put(rec); err != nil {
		return fmt.Errorf("failed to store key %s: %w", id, err)
	}

	loaded, err := load(rec)
	if err != nil {
		return err
	}
	e.current = loaded
	return nil
}

// Load makes a stored key current
func (e *Engine) Load(id string) error {
	rec, err := e.store.Get(id)
	if err != nil {
		return fmt.Errorf("failed to load key %s: %w", id, err)
	}
	loaded, err := load(rec)
	if err != nil {
		return err
	}
	e.current = loaded
	return nil
}

// Encrypt encrypts data with the current key
func (e *Engine) Encrypt(data []byte) ([]byte, error) {
	k, err := e.key()
	if err != nil {
		return nil, err
	}
	switch k.alg.Family {
	case keyspec.FamilyAES, keyspec.FamilyDESede:
		return encryptBlock(k, data)
	case keyspec.FamilyChaCha20:
		return sealAEAD(chacha20poly1305.New, k.secret, data)
	case keyspec.FamilyRSA:
		pub := k.signer.Public().(*rsa.PublicKey)
		return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, data, nil)
	default:
		return nil, fmt.Errorf("%w: encrypt with %s", ErrUnsupportedOp, k.alg.Family)
	}
}

// Decrypt reverses Encrypt
func (e *Engine) Decrypt(data []byte) ([]byte, error) {
	k, err := e.key()
	if err != nil {
		return nil, err
	}
	switch k.alg.Family {
	case keyspec.FamilyAES, keyspec.FamilyDESede:
		return decryptBlock(k, data)
	case keyspec.FamilyChaCha20:
		return openAEAD(chacha20poly1305.New, k.secret, data)
	case keyspec.FamilyRSA:
		return rsa.DecryptOAEP(sha256.New(), rand.Reader, k.signer.(*rsa.PrivateKey), data, nil)
	default:
		return nil, fmt.Errorf("%w: decrypt with %s", ErrUnsupportedOp, k.alg.Family)
	}
}

// Sign signs data with the current key pair
func (e *Engine) Sign(data []byte) ([]byte, error) {
	k, err := e.key()
	if err != nil {
		return nil, err
	}
	if k.alg.Usage() != keyspec.UsageSign {
		return nil, fmt.Errorf("%w: sign with %s", ErrUnsupportedOp, k.alg.Family)
	}

	hash := hashFor(k.alg.Hash)
	digest := digestOf(hash, data)
	var opts crypto.SignerOpts = hash
	if k.alg.Padding == "PSS" {
		opts = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: hash}
	}
	return k.signer.Sign(rand.Reader, digest, opts)
}

// Verify checks signature over data. A mismatch is (false, nil).
func (e *Engine) Verify(data, signature []byte) (bool, error) {
	k, err := e.key()
	if err != nil {
		return false, err
	}
	if k.alg.Usage() != keyspec.UsageSign {
		return false, fmt.Errorf("%w: verify with %s", ErrUnsupportedOp, k.alg.Family)
	}

	hash := hashFor(k.alg.Hash)
	digest := digestOf(hash, data)
	switch pub := k.signer.Public().(type) {
	case *rsa.PublicKey:
		if k.alg.Padding == "PSS" {
			opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: hash}
			return rsa.VerifyPSS(pub, hash, digest, signature, opts) == nil, nil
		}
		return rsa.VerifyPKCS1v15(pub, hash, digest, signature) == nil, nil
	case *ecdsa.PublicKey:
		return ecdsa.VerifyASN1(pub, digest, signature), nil
	default:
		return false, fmt.Errorf("%w: verify with %T", ErrUnsupportedOp, pub)
	}
}

func (e *Engine) key() (*loadedKey, error) {
	if e.current == nil {
		return nil, ErrNoKeyLoaded
	}
	return e.current, nil
}

func generateMaterial(alg keyspec.Algorithm) ([]byte, error) {
	switch alg.Family {
	case keyspec.FamilyAES, keyspec.FamilyChaCha20:
		return randomBytes(alg.Bits / 8)
	case keyspec.FamilyDESede:
		// 168 effective bits, 24 bytes with parity
		return randomBytes(24)
	case keyspec.FamilyRSA:
		priv, err := rsa.GenerateKey(rand.Reader, alg.Bits)
		if err != nil {
			return nil, err
		}
		return x509.MarshalPKCS8PrivateKey(priv)
	case keyspec.FamilyEC:
		priv, err := ecdsa.GenerateKey(curveFor(alg.Curve), rand.Reader)
		if err != nil {
			return nil, err
		}
		return x509.MarshalPKCS8PrivateKey(priv)
	default:
		return nil, fmt.Errorf("%w: %s", keyspec.ErrUnsupportedFamily, alg.Family)
	}
}

func load(rec *KeyRecord) (*loadedKey, error) {
	alg, err := keyspec.Parse(rec.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("stored key %s has invalid algorithm: %w", rec.ID, err)
	}

	k := &loadedKey{id: rec.ID, alg: alg}
	if alg.Kind() == keyspec.KindSymmetric {
		k.secret = rec.Material
		return k, nil
	}

	priv, err := x509.ParsePKCS8PrivateKey(rec.Material)
	if err != nil {
		return nil, fmt.Errorf("stored key %s is corrupt: %w", rec.ID, err)
	}
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("stored key %s is not a signing key", rec.ID)
	}
	k.signer = signer
	return k, nil
}

func newBlock(k *loadedKey) (cipher.Block, error) {
	if k.alg.Family == keyspec.FamilyDESede {
		return des.NewTripleDESCipher(k.secret)
	}
	return aes.NewCipher(k.secret)
}

// encryptBlock returns iv||ciphertext for CBC and CTR, nonce||sealed for GCM
func encryptBlock(k *loadedKey, data []byte) ([]byte, error) {
	block, err := newBlock(k)
	if err != nil {
		return nil, err
	}

	switch k.alg.Mode {
	case "GCM":
		return sealAEAD(func([]byte) (cipher.AEAD, error) { return cipher.NewGCM(block) }, nil, data)
	case "CTR":
		iv, err := randomBytes(block.BlockSize())
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(iv)+len(data))
		copy(out, iv)
		cipher.NewCTR(block, iv).XORKeyStream(out[len(iv):], data)
		return out, nil
	default:
		iv, err := randomBytes(block.BlockSize())
		if err != nil {
			return nil, err
		}
		padded := pkcs7Pad(data, block.BlockSize())
		out := make([]byte, len(iv)+len(padded))
		copy(out, iv)
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(iv):], padded)
		return out, nil
	}
}

func decryptBlock(k *loadedKey, data []byte) ([]byte, error) {
	block, err := newBlock(k)
	if err != nil {
		return nil, err
	}
	bs := block.BlockSize()

	switch k.alg.Mode {
	case "GCM":
		return openAEAD(func([]byte) (cipher.AEAD, error) { return cipher.NewGCM(block) }, nil, data)
	case "CTR":
		if len(data) < bs {
			return nil, ErrBadCiphertext
		}
		out := make([]byte, len(data)-bs)
		cipher.NewCTR(block, data[:bs]).XORKeyStream(out, data[bs:])
		return out, nil
	default:
		if len(data) < 2*bs || len(data)%bs != 0 {
			return nil, ErrBadCiphertext
		}
		out := make([]byte, len(data)-bs)
		cipher.NewCBCDecrypter(block, data[:bs]).CryptBlocks(out, data[bs:])
		return pkcs7Unpad(out, bs)
	}
}

func sealAEAD(newAEAD func([]byte) (cipher.AEAD, error), key, data []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce, err := randomBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

func openAEAD(newAEAD func([]byte) (cipher.AEAD, error), key, data []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	ns := aead.NonceSize()
	if len(data) < ns+aead.Overhead() {
		return nil, ErrBadCiphertext
	}
	return aead.Open(nil, data[:ns], data[ns:], nil)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-n], nil
}

func hashFor(name string) crypto.Hash {
	switch name {
	case "SHA-384":
		return crypto.SHA384
	case "SHA-512":
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

func digestOf(hash crypto.Hash, data []byte) []byte {
	h := hash.New()
	h.Write(data)
	return h.Sum(nil)
}

func curveFor(name string) elliptic.Curve {
	switch name {
	case "secp384r1":
		return elliptic.P384()
	case "secp521r1":
		return elliptic.P521()
	default:
		return elliptic.P256()
	}
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}
