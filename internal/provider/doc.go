// Package provider is a reference secure key provider for the boundary.
//
// Runtime implements boundary.Runtime the way a foreign key-store runtime
// behaves: provider failures are raised as exceptions that stay pending on
// the runtime until the caller clears them. Engine performs the key
// operations over a KeyStore, which keeps key material at rest (see the
// storage and keyring packages).
//
// Supported key generation info:
//   - AES;128|192|256;CBC|GCM|CTR
//   - DESede;168;CBC
//   - ChaCha20;256;Poly1305
//   - RSA;1024..4096;SHA-256|SHA-384|SHA-512;PKCS1|PSS
//   - EC;secp256r1|secp384r1|secp521r1;SHA-256|SHA-384|SHA-512
package provider
