// Package storage provides a BBolt-backed key store for the reference provider.
//
// Database structure uses four buckets:
//   - config: KDF parameters (salt, iterations), store id, timestamps (unencrypted)
//   - index: key ids, algorithms and creation times (unencrypted, for listing)
//   - keys: key material sealed with the passphrase-derived wrapping key
//   - private: sealed passphrase check value
//
// The unencrypted index lets keys be listed without the passphrase.
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
