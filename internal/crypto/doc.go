// Package crypto protects provider key material at rest.
//
// Key material is sealed with AES-256-GCM under a wrapping key derived from
// the store passphrase:
//   - PBKDF2-HMAC-SHA256, 32-byte random salt, 210,000 iterations
//   - 12-byte random nonce per sealed record, prepended to the output
//   - the key id is bound as associated data, so records cannot be swapped
//
// Call Wrapper.Destroy and ClearBytes on sensitive buffers when done.
package crypto
