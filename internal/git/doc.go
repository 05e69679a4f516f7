// Package git warns about key material and plaintext that git could pick up.
//
// Checks performed:
//   - Whether the key store is tracked by git (sealed keys end up in history)
//   - Whether plaintext written by decrypt is tracked or not ignored
package git
