// Package core provides the key session state machine and the Bridge facade.
//
// A Bridge drives one remote key provider through a boundary.Gateway:
//   - Initialize: (re)initialize the remote module
//   - CreateKey/LoadKey: create a key and make a key the active one
//   - Encrypt/Decrypt/Sign/Verify: data operations on the loaded key
//   - Reset/Close: return to the uninitialized state
//
// Session transitions are Uninitialized -> Initialized -> KeyActive(kind).
// A created key becomes the active key id but must still be loaded before
// data operations accept it. Data operations without a loaded key fail with
// ErrNoActiveKey and never reach the provider.
package core
