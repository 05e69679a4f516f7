package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/keybridge/internal/core"
	"github.com/illarion/keybridge/internal/crypto"
	"github.com/illarion/keybridge/internal/keyring"
)

// KeyringSave caches the key store passphrase in the OS keyring
func (a *App) KeyringSave() {
	s, err := a.openBolt()
	if err != nil {
		HandleError(err)
	}
	defer s.Close()

	passphrase, err := core.ReadPassphrase("Enter passphrase: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(passphrase)

	// Only a correct passphrase is worth caching
	if err := s.Unlock(passphrase); err != nil {
		HandleError(err)
	}

	storeID, err := s.GetOrCreateStoreID()
	if err != nil {
		HandleError(err)
	}

	if err := keyring.SavePassphrase(storeID, string(passphrase)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Passphrase saved to keyring")
}

// KeyringDelete removes the cached passphrase
func (a *App) KeyringDelete() {
	s, err := a.openBolt()
	if err != nil {
		HandleError(err)
	}
	defer s.Close()

	storeID, err := s.GetStoreID()
	if err != nil {
		fmt.Println("No passphrase stored in keyring")
		return
	}

	if err := keyring.DeletePassphrase(storeID); err != nil {
		fmt.Println("No passphrase stored in keyring")
		return
	}

	fmt.Println("Passphrase removed from keyring")
}

// KeyringStatus reports whether a passphrase is cached
func (a *App) KeyringStatus() {
	s, err := a.openBolt()
	if err != nil {
		HandleError(err)
	}
	defer s.Close()

	storeID, err := s.GetStoreID()
	if err != nil || !keyring.HasPassphrase(storeID) {
		fmt.Println("Passphrase: not stored")
		return
	}
	fmt.Println("Passphrase: stored in keyring")
}
