package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/keybridge/internal/core"
	"github.com/illarion/keybridge/internal/crypto"
	"github.com/illarion/keybridge/internal/keyring"
)

// Passwd changes the key store passphrase and re-seals every key
func (a *App) Passwd() {
	s, err := a.openBolt()
	if err != nil {
		HandleError(err)
	}
	defer s.Close()

	storeID, _ := s.GetStoreID()

	current, _, err := GetPassphrase("Enter current passphrase: ", storeID, s.Unlock)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(current)

	next, err := core.ReadPassphraseConfirm("Enter new passphrase: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(next)

	if err := s.ChangePassphrase(current, next); err != nil {
		HandleError(err)
	}

	// Keep a cached passphrase in step
	if storeID != "" && keyring.HasPassphrase(storeID) {
		if err := keyring.SavePassphrase(storeID, string(next)); err == nil {
			fmt.Println("Keyring updated with new passphrase")
		}
	}

	// Old sealed records leave free pages behind
	if err := s.Compact(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
	}

	fmt.Println("passphrase changed successfully")
}
