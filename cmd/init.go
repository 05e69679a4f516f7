package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/keybridge/internal/config"
	"github.com/illarion/keybridge/internal/crypto"
	"github.com/illarion/keybridge/internal/storage"
)

// Init creates a new passphrase-protected key store
func (a *App) Init() {
	if a.Settings.Provider != config.ProviderBolt {
		fmt.Printf("Provider %s needs no initialization\n", a.Settings.Provider)
		return
	}

	s, err := storage.Open(a.Settings.Store)
	if err != nil {
		HandleError(err)
	}
	defer s.Close()

	initialized, err := s.IsInitialized()
	if err != nil {
		HandleError(err)
	}
	if initialized {
		HandleError(storage.ErrAlreadyExists)
	}

	passphrase, err := GetPassphraseForInit()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(passphrase)

	if err := s.Initialize(passphrase); err != nil {
		HandleError(err)
	}

	fmt.Printf("Initialized %s\n", a.Settings.Store)
	printGitWarnings(a.Settings.Store, nil)
}
