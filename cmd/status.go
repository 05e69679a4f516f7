package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/illarion/keybridge/internal/config"
	"github.com/illarion/keybridge/internal/git"
	"github.com/illarion/keybridge/internal/keyring"
	"github.com/illarion/keybridge/internal/keyspec"
	"github.com/illarion/keybridge/internal/provider"
	"github.com/illarion/keybridge/internal/storage"
)

// Status shows the configured provider and key store state. It does not need the passphrase.
func (a *App) Status() {
	fmt.Printf("Provider: %s\n", a.Settings.Provider)
	fmt.Printf("Encoding: %s\n", a.Settings.Encoding)
	if a.Settings.Timeout > 0 {
		fmt.Printf("Timeout:  %s\n", a.Settings.Timeout)
	}

	if a.Settings.Provider != config.ProviderBolt {
		store, closeStore, err := a.openKeyStore(false)
		if err != nil {
			HandleError(err)
		}
		defer closeStore()
		printKeyCounts(store)
		return
	}

	if _, err := os.Stat(a.Settings.Store); os.IsNotExist(err) {
		fmt.Printf("\nNo key store at %s\n", a.Settings.Store)
		fmt.Println("Run 'keybridge init' to create one")
		return
	}

	s, err := a.openBolt()
	if err != nil {
		HandleError(err)
	}
	defer s.Close()

	printKeyCounts(s)
	printStoreDetails(s)
	printGitWarnings(a.Settings.Store, nil)
}

func printKeyCounts(store provider.KeyStore) {
	infos, err := store.List()
	if err != nil {
		HandleError(err)
	}
	counts := make(map[keyspec.Kind]int)
	for _, info := range infos {
		counts[info.Kind()]++
	}
	fmt.Printf("Keys:     %d (%d symmetric, %d asymmetric)\n",
		len(infos), counts[keyspec.KindSymmetric], counts[keyspec.KindAsymmetric])
}

func printStoreDetails(s *storage.Store) {
	fmt.Printf("\nStore:    %s\n", s.Path())
	if info, err := os.Stat(s.Path()); err == nil {
		fmt.Printf("Size:     %s\n", formatSize(info.Size()))
	}
	if modified, err := s.GetModified(); err == nil {
		fmt.Printf("Modified: %s\n", modified.Format(time.RFC3339))
	}
	if storeID, err := s.GetStoreID(); err == nil && keyring.HasPassphrase(storeID) {
		fmt.Println("Keyring:  passphrase cached")
	} else {
		fmt.Println("Keyring:  no passphrase cached")
	}
}

// printGitWarnings reports key material or plaintext that git could pick up
func printGitWarnings(store string, plaintext []string) {
	status := git.Check(".", store, plaintext)
	if out := git.Format(status); out != "" {
		fmt.Print(out)
	}
}
