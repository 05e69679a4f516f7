package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/illarion/keybridge/internal/config"
	"github.com/illarion/keybridge/internal/storage"
)

// Keys lists stored keys. It does not need the passphrase.
func (a *App) Keys() {
	store, closeStore, err := a.openKeyStore(false)
	if err != nil {
		HandleError(err)
	}
	defer closeStore()

	infos, err := store.List()
	if err != nil {
		HandleError(err)
	}
	if len(infos) == 0 {
		fmt.Println("No keys")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tALGORITHM\tKIND\tCREATED")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.ID, info.Algorithm, info.Kind(), info.Created.Format(time.RFC3339))
	}
	w.Flush()
}

// Remove deletes keys from the store. It does not need the passphrase.
func (a *App) Remove(ids []string) {
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: keybridge rm <id> [id...]")
		os.Exit(1)
	}

	store, closeStore, err := a.openKeyStore(false)
	if err != nil {
		HandleError(err)
	}
	defer closeStore()

	for _, id := range ids {
		if err := store.Delete(id); err != nil {
			HandleError(fmt.Errorf("failed to remove %s: %w", id, err))
		}
		fmt.Printf("removed %s\n", id)
	}

	// Reclaim the space held by deleted key material
	if s, ok := store.(*storage.Store); ok && a.Settings.Provider == config.ProviderBolt {
		if err := s.Compact(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
		}
	}
}
