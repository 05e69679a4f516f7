package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Create generates a key. An empty id gets a random UUID.
func (a *App) Create(ctx context.Context, id, algorithm string) {
	if id == "" {
		id = uuid.NewString()
	}

	store, closeStore, err := a.openKeyStore(true)
	if err != nil {
		HandleError(err)
	}
	defer closeStore()

	bridge, _, err := a.newBridge(store)
	if err != nil {
		HandleError(err)
	}
	defer bridge.Close()

	if err := bridge.Initialize(ctx); err != nil {
		HandleError(err)
	}
	created, err := bridge.CreateKey(ctx, id, algorithm)
	if err != nil {
		HandleError(err)
	}
	if !created {
		fmt.Fprintf(os.Stderr, "Error: provider declined to create %s\n", id)
		os.Exit(1)
	}

	fmt.Printf("created %s (%s, %s)\n", id, algorithm, bridge.Session().Kind())
}
