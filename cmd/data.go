package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/keybridge/internal/core"
	"github.com/illarion/keybridge/internal/security"
)

// withKey runs fn against a bridge with keyID loaded
func (a *App) withKey(ctx context.Context, keyID string, fn func(*core.Bridge, *security.Workspace) error) {
	if keyID == "" {
		fmt.Fprintln(os.Stderr, "Error: --key is required")
		os.Exit(1)
	}

	ws, err := security.Open(".")
	if err != nil {
		HandleError(err)
	}
	defer ws.Close()

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
	if err := bridge.LoadKey(ctx, keyID); err != nil {
		HandleError(err)
	}
	if err := fn(bridge, ws); err != nil {
		HandleError(err)
	}
}

// transformFile reads in, applies op and writes out
func (a *App) transformFile(ctx context.Context, keyID, in, out string, op func(*core.Bridge, context.Context, []byte) ([]byte, error)) int {
	written := 0
	a.withKey(ctx, keyID, func(b *core.Bridge, ws *security.Workspace) error {
		data, err := ws.ReadFile(in)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", in, err)
		}
		result, err := op(b, ctx, data)
		if err != nil {
			return err
		}
		if err := ws.WriteFile(out, result); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		written = len(result)
		return nil
	})
	return written
}

// Encrypt encrypts file in to out with keyID
func (a *App) Encrypt(ctx context.Context, keyID, in, out string) {
	n := a.transformFile(ctx, keyID, in, out, (*core.Bridge).Encrypt)
	fmt.Printf("encrypted %s -> %s (%s)\n", in, out, formatSize(int64(n)))
}

// Decrypt decrypts file in to out with keyID
func (a *App) Decrypt(ctx context.Context, keyID, in, out string) {
	n := a.transformFile(ctx, keyID, in, out, (*core.Bridge).Decrypt)
	fmt.Printf("decrypted %s -> %s (%s)\n", in, out, formatSize(int64(n)))
	printGitWarnings(a.Settings.Store, []string{out})
}

// Sign writes the signature of file in to sig
func (a *App) Sign(ctx context.Context, keyID, in, sig string) {
	n := a.transformFile(ctx, keyID, in, sig, (*core.Bridge).Sign)
	fmt.Printf("signed %s -> %s (%d bytes)\n", in, sig, n)
}

// Verify checks sig over file in, exiting with status 1 when it does not match
func (a *App) Verify(ctx context.Context, keyID, in, sig string) {
	valid := false
	a.withKey(ctx, keyID, func(b *core.Bridge, ws *security.Workspace) error {
		data, err := ws.ReadFile(in)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", in, err)
		}
		signature, err := ws.ReadFile(sig)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", sig, err)
		}
		valid, err = b.Verify(ctx, data, signature)
		return err
	})

	if !valid {
		fmt.Printf("invalid signature for %s\n", in)
		os.Exit(1)
	}
	fmt.Printf("valid signature for %s\n", in)
}
