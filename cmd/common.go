package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/illarion/keybridge/internal/boundary"
	"github.com/illarion/keybridge/internal/config"
	"github.com/illarion/keybridge/internal/core"
	"github.com/illarion/keybridge/internal/crypto"
	"github.com/illarion/keybridge/internal/keyring"
	"github.com/illarion/keybridge/internal/provider"
	"github.com/illarion/keybridge/internal/storage"
	"github.com/sirupsen/logrus"
)

// App carries the settings and logger shared by every command
type App struct {
	Settings config.Settings
	Log      *logrus.Logger
}

// PassphraseSource tells where a passphrase came from
type PassphraseSource int

const (
	SourceEnv PassphraseSource = iota
	SourceKeyring
	SourcePrompt
)

// GetPassphrase returns a verified passphrase from the environment, the OS
// keyring or a prompt, in that order. A stale keyring entry falls through to the prompt.
// The caller is responsible for calling crypto.ClearBytes on the returned passphrase
func GetPassphrase(prompt, storeID string, verify func([]byte) error) ([]byte, PassphraseSource, error) {
	if passphrase := config.Passphrase(); passphrase != nil {
		if err := verify(passphrase); err != nil {
			crypto.ClearBytes(passphrase)
			return nil, SourceEnv, err
		}
		return passphrase, SourceEnv, nil
	}

	if storeID != "" {
		if cached, err := keyring.GetPassphrase(storeID); err == nil {
			passphrase := []byte(cached)
			if err := verify(passphrase); err == nil {
				return passphrase, SourceKeyring, nil
			}
			crypto.ClearBytes(passphrase)
			fmt.Fprintln(os.Stderr, "warning: passphrase in keyring is stale")
		}
	}

	passphrase, err := core.ReadPassphrase(prompt)
	if err != nil {
		return nil, SourcePrompt, err
	}
	if err := verify(passphrase); err != nil {
		crypto.ClearBytes(passphrase)
		return nil, SourcePrompt, err
	}
	return passphrase, SourcePrompt, nil
}

// GetPassphraseForInit checks the environment first, then prompts with confirmation
func GetPassphraseForInit() ([]byte, error) {
	if passphrase := config.Passphrase(); passphrase != nil {
		return passphrase, nil
	}
	return core.ReadPassphraseConfirm("Enter passphrase: ")
}

// OfferToSavePassphrase asks whether to cache a prompted passphrase in the keyring
func OfferToSavePassphrase(storeID string, passphrase []byte) {
	if !core.IsTerminal() || keyring.HasPassphrase(storeID) {
		return
	}

	fmt.Fprint(os.Stderr, "Save passphrase to keyring? [y/N] ")
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if !strings.EqualFold(strings.TrimSpace(answer), "y") {
		return
	}
	if err := keyring.SavePassphrase(storeID, string(passphrase)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save to keyring: %s\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, "Passphrase saved to keyring")
}

// HandleError prints err with a hint where one helps, and exits
func HandleError(err error) {
	var fault *boundary.RemoteFault
	switch {
	case errors.Is(err, storage.ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "Error: key store not initialized\n")
		fmt.Fprintf(os.Stderr, "Run 'keybridge init' first\n")
	case errors.Is(err, storage.ErrAlreadyExists):
		fmt.Fprintf(os.Stderr, "Error: key store already exists\n")
		fmt.Fprintf(os.Stderr, "Use 'keybridge status' to see current state\n")
	case errors.Is(err, storage.ErrWrongPassphrase):
		fmt.Fprintf(os.Stderr, "Error: wrong passphrase\n")
	case errors.Is(err, provider.ErrKeyNotFound):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Use 'keybridge keys' to list keys\n")
	case errors.As(err, &fault):
		fmt.Fprintf(os.Stderr, "Error: provider failed: %s\n", fault.Diagnostic)
	case errors.Is(err, boundary.ErrTimeout):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "The provider may still have completed the operation\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d B", size)
	}
}
