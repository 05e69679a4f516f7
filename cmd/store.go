package cmd

import (
	"fmt"

	"github.com/illarion/keybridge/internal/boundary"
	"github.com/illarion/keybridge/internal/config"
	"github.com/illarion/keybridge/internal/core"
	"github.com/illarion/keybridge/internal/crypto"
	"github.com/illarion/keybridge/internal/keyring"
	"github.com/illarion/keybridge/internal/provider"
	"github.com/illarion/keybridge/internal/storage"
)

// openBolt opens the configured bbolt store without unlocking it
func (a *App) openBolt() (*storage.Store, error) {
	if a.Settings.Provider != config.ProviderBolt {
		return nil, fmt.Errorf("command needs the %s provider, configured: %s", config.ProviderBolt, a.Settings.Provider)
	}
	s, err := storage.Open(a.Settings.Store)
	if err != nil {
		return nil, err
	}
	initialized, err := s.IsInitialized()
	if err != nil {
		s.Close()
		return nil, err
	}
	if !initialized {
		s.Close()
		return nil, storage.ErrNotInitialized
	}
	return s, nil
}

// unlockBolt asks for the passphrase and unlocks s
func (a *App) unlockBolt(s *storage.Store) error {
	storeID, _ := s.GetStoreID()
	passphrase, source, err := GetPassphrase("Enter passphrase: ", storeID, s.Unlock)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(passphrase)

	if source == SourcePrompt {
		if storeID, err := s.GetOrCreateStoreID(); err == nil {
			OfferToSavePassphrase(storeID, passphrase)
		}
	}
	return nil
}

// openKeyStore returns the configured store, unlocked when unlock is set, and its closer
func (a *App) openKeyStore(unlock bool) (provider.KeyStore, func(), error) {
	switch a.Settings.Provider {
	case config.ProviderMemory:
		return provider.NewMemoryStore(), func() {}, nil
	case config.ProviderKeyring:
		return keyring.NewStore(""), func() {}, nil
	default:
		s, err := a.openBolt()
		if err != nil {
			return nil, nil, err
		}
		if unlock {
			if err := a.unlockBolt(s); err != nil {
				s.Close()
				return nil, nil, err
			}
		}
		return s, func() { s.Close() }, nil
	}
}

// newBridge wires a reference provider over store into a bridge
func (a *App) newBridge(store provider.KeyStore) (*core.Bridge, *boundary.Gateway, error) {
	enc, err := a.Settings.PayloadEncoding()
	if err != nil {
		return nil, nil, err
	}

	rt := provider.NewRuntime(store)
	rt.SetLogger(a.Log.WithField("component", "provider"))

	gw := boundary.NewGateway(rt,
		boundary.WithTimeout(a.Settings.Timeout),
		boundary.WithLogger(a.Log.WithField("component", "gateway")))

	b := core.New(gw,
		core.WithEncoding(enc),
		core.WithKindResolver(kindResolver(store)),
		core.WithLogger(a.Log.WithField("component", "bridge")))
	return b, gw, nil
}

// kindResolver looks a key's kind up in the store index. List needs no
// passphrase, so the lookup never touches key material.
func kindResolver(store provider.KeyStore) core.KindResolver {
	return func(id string) (core.KeyKind, bool) {
		infos, err := store.List()
		if err != nil {
			return core.KeyKindUnknown, false
		}
		for _, info := range infos {
			if info.ID == id {
				return info.Kind(), true
			}
		}
		return core.KeyKindUnknown, false
	}
}
