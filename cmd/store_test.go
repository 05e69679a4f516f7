package cmd

import (
	"context"
	"testing"

	"github.com/illarion/keybridge/internal/core"
	"github.com/illarion/keybridge/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBridgeResolvesStoredKind(t *testing.T) {
	store := provider.NewMemoryStore()
	eng := provider.NewEngine(store)
	require.NoError(t, eng.Generate("sym", "AES-128-CBC"))
	require.NoError(t, eng.Generate("ec", "EC;secp256r1;SHA-256"))

	ctx := context.Background()
	bridge, _, err := testApp().newBridge(store)
	require.NoError(t, err)
	require.NoError(t, bridge.Initialize(ctx))

	require.NoError(t, bridge.LoadKey(ctx, "sym"))
	assert.Equal(t, core.KeyKindSymmetric, bridge.Session().Kind())

	require.NoError(t, bridge.LoadKey(ctx, "ec"))
	assert.Equal(t, core.KeyKindAsymmetric, bridge.Session().Kind())
}

func TestKindResolverUnknownKey(t *testing.T) {
	kind, ok := kindResolver(provider.NewMemoryStore())("nope")
	assert.False(t, ok)
	assert.Equal(t, core.KeyKindUnknown, kind)
}
