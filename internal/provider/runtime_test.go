package provider

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/illarion/keybridge/internal/boundary"
	"github.com/illarion/keybridge/internal/codec"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeRequiresInitialize(t *testing.T) {
	rt := NewRuntime(NewMemoryStore())
	ctx := context.Background()

	err := rt.LoadKey(ctx, "k1")
	assert.ErrorIs(t, err, boundary.ErrException)

	diag, pending := rt.PendingFault()
	require.True(t, pending)
	assert.Contains(t, diag, "not initialized")

	rt.ClearFault()
	_, pending = rt.PendingFault()
	assert.False(t, pending)
}

func TestRuntimeTextShapeRoundTrip(t *testing.T) {
	rt := NewRuntime(NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, rt.InitializeModule(ctx))

	created, err := rt.CreateKey(ctx, "k1", "AES-128-CBC")
	require.NoError(t, err)
	ok, _ := created.AsBool()
	assert.True(t, ok)
	require.NoError(t, rt.LoadKey(ctx, "k1"))

	ct, err := rt.EncryptData(ctx, boundary.String(codec.Encode([]byte{1, 0, 255})))
	require.NoError(t, err)
	require.Equal(t, boundary.KindString, ct.Kind(), "text in, text out")

	pt, err := rt.DecryptData(ctx, ct)
	require.NoError(t, err)
	s, _ := pt.AsString()
	assert.Equal(t, "01/00/FF/*", s)
}

func TestRuntimeMalformedTextRaises(t *testing.T) {
	rt := NewRuntime(NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, rt.InitializeModule(ctx))
	_, err := rt.CreateKey(ctx, "k1", "AES-128-CBC")
	require.NoError(t, err)

	_, err = rt.EncryptData(ctx, boundary.String("zz/*"))
	assert.ErrorIs(t, err, boundary.ErrException)
	_, pending := rt.PendingFault()
	assert.True(t, pending)
}

func TestRuntimeReinitializeDropsCurrentKey(t *testing.T) {
	rt := NewRuntime(NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, rt.InitializeModule(ctx))
	_, err := rt.CreateKey(ctx, "k1", "AES-128-CBC")
	require.NoError(t, err)

	require.NoError(t, rt.InitializeModule(ctx))
	_, err = rt.EncryptData(ctx, boundary.Bytes([]byte{1}))
	assert.ErrorIs(t, err, boundary.ErrException)
}

func TestRuntimeVerifyMismatchIsNotAFault(t *testing.T) {
	rt := NewRuntime(NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, rt.InitializeModule(ctx))
	_, err := rt.CreateKey(ctx, "asym1", "RSA-2048")
	require.NoError(t, err)

	sig, err := rt.SignData(ctx, boundary.Bytes([]byte{1, 0, 255}))
	require.NoError(t, err)

	res, err := rt.VerifySignature(ctx, boundary.Bytes([]byte{1, 0, 254}), sig)
	require.NoError(t, err)
	ok, _ := res.AsBool()
	assert.False(t, ok)
	_, pending := rt.PendingFault()
	assert.False(t, pending)

	require.NoError(t, rt.Callback(ctx))
}

func TestRuntimeCallbackWithConcurrentSetLogger(t *testing.T) {
	rt := NewRuntime(NewMemoryStore())
	ctx := context.Background()

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			rt.SetLogger(logger.WithField("component", "provider"))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, rt.Callback(ctx))
		}()
	}
	wg.Wait()

	require.NoError(t, rt.Callback(ctx))
	assert.Contains(t, buf.String(), "Callback successful")
}

func TestRuntimeLoadKeySwitchesCurrent(t *testing.T) {
	rt := NewRuntime(NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, rt.InitializeModule(ctx))

	_, err := rt.CreateKey(ctx, "a", "AES-128-CBC")
	require.NoError(t, err)
	_, err = rt.CreateKey(ctx, "b", "AES-128-CBC")
	require.NoError(t, err)

	require.NoError(t, rt.LoadKey(ctx, "a"))
	assert.Equal(t, "a", rt.engine.Current())
	assert.ErrorIs(t, rt.LoadKey(ctx, "missing"), boundary.ErrException)
	assert.Equal(t, "a", rt.engine.Current())
}
