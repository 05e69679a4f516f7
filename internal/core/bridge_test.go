package core

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/illarion/keybridge/internal/boundary"
	"github.com/illarion/keybridge/internal/codec"
	"github.com/illarion/keybridge/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBridge(t *testing.T, rt boundary.Runtime, opts ...Option) *Bridge {
	t.Helper()
	quiet := logging.Discard()
	gw := boundary.NewGateway(rt, boundary.WithLogger(quiet.WithField("component", "gateway")))
	opts = append([]Option{WithLogger(quiet.WithField("component", "bridge"))}, opts...)
	return New(gw, opts...)
}

// readyBridge returns a bridge with key "A" created and loaded
func readyBridge(t *testing.T, rt *stubRuntime, opts ...Option) *Bridge {
	t.Helper()
	ctx := context.Background()
	b := newBridge(t, rt, opts...)
	require.NoError(t, b.Initialize(ctx))
	ok, err := b.CreateKey(ctx, "A", "AES-128-CBC")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, b.LoadKey(ctx, "A"))
	return b
}

func TestDataOperationsWithoutKey(t *testing.T) {
	ctx := context.Background()
	rt := newStub()
	b := newBridge(t, rt)

	check := func(t *testing.T) {
		_, err := b.Encrypt(ctx, []byte{1})
		assert.ErrorIs(t, err, ErrNoActiveKey)
		_, err = b.Decrypt(ctx, []byte{1})
		assert.ErrorIs(t, err, ErrNoActiveKey)
		_, err = b.Sign(ctx, []byte{1})
		assert.ErrorIs(t, err, ErrNoActiveKey)
		_, err = b.Verify(ctx, []byte{1}, []byte{2})
		assert.ErrorIs(t, err, ErrNoActiveKey)

		var stateErr *StateError
		_, err = b.Encrypt(ctx, nil)
		require.True(t, errors.As(err, &stateErr))
		assert.Equal(t, "encrypt_data", stateErr.Op)
	}

	t.Run("uninitialized", func(t *testing.T) {
		check(t)
		assert.Equal(t, 0, rt.total())
	})

	require.NoError(t, b.Initialize(ctx))
	calls := rt.total()

	t.Run("initialized", func(t *testing.T) {
		check(t)
		assert.Equal(t, calls, rt.total())
	})

	ok, err := b.CreateKey(ctx, "A", "AES-128-CBC")
	require.NoError(t, err)
	require.True(t, ok)
	calls = rt.total()

	t.Run("created but not loaded", func(t *testing.T) {
		check(t)
		assert.Equal(t, calls, rt.total())
	})
}

func TestKeyOperationsRequireInitialize(t *testing.T) {
	ctx := context.Background()
	rt := newStub()
	b := newBridge(t, rt)

	_, err := b.CreateKey(ctx, "A", "AES-128-CBC")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, b.LoadKey(ctx, "A"), ErrNotInitialized)
	assert.Equal(t, 0, rt.total())
}

func TestInvalidDescriptor(t *testing.T) {
	ctx := context.Background()
	rt := newStub()
	b := newBridge(t, rt)
	require.NoError(t, b.Initialize(ctx))

	_, err := b.CreateKey(ctx, "", "AES-128-CBC")
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	_, err = b.CreateKey(ctx, "   ", "AES-128-CBC")
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	assert.ErrorIs(t, b.LoadKey(ctx, ""), ErrInvalidDescriptor)
	assert.ErrorIs(t, b.LoadKey(ctx, " \t "), ErrInvalidDescriptor)
	assert.Equal(t, 0, rt.count(boundary.OpCreateKey)+rt.count(boundary.OpLoadKey))
}

func TestStateTransitions(t *testing.T) {
	ctx := context.Background()
	rt := newStub()
	b := newBridge(t, rt)

	assert.Equal(t, StateUninitialized, b.Session().State())

	require.NoError(t, b.Initialize(ctx))
	assert.Equal(t, StateInitialized, b.Session().State())

	// Re-initialize repeats the remote call
	require.NoError(t, b.Initialize(ctx))
	assert.Equal(t, 2, rt.count(boundary.OpInitializeModule))
	assert.Equal(t, StateInitialized, b.Session().State())

	_, err := b.CreateKey(ctx, "sym", "AES-128-CBC")
	require.NoError(t, err)
	s := b.Session()
	assert.Equal(t, StateKeyActive, s.State())
	assert.Equal(t, "sym", s.ActiveKeyID())
	assert.Equal(t, KeyKindSymmetric, s.Kind())
	assert.False(t, s.Loaded())

	_, err = b.CreateKey(ctx, "asym", "RSA-2048")
	require.NoError(t, err)
	assert.Equal(t, KeyKindAsymmetric, b.Session().Kind())

	require.NoError(t, b.LoadKey(ctx, "sym"))
	s = b.Session()
	assert.Equal(t, "sym", s.ActiveKeyID())
	assert.Equal(t, KeyKindSymmetric, s.Kind())
	assert.True(t, s.Loaded())

	// KeyActive is re-enterable
	require.NoError(t, b.LoadKey(ctx, "asym"))
	assert.Equal(t, "asym", b.Session().ActiveKeyID())
	assert.Equal(t, KeyKindAsymmetric, b.Session().Kind())

	// Keys not created through this bridge have unknown kind
	require.NoError(t, b.LoadKey(ctx, "elsewhere"))
	assert.Equal(t, KeyKindUnknown, b.Session().Kind())

	// Re-initialize drops the active key
	require.NoError(t, b.Initialize(ctx))
	assert.Equal(t, StateInitialized, b.Session().State())
	assert.Equal(t, "", b.Session().ActiveKeyID())

	require.NoError(t, b.LoadKey(ctx, "sym"))
	b.Reset()
	assert.Equal(t, StateUninitialized, b.Session().State())
	assert.False(t, b.Session().Loaded())
}

func TestLoadKeyResolvesKind(t *testing.T) {
	ctx := context.Background()
	rt := newStub()
	stored := map[string]KeyKind{"rsa": KeyKindAsymmetric}
	var asked []string
	b := newBridge(t, rt, WithKindResolver(func(id string) (KeyKind, bool) {
		asked = append(asked, id)
		kind, ok := stored[id]
		return kind, ok
	}))
	require.NoError(t, b.Initialize(ctx))

	require.NoError(t, b.LoadKey(ctx, "rsa"))
	assert.Equal(t, KeyKindAsymmetric, b.Session().Kind())

	require.NoError(t, b.LoadKey(ctx, "missing"))
	assert.Equal(t, KeyKindUnknown, b.Session().Kind())

	// Keys created through the bridge do not need the resolver
	_, err := b.CreateKey(ctx, "sym", "AES-128-CBC")
	require.NoError(t, err)
	require.NoError(t, b.LoadKey(ctx, "sym"))
	assert.Equal(t, KeyKindSymmetric, b.Session().Kind())
	assert.Equal(t, []string{"rsa", "missing"}, asked)
}

func TestDebugLogOmitsPayload(t *testing.T) {
	secret := []byte("hunter2!topsecret")

	for _, enc := range []codec.Encoding{codec.EncodingBytes, codec.EncodingText} {
		t.Run(enc.String(), func(t *testing.T) {
			ctx := context.Background()
			var buf bytes.Buffer
			logger := logrus.New()
			logger.SetOutput(&buf)
			logger.SetLevel(logrus.DebugLevel)
			logger.SetFormatter(&logrus.TextFormatter{DisableColors: true})

			b := readyBridge(t, newStub(), WithEncoding(enc), WithLogger(logger.WithField("component", "bridge")))
			ct, err := b.Encrypt(ctx, secret)
			require.NoError(t, err)
			pt, err := b.Decrypt(ctx, ct)
			require.NoError(t, err)
			require.Equal(t, secret, pt)

			out := buf.String()
			assert.Contains(t, out, "fingerprint=")
			assert.NotContains(t, out, "hunter2")
			assert.NotContains(t, out, strings.TrimSuffix(codec.Encode(secret[:4]), "/*"))
			assert.NotContains(t, strings.ToLower(out), hex.EncodeToString(secret[:4]))
		})
	}
}

func TestCreateKeyResultShapes(t *testing.T) {
	ctx := context.Background()

	t.Run("void counts as true", func(t *testing.T) {
		rt := newStub()
		rt.created = boundary.Void()
		b := newBridge(t, rt)
		require.NoError(t, b.Initialize(ctx))

		ok, err := b.CreateKey(ctx, "A", "AES-128-CBC")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "A", b.Session().ActiveKeyID())
	})

	t.Run("false leaves session unchanged", func(t *testing.T) {
		rt := newStub()
		rt.created = boundary.Bool(false)
		b := newBridge(t, rt)
		require.NoError(t, b.Initialize(ctx))

		ok, err := b.CreateKey(ctx, "A", "AES-128-CBC")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, StateInitialized, b.Session().State())
	})

	t.Run("string is a signature mismatch", func(t *testing.T) {
		rt := newStub()
		rt.created = boundary.String("yes")
		b := newBridge(t, rt)
		require.NoError(t, b.Initialize(ctx))

		_, err := b.CreateKey(ctx, "A", "AES-128-CBC")
		assert.ErrorIs(t, err, boundary.ErrSignatureMismatch)
		assert.Equal(t, StateInitialized, b.Session().State())
	})
}

func TestFailedLoadKeepsPreviousKey(t *testing.T) {
	ctx := context.Background()
	rt := newStub()
	b := readyBridge(t, rt)

	rt.failOnce(boundary.OpLoadKey, "no such key: B")
	err := b.LoadKey(ctx, "B")

	var fault *boundary.RemoteFault
	require.True(t, errors.As(err, &fault))
	assert.Contains(t, fault.Diagnostic, "no such key: B")

	s := b.Session()
	assert.Equal(t, "A", s.ActiveKeyID())
	assert.True(t, s.Loaded())

	_, err = b.Encrypt(ctx, []byte{1})
	assert.NoError(t, err)
}

func TestFailedCreateKeepsSession(t *testing.T) {
	ctx := context.Background()
	rt := newStub()
	b := readyBridge(t, rt)

	rt.failOnce(boundary.OpCreateKey, "key already exists")
	_, err := b.CreateKey(ctx, "B", "RSA-2048")
	assert.ErrorIs(t, err, boundary.ErrRemoteFault)
	assert.Equal(t, "A", b.Session().ActiveKeyID())
	assert.True(t, b.Session().Loaded())
}

func TestFaultIsClearedForNextOperation(t *testing.T) {
	ctx := context.Background()
	ops := []boundary.Operation{
		boundary.OpEncryptData,
		boundary.OpDecryptData,
		boundary.OpSignData,
		boundary.OpVerifySignature,
	}

	for _, op := range ops {
		t.Run(op.String(), func(t *testing.T) {
			rt := newStub()
			b := readyBridge(t, rt)
			rt.failOnce(op, "provider exploded")

			var err error
			switch op {
			case boundary.OpEncryptData:
				_, err = b.Encrypt(ctx, []byte{1, 2})
			case boundary.OpDecryptData:
				_, err = b.Decrypt(ctx, []byte{1, 2})
			case boundary.OpSignData:
				_, err = b.Sign(ctx, []byte{1, 2})
			case boundary.OpVerifySignature:
				_, err = b.Verify(ctx, []byte{1, 2}, []byte{3})
			}
			assert.ErrorIs(t, err, boundary.ErrRemoteFault)

			_, pending := rt.PendingFault()
			assert.False(t, pending)

			// Unrelated operation succeeds
			sig, err := b.Sign(ctx, []byte("next"))
			require.NoError(t, err)
			assert.Len(t, sig, 32)
			assert.Equal(t, StateKeyActive, b.Session().State())
		})
	}
}

func TestDataOperations(t *testing.T) {
	for _, enc := range []codec.Encoding{codec.EncodingBytes, codec.EncodingText} {
		t.Run(enc.String(), func(t *testing.T) {
			ctx := context.Background()
			b := readyBridge(t, newStub(), WithEncoding(enc))
			assert.Equal(t, enc, b.Encoding())

			ct, err := b.Encrypt(ctx, []byte{1, 0, 255})
			require.NoError(t, err)
			assert.Equal(t, []byte{0xFE, 0xFF, 0x00}, ct)

			pt, err := b.Decrypt(ctx, ct)
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 0, 255}, pt)

			empty, err := b.Encrypt(ctx, nil)
			require.NoError(t, err)
			assert.Empty(t, empty)

			sig, err := b.Sign(ctx, []byte{1, 0, 255})
			require.NoError(t, err)

			valid, err := b.Verify(ctx, []byte{1, 0, 255}, sig)
			require.NoError(t, err)
			assert.True(t, valid)

			valid, err = b.Verify(ctx, []byte{1, 0, 254}, sig)
			require.NoError(t, err)
			assert.False(t, valid)
		})
	}
}

func TestMalformedResultIsCodecError(t *testing.T) {
	ctx := context.Background()
	rt := newStub()
	b := readyBridge(t, rt, WithEncoding(codec.EncodingText))
	rt.garbage = true

	out, err := b.Encrypt(ctx, []byte{1})
	assert.Nil(t, out)

	var codecErr *codec.Error
	require.True(t, errors.As(err, &codecErr))
	assert.ErrorIs(t, err, codec.ErrMalformedToken)
}

func TestTimedOutLoadRequiresReload(t *testing.T) {
	ctx := context.Background()
	rt := newStub()
	quiet := logging.Discard()
	gw := boundary.NewGateway(rt,
		boundary.WithTimeout(20*time.Millisecond),
		boundary.WithLogger(quiet.WithField("component", "gateway")))
	b := New(gw, WithLogger(quiet.WithField("component", "bridge")))

	require.NoError(t, b.Initialize(ctx))
	_, err := b.CreateKey(ctx, "A", "AES-128-CBC")
	require.NoError(t, err)
	require.NoError(t, b.LoadKey(ctx, "A"))

	release := rt.blockOn(boundary.OpLoadKey)
	err = b.LoadKey(ctx, "B")
	assert.ErrorIs(t, err, boundary.ErrTimeout)

	s := b.Session()
	assert.Equal(t, "A", s.ActiveKeyID())
	assert.False(t, s.Loaded())

	calls := rt.total()
	_, err = b.Encrypt(ctx, []byte{1})
	assert.ErrorIs(t, err, ErrNoActiveKey)
	assert.Equal(t, calls, rt.total())

	close(release)
	require.NoError(t, b.LoadKey(ctx, "A"))
	_, err = b.Encrypt(ctx, []byte{1})
	assert.NoError(t, err)
}

func TestCanceledContext(t *testing.T) {
	rt := newStub()
	b := readyBridge(t, rt)
	calls := rt.total()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Encrypt(ctx, []byte{1})
	assert.ErrorIs(t, err, boundary.ErrCanceled)
	assert.Equal(t, calls, rt.total())
	assert.True(t, b.Session().Loaded())
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	rt := newStub()
	b := readyBridge(t, rt)

	require.NoError(t, b.Close())
	assert.Equal(t, StateUninitialized, b.Session().State())

	assert.ErrorIs(t, b.Initialize(ctx), ErrClosed)
	_, err := b.CreateKey(ctx, "B", "AES-128-CBC")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.LoadKey(ctx, "A"), ErrClosed)
	_, err = b.Encrypt(ctx, []byte{1})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.Verify(ctx, []byte{1}, []byte{1})
	assert.ErrorIs(t, err, ErrClosed)
}
