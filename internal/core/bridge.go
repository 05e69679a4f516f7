package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/illarion/keybridge/internal/boundary"
	"github.com/illarion/keybridge/internal/codec"
	"github.com/illarion/keybridge/internal/logging"
	"github.com/sirupsen/logrus"
)

// Invoker dispatches one remote operation; *boundary.Gateway implements it
type Invoker interface {
	Invoke(ctx context.Context, op boundary.Operation, args []boundary.Value, expect boundary.Shape) boundary.Result
}

var createResult = boundary.ShapeOf(boundary.KindBool, boundary.KindVoid)

// Bridge is the only writer of its KeySession. Initialize, CreateKey and
// LoadKey hold the exclusive lock for the whole call and fault check; data
// operations share the lock, so the active key cannot change under them.
type Bridge struct {
	mu       sync.RWMutex
	invoker  Invoker
	encoding codec.Encoding
	session  KeySession
	kinds    map[string]KeyKind // Keys created through this bridge
	resolve  KindResolver
	closed   bool
	log      *logrus.Entry
}

// Option configures a Bridge
type Option func(*Bridge)

// WithEncoding sets the payload shape used by the provider deployment
func WithEncoding(enc codec.Encoding) Option {
	return func(b *Bridge) {
		b.encoding = enc
	}
}

// WithLogger sets the log entry for operation tracing
func WithLogger(entry *logrus.Entry) Option {
	return func(b *Bridge) {
		b.log = entry
	}
}

// KindResolver reports the kind of a key the bridge did not create itself
type KindResolver func(id string) (KeyKind, bool)

// WithKindResolver sets where LoadKey looks up the kind of keys created elsewhere
func WithKindResolver(resolve KindResolver) Option {
	return func(b *Bridge) {
		b.resolve = resolve
	}
}

// New creates a bridge in StateUninitialized
func New(invoker Invoker, opts ...Option) *Bridge {
	b := &Bridge{
		invoker:  invoker,
		encoding: codec.EncodingBytes,
		kinds:    make(map[string]KeyKind),
		log:      logrus.WithField("component", "bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Encoding returns the payload encoding
func (b *Bridge) Encoding() codec.Encoding {
	return b.encoding
}

// Session returns a snapshot of the session
func (b *Bridge) Session() KeySession {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Initialize (re)initializes the remote module. From any state, success
// leaves the session Initialized with no active key.
func (b *Bridge) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	r := b.invoker.Invoke(ctx, boundary.OpInitializeModule, nil, boundary.ShapeVoid)
	if !r.OK() {
		return b.failed(r, "")
	}

	b.session.initialized()
	b.log.WithFields(logging.OperationFields(r.Op.String(), "")).Info("Module initialized")
	return nil
}

// CreateKey asks the provider to create a key. On success the key becomes the
// active key id, but it must be loaded before data operations.
// It returns the provider's answer; a void answer counts as true, and false
// leaves the session unchanged.
func (b *Bridge) CreateKey(ctx context.Context, id, info string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrClosed
	}
	desc, err := NewKeyDescriptor(id, info)
	if err != nil {
		return false, err
	}
	if err := b.session.requireInitialized(boundary.OpCreateKey.String()); err != nil {
		return false, err
	}

	args := []boundary.Value{boundary.String(desc.ID), boundary.String(desc.Info)}
	r := b.invoker.Invoke(ctx, boundary.OpCreateKey, args, createResult)
	if !r.OK() {
		return false, b.failed(r, desc.ID)
	}

	created := true
	if r.Value.Kind() == boundary.KindBool {
		created, _ = r.Value.AsBool()
	}
	if !created {
		b.log.WithFields(logging.OperationFields(r.Op.String(), desc.ID)).Warn("Provider declined key creation")
		return false, nil
	}

	b.kinds[desc.ID] = desc.Kind
	b.session.created(desc)
	b.log.WithFields(logging.OperationFields(r.Op.String(), desc.ID)).
		WithField("kind", desc.Kind.String()).Info("Key created")
	return true, nil
}

// LoadKey makes id the active, loaded key. On failure the previous active key is kept.
func (b *Bridge) LoadKey(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty key id", ErrInvalidDescriptor)
	}
	if err := b.session.requireInitialized(boundary.OpLoadKey.String()); err != nil {
		return err
	}

	r := b.invoker.Invoke(ctx, boundary.OpLoadKey, []boundary.Value{boundary.String(id)}, boundary.ShapeVoid)
	if !r.OK() {
		return b.failed(r, id)
	}

	b.session.loadedKey(id, b.kindOf(id))
	b.log.WithFields(logging.OperationFields(r.Op.String(), id)).Info("Key loaded")
	return nil
}

// Encrypt encrypts data with the loaded key
func (b *Bridge) Encrypt(ctx context.Context, data []byte) ([]byte, error) {
	return b.transform(ctx, boundary.OpEncryptData, data)
}

// Decrypt decrypts data with the loaded key
func (b *Bridge) Decrypt(ctx context.Context, data []byte) ([]byte, error) {
	return b.transform(ctx, boundary.OpDecryptData, data)
}

// Sign signs data with the loaded key
func (b *Bridge) Sign(ctx context.Context, data []byte) ([]byte, error) {
	return b.transform(ctx, boundary.OpSignData, data)
}

// Verify checks signature over data with the loaded key. A signature that
// does not match is (false, nil).
func (b *Bridge) Verify(ctx context.Context, data, signature []byte) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	op := boundary.OpVerifySignature
	if err := b.ready(op); err != nil {
		return false, err
	}

	args := []boundary.Value{b.pack(data), b.pack(signature)}
	r := b.invoker.Invoke(ctx, op, args, boundary.ShapeBool)
	if !r.OK() {
		return false, b.failed(r, b.session.activeKeyID)
	}

	valid, err := r.Value.AsBool()
	if err != nil {
		return false, err
	}
	b.log.WithFields(logging.OperationFields(op.String(), b.session.activeKeyID)).
		WithField("valid", valid).Debug("Signature verified")
	return valid, nil
}

// Reset returns the session to StateUninitialized. The provider is not called.
func (b *Bridge) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session.reset()
}

// Close resets the session and rejects further operations
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session.reset()
	b.closed = true
	return nil
}

func (b *Bridge) transform(ctx context.Context, op boundary.Operation, data []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(op); err != nil {
		return nil, err
	}

	r := b.invoker.Invoke(ctx, op, []boundary.Value{b.pack(data)}, b.payloadShape())
	if !r.OK() {
		return nil, b.failed(r, b.session.activeKeyID)
	}

	out, err := b.unpack(r.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", op, err)
	}

	entry := b.log.WithFields(logging.OperationFields(op.String(), b.session.activeKeyID))
	entry.WithFields(logging.PayloadFields(out)).Debug("Operation completed")
	return out, nil
}

// kindOf must be called with the lock held
func (b *Bridge) kindOf(id string) KeyKind {
	if kind, ok := b.kinds[id]; ok {
		return kind
	}
	if b.resolve != nil {
		if kind, ok := b.resolve(id); ok {
			return kind
		}
	}
	return KeyKindUnknown
}

// ready must be called with the lock held
func (b *Bridge) ready(op boundary.Operation) error {
	if b.closed {
		return ErrClosed
	}
	return b.session.requireLoadedKey(op.String())
}

func (b *Bridge) pack(data []byte) boundary.Value {
	if b.encoding == codec.EncodingText {
		return boundary.String(codec.Encode(data))
	}
	return boundary.Bytes(data)
}

func (b *Bridge) unpack(v boundary.Value) ([]byte, error) {
	if b.encoding == codec.EncodingText {
		s, err := v.AsString()
		if err != nil {
			return nil, err
		}
		return codec.Decode(s)
	}
	return v.AsBytes()
}

func (b *Bridge) payloadShape() boundary.Shape {
	if b.encoding == codec.EncodingText {
		return boundary.ShapeString
	}
	return boundary.ShapeBytes
}

// failed logs a failed call and returns its error unchanged. A timed out
// mutating call may still have changed the provider's current key, so the
// active key must be loaded again.
func (b *Bridge) failed(r boundary.Result, keyID string) error {
	entry := b.log.WithFields(logging.OperationFields(r.Op.String(), keyID)).WithError(r.Err)

	if errors.Is(r.Err, boundary.ErrTimeout) && mutating(r.Op) {
		b.session.unload()
		entry.Warn("Key switch timed out, active key needs to be loaded again")
		return r.Err
	}
	if fault, ok := r.Fault(); ok {
		entry.WithField("diagnostic", fault.Diagnostic).Warn("Remote fault")
		return r.Err
	}
	entry.Warn("Remote call failed")
	return r.Err
}

func mutating(op boundary.Operation) bool {
	switch op {
	case boundary.OpInitializeModule, boundary.OpCreateKey, boundary.OpLoadKey:
		return true
	}
	return false
}
