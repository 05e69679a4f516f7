package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/illarion/keybridge/internal/boundary"
	"github.com/illarion/keybridge/internal/codec"
	"github.com/sirupsen/logrus"
)

var errNotInitialized = errors.New("module not initialized")

// Runtime exposes an Engine through the boundary. Every provider failure is
// raised: it is recorded as a pending fault and the call unwinds with
// boundary.ErrException. The fault stays pending until ClearFault.
type Runtime struct {
	mu      sync.Mutex
	store   KeyStore
	engine  *Engine
	fault   string
	pending bool
	log     *logrus.Entry
}

var _ boundary.Runtime = (*Runtime)(nil)

// NewRuntime creates a runtime whose keys live in store
func NewRuntime(store KeyStore) *Runtime {
	return &Runtime{
		store: store,
		log:   logrus.WithField("component", "provider"),
	}
}

// SetLogger replaces the log entry used for provider tracing
func (r *Runtime) SetLogger(entry *logrus.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = entry
}

// PendingFault implements boundary.FaultChannel
func (r *Runtime) PendingFault() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fault, r.pending
}

// ClearFault implements boundary.FaultChannel
func (r *Runtime) ClearFault() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fault, r.pending = "", false
}

// InitializeModule drops any engine context and starts a fresh one
func (r *Runtime) InitializeModule(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engine = NewEngine(r.store)
	r.log.Debug("Module initialized")
	return nil
}

// CreateKey generates a key and reports true on success
func (r *Runtime) CreateKey(ctx context.Context, keyID, keyGenInfo string) (boundary.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eng, err := r.engineLocked()
	if err != nil {
		return boundary.Void(), err
	}
	if err := eng.Generate(keyID, keyGenInfo); err != nil {
		return boundary.Void(), r.raiseLocked("create_key", err)
	}
	r.log.WithFields(logrus.Fields{"key_id": keyID, "algorithm": keyGenInfo}).Info("Key created")
	return boundary.Bool(true), nil
}

// LoadKey makes a stored key current
func (r *Runtime) LoadKey(ctx context.Context, keyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	eng, err := r.engineLocked()
	if err != nil {
		return err
	}
	previous := eng.Current()
	if err := eng.Load(keyID); err != nil {
		return r.raiseLocked("load_key", err)
	}
	r.log.WithFields(logrus.Fields{"key_id": eng.Current(), "previous": previous}).Debug("Key loaded")
	return nil
}

func (r *Runtime) EncryptData(ctx context.Context, data boundary.Value) (boundary.Value, error) {
	return r.transform("encrypt_data", data, (*Engine).Encrypt)
}

func (r *Runtime) DecryptData(ctx context.Context, data boundary.Value) (boundary.Value, error) {
	return r.transform("decrypt_data", data, (*Engine).Decrypt)
}

func (r *Runtime) SignData(ctx context.Context, data boundary.Value) (boundary.Value, error) {
	return r.transform("sign_data", data, (*Engine).Sign)
}

// VerifySignature returns a bool value; a bad signature is false, not a fault
func (r *Runtime) VerifySignature(ctx context.Context, data, signature boundary.Value) (boundary.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eng, err := r.engineLocked()
	if err != nil {
		return boundary.Void(), err
	}

	msg, _, err := unpack(data)
	if err != nil {
		return boundary.Void(), r.raiseLocked("verify_signature", err)
	}
	sig, _, err := unpack(signature)
	if err != nil {
		return boundary.Void(), r.raiseLocked("verify_signature", err)
	}

	ok, err := eng.Verify(msg, sig)
	if err != nil {
		return boundary.Void(), r.raiseLocked("verify_signature", err)
	}
	return boundary.Bool(ok), nil
}

// Callback is a diagnostic no-op
func (r *Runtime) Callback(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Debug("Callback successful")
	return nil
}

// transform runs fn over a payload and answers in the payload's shape
func (r *Runtime) transform(op string, data boundary.Value, fn func(*Engine, []byte) ([]byte, error)) (boundary.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eng, err := r.engineLocked()
	if err != nil {
		return boundary.Void(), err
	}

	in, text, err := unpack(data)
	if err != nil {
		return boundary.Void(), r.raiseLocked(op, err)
	}
	out, err := fn(eng, in)
	if err != nil {
		return boundary.Void(), r.raiseLocked(op, err)
	}
	if text {
		return boundary.String(codec.Encode(out)), nil
	}
	return boundary.Bytes(out), nil
}

func (r *Runtime) engineLocked() (*Engine, error) {
	if r.engine == nil {
		return nil, r.raiseLocked("engine", errNotInitialized)
	}
	return r.engine, nil
}

func (r *Runtime) raiseLocked(op string, err error) error {
	r.fault = fmt.Sprintf("%s: %v", op, err)
	r.pending = true
	r.log.WithFields(logrus.Fields{"operation": op, "error": err.Error()}).Debug("Raised provider exception")
	return fmt.Errorf("%w: %s", boundary.ErrException, r.fault)
}

// unpack returns payload bytes and whether they arrived as codec text
func unpack(v boundary.Value) ([]byte, bool, error) {
	switch v.Kind() {
	case boundary.KindBytes:
		b, err := v.AsBytes()
		return b, false, err
	case boundary.KindString:
		s, err := v.AsString()
		if err != nil {
			return nil, true, err
		}
		b, err := codec.Decode(s)
		return b, true, err
	default:
		return nil, false, fmt.Errorf("%w: payload of kind %s", boundary.ErrWrongValueType, v.Kind())
	}
}
