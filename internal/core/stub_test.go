package core

import (
	"bytes"
	"context"
	"crypto/sha256"
	"sync"

	"github.com/illarion/keybridge/internal/boundary"
	"github.com/illarion/keybridge/internal/codec"
)

// stubRuntime is a fake provider that counts calls and can fault once per operation
type stubRuntime struct {
	mu         sync.Mutex
	calls      map[string]int
	faultOnce  map[string]string
	block      map[string]chan struct{}
	created    boundary.Value
	garbage    bool
	pending    string
	hasPending bool
}

func newStub() *stubRuntime {
	return &stubRuntime{
		calls:     make(map[string]int),
		faultOnce: make(map[string]string),
		block:     make(map[string]chan struct{}),
		created:   boundary.Bool(true),
	}
}

func (s *stubRuntime) failOnce(op boundary.Operation, diagnostic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faultOnce[op.String()] = diagnostic
}

func (s *stubRuntime) blockOn(op boundary.Operation) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.block[op.String()] = ch
	return ch
}

func (s *stubRuntime) count(op boundary.Operation) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op.String()]
}

func (s *stubRuntime) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// enter records the call, waits if the operation is blocked, and reports
// whether it left a fault pending
func (s *stubRuntime) enter(op boundary.Operation) bool {
	s.mu.Lock()
	s.calls[op.String()]++
	ch := s.block[op.String()]
	s.mu.Unlock()

	if ch != nil {
		<-ch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if diagnostic, ok := s.faultOnce[op.String()]; ok {
		delete(s.faultOnce, op.String())
		s.pending = diagnostic
		s.hasPending = true
		return true
	}
	return false
}

func (s *stubRuntime) PendingFault() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.hasPending
}

func (s *stubRuntime) ClearFault() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending, s.hasPending = "", false
}

func (s *stubRuntime) InitializeModule(ctx context.Context) error {
	s.enter(boundary.OpInitializeModule)
	return nil
}

func (s *stubRuntime) CreateKey(ctx context.Context, keyID, keyGenInfo string) (boundary.Value, error) {
	if s.enter(boundary.OpCreateKey) {
		return boundary.Void(), nil
	}
	return s.created, nil
}

func (s *stubRuntime) LoadKey(ctx context.Context, keyID string) error {
	s.enter(boundary.OpLoadKey)
	return nil
}

// Encryption flips every bit
func (s *stubRuntime) EncryptData(ctx context.Context, data boundary.Value) (boundary.Value, error) {
	if s.enter(boundary.OpEncryptData) {
		return boundary.Void(), nil
	}
	return s.apply(data, flip)
}

func (s *stubRuntime) DecryptData(ctx context.Context, data boundary.Value) (boundary.Value, error) {
	if s.enter(boundary.OpDecryptData) {
		return boundary.Void(), nil
	}
	return s.apply(data, flip)
}

// Signatures are SHA-256 digests
func (s *stubRuntime) SignData(ctx context.Context, data boundary.Value) (boundary.Value, error) {
	if s.enter(boundary.OpSignData) {
		return boundary.Void(), nil
	}
	return s.apply(data, digest)
}

func (s *stubRuntime) VerifySignature(ctx context.Context, data, signature boundary.Value) (boundary.Value, error) {
	if s.enter(boundary.OpVerifySignature) {
		return boundary.Void(), nil
	}
	msg, err := raw(data)
	if err != nil {
		return boundary.Void(), err
	}
	sig, err := raw(signature)
	if err != nil {
		return boundary.Void(), err
	}
	return boundary.Bool(bytes.Equal(digest(msg), sig)), nil
}

func (s *stubRuntime) Callback(ctx context.Context) error {
	s.enter(boundary.OpCallback)
	return nil
}

func (s *stubRuntime) apply(v boundary.Value, fn func([]byte) []byte) (boundary.Value, error) {
	if s.garbage {
		return boundary.String("ZZ/*"), nil
	}
	in, err := raw(v)
	if err != nil {
		return boundary.Void(), err
	}
	if v.Kind() == boundary.KindString {
		return boundary.String(codec.Encode(fn(in))), nil
	}
	return boundary.Bytes(fn(in)), nil
}

func raw(v boundary.Value) ([]byte, error) {
	if v.Kind() == boundary.KindString {
		s, _ := v.AsString()
		return codec.Decode(s)
	}
	return v.AsBytes()
}

func flip(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = ^c
	}
	return out
}

func digest(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}
