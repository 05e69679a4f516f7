package core

import (
	"fmt"
	"strings"

	"github.com/illarion/keybridge/internal/keyspec"
)

// State is the session lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateKeyActive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateKeyActive:
		return "key-active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// KeyKind tells symmetric keys from key pairs
type KeyKind = keyspec.Kind

const (
	KeyKindUnknown    = keyspec.KindUnknown
	KeyKindSymmetric  = keyspec.KindSymmetric
	KeyKindAsymmetric = keyspec.KindAsymmetric
)

// KeyDescriptor names a key to create
type KeyDescriptor struct {
	ID   string
	Info string // Key generation info, e.g. "AES-128-CBC"
	Kind KeyKind
}

// NewKeyDescriptor validates id and classifies info.
// An info string keyspec cannot classify yields KeyKindUnknown; the provider decides.
func NewKeyDescriptor(id, info string) (KeyDescriptor, error) {
	if strings.TrimSpace(id) == "" {
		return KeyDescriptor{}, fmt.Errorf("%w: empty key id", ErrInvalidDescriptor)
	}
	return KeyDescriptor{ID: id, Info: info, Kind: keyspec.Classify(info)}, nil
}

// KeySession is a snapshot of the bridge's view of the remote provider
type KeySession struct {
	state       State
	activeKeyID string
	kind        KeyKind
	loaded      bool
}

// State returns the lifecycle state
func (s KeySession) State() State {
	return s.state
}

// ActiveKeyID returns the active key id, or "" outside StateKeyActive
func (s KeySession) ActiveKeyID() string {
	return s.activeKeyID
}

// Kind returns the active key kind
func (s KeySession) Kind() KeyKind {
	return s.kind
}

// Loaded reports whether the active key has been loaded and accepts data operations
func (s KeySession) Loaded() bool {
	return s.state == StateKeyActive && s.loaded
}

func (s KeySession) String() string {
	if s.state != StateKeyActive {
		return s.state.String()
	}
	loaded := "unloaded"
	if s.loaded {
		loaded = "loaded"
	}
	return fmt.Sprintf("%s(%s %s, %s)", s.state, s.kind, s.activeKeyID, loaded)
}

func (s *KeySession) initialized() {
	*s = KeySession{state: StateInitialized}
}

func (s *KeySession) created(desc KeyDescriptor) {
	*s = KeySession{state: StateKeyActive, activeKeyID: desc.ID, kind: desc.Kind}
}

func (s *KeySession) loadedKey(id string, kind KeyKind) {
	*s = KeySession{state: StateKeyActive, activeKeyID: id, kind: kind, loaded: true}
}

// unload keeps the active id but requires a new load before data operations
func (s *KeySession) unload() {
	s.loaded = false
}

func (s *KeySession) reset() {
	*s = KeySession{}
}

func (s KeySession) requireInitialized(op string) error {
	if s.state == StateUninitialized {
		return &StateError{Op: op, State: s.state, Err: ErrNotInitialized}
	}
	return nil
}

func (s KeySession) requireLoadedKey(op string) error {
	if !s.Loaded() {
		return &StateError{Op: op, State: s.state, Err: ErrNoActiveKey}
	}
	return nil
}
