package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	Separator = "/" // Between byte tokens
	Sentinel  = "*" // Terminates every encoded stream
	TokenSize = 2   // Hex digits per byte
)

var (
	ErrMalformedToken  = errors.New("malformed token")
	ErrMissingSentinel = errors.New("missing sentinel")
)

// Error describes why a token stream could not be decoded
type Error struct {
	Index int    // Position of the offending token, -1 for stream-level problems
	Token string // Offending token, truncated for display
	Err   error  // ErrMalformedToken or ErrMissingSentinel
}

func (e *Error) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("codec: %s", e.Err)
	}
	return fmt.Sprintf("codec: %s %q at index %d", e.Err, e.Token, e.Index)
}

func (e *Error) Unwrap() error {
	return e.Err
}

const upperHex = "0123456789ABCDEF"

// Encode renders b as a sentinel-terminated token stream
func Encode(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b)*(TokenSize+len(Separator)) + len(Sentinel))
	for _, c := range b {
		sb.WriteByte(upperHex[c>>4])
		sb.WriteByte(upperHex[c&0x0f])
		sb.WriteString(Separator)
	}
	sb.WriteString(Sentinel)
	return sb.String()
}

// Decode parses a stream produced by Encode back into bytes
func Decode(s string) ([]byte, error) {
	if !strings.HasSuffix(s, Sentinel) {
		return nil, &Error{Index: -1, Err: ErrMissingSentinel}
	}

	tokens := strings.Split(s, Separator)
	last := len(tokens) - 1
	if tokens[last] != Sentinel {
		// e.g. "0*" where the sentinel is glued to a digit
		return nil, &Error{Index: last, Token: clip(tokens[last]), Err: ErrMalformedToken}
	}

	out := make([]byte, last)
	for i, tok := range tokens[:last] {
		if len(tok) != TokenSize {
			return nil, &Error{Index: i, Token: clip(tok), Err: ErrMalformedToken}
		}
		if _, err := hex.Decode(out[i:i+1], []byte(tok)); err != nil {
			return nil, &Error{Index: i, Token: clip(tok), Err: ErrMalformedToken}
		}
	}
	return out, nil
}

func clip(tok string) string {
	if len(tok) > 8 {
		return tok[:8] + "..."
	}
	return tok
}
