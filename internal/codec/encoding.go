package codec

import (
	"fmt"
	"strings"
)

// Encoding selects how byte payloads travel across a boundary deployment.
// It is fixed per deployment: a short string like "AB/*" is also a valid
// byte buffer, so the two shapes cannot be told apart reliably.
type Encoding int

const (
	EncodingBytes Encoding = iota // Raw byte buffers
	EncodingText                  // Token streams produced by Encode
)

func (e Encoding) String() string {
	switch e {
	case EncodingBytes:
		return "bytes"
	case EncodingText:
		return "text"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding maps a settings value to an Encoding
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bytes", "raw":
		return EncodingBytes, nil
	case "text", "hex":
		return EncodingText, nil
	default:
		return EncodingBytes, fmt.Errorf("unknown payload encoding %q", s)
	}
}
