// Package config holds keybridge settings loaded from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/illarion/keybridge/internal/codec"
)

// Provider backends
const (
	ProviderMemory  = "memory"
	ProviderBolt    = "bbolt"
	ProviderKeyring = "keyring"
)

// Log formats
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Environment variables
const (
	EnvProvider   = "KEYBRIDGE_PROVIDER"
	EnvStore      = "KEYBRIDGE_STORE"
	EnvEncoding   = "KEYBRIDGE_ENCODING"
	EnvTimeout    = "KEYBRIDGE_TIMEOUT"
	EnvLogLevel   = "KEYBRIDGE_LOG_LEVEL"
	EnvLogFormat  = "KEYBRIDGE_LOG_FORMAT"
	EnvLogFile    = "KEYBRIDGE_LOG_FILE"
	EnvPassphrase = "KEYBRIDGE_PASSPHRASE"
)

const DefaultStore = ".keybridge"

// Settings configures one keybridge process
type Settings struct {
	Provider string        `validate:"required,oneof=memory bbolt keyring"`
	Store    string        `validate:"required_if=Provider bbolt"`
	Encoding string        `validate:"omitempty,oneof=bytes raw text hex"`
	Timeout  time.Duration `validate:"min=0"`
	Log      LogSettings
}

// LogSettings configures logging, including optional file rotation
type LogSettings struct {
	Level      string `validate:"required,oneof=trace debug info warn warning error fatal panic"`
	Format     string `validate:"required,oneof=text json"`
	File       string
	MaxSize    int `validate:"min=1,max=100"`
	MaxBackups int `validate:"min=0,max=10"`
	MaxAge     int `validate:"min=1,max=365"`
}

// Default returns settings for a bbolt store in the working directory
func Default() Settings {
	return Settings{
		Provider: ProviderBolt,
		Store:    DefaultStore,
		Encoding: codec.EncodingBytes.String(),
		Log: LogSettings{
			Level:      "warn",
			Format:     LogFormatText,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// Load reads settings from the process environment
func Load() (Settings, error) {
	return FromEnv(os.LookupEnv)
}

// FromEnv overlays environment values from lookup on the defaults and validates the result
func FromEnv(lookup func(string) (string, bool)) (Settings, error) {
	s := Default()

	if v, ok := lookup(EnvProvider); ok {
		s.Provider = v
	}
	if v, ok := lookup(EnvStore); ok {
		s.Store = v
	}
	if v, ok := lookup(EnvEncoding); ok {
		s.Encoding = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return s, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		s.Timeout = d
	}
	if v, ok := lookup(EnvLogLevel); ok {
		s.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		s.Log.Format = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		s.Log.File = v
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks that all fields in Settings are valid
func (s *Settings) Validate() error {
	validate := validator.New()

	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("validation failed for Settings: %w", err)
	}
	return nil
}

// PayloadEncoding returns the configured codec encoding
func (s *Settings) PayloadEncoding() (codec.Encoding, error) {
	return codec.ParseEncoding(s.Encoding)
}

// Passphrase returns the passphrase from the environment, or nil if unset.
// The caller should clear the returned slice.
func Passphrase() []byte {
	if v := os.Getenv(EnvPassphrase); v != "" {
		return []byte(v)
	}
	return nil
}

// parseTimeout accepts a Go duration or a bare number of seconds
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
