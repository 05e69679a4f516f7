// Package logging configures logrus for keybridge.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/illarion/keybridge/internal/config"
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

// FingerprintBytes is how much of the payload digest PayloadFields shows
const FingerprintBytes = 8

// New builds a logger from settings. Output goes to stderr unless a file is set,
// in which case it is rotated by lumberjack.
func New(s config.LogSettings) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(s.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(Writer(s))

	switch s.Format {
	case config.LogFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	case config.LogFormatText, "":
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: s.File != "", FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", s.Format)
	}

	return logger, nil
}

// Writer returns the log destination for settings
func Writer(s config.LogSettings) io.Writer {
	if s.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   s.File,
		MaxSize:    s.MaxSize,
		MaxBackups: s.MaxBackups,
		MaxAge:     s.MaxAge,
		Compress:   true,
	}
}

// Discard returns a logger that drops everything
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OperationFields tags a log entry with the facade operation and key
func OperationFields(op, keyID string) logrus.Fields {
	fields := logrus.Fields{"operation": op}
	if keyID != "" {
		fields["key_id"] = keyID
	}
	return fields
}

// PayloadFields describes a payload by size and a truncated SHA-256 digest.
// Payload bytes are never logged: a decrypt result is plaintext.
func PayloadFields(data []byte) logrus.Fields {
	sum := sha256.Sum256(data)
	return logrus.Fields{
		"size":        len(data),
		"fingerprint": hex.EncodeToString(sum[:FingerprintBytes]),
	}
}
