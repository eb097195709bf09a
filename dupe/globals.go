package internal

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for config lookup paths and the env prefix
	DefaultAppName    = "dupescan"
	DefaultEnvPrefix  = "DUPESCAN"
	DefaultConfigPath = filepath.Join(getHomeDir(), ".config", DefaultAppName)

	// DefaultIgnoreFile is looked up at the scan root; gitignore syntax
	DefaultIgnoreFile = "." + DefaultAppName + "ignore"

	// Size bounds in megabytes, matching the historical CLI defaults
	DefaultMinSizeMB uint64 = 4
	DefaultMaxSizeMB uint64 = 4096

	DefaultLogLevel = "info"
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// NewLogger builds the CLI logger. Without a log file, output goes to stderr through
// a console writer; with one, JSON lines are appended to the file. The returned
// closer must be closed by the caller (it is a no-op for stderr).
func NewLogger(level, logFile string) (zerolog.Logger, io.Closer, error) {
	if strings.TrimSpace(level) == "" {
		level = DefaultLogLevel
	}
	// "warning" is accepted for compatibility with the older CLI
	if strings.EqualFold(level, "warning") {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if logFile == "" {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nopCloser{}, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file %s: %w", logFile, err)
	}
	return zerolog.New(f).Level(lvl).With().Timestamp().Logger(), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
