package internal

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for the binary, config file name and env prefix
	DefaultAppName     = "treereport"
	DefaultEnvPrefix   = strings.ToUpper(DefaultAppName)
	DefaultConfigPath  = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultConfigName  = DefaultAppName
	DefaultDotEnvFile  = ".env"
	DefaultIgnoreFile  = "." + DefaultAppName + "ignore"
	DefaultLogLevel    = "warn"
	DefaultScanRoot    = "."
	DefaultChunkPrefix = "chunk_"
	DefaultTreeFile    = "trees.txt"

	// DefaultMaxTrees mirrors the per-chunk tree budget of the map generator
	DefaultMaxTrees int64 = 512
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

// NewRunID returns a fresh identifier for one scan run.
func NewRunID() string {
	return uuid.NewString()
}

// GetLogger returns a zerolog logger writing to w at the named level.
// An empty level selects DefaultLogLevel.
func GetLogger(w io.Writer, level, runID string) (zerolog.Logger, error) {
	if level == "" {
		level = DefaultLogLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	ctx := zerolog.New(w).Level(lvl).With().Timestamp()
	if runID != "" {
		ctx = ctx.Str("run", runID)
	}
	return ctx.Logger(), nil
}
