// Package cli implements the recall CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/recallkit/recall/internal/engine"
)

var (
	dbPath    string
	redisURL  string
	cacheSize int
	verbose   bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Tiered memory store for AI agents",
	Long:  "Persistent agent memory with tiered caching and fuzzy search. SQLite-backed, single binary; Redis optional.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $RECALL_DB or ~/.recall/memory.db)")
	RootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis URL for the distributed cache (default: $RECALL_REDIS_URL; empty disables)")
	RootCmd.PersistentFlags().IntVar(&cacheSize, "cache-size", 0, "Local cache capacity (default 1000)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("RECALL_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".recall", "memory.db")
}

func getRedisURL() string {
	if redisURL != "" {
		return redisURL
	}
	return os.Getenv("RECALL_REDIS_URL")
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func openEngine(cmd *cobra.Command) (*engine.Engine, error) {
	log := newLogger()
	return engine.New(cmd.Context(), engine.Options{
		DBPath:    getDBPath(),
		RedisURL:  getRedisURL(),
		CacheSize: cacheSize,
		Logger:    &log,
	})
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
