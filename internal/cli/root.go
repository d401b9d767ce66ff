// Package cli implements the persona-memory CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/personacore/persona-memory/internal/config"
	"github.com/personacore/persona-memory/internal/recall"
	"github.com/personacore/persona-memory/internal/store"
)

var (
	dbPath  string
	cfgDir  string
	verbose bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "persona-memory",
	Short: "Hybrid memory recall engine for persona runtimes",
	Long:  "Budgeted, explainable memory recall over a SQLite store: salience, full-text and vector retrieval fused into a scored, reinforced selection.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $PERSONA_MEMORY_DB or ~/.persona-memory/memory.db)")
	RootCmd.PersistentFlags().StringVar(&cfgDir, "config-dir", "", "Config directory (default: ~/.persona-memory)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("PERSONA_MEMORY_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".persona-memory", "memory.db")
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func openEngine() (*store.SQLiteStore, *recall.Engine, error) {
	cfg, err := config.Load(cfgDir)
	if err != nil {
		return nil, nil, err
	}
	s, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	engine := recall.New(s, cfg.Embedder.NewEmbedder(), recall.Options{
		Cache:   recall.NewQueryCache(cfg.Cache.MaxBytes, cfg.Cache.TTL(), nil),
		Budgets: cfg.Budgets,
	})
	return s, engine, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
