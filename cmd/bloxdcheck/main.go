package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tomoru1741/Bloxd-Tools/internal/config"
	"github.com/tomoru1741/Bloxd-Tools/internal/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "1.0.0"

var (
	// Global flags
	configFile string
	transport  string
	dictFile   string
	dbPath     string
	loadMode   string
	verbose    bool
	silent     bool
	noColor    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bloxdcheck",
	Short: "Bloxd item list and translation coverage checker",
	Long: `bloxdcheck mines the canonical item list out of the live Bloxd game bundle,
compares it with the community translation dictionary, and reports what is
still untranslated.

The game assets and the dictionary are fetched through public CORS relays.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "path to YAML configuration file")
	pf.StringVarP(&transport, "fetcher", "f", "", "transport: http, browser (default from config, http)")
	pf.StringVar(&dictFile, "dictionary-file", "", "read the dictionary from a local JSON file instead of the wiki")
	pf.StringVar(&dbPath, "db", "", "SQLite run-history database path")
	pf.StringVar(&loadMode, "load-mode", "", "session load mode: concurrent, sequential")
	pf.BoolVarP(&verbose, "verbose", "v", false, "show per-strategy results and debug logs")
	pf.BoolVar(&silent, "silent", false, "suppress progress output")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(itemsCmd, coverageCmd, templateCmd, texturesCmd, serveCmd, historyCmd, versionCmd)
}

func main() {
	enableANSI()
	if err := rootCmd.Execute(); err != nil {
		fatal("%v", err)
	}
}

// setup loads the configuration, applies flag overrides, and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg = config.DefaultConfig()
	}
	if err != nil {
		return err
	}

	if transport != "" {
		cfg.Fetcher.Transport = transport
	}
	if dictFile != "" {
		cfg.Dictionary.File = dictFile
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if loadMode != "" {
		cfg.Session.LoadMode = session.LoadMode(loadMode)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err = newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// The version never needs configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bloxdcheck v%s\n", version)
	},
}

// signalContext is cancelled on Ctrl+C.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	registerSignals(sig)
	go func() {
		select {
		case <-sig:
			fmt.Fprintf(os.Stderr, "\n\n%s Interrupt received, stopping...\n", clr("yellow", "!"))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
