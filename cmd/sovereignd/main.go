// Package main is the entry point for sovereignd, the Sovereign Stack MCP
// server daemon. It loads configuration, wires the five core components
// (Coherence, Chronicle, Governance, Spiral, Compaction), and binds them to
// an MCP transport.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/templetwo/sovereign-stack/internal/config"
	"github.com/templetwo/sovereign-stack/internal/logging"
)

var (
	cfgPath   string
	verbose   bool
	rootFlag  string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sovereignd",
	Short: "Sovereign Stack - a local, single-tenant MCP persistence and governance server",
	Long: `sovereignd runs the Sovereign Stack MCP server: schema-driven semantic
routing, three-layer append-only memory, threshold-bounded governance with
a hash-chained audit log, a nine-phase reflective state machine, and a
bounded compaction ring - each wired to the other and exposed as a single
MCP surface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config.yaml (default: <root>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Storage root (overrides config and SOVEREIGN_ROOT)")

	rootCmd.AddCommand(serveCmd, verifyAuditCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the effective configuration and applies the --root
// override ahead of the usual SOVEREIGN_ROOT/--config resolution, then
// validates it before any component is constructed.
func loadConfig() (*config.Config, string, error) {
	root, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, "", err
	}
	if rootFlag != "" {
		cfg.Root = rootFlag
	}

	storageRoot, err := cfg.ResolveRoot()
	if err != nil {
		return nil, "", err
	}
	cfg.Root = storageRoot

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Initialize(cfg.Root, logging.Settings{
		DebugMode:  cfg.Logging.DebugMode || verbose,
		JSONFormat: cfg.Logging.Format == "json",
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return nil, "", fmt.Errorf("initialize logging: %w", err)
	}

	return cfg, storageRoot, nil
}

func resolveConfigPath() (string, error) {
	if cfgPath != "" {
		return cfgPath, nil
	}
	if rootFlag != "" {
		return rootFlag + "/config.yaml", nil
	}
	if env := os.Getenv("SOVEREIGN_ROOT"); env != "" {
		return env + "/config.yaml", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return home + "/.sovereign/config.yaml", nil
}
