package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/templetwo/sovereign-stack/internal/chronicle"
	"github.com/templetwo/sovereign-stack/internal/coherence"
	"github.com/templetwo/sovereign-stack/internal/compaction"
	"github.com/templetwo/sovereign-stack/internal/config"
	"github.com/templetwo/sovereign-stack/internal/governance"
	"github.com/templetwo/sovereign-stack/internal/logging"
	"github.com/templetwo/sovereign-stack/internal/mcpserver"
	"github.com/templetwo/sovereign-stack/internal/spiral"
)

var sessionIDFlag string

var serveCmd = &cobra.Command{
	Use:   "serve [stdio|sse]",
	Short: "Start the MCP server over stdio or SSE",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, root, err := loadConfig()
		if err != nil {
			return err
		}

		mode := cfg.Transport.Mode
		if len(args) == 1 {
			mode = args[0]
		}

		sessionID := sessionIDFlag
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		surface, err := buildSurface(cfg, root, sessionID)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logging.Get(logging.CategoryBoot).Info("sovereignd starting: mode=%s session=%s root=%s", mode, sessionID, root)

		switch mode {
		case "stdio":
			return surface.ServeStdio(ctx)
		case "sse":
			return surface.ServeSSE(ctx, mcpserver.SSEConfig{
				Addr:           cfg.Transport.SSEAddr,
				MaxConnections: cfg.Transport.MaxConnections,
			})
		default:
			return fmt.Errorf("unknown transport mode %q (expected stdio or sse)", mode)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&sessionIDFlag, "session-id", "", "Session ID to bind this server instance to (default: a fresh UUID)")
}

// buildSurface wires the five core components into a single MCP Surface,
// rooted at root, per cfg's resource limits.
func buildSurface(cfg *config.Config, root, sessionID string) (*mcpserver.Surface, error) {
	limits := governance.Limits{
		FileCountCap:        cfg.Governance.FileCountCap,
		DepthCap:            cfg.Governance.DepthCap,
		EntropyCap:          cfg.Governance.EntropyCap,
		GrowthRateCapPerMin: float64(cfg.Governance.GrowthRateCapPerMinute),
	}

	coh := coherence.NewEngine(root)
	chron := chronicle.New(root)
	gov, err := governance.NewCircuit(limits, cfg.Governance.ReversibilityFloor, root)
	if err != nil {
		return nil, fmt.Errorf("construct governance circuit: %w", err)
	}
	sp := spiral.New(root, chron)
	comp, err := compaction.New(root)
	if err != nil {
		return nil, fmt.Errorf("construct compaction buffer: %w", err)
	}

	return mcpserver.New(mcpserver.Config{
		SessionID:          sessionID,
		MaxConcurrentCalls: int64(cfg.CoreLimits.MaxConcurrentToolCalls),
	}, coh, chron, gov, sp, comp), nil
}
