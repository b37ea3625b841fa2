// Package mcpserver binds the five core components (Coherence, Chronicle,
// Governance, Spiral, Compaction) to the MCP tool/resource catalog named
// in spec §6, over stdio and SSE transports (spec §4.11). Protocol framing
// itself is delegated to mark3labs/mcp-go; this package owns only the
// catalog and the handlers.
package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/semaphore"

	"github.com/templetwo/sovereign-stack/internal/chronicle"
	"github.com/templetwo/sovereign-stack/internal/compaction"
	"github.com/templetwo/sovereign-stack/internal/coherence"
	"github.com/templetwo/sovereign-stack/internal/governance"
	"github.com/templetwo/sovereign-stack/internal/logging"
	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
	"github.com/templetwo/sovereign-stack/internal/spiral"
)

// CallTimeout is the default per-tool-call deadline (spec §5).
const CallTimeout = 30 * time.Second

// Version is the MCP implementation version advertised to clients.
const Version = "1.0.0"

// Surface owns the MCP server instance and every wired component.
type Surface struct {
	mcp *server.MCPServer

	coherence  *coherence.Engine
	chronicle  *chronicle.Chronicle
	governance *governance.Circuit
	spiral     *spiral.Machine
	compaction *compaction.Buffer

	sessionID string
	sem       *semaphore.Weighted
}

// Config carries the pieces Surface needs beyond the core components.
type Config struct {
	SessionID           string
	MaxConcurrentCalls  int64
}

// New wires every MCP tool and resource named in spec §6 to the five core
// components and returns a Surface ready to be bound to a transport.
func New(cfg Config, coh *coherence.Engine, chron *chronicle.Chronicle, gov *governance.Circuit, sp *spiral.Machine, comp *compaction.Buffer) *Surface {
	if cfg.MaxConcurrentCalls <= 0 {
		cfg.MaxConcurrentCalls = 8
	}

	s := &Surface{
		mcp:        server.NewMCPServer("sovereign-stack", Version),
		coherence:  coh,
		chronicle:  chron,
		governance: gov,
		spiral:     sp,
		compaction: comp,
		sessionID:  cfg.SessionID,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrentCalls),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server for transport binding.
func (s *Surface) MCPServer() *server.MCPServer {
	return s.mcp
}

// withDeadline bounds a tool handler's execution and acquires a slot on
// the shared task pool, so tool calls run concurrently but bounded (spec
// §5: "tool handlers run concurrently on a shared task pool").
func (s *Surface) withDeadline(ctx context.Context, fn func(context.Context) (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return errorResult(sovereignerr.New(sovereignerr.Timeout, "tool call pool saturated"))
	}
	defer s.sem.Release(1)

	result, err := fn(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return errorResult(sovereignerr.Wrap(sovereignerr.Timeout, "tool call deadline exceeded", ctx.Err()))
		}
		return errorResult(err)
	}
	return result, nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	incidentID := ""
	if sovereignerr.KindOf(err) == sovereignerr.Internal {
		incidentID = uuid.NewString()
		logging.Get(logging.CategoryMCP).Error("incident %s: %v", incidentID, err)
	}
	payload := sovereignerr.ToPayload(err, incidentID)
	return mcp.NewToolResultText(fmt.Sprintf("error: %s: %s", payload.Kind, payload.Message)), nil
}

func textResult(v interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(fmt.Sprintf("%v", v)), nil
}
