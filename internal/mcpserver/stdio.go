package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/templetwo/sovereign-stack/internal/logging"
)

// ServeStdio runs the surface over stdin/stdout, the transport an editor
// or CLI-launched agent uses when it spawns the server as a subprocess.
func (s *Surface) ServeStdio(ctx context.Context) error {
	logging.Get(logging.CategoryMCP).Info("starting stdio transport for session %s", s.sessionID)
	return server.ServeStdio(s.mcp)
}
