package mcpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/net/netutil"

	"github.com/templetwo/sovereign-stack/internal/logging"
)

// SSEConfig controls the HTTP-facing SSE transport.
type SSEConfig struct {
	Addr               string
	BaseURL            string
	MaxConnections      int
}

// ServeSSE runs the surface over Server-Sent Events, the transport a
// browser-hosted or networked agent uses when the server runs as a
// standalone daemon rather than a spawned subprocess. Connections are
// capped at MaxConnections; a /health route answers basic liveness
// checks independent of the MCP protocol itself.
func (s *Surface) ServeSSE(ctx context.Context, cfg SSEConfig) error {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 64
	}

	sse := server.NewSSEServer(s.mcp, server.WithBaseURL(cfg.BaseURL))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": Version})
	})
	mux.Handle("/sse", sse.SSEHandler())
	mux.Handle("/messages", sse.MessageHandler())

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	limited := netutil.LimitListener(listener, cfg.MaxConnections)

	httpServer := &http.Server{Handler: mux}

	logging.Get(logging.CategoryMCP).Info("starting SSE transport on %s (max %d connections)", cfg.Addr, cfg.MaxConnections)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(limited)
	}()

	select {
	case <-ctx.Done():
		_ = httpServer.Close()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
