package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/templetwo/sovereign-stack/internal/chronicle"
	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
	"github.com/templetwo/sovereign-stack/internal/spiral"
)

var (
	resourceTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("62")).
				Padding(0, 1)

	resourceLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const (
	resourceWelcomeURI      = "sovereign://welcome"
	resourceManifestURI     = "sovereign://manifest"
	resourceSpiralStateURI  = "sovereign://spiral/state"
)

// registerResources binds the three resources named in spec §4.11: a
// rendered welcome banner, the static tool/resource manifest, and a
// live view of the current spiral session.
func (s *Surface) registerResources() {
	s.mcp.AddResource(
		mcp.NewResource(resourceWelcomeURI, "welcome",
			mcp.WithResourceDescription("A rendered introduction to the sovereign stack and the session it is bound to."),
			mcp.WithMIMEType("text/plain"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return textContents(resourceWelcomeURI, s.renderWelcome())
		},
	)

	s.mcp.AddResource(
		mcp.NewResource(resourceManifestURI, "manifest",
			mcp.WithResourceDescription("The tool and resource catalog exposed by this server."),
			mcp.WithMIMEType("text/plain"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return textContents(resourceManifestURI, s.renderManifest())
		},
	)

	s.mcp.AddResource(
		mcp.NewResource(resourceSpiralStateURI, "spiral/state",
			mcp.WithResourceDescription("The current session's spiral phase and reflection depth."),
			mcp.WithMIMEType("text/plain"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			snapshot, err := s.spiral.Status(s.sessionID)
			if err != nil {
				if sovereignerr.KindOf(err) == sovereignerr.NotFound {
					return textContents(resourceSpiralStateURI, "no spiral session yet for "+s.sessionID)
				}
				return nil, err
			}
			return textContents(resourceSpiralStateURI, s.renderSpiralState(snapshot))
		},
	)
}

func textContents(uri, body string) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     body,
		},
	}, nil
}

// renderWelcome is the static-plus-dynamic preamble required by spec
// §4.11: a human-readable orientation followed by a digest of the most
// recent ground-truth insights, so a fresh client sees what the session
// already knows before it calls a single tool.
func (s *Surface) renderWelcome() string {
	var b strings.Builder
	b.WriteString(resourceTitleStyle.Render("sovereign-stack") + "\n\n")
	b.WriteString(resourceLabelStyle.Render("session") + " " + s.sessionID + "\n")
	b.WriteString("A local, single-tenant persistence and governance surface: coherence\n")
	b.WriteString("routing, layered memory, threshold-bounded governance, spiral reflection,\n")
	b.WriteString("and a bounded compaction ring, each append-only and self-auditing.\n\n")

	b.WriteString(resourceLabelStyle.Render("recent insights") + "\n")
	insights, err := s.chronicle.RecallInsights("", chronicle.LayerGroundTruth, 5)
	if err != nil || len(insights) == 0 {
		b.WriteString("  (none recorded yet)\n")
		return b.String()
	}
	for _, insight := range insights {
		b.WriteString(fmt.Sprintf("  - [%s] %s\n", insight.Domain, insight.Content))
	}
	return b.String()
}

func (s *Surface) renderManifest() string {
	tools := []string{
		"route", "derive", "scan_thresholds", "govern",
		"record_insight", "recall_insights", "record_learning", "check_mistakes",
		"record_open_thread", "resolve_thread", "get_open_threads", "get_inheritable_context",
		"spiral_status", "spiral_reflect", "spiral_inherit",
		"store_compaction_summary", "get_compaction_context", "get_compaction_stats",
	}
	resources := []string{resourceWelcomeURI, resourceManifestURI, resourceSpiralStateURI}

	var b strings.Builder
	b.WriteString(resourceTitleStyle.Render("manifest") + "\n\n")
	b.WriteString(resourceLabelStyle.Render("tools") + "\n")
	for _, t := range tools {
		b.WriteString("  - " + t + "\n")
	}
	b.WriteString(resourceLabelStyle.Render("resources") + "\n")
	for _, r := range resources {
		b.WriteString("  - " + r + "\n")
	}
	return b.String()
}

func (s *Surface) renderSpiralState(snapshot *spiral.State) string {
	var b strings.Builder
	b.WriteString(resourceTitleStyle.Render("spiral state") + "\n\n")
	b.WriteString(fmt.Sprintf("%s phase %d, reflection depth %d\n", snapshot.SessionID, snapshot.Phase, snapshot.ReflectionDepth))
	if snapshot.InheritedFrom != "" {
		b.WriteString(resourceLabelStyle.Render("inherited from") + " " + snapshot.InheritedFrom + "\n")
	}
	b.WriteString(fmt.Sprintf("%d transitions recorded, last updated %s\n", len(snapshot.Transitions), snapshot.UpdatedAt))
	return b.String()
}
