package mcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/templetwo/sovereign-stack/internal/chronicle"
	"github.com/templetwo/sovereign-stack/internal/compaction"
	"github.com/templetwo/sovereign-stack/internal/coherence"
	"github.com/templetwo/sovereign-stack/internal/governance"
	"github.com/templetwo/sovereign-stack/internal/spiral"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func newTestSurfaceWithPool(t *testing.T, maxConcurrentCalls int64) *Surface {
	t.Helper()
	root := t.TempDir()

	coh := coherence.NewEngine(root)
	chron := chronicle.New(root)
	gov, err := governance.NewCircuit(governance.Limits{
		FileCountCap:        1000,
		DepthCap:            20,
		EntropyCap:          10,
		GrowthRateCapPerMin: 1000,
	}, 0.5, root)
	require.NoError(t, err)
	sp := spiral.New(root, chron)
	comp, err := compaction.New(root)
	require.NoError(t, err)

	return New(Config{SessionID: "test-session", MaxConcurrentCalls: maxConcurrentCalls}, coh, chron, gov, sp, comp)
}

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	return newTestSurfaceWithPool(t, 0)
}

func TestNewWiresAllComponentsAndRegistersCatalog(t *testing.T) {
	s := newTestSurface(t)
	assert.NotNil(t, s.MCPServer())
	assert.Equal(t, "test-session", s.sessionID)
}

func TestWithDeadlineReturnsResultOnSuccess(t *testing.T) {
	s := newTestSurface(t)

	result, err := s.withDeadline(context.Background(), func(ctx context.Context) (*mcp.CallToolResult, error) {
		return textResult("ok")
	})
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestWithDeadlineConvertsCanceledContextToTimeoutPayload(t *testing.T) {
	s := newTestSurface(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestWithDeadlineFailsFastWhenPoolIsSaturated(t *testing.T) {
	s := newTestSurfaceWithPool(t, 1)
	require.NoError(t, s.sem.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := s.withDeadline(ctx, func(ctx context.Context) (*mcp.CallToolResult, error) {
		t.Fatal("handler should not run when the pool is saturated")
		return nil, nil
	})
	require.NoError(t, err)
	require.NotNil(t, result)
}
