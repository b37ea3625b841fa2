package governance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
)

func TestCircuitGovernProducesAuditEntry(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "subject")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "a.txt"), []byte("x"), 0o644))

	circuit, err := NewCircuit(Limits{FileCountCap: 100, DepthCap: 100, EntropyCap: 100, GrowthRateCapPerMin: 1000}, 0.5, root)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := circuit.Govern(ctx, Intervention{TargetPath: target, Description: "reorganize"}, []Vote{
		{Stakeholder: "owner", Choice: "proceed"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProceed, result.Decision.Outcome)
	assert.NotEmpty(t, result.Entry.Hash)

	verify, err := circuit.VerifyAudit()
	require.NoError(t, err)
	assert.True(t, verify.Valid)
}

func TestCircuitGovernBlockedAfterChainBreak(t *testing.T) {
	root := t.TempDir()
	circuit, err := NewCircuit(Limits{FileCountCap: 100, DepthCap: 100, EntropyCap: 100, GrowthRateCapPerMin: 1000}, 0.5, root)
	require.NoError(t, err)

	_, err = circuit.Govern(context.Background(), Intervention{TargetPath: root}, []Vote{{Stakeholder: "owner", Choice: "proceed"}})
	require.NoError(t, err)

	auditPath := filepath.Join(root, "governance", "audit.jsonl")
	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	corrupted := append(data, []byte(`{"ts":"x","hash":"deadbeef","prev_hash":"deadbeef"}`+"\n")...)
	require.NoError(t, os.WriteFile(auditPath, corrupted, 0o644))

	_, err = circuit.Govern(context.Background(), Intervention{TargetPath: root}, []Vote{{Stakeholder: "owner", Choice: "proceed"}})
	require.Error(t, err)
	assert.Equal(t, sovereignerr.ChainBroken, sovereignerr.KindOf(err))

	// The operator fixes the chain out-of-band (removes the corrupted
	// tail entry) before acknowledging — Acknowledge only clears the
	// latch, it does not repair the log itself.
	require.NoError(t, os.WriteFile(auditPath, data, 0o644))
	circuit.Acknowledge()
	_, err = circuit.Govern(context.Background(), Intervention{TargetPath: root}, []Vote{{Stakeholder: "owner", Choice: "proceed"}})
	require.NoError(t, err)
}
