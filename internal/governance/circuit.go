package governance

import (
	"context"
	"fmt"

	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
)

// Circuit composes Detector, Simulator, Deliberator, and AuditLog into
// the two operations external callers actually invoke (spec §4.7). No
// intervention code lives here: an approved outcome is a data value for
// external callers to act on.
type Circuit struct {
	detector    *Detector
	simulator   *Simulator
	deliberator *Deliberator
	audit       *AuditLog

	chainBroken bool
}

// NewCircuit wires the four governance components together.
func NewCircuit(limits Limits, reversibilityFloor float64, root string) (*Circuit, error) {
	deliberator, err := NewDeliberator(reversibilityFloor)
	if err != nil {
		return nil, err
	}
	audit, err := NewAuditLog(root)
	if err != nil {
		return nil, err
	}
	return &Circuit{
		detector:    NewDetector(limits),
		simulator:   NewSimulator(),
		deliberator: deliberator,
		audit:       audit,
	}, nil
}

// ScanThresholds runs the detector over path (spec §4.7 step 1).
func (c *Circuit) ScanThresholds(ctx context.Context, path string, recursive bool) (ScanResult, error) {
	return c.detector.Scan(ctx, path, recursive)
}

// GovernResult is what Govern returns: the deliberated decision plus the
// audit entry that recorded it.
type GovernResult struct {
	Decision Decision   `json:"decision"`
	Entry    AuditEntry `json:"entry"`
}

// Govern reruns the detector on target, ranks intervention scenarios,
// deliberates over the resulting votes, and writes the corresponding
// audit entry (spec §4.7 step 2). A broken audit chain blocks further
// governance actions until Acknowledge is called.
func (c *Circuit) Govern(ctx context.Context, intervention Intervention, votes []Vote) (GovernResult, error) {
	if c.chainBroken {
		return GovernResult{}, sovereignerr.New(sovereignerr.ChainBroken, "audit chain verification failed; call Acknowledge before further governance actions")
	}

	verify, err := c.audit.Verify()
	if err != nil {
		return GovernResult{}, err
	}
	if !verify.Valid {
		c.chainBroken = true
		return GovernResult{}, sovereignerr.New(sovereignerr.ChainBroken, fmt.Sprintf("audit chain mismatch at line %d", verify.MismatchLine))
	}

	scan, err := c.detector.Scan(ctx, intervention.TargetPath, true)
	if err != nil {
		return GovernResult{}, err
	}

	ranking := c.simulator.Rank(intervention, scan.Events)

	decision, err := c.deliberator.Deliberate(ctx, scan.Events, ranking, votes)
	if err != nil {
		return GovernResult{}, err
	}

	action := "intervention_" + string(decision.Outcome)
	if decision.Outcome == OutcomeProceed {
		action = "intervention_approved"
	}

	actor := "system"
	if len(votes) > 0 {
		actor = votes[0].Stakeholder
	}
	rationale := summarizeDissent(decision.Dissent)

	entry, err := c.audit.Append(actor, action, intervention.TargetPath, string(decision.Outcome), rationale)
	if err != nil {
		return GovernResult{}, err
	}

	return GovernResult{Decision: decision, Entry: entry}, nil
}

// Acknowledge clears the chain-broken latch after an operator has
// reviewed a failed Verify (spec §4.6).
func (c *Circuit) Acknowledge() {
	c.chainBroken = false
}

// VerifyAudit exposes the audit chain verification operation directly.
func (c *Circuit) VerifyAudit() (VerifyResult, error) {
	return c.audit.Verify()
}

func summarizeDissent(dissent []Vote) string {
	if len(dissent) == 0 {
		return ""
	}
	out := ""
	for i, v := range dissent {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s:%s", v.Stakeholder, v.Choice)
		if v.Rationale != "" {
			out += fmt.Sprintf(" (%s)", v.Rationale)
		}
	}
	return out
}
