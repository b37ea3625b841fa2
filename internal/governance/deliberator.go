package governance

import (
	"context"
	"fmt"

	"github.com/templetwo/sovereign-stack/internal/logging"
	"github.com/templetwo/sovereign-stack/internal/mangle"
)

// Vote is a stakeholder's position on a proposed intervention.
type Vote struct {
	Stakeholder   string  `json:"stakeholder"`
	Choice        string  `json:"choice"` // proceed | pause | reject
	Rationale     string  `json:"rationale,omitempty"`
	Reversibility float64 `json:"reversibility,omitempty"` // cited for reject overrides
}

// Outcome is the Deliberator's aggregated decision.
type Outcome string

const (
	OutcomeProceed Outcome = "proceed"
	OutcomePause   Outcome = "pause"
	OutcomeReject  Outcome = "reject"
)

// Decision is the Deliberator's result: the aggregated outcome plus every
// dissenting rationale, preserved verbatim.
type Decision struct {
	Outcome   Outcome  `json:"outcome"`
	Votes     []Vote   `json:"votes"`
	Dissent   []Vote   `json:"dissent"`
	Ranking   []Scenario `json:"ranking"`
}

// schema declares the Datalog predicates the Deliberator's overrides are
// expressed against. The numeric reversibility-vs-floor comparison is
// resolved in Go before facts are asserted (see citesLowReversibility);
// Mangle performs the actual deduction of the two overrides from those
// asserted facts, so the policy's shape — not the arithmetic — lives in
// the schema.
const deliberatorSchema = `
Decl low_reversibility_reject(Stakeholder)
  descr [mode('+')].
Decl critical_violation(Metric)
  descr [mode('+')].

Decl forces_pause()
  descr [mode()].
forces_pause() :- low_reversibility_reject(_).

Decl requires_unanimity()
  descr [mode()].
requires_unanimity() :- critical_violation(_).
`

// Deliberator aggregates stakeholder votes with the detector events and
// simulator ranking, using a Mangle-backed policy engine to evaluate the
// two overrides named in spec §4.5: a reject vote citing reversibility
// under the configured floor forces pause; a critical projected violation
// requires unanimous proceed.
type Deliberator struct {
	reversibilityFloor float64
	engine             *mangle.Engine
}

// NewDeliberator returns a Deliberator whose override policy is loaded
// into a fresh Mangle engine (grounded on internal/mangle's
// LoadSchemaString/AddFacts/Query usage pattern).
func NewDeliberator(reversibilityFloor float64) (*Deliberator, error) {
	engine, err := mangle.NewEngine(mangle.DefaultConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("create policy engine: %w", err)
	}
	if err := engine.LoadSchemaString(deliberatorSchema); err != nil {
		return nil, fmt.Errorf("load deliberator policy: %w", err)
	}
	return &Deliberator{reversibilityFloor: reversibilityFloor, engine: engine}, nil
}

// Deliberate aggregates votes by plurality, applies the two overrides via
// the policy engine, and preserves every non-winning vote as dissent.
func (d *Deliberator) Deliberate(ctx context.Context, events []ThresholdEvent, ranking []Scenario, votes []Vote) (Decision, error) {
	facts := make([]mangle.Fact, 0, len(votes)+1)
	for _, v := range votes {
		if v.Choice == "reject" && v.Reversibility < d.reversibilityFloor {
			facts = append(facts, mangle.Fact{Predicate: "low_reversibility_reject", Args: []interface{}{v.Stakeholder}})
		}
	}
	for _, e := range events {
		if e.Severity == SeverityCritical {
			facts = append(facts, mangle.Fact{Predicate: "critical_violation", Args: []interface{}{e.Metric}})
		}
	}

	if err := d.engine.AddFacts(facts); err != nil {
		return Decision{}, fmt.Errorf("evaluate deliberation facts: %w", err)
	}
	defer d.engine.Clear()

	pauseForced, err := predicateHolds(ctx, d.engine, "?forces_pause()")
	if err != nil {
		return Decision{}, err
	}
	unanimityRequired, err := predicateHolds(ctx, d.engine, "?requires_unanimity()")
	if err != nil {
		return Decision{}, err
	}

	plurality := pluralityChoice(votes)
	outcome := Outcome(plurality)

	if unanimityRequired && !allProceed(votes) {
		outcome = OutcomePause
	}
	if pauseForced {
		outcome = OutcomePause
	}

	var dissent []Vote
	for _, v := range votes {
		if Outcome(v.Choice) != outcome {
			dissent = append(dissent, v)
		}
	}

	logging.Get(logging.CategoryGovernance).Info("deliberation outcome=%s votes=%d dissent=%d", outcome, len(votes), len(dissent))
	return Decision{Outcome: outcome, Votes: votes, Dissent: dissent, Ranking: ranking}, nil
}

func predicateHolds(ctx context.Context, engine *mangle.Engine, query string) (bool, error) {
	result, err := engine.Query(ctx, query)
	if err != nil {
		return false, fmt.Errorf("query %q: %w", query, err)
	}
	return len(result.Bindings) > 0, nil
}

// pluralityChoice picks the plurality winner among proceed/pause/reject.
// A reversibility-first policy: any tie for the top count — whether or not
// pause is one of the tied choices — resolves to pause, since deadlocked
// stakeholders should not default to irreversible action.
func pluralityChoice(votes []Vote) string {
	counts := map[string]int{"proceed": 0, "pause": 0, "reject": 0}
	for _, v := range votes {
		counts[v.Choice]++
	}

	bestCount := -1
	for _, count := range counts {
		if count > bestCount {
			bestCount = count
		}
	}

	leaders := 0
	for _, count := range counts {
		if count == bestCount {
			leaders++
		}
	}
	if leaders > 1 {
		return "pause"
	}
	for _, choice := range []string{"proceed", "pause", "reject"} {
		if counts[choice] == bestCount {
			return choice
		}
	}
	return "pause"
}

func allProceed(votes []Vote) bool {
	for _, v := range votes {
		if v.Choice != "proceed" {
			return false
		}
	}
	return len(votes) > 0
}
