// Package chronicle implements the three-layer experiential memory:
// append-only insights (ground_truth/hypothesis/open_thread), learnings,
// and open threads, plus porous inheritance-context assembly for Spiral.
package chronicle

// Layer is the retrieval/inheritance class of an Insight.
type Layer string

const (
	LayerGroundTruth Layer = "ground_truth"
	LayerHypothesis  Layer = "hypothesis"
	LayerOpenThread  Layer = "open_thread"
)

// Insight is an append-only observation. Confidence is required when
// Layer is hypothesis and forbidden otherwise (spec §4.2).
type Insight struct {
	ID         string  `json:"id"`
	Timestamp  string  `json:"timestamp"`
	Domain     string  `json:"domain"`
	Content    string  `json:"content"`
	Intensity  float64 `json:"intensity"`
	Layer      Layer   `json:"layer"`
	Confidence *float64 `json:"confidence,omitempty"`
	SessionID  string  `json:"session_id"`
}

// Learning records what happened, what was learned, and what it applies
// to; retrieved by token-overlap scoring against a query context.
type Learning struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	WhatHappened string `json:"what_happened"`
	WhatLearned string `json:"what_learned"`
	AppliesTo   string `json:"applies_to"`
	SessionID   string `json:"session_id"`
}

// OpenThread is an unresolved question; resolving one rewrites it in
// place and emits a companion ground-truth insight.
type OpenThread struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Question   string `json:"question"`
	Context    string `json:"context"`
	Domain     string `json:"domain"`
	Resolved   bool   `json:"resolved"`
	Resolution string `json:"resolution,omitempty"`
	SessionID  string `json:"session_id"`
}

// InheritableContext is the three-way disjoint partition handed to a new
// Spiral session on inherit (spec §4.9): ground truths travel verbatim,
// hypotheses are offered but not canon, open threads are invitations.
type InheritableContext struct {
	GroundTruth []Insight          `json:"ground_truth"`
	Hypotheses  []HypothesisOffer  `json:"hypotheses"`
	OpenThreads []OpenThread       `json:"open_threads"`
}

// HypothesisOffer wraps a hypothesis insight with the non-canonical flag
// required by the porous inheritance policy.
type HypothesisOffer struct {
	Insight Insight `json:"insight"`
	Flag    string  `json:"flag"`
}
