package chronicle

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/templetwo/sovereign-stack/internal/logging"
	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
	"github.com/templetwo/sovereign-stack/internal/storage"
)

// Chronicle owns every record under root/chronicle.
type Chronicle struct {
	root string
}

// New returns a Chronicle rooted at root (the configured Sovereign Stack
// root directory; records are written under root/chronicle).
func New(root string) *Chronicle {
	return &Chronicle{root: root}
}

func (c *Chronicle) dir(parts ...string) string {
	return filepath.Join(append([]string{c.root, "chronicle"}, parts...)...)
}

func newID() (string, error) {
	ts := time.Now().UTC().Format("20060102T150405.000000000")
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", sovereignerr.Internalf(err, "generate id suffix")
	}
	return fmt.Sprintf("%s-%s", ts, hex.EncodeToString(buf[:])), nil
}

// RecordInsight writes a new append-only insight. layer=hypothesis
// requires confidence in [0,1]; every other layer forbids it.
func (c *Chronicle) RecordInsight(domain, content string, intensity float64, layer Layer, confidence *float64, sessionID string) (string, error) {
	if layer == LayerHypothesis {
		if confidence == nil || *confidence < 0 || *confidence > 1 {
			return "", sovereignerr.New(sovereignerr.InvalidInput, "hypothesis insight requires confidence in [0,1]")
		}
	} else if confidence != nil {
		return "", sovereignerr.New(sovereignerr.InvalidInput, "confidence is only valid for hypothesis insights")
	}
	if intensity < 0 || intensity > 1 {
		return "", sovereignerr.New(sovereignerr.InvalidInput, "intensity must be in [0,1]")
	}

	id, err := newID()
	if err != nil {
		return "", err
	}
	insight := Insight{
		ID:         id,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Domain:     domain,
		Content:    content,
		Intensity:  intensity,
		Layer:      layer,
		Confidence: confidence,
		SessionID:  sessionID,
	}
	path := c.dir("insights", domain, string(layer), id+".json")
	if err := storage.WriteJSONAtomic(path, insight); err != nil {
		return "", err
	}
	logging.Get(logging.CategoryChronicle).Debug("recorded %s insight %s in domain %s", layer, id, domain)
	return id, nil
}

// RecallInsights returns insights most-recent-first, optionally filtered
// by domain and/or layer. domain=="" or layer=="" search across all.
func (c *Chronicle) RecallInsights(domain string, layer Layer, limit int) ([]Insight, error) {
	if limit <= 0 {
		limit = 10
	}
	var domains []string
	if domain != "" {
		domains = []string{domain}
	} else {
		var err error
		domains, err = c.listDomains()
		if err != nil {
			return nil, err
		}
	}

	var layers []Layer
	if layer != "" {
		layers = []Layer{layer}
	} else {
		layers = []Layer{LayerGroundTruth, LayerHypothesis, LayerOpenThread}
	}

	var all []Insight
	for _, d := range domains {
		for _, l := range layers {
			insights, err := c.readInsightDir(d, l)
			if err != nil {
				return nil, err
			}
			all = append(all, insights...)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (c *Chronicle) listDomains() ([]string, error) {
	entries, err := storage.ListDirs(c.dir("insights"))
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Chronicle) readInsightDir(domain string, layer Layer) ([]Insight, error) {
	paths, err := storage.ListFiles(c.dir("insights", domain, string(layer)), ".json")
	if err != nil {
		return nil, err
	}
	insights := make([]Insight, 0, len(paths))
	for _, p := range paths {
		var ins Insight
		if err := storage.ReadJSON(p, &ins); err != nil {
			return nil, err
		}
		insights = append(insights, ins)
	}
	return insights, nil
}

// RecordLearning writes a new learning record.
func (c *Chronicle) RecordLearning(whatHappened, whatLearned, appliesTo, sessionID string) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}
	learning := Learning{
		ID:           id,
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		WhatHappened: whatHappened,
		WhatLearned:  whatLearned,
		AppliesTo:    appliesTo,
		SessionID:    sessionID,
	}
	path := c.dir("learnings", id+".json")
	if err := storage.WriteJSONAtomic(path, learning); err != nil {
		return "", err
	}
	return id, nil
}

// CheckMistakes scores every learning by token overlap against context and
// returns the top N, highest score first.
func (c *Chronicle) CheckMistakes(context string, limit int) ([]Learning, error) {
	if limit <= 0 {
		limit = 10
	}
	paths, err := storage.ListFiles(c.dir("learnings"), ".json")
	if err != nil {
		return nil, err
	}

	queryTokens := tokenize(context)
	type scored struct {
		learning Learning
		score    int
	}
	var all []scored
	for _, p := range paths {
		var l Learning
		if err := storage.ReadJSON(p, &l); err != nil {
			return nil, err
		}
		score := overlap(queryTokens, tokenize(l.WhatHappened+" "+l.AppliesTo))
		all = append(all, scored{l, score})
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].learning.ID > all[j].learning.ID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]Learning, len(all))
	for i, s := range all {
		out[i] = s.learning
	}
	return out, nil
}

func tokenize(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func overlap(a, b map[string]bool) int {
	count := 0
	for k := range a {
		if b[k] {
			count++
		}
	}
	return count
}

// RecordOpenThread writes a new unresolved thread.
func (c *Chronicle) RecordOpenThread(question, context, domain, sessionID string) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}
	thread := OpenThread{
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Question:  question,
		Context:   context,
		Domain:    domain,
		SessionID: sessionID,
	}
	path := c.dir("open_threads", domain, id+".json")
	if err := storage.WriteJSONAtomic(path, thread); err != nil {
		return "", err
	}
	return id, nil
}

// ResolveThread finds the open thread in domain whose question contains
// questionFragment, rewrites it resolved with resolution, and atomically
// emits a companion ground-truth insight citing both the question and the
// resolution (spec §4.2, scenario 5).
func (c *Chronicle) ResolveThread(domain, questionFragment, resolution, sessionID string) (string, error) {
	paths, err := storage.ListFiles(c.dir("open_threads", domain), ".json")
	if err != nil {
		return "", err
	}

	var match *OpenThread
	var matchPath string
	for _, p := range paths {
		var t OpenThread
		if err := storage.ReadJSON(p, &t); err != nil {
			return "", err
		}
		if !t.Resolved && strings.Contains(strings.ToLower(t.Question), strings.ToLower(questionFragment)) {
			match = &t
			matchPath = p
			break
		}
	}
	if match == nil {
		return "", sovereignerr.New(sovereignerr.NotFound, "no unresolved open thread matches fragment")
	}

	match.Resolved = true
	match.Resolution = resolution
	if err := storage.WriteJSONAtomic(matchPath, match); err != nil {
		return "", err
	}

	content := fmt.Sprintf("resolved: %q -> %s", match.Question, resolution)
	return c.RecordInsight(domain, content, 1.0, LayerGroundTruth, nil, sessionID)
}

// GetOpenThreads returns every open thread in domain ("" for all domains),
// optionally filtered to unresolved only.
func (c *Chronicle) GetOpenThreads(domain string, unresolvedOnly bool) ([]OpenThread, error) {
	var domains []string
	if domain != "" {
		domains = []string{domain}
	} else {
		var err error
		domains, err = storage.ListDirs(c.dir("open_threads"))
		if err != nil {
			return nil, err
		}
	}

	var all []OpenThread
	for _, d := range domains {
		paths, err := storage.ListFiles(c.dir("open_threads", d), ".json")
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			var t OpenThread
			if err := storage.ReadJSON(p, &t); err != nil {
				return nil, err
			}
			if unresolvedOnly && t.Resolved {
				continue
			}
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return all, nil
}

// GetInheritableContext assembles the porous inheritance package (spec
// §4.9): top-K ground truths verbatim, top-K hypotheses flagged as
// offered-not-canon, and all unresolved open threads. The three lists are
// strictly disjoint by construction since each insight carries exactly
// one layer.
func (c *Chronicle) GetInheritableContext(limit int) (InheritableContext, error) {
	if limit <= 0 {
		limit = 20
	}

	ground, err := c.RecallInsights("", LayerGroundTruth, limit)
	if err != nil {
		return InheritableContext{}, err
	}
	hyps, err := c.RecallInsights("", LayerHypothesis, limit)
	if err != nil {
		return InheritableContext{}, err
	}
	threads, err := c.GetOpenThreads("", true)
	if err != nil {
		return InheritableContext{}, err
	}

	offers := make([]HypothesisOffer, len(hyps))
	for i, h := range hyps {
		offers[i] = HypothesisOffer{Insight: h, Flag: "offered, not canon"}
	}

	return InheritableContext{
		GroundTruth: ground,
		Hypotheses:  offers,
		OpenThreads: threads,
	}, nil
}
