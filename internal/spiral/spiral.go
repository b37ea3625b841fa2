// Package spiral implements the nine-phase reflective state machine and
// its porous inheritance policy (spec §4.8-4.9).
package spiral

import (
	"path/filepath"
	"time"

	"github.com/templetwo/sovereign-stack/internal/chronicle"
	"github.com/templetwo/sovereign-stack/internal/logging"
	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
	"github.com/templetwo/sovereign-stack/internal/storage"
)

// Phase is one of the nine spiral phases, numbered 1..9 in the order
// named by spec §4.8.
type Phase int

const (
	PhaseInitialization Phase = iota + 1
	PhaseFirstOrderObservation
	PhaseRecursiveIntegration
	PhaseCounterPerspectives
	PhaseActionSynthesis
	PhaseExecution
	PhaseMetaReflection
	PhaseIntegration
	PhaseCoherenceCheck
)

// Transition records one reflection event.
type Transition struct {
	Timestamp   string `json:"timestamp"`
	Observation string `json:"observation"`
	FromPhase   Phase  `json:"from_phase"`
	ToPhase     Phase  `json:"to_phase"`
}

// State is the persisted record for one session.
type State struct {
	SessionID      string       `json:"session_id"`
	Phase          Phase        `json:"phase"`
	ReflectionDepth int         `json:"reflection_depth"`
	Transitions    []Transition `json:"transitions"`
	InheritedFrom  string       `json:"inherited_from,omitempty"`
	CreatedAt      string       `json:"created_at"`
	UpdatedAt      string       `json:"updated_at"`
}

// Machine owns spiral session state under root/spiral.
type Machine struct {
	root      string
	chronicle *chronicle.Chronicle
}

// New returns a Machine rooted at root, backed by chron for inheritance
// context assembly.
func New(root string, chron *chronicle.Chronicle) *Machine {
	return &Machine{root: root, chronicle: chron}
}

func (m *Machine) path(sessionID string) string {
	return filepath.Join(m.root, "spiral", sessionID+".json")
}

func (m *Machine) load(sessionID string) (*State, error) {
	var s State
	if err := storage.ReadJSON(m.path(sessionID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Machine) save(s *State) error {
	s.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	return storage.WriteJSONAtomic(m.path(s.SessionID), s)
}

// NewSession creates a fresh session at phase 1 with no inheritance.
func (m *Machine) NewSession(sessionID string) (*State, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	s := &State{SessionID: sessionID, Phase: PhaseInitialization, CreatedAt: now, UpdatedAt: now}
	if err := m.save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Status returns the current snapshot for sessionID.
func (m *Machine) Status(sessionID string) (*State, error) {
	return m.load(sessionID)
}

// Reflect appends observation to the session's transitions, increments
// reflection_depth, and advances phase when depth crosses the threshold
// (depth divisible by 2 advances once, saturating at phase 9). Phase
// never decreases except via the 9->7 post-coherence rule: a reflection
// recorded while already at phase 9 drops back to phase 7 (spec §4.8).
// The load-modify-save runs under the session file's advisory lock.
func (m *Machine) Reflect(sessionID, observation string) (*State, error) {
	locker, err := storage.NewLocker(m.path(sessionID))
	if err != nil {
		return nil, err
	}
	var s *State
	err = locker.WithLock(5*time.Second, func() error {
		var rerr error
		s, rerr = m.reflectLocked(sessionID, observation)
		return rerr
	})
	return s, err
}

func (m *Machine) reflectLocked(sessionID, observation string) (*State, error) {
	s, err := m.load(sessionID)
	if err != nil {
		return nil, err
	}

	fromPhase := s.Phase
	s.ReflectionDepth++

	toPhase := fromPhase
	switch {
	case fromPhase == PhaseCoherenceCheck:
		toPhase = PhaseMetaReflection
	case s.ReflectionDepth%2 == 0 && fromPhase < PhaseCoherenceCheck:
		toPhase = fromPhase + 1
	}
	s.Phase = toPhase

	s.Transitions = append(s.Transitions, Transition{
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		Observation: observation,
		FromPhase:   fromPhase,
		ToPhase:     toPhase,
	})

	if err := m.save(s); err != nil {
		return nil, err
	}
	logging.Get(logging.CategorySpiral).Debug("session %s reflected: phase %d -> %d (depth %d)", sessionID, fromPhase, toPhase, s.ReflectionDepth)
	return s, nil
}

// Inherit starts a new session whose inherited_from points at sourceID
// (or the most recently updated session if sourceID is empty). The new
// session starts at phase 1 with reflection_depth 0: neither carries
// over from the source (spec §4.8, coupling coefficient R ~ 0.46 — ground
// truth travels fully, hypotheses are offered but not canon, phase/depth
// do not transmit).
func (m *Machine) Inherit(newSessionID, sourceID string) (*State, error) {
	if sourceID == "" {
		var err error
		sourceID, err = m.mostRecentSession()
		if err != nil {
			return nil, err
		}
		if sourceID == "" {
			return nil, sovereignerr.New(sovereignerr.NotFound, "no prior session to inherit from")
		}
	} else if _, err := m.load(sourceID); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	s := &State{
		SessionID:     newSessionID,
		Phase:         PhaseInitialization,
		InheritedFrom: sourceID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.save(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Machine) mostRecentSession() (string, error) {
	paths, err := storage.ListFiles(filepath.Join(m.root, "spiral"), ".json")
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", nil
	}
	latest := ""
	var latestTime time.Time
	for _, p := range paths {
		var s State
		if err := storage.ReadJSON(p, &s); err != nil {
			return "", err
		}
		t, err := time.Parse(time.RFC3339Nano, s.UpdatedAt)
		if err != nil {
			continue
		}
		if t.After(latestTime) {
			latestTime = t
			latest = s.SessionID
		}
	}
	return latest, nil
}

// InheritableContext returns the porous inheritance package the new
// session receives from chronicle, delegating to Chronicle's
// GetInheritableContext (spec §4.9).
func (m *Machine) InheritableContext(limit int) (chronicle.InheritableContext, error) {
	return m.chronicle.GetInheritableContext(limit)
}
