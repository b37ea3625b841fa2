package governance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
	"github.com/templetwo/sovereign-stack/internal/storage"
)

// genesisHash is prev_hash for the first entry in a chain (spec §3).
var genesisHash = strings.Repeat("0", 64)

// AuditEntry is one hash-chained governance decision record.
type AuditEntry struct {
	Timestamp string  `json:"ts"`
	Actor     string  `json:"actor"`
	Action    string  `json:"action"`
	Target    string  `json:"target"`
	Vote      string  `json:"vote,omitempty"`
	Rationale string  `json:"rationale,omitempty"`
	PrevHash  string  `json:"prev_hash"`
	Hash      string  `json:"hash"`
}

// AuditLog is the append-only, hash-chained jsonl audit trail. Writes are
// serialized with a file-level advisory lock (spec §4.6).
type AuditLog struct {
	path   string
	locker *storage.Locker
}

// NewAuditLog returns an AuditLog writing to root/governance/audit.jsonl.
func NewAuditLog(root string) (*AuditLog, error) {
	path := filepath.Join(root, "governance", "audit.jsonl")
	locker, err := storage.NewLocker(path)
	if err != nil {
		return nil, err
	}
	return &AuditLog{path: path, locker: locker}, nil
}

// Append writes a new entry chained to the current tail hash. Blocked
// (per §4.6) after a failed Verify until the operator explicitly calls
// Acknowledge is intentionally NOT enforced here: that gate lives in the
// Governance Circuit, which consults Verify before calling Append.
func (a *AuditLog) Append(actor, action, target, vote, rationale string) (AuditEntry, error) {
	var result AuditEntry
	err := a.locker.WithLock(5*time.Second, func() error {
		prevHash, err := a.tailHashLocked()
		if err != nil {
			return err
		}
		entry := AuditEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Actor:     actor,
			Action:    action,
			Target:    target,
			Vote:      vote,
			Rationale: rationale,
			PrevHash:  prevHash,
		}
		entry.Hash, err = hashEntry(entry)
		if err != nil {
			return err
		}
		if err := storage.AppendJSONL(a.path, entry); err != nil {
			return err
		}
		result = entry
		return nil
	})
	return result, err
}

func (a *AuditLog) tailHashLocked() (string, error) {
	lines, err := storage.ReadJSONLLines(a.path)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return genesisHash, nil
	}
	var last AuditEntry
	if err := json.Unmarshal(lines[len(lines)-1], &last); err != nil {
		return "", sovereignerr.Internalf(err, "decode last audit entry")
	}
	return last.Hash, nil
}

// hashEntry computes H(prev_hash || canonical_json(entry_without_hash)).
func hashEntry(entry AuditEntry) (string, error) {
	withoutHash := entry
	withoutHash.Hash = ""
	canonical, err := json.Marshal(withoutHash)
	if err != nil {
		return "", sovereignerr.Internalf(err, "canonicalize audit entry")
	}
	sum := sha256.Sum256(append([]byte(entry.PrevHash), canonical...))
	return hex.EncodeToString(sum[:]), nil
}

// VerifyResult reports whether the chain is intact, and the index of the
// first mismatch if not.
type VerifyResult struct {
	Valid        bool `json:"valid"`
	MismatchLine int  `json:"mismatch_line,omitempty"`
}

// Verify reads the full chain and recomputes every hash; any mismatch is
// fatal and reported with its line index (spec §4.6).
func (a *AuditLog) Verify() (VerifyResult, error) {
	lines, err := storage.ReadJSONLLines(a.path)
	if err != nil {
		return VerifyResult{}, err
	}

	prev := genesisHash
	for i, line := range lines {
		var entry AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return VerifyResult{}, sovereignerr.Internalf(err, "decode audit entry")
		}
		if entry.PrevHash != prev {
			return VerifyResult{Valid: false, MismatchLine: i}, nil
		}
		want, err := hashEntry(entry)
		if err != nil {
			return VerifyResult{}, err
		}
		if want != entry.Hash {
			return VerifyResult{Valid: false, MismatchLine: i}, nil
		}
		prev = entry.Hash
	}
	return VerifyResult{Valid: true}, nil
}
