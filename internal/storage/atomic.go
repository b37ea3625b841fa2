// Package storage provides the filesystem primitives every higher-level
// component persists through: atomic JSON writes, append-only JSONL
// readers, and scoped advisory-lock acquisition for the handful of
// singleton files (compaction buffer, audit log, spiral sessions) that
// require read-modify-write semantics.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
)

// WriteJSONAtomic marshals v as JSON and writes it to path via a
// write-to-temp + rename sequence, creating parent directories as needed.
// A rename on the same filesystem is atomic, so concurrent readers never
// observe a torn record.
func WriteJSONAtomic(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return sovereignerr.Internalf(err, "create directory for %s", filepath.Base(path))
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sovereignerr.Internalf(err, "marshal record")
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return sovereignerr.Internalf(err, "create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return sovereignerr.Internalf(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return sovereignerr.Internalf(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return sovereignerr.Internalf(err, "close temp file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return sovereignerr.Internalf(err, "rename into place")
	}
	return nil
}

// ReadJSON unmarshals the JSON document at path into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sovereignerr.New(sovereignerr.NotFound, fmt.Sprintf("%s does not exist", filepath.Base(path)))
		}
		return sovereignerr.Internalf(err, "read %s", filepath.Base(path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return sovereignerr.Internalf(err, "unmarshal %s", filepath.Base(path))
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
