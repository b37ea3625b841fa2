package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
)

// AppendJSONL marshals v and appends it as one line to path, creating the
// file and parent directories if needed. Callers that need exclusivity
// across processes (the audit log) must hold a Locker for the duration of
// this call.
func AppendJSONL(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return sovereignerr.Internalf(err, "create directory for %s", filepath.Base(path))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sovereignerr.Internalf(err, "marshal record")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return sovereignerr.Internalf(err, "open %s", filepath.Base(path))
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return sovereignerr.Internalf(err, "append to %s", filepath.Base(path))
	}
	return f.Sync()
}

// ReadJSONLLines returns every non-empty line of path as raw bytes, in file
// order, without decoding them. Returns (nil, nil) if the file does not
// exist.
func ReadJSONLLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, sovereignerr.Internalf(err, "open %s", filepath.Base(path))
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, sovereignerr.Internalf(err, "scan %s", filepath.Base(path))
	}
	return lines, nil
}
