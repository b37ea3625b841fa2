package storage

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/templetwo/sovereign-stack/internal/sovereignerr"
)

// ListDirs returns the names of immediate subdirectories of dir, sorted.
// Returns an empty slice (not an error) if dir does not exist.
func ListDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, sovereignerr.Internalf(err, "list directory")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListFiles returns the absolute paths of every file directly inside dir
// whose name has the given suffix, sorted. Returns an empty slice (not an
// error) if dir does not exist.
func ListFiles(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, sovereignerr.Internalf(err, "list directory")
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if suffix == "" || filepath.Ext(e.Name()) == suffix {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
