package scheduler

import (
	"os"
	"path/filepath"
	"sort"
)

// FSDirectoryEnumerator is the default DirectoryEnumerator, listing input
// shard files directly from the filesystem. Results are sorted for
// deterministic input ordinal assignment.
type FSDirectoryEnumerator struct{}

func (FSDirectoryEnumerator) ListInputFiles(workloadPath string) ([]string, error) {
	entries, err := os.ReadDir(workloadPath)
	if err != nil {
		return nil, errFileOpen(workloadPath, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || IsAuxiliaryInputFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(workloadPath, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
