package pipeline

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/backmassage/webpconv/internal/config"
	"github.com/backmassage/webpconv/internal/naming"
)

// Discover expands command-line paths into the list of .webp files to
// convert. A file argument is taken as-is (file mode) and validated later by
// batch.Configure. A directory argument contributes its .webp children
// (folder mode), or every .webp below it when dc.Recursive is set; exclude
// patterns and in-progress temp files are skipped during expansion.
// Duplicates are dropped and the result is sorted for deterministic
// processing order.
func Discover(fsys afero.Fs, paths []string, dc config.DiscoveryConfig) ([]string, error) {
	ex, err := naming.NewExcluder(dc.Exclude)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		st, err := fsys.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", p, err)
		}
		if !st.IsDir() {
			add(p)
			continue
		}
		if dc.Recursive {
			err = afero.Walk(fsys, p, func(path string, info fs.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && ex.Candidate(path) {
					add(path)
				}
				return nil
			})
		} else {
			err = listDir(fsys, p, ex, add)
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func listDir(fsys afero.Fs, dir string, ex *naming.Excluder, add func(string)) error {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if !e.IsDir() && ex.Candidate(path) {
			add(path)
		}
	}
	return nil
}
