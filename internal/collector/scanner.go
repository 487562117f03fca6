package collector

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Artifact is one structured-fields file found by the Scanner.
type Artifact struct {
	SourceID string
	Path     string
	ModTime  time.Time
}

// Scanner lists the structured-fields artifacts under Dir. The source
// identity of each is its slash-separated path relative to Dir.
type Scanner struct {
	Dir string
}

// Scan walks Dir for *.json files, oldest first. A missing directory yields
// no artifacts.
func (s *Scanner) Scan() ([]Artifact, error) {
	if _, err := os.Stat(s.Dir); os.IsNotExist(err) {
		return nil, nil
	}

	var out []Artifact
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.Dir, path)
		if err != nil {
			return err
		}
		out = append(out, Artifact{
			SourceID: filepath.ToSlash(rel),
			Path:     path,
			ModTime:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.Dir, err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.Before(out[j].ModTime)
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

// Read returns the artifact's bytes.
func (a Artifact) Read() ([]byte, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a.SourceID, err)
	}
	return data, nil
}
