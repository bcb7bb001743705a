package captcha

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Scratch is the per-attempt working directory holding downloaded images
// and crops. It has a single writer.
type Scratch struct {
	dir string
}

// NewScratch returns a Scratch rooted at dir. The directory is created on
// first use.
func NewScratch(dir string) *Scratch {
	return &Scratch{dir: dir}
}

// Dir returns the scratch directory.
func (s *Scratch) Dir() string {
	return s.dir
}

// Reset removes every file left by a previous attempt. Subdirectories are
// not touched.
func (s *Scratch) Reset() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read scratch directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Save writes data under name and returns the full path.
func (s *Scratch) Save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	return path, nil
}

// Files lists the file names currently in the scratch directory.
func (s *Scratch) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
