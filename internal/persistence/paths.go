// Package persistence stores tasks, report histories, and logs as flat
// files under the work directory. Writes go through a temp-file rename so
// readers never observe a partial file.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves the on-disk layout under a work directory.
type Paths struct {
	Base string
}

// NewPaths returns the layout rooted at base.
func NewPaths(base string) Paths {
	return Paths{Base: base}
}

func (p Paths) TaskDir() string     { return filepath.Join(p.Base, "task") }
func (p Paths) HistoryDir() string  { return filepath.Join(p.Base, "history") }
func (p Paths) LogDir() string      { return filepath.Join(p.Base, "log") }
func (p Paths) DebugLogDir() string { return filepath.Join(p.Base, "debug_log") }
func (p Paths) CacheDir() string    { return filepath.Join(p.Base, "cache") }

func (p Paths) TaskFile(id string) string {
	return filepath.Join(p.TaskDir(), "task-"+id+".yaml")
}

func (p Paths) ReportFile(id string) string {
	return filepath.Join(p.HistoryDir(), "report-"+id+".md")
}

func (p Paths) MetaFile(id string) string {
	return filepath.Join(p.HistoryDir(), "report-"+id+".meta.yaml")
}

// EnsureTree creates the full directory layout.
func (p Paths) EnsureTree() error {
	dirs := []string{
		p.Base, p.TaskDir(), p.HistoryDir(), p.LogDir(), p.DebugLogDir(), p.CacheDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// writeFileAtomic writes data to path via a temp file in the same
// directory followed by a rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
