package persistence

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hermes/internal/errors"
)

// History statuses.
const (
	HistorySuccess = "success"
	HistoryFailed  = "failed"
)

// maxErrorMessage bounds the error text stored in failure metadata.
const maxErrorMessage = 500

// HistoryMeta describes one completed (or failed) run.
type HistoryMeta struct {
	ID              string    `yaml:"id"`
	Prompt          string    `yaml:"prompt"`
	CreatedAt       time.Time `yaml:"created_at"`
	FinishedAt      time.Time `yaml:"finished_at"`
	Model           string    `yaml:"model"`
	Language        string    `yaml:"language"`
	ValidationLoops int       `yaml:"validation_loops"`
	SourceCount     int       `yaml:"source_count"`
	ReportFile      string    `yaml:"report_file"`
	Status          string    `yaml:"status"`
	ErrorMessage    string    `yaml:"error_message,omitempty"`
}

// TruncateError clamps an error message to the stored limit.
func TruncateError(message string) string {
	if len(message) > maxErrorMessage {
		return message[:maxErrorMessage]
	}
	return message
}

// HistoryRepository persists reports and their metadata under history/.
type HistoryRepository struct {
	paths Paths
}

// NewHistoryRepository returns a repository over the given layout.
func NewHistoryRepository(paths Paths) *HistoryRepository {
	return &HistoryRepository{paths: paths}
}

// SaveReport writes the Markdown report and returns its path.
func (r *HistoryRepository) SaveReport(runID, markdown string) (string, error) {
	path := r.paths.ReportFile(runID)
	if err := writeFileAtomic(path, []byte(markdown)); err != nil {
		return "", fmt.Errorf("saving report %s: %w", runID, err)
	}
	return path, nil
}

// SaveMeta writes the run metadata. Error messages are truncated.
func (r *HistoryRepository) SaveMeta(meta HistoryMeta) error {
	meta.ErrorMessage = TruncateError(meta.ErrorMessage)
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding history meta %s: %w", meta.ID, err)
	}
	return writeFileAtomic(r.paths.MetaFile(meta.ID), data)
}

// LoadMeta reads one run's metadata.
func (r *HistoryRepository) LoadMeta(runID string) (HistoryMeta, error) {
	data, err := os.ReadFile(r.paths.MetaFile(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return HistoryMeta{}, errors.NewNotFound("history", runID)
		}
		return HistoryMeta{}, fmt.Errorf("reading history meta %s: %w", runID, err)
	}
	var meta HistoryMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return HistoryMeta{}, fmt.Errorf("decoding history meta %s: %w", runID, err)
	}
	return meta, nil
}

// LoadReport reads one run's Markdown report.
func (r *HistoryRepository) LoadReport(runID string) (string, error) {
	data, err := os.ReadFile(r.paths.ReportFile(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFound("history", runID)
		}
		return "", fmt.Errorf("reading report %s: %w", runID, err)
	}
	return string(data), nil
}

// ListAll returns run metadata newest-first by finished_at. A limit of 0
// means no limit.
func (r *HistoryRepository) ListAll(limit int) ([]HistoryMeta, error) {
	ids, err := r.IDs()
	if err != nil {
		return nil, err
	}

	metas := make([]HistoryMeta, 0, len(ids))
	for _, runID := range ids {
		meta, err := r.LoadMeta(runID)
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].FinishedAt.After(metas[j].FinishedAt)
	})
	if limit > 0 && len(metas) > limit {
		metas = metas[:limit]
	}
	return metas, nil
}

// Delete removes a run's report and metadata.
func (r *HistoryRepository) Delete(runID string) error {
	metaErr := os.Remove(r.paths.MetaFile(runID))
	reportErr := os.Remove(r.paths.ReportFile(runID))
	if os.IsNotExist(metaErr) && os.IsNotExist(reportErr) {
		return errors.NewNotFound("history", runID)
	}
	if metaErr != nil && !os.IsNotExist(metaErr) {
		return metaErr
	}
	if reportErr != nil && !os.IsNotExist(reportErr) {
		return reportErr
	}
	return nil
}

// ExportReport copies a run's report to dest.
func (r *HistoryRepository) ExportReport(runID, dest string) error {
	src, err := os.Open(r.paths.ReportFile(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFound("history", runID)
		}
		return fmt.Errorf("opening report %s: %w", runID, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("exporting report %s: %w", runID, err)
	}
	return out.Close()
}

// IDs returns every run ID that has metadata on disk.
func (r *HistoryRepository) IDs() ([]string, error) {
	entries, err := os.ReadDir(r.paths.HistoryDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing histories: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "report-") || !strings.HasSuffix(name, ".meta.yaml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, "report-"), ".meta.yaml"))
	}
	return ids, nil
}
