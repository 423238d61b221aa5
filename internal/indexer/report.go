package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PairStatus is the outcome of one (source, filter) pair.
type PairStatus string

const (
	PairCompleted PairStatus = "completed"
	PairAborted   PairStatus = "aborted"
	PairSkipped   PairStatus = "skipped"
)

// PairReport records how far one (source, filter) pair got.
type PairReport struct {
	Source  string     `json:"source"`
	Filter  string     `json:"filter"`
	Status  PairStatus `json:"status"`
	Pages   int        `json:"pages"`
	Events  int        `json:"events"`
	Matched int        `json:"matched"`
	Added   int        `json:"added"`
	// Resume is set for aborted pairs: re-running from it continues at the
	// page that failed.
	Resume *Position `json:"resume,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Report summarizes an ingestion run.
type Report struct {
	StartedAt  string       `json:"started_at"`
	FinishedAt string       `json:"finished_at"`
	Pairs      []PairReport `json:"pairs"`
	// Added lists new keys in discovery order.
	Added []string `json:"added"`
}

func (r Report) count(status PairStatus) int {
	n := 0
	for _, pair := range r.Pairs {
		if pair.Status == status {
			n++
		}
	}
	return n
}

func (r Report) Completed() int { return r.count(PairCompleted) }
func (r Report) Aborted() int   { return r.count(PairAborted) }

// Find returns the report entry for a pair.
func (r Report) Find(source, filter string) (PairReport, bool) {
	for _, pair := range r.Pairs {
		if pair.Source == source && pair.Filter == filter {
			return pair, true
		}
	}
	return PairReport{}, false
}

// ReportStore persists the last run's report to disk.
type ReportStore struct {
	path string
}

func NewReportStore(path string) *ReportStore {
	return &ReportStore{path: path}
}

func (s *ReportStore) Path() string {
	return s.path
}

func (s *ReportStore) Load() (Report, bool, error) {
	if s == nil || s.path == "" {
		return Report{}, false, nil
	}

	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Report{}, false, nil
		}
		return Report{}, false, fmt.Errorf("stat report: %w", err)
	}
	if stat.IsDir() {
		return Report{}, false, fmt.Errorf("report path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Report{}, false, fmt.Errorf("read report: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, false, fmt.Errorf("parse report: %w", err)
	}

	return report, true, nil
}

func (s *ReportStore) Save(report Report) error {
	if s == nil || s.path == "" {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write report tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}

	return nil
}
