package report

import (
	"fmt"
	"os"
	"time"

	"backup-verifier/core/reconcile"
	"backup-verifier/core/stats"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Metadata is the header of structured reports.
type Metadata struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Source      string    `json:"source" yaml:"source"`
	Backup      string    `json:"backup" yaml:"backup"`
	AllMatched  bool      `json:"all_matched" yaml:"all_matched"`
	DurationSec float64   `json:"total_processing_time" yaml:"total_processing_time"`

	stats.GlobalSummary `yaml:",inline"`
}

// Document is the JSON and YAML shape of a report.
type Document struct {
	Metadata Metadata               `json:"metadata" yaml:"metadata"`
	Results  []reconcile.FileResult `json:"results" yaml:"results"`
}

// NewDocument builds the structured form of rep.
func NewDocument(rep Report) Document {
	results := rep.Results
	if results == nil {
		results = []reconcile.FileResult{}
	}
	return Document{
		Metadata: Metadata{
			RunID:         rep.RunID,
			GeneratedAt:   rep.GeneratedAt,
			Source:        rep.Source,
			Backup:        rep.Backup,
			AllMatched:    rep.Summary.AllMatched(),
			DurationSec:   round2(rep.Summary.Duration().Seconds()),
			GlobalSummary: rep.Summary,
		},
		Results: results,
	}
}

func writeJSON(path string, rep Report) error {
	data, err := json.MarshalIndent(NewDocument(rep), "", "  ")
	if err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeYAML(path string, rep Report) error {
	data, err := yaml.Marshal(NewDocument(rep))
	if err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
