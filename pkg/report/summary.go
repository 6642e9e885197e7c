// Package report renders batch outcomes: run artifacts on disk and a styled
// console view of the event stream.
package report

import (
	"time"

	"github.com/entrhq/catalogsync/pkg/types"
)

// Run outcome labels.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusFailed         = "failed"
	StatusStopped        = "stopped"
)

// RunSummary is everything known about a finished batch.
type RunSummary struct {
	Source   string             `json:"source,omitempty"`
	Status   string             `json:"status"`
	Duration time.Duration      `json:"duration"`
	Stats    types.BatchStats   `json:"stats"`
	Results  []types.ItemResult `json:"results"`
}

// NewRunSummary derives the status and duration from stats.
func NewRunSummary(source string, stats types.BatchStats, results []types.ItemResult) *RunSummary {
	return &RunSummary{
		Source:   source,
		Status:   Status(stats),
		Duration: stats.Elapsed(),
		Stats:    stats,
		Results:  results,
	}
}

// Status classifies a finished batch.
func Status(stats types.BatchStats) string {
	switch {
	case stats.Stopped:
		return StatusStopped
	case stats.Failed == 0:
		return StatusSuccess
	case stats.Processed == 0:
		return StatusFailed
	default:
		return StatusPartialSuccess
	}
}
