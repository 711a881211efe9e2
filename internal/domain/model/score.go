package model

import (
	"math"
	"strings"
)

// ScoreRecord is one participant's submission for one event.
// ClassCode and Name are optional; nil is distinct from the empty string.
type ScoreRecord struct {
	Event     string  `json:"event"`
	Team      string  `json:"team"`
	ClassCode *string `json:"classCode,omitempty"`
	Name      *string `json:"name,omitempty"`
	Point     float64 `json:"point"`
	Value     float64 `json:"value"`
}

// Validate performs the basic shape checks applied before a record is queued.
func (r ScoreRecord) Validate() error {
	if reason := r.problem(); reason != "" {
		return malformed("%s", reason)
	}
	return nil
}

func (r ScoreRecord) problem() string {
	switch {
	case strings.TrimSpace(r.Event) == "":
		return "missing event"
	case strings.TrimSpace(r.Team) == "":
		return "missing team"
	case !finite(r.Point):
		return "point is not a finite number"
	case !finite(r.Value):
		return "value is not a finite number"
	}
	return ""
}

// ValidateScores validates every record of a bulk import.
func ValidateScores(records []ScoreRecord) error {
	for i, r := range records {
		if reason := r.problem(); reason != "" {
			return malformed("records[%d]: %s", i, reason)
		}
	}
	return nil
}

// CloneScores copies a ledger. Optional string pointers are shared; records are never mutated in place.
func CloneScores(records []ScoreRecord) []ScoreRecord {
	out := make([]ScoreRecord, len(records))
	copy(out, records)
	return out
}

// StringPtr is a small helper for building records with optional fields.
func StringPtr(s string) *string { return &s }

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
