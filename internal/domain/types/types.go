// Package types contains common types used across the application
package types

// Stats is a point-in-time snapshot of the service, served on /stats.
type Stats struct {
	LedgerRecords     int            `json:"ledger_records"`
	DedupeKeys        int64          `json:"dedupe_keys"`
	Teams             int            `json:"teams"`
	CosplayVotes      int            `json:"cosplay_votes"`
	Subscribers       int            `json:"subscribers"`
	QueueDepth        map[string]int `json:"queue_depth"`
	StorageBackend    string         `json:"storage_backend"`
	UnknownTeamPolicy string         `json:"unknown_team_policy"`
	AutoRecompute     bool           `json:"auto_recompute"`
	Started           bool           `json:"started"`
}

// PendingMutations sums the queue depth over all resources.
func (s Stats) PendingMutations() int {
	total := 0
	for _, n := range s.QueueDepth {
		total += n
	}
	return total
}
