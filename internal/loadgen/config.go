// Package loadgen drives a running taikai server with concurrent score
// submissions and checks that the ledger and the roster add up afterwards.
package loadgen

import (
	"errors"
	"time"
)

// Default run settings.
const (
	DefaultRecords    = 1000
	DefaultTeams      = 8
	DefaultDuplicates = 100
	DefaultWorkers    = 16
	DefaultTimeout    = 10 * time.Second
)

// ErrVerification is returned when the server state does not match what was submitted.
var ErrVerification = errors.New("verification failed")

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Records    int           // Distinct records to submit
	Teams      int           // Teams on the generated roster
	Duplicates int           // Records re-sent to exercise duplicate detection
	Workers    int           // Concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Random seed; zero picks one from the clock
	Verbose    bool          // Log every failed request
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Records <= 0 {
		out.Records = DefaultRecords
	}
	if out.Teams <= 0 {
		out.Teams = DefaultTeams
	}
	if out.Duplicates < 0 {
		out.Duplicates = 0
	}
	if out.Duplicates > out.Records {
		out.Duplicates = out.Records
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.Seed == 0 {
		out.Seed = uint64(time.Now().UnixNano())
	}
	return out
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int64
	Accepted   int64
	Duplicates int64
	Failed     int64
	Teams      int
	StartTime  time.Time
	Duration   time.Duration
}
