package loadgen

import (
	"context"
	"fmt"

	model "github.com/okian/taikai/internal/domain/model"
)

// verify compares the server's ledger and roster with the accepted records.
// Failed submissions make the comparison meaningless, so they fail it too.
func verify(ctx context.Context, client *Client, records []model.ScoreRecord, stats *Stats) error {
	if stats.Failed > 0 {
		return fmt.Errorf("%w: %d submissions failed", ErrVerification, stats.Failed)
	}

	ledger, err := client.Scores(ctx)
	if err != nil {
		return fmt.Errorf("fetch ledger: %w", err)
	}
	if len(ledger) != len(records) {
		return fmt.Errorf("%w: ledger holds %d records, sent %d", ErrVerification, len(ledger), len(records))
	}

	teams, err := client.Teams(ctx)
	if err != nil {
		return fmt.Errorf("fetch roster: %w", err)
	}
	if len(teams) != stats.Teams {
		return fmt.Errorf("%w: roster holds %d teams, expected %d", ErrVerification, len(teams), stats.Teams)
	}

	want := expectedTeams(records)
	for _, got := range teams {
		exp := want[got.Name]
		if got.Muscle != exp.Muscle {
			return fmt.Errorf("%w: team %s muscle %v, expected %v", ErrVerification, got.Name, got.Muscle, exp.Muscle)
		}
		if len(got.Events) != len(exp.Events) {
			return fmt.Errorf("%w: team %s has %d events, expected %d", ErrVerification, got.Name, len(got.Events), len(exp.Events))
		}
		for event, best := range exp.Events {
			if got.Events[event] != best {
				return fmt.Errorf("%w: team %s %s best %v, expected %v", ErrVerification, got.Name, event, got.Events[event], best)
			}
		}
	}
	return nil
}
