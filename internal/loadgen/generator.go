package loadgen

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	model "github.com/okian/taikai/internal/domain/model"
)

// events are the muscle exercises scores are generated for.
var events = []string{"grip", "situp30", "wallSit", "pushup60", "backExt", "yoga60"}

// Constants for value generation ranges.
const (
	maxPoint      = 10
	maxValue      = 120
	classCodeMods = 4
)

func teamName(i int) string { return fmt.Sprintf("team-%02d", i+1) }

// generateRoster returns n empty teams.
func generateRoster(n int) []model.Team {
	teams := make([]model.Team, n)
	for i := range teams {
		teams[i] = model.Team{Name: teamName(i), Events: map[string]float64{}}
	}
	return teams
}

// generateRecords returns n records with distinct identity keys. Every
// record carries a fresh participant name, so no two collide.
func generateRecords(rng *rand.Rand, n, teams int) []model.ScoreRecord {
	records := make([]model.ScoreRecord, n)
	for i := range records {
		r := model.ScoreRecord{
			Event: events[rng.IntN(len(events))],
			Team:  teamName(rng.IntN(teams)),
			Name:  model.StringPtr(uuid.NewString()),
			Point: float64(1 + rng.IntN(maxPoint)),
			Value: float64(rng.IntN(maxValue + 1)),
		}
		if rng.IntN(classCodeMods) == 0 {
			r.ClassCode = model.StringPtr(fmt.Sprintf("C%d", 1+rng.IntN(classCodeMods)))
		}
		records[i] = r
	}
	return records
}

// expectedTeams aggregates records the way the server should.
func expectedTeams(records []model.ScoreRecord) map[string]model.Team {
	out := make(map[string]model.Team)
	for _, r := range records {
		t, ok := out[r.Team]
		if !ok {
			t = model.Team{Name: r.Team, Events: map[string]float64{}}
		}
		t.Muscle += r.Point
		if cur, seen := t.Events[r.Event]; !seen || r.Value > cur {
			t.Events[r.Event] = r.Value
		}
		out[r.Team] = t
	}
	return out
}
