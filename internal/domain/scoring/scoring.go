// Package scoring derives team standings from the score ledger.
package scoring

import (
	"fmt"
	"strings"

	model "github.com/okian/taikai/internal/domain/model"
)

// Policy decides what happens to ledger records whose team is not on the roster.
type Policy string

const (
	// PolicyDiscard aggregates nothing for unknown teams. This is the default.
	PolicyDiscard Policy = "discard"
	// PolicyCreate appends unknown teams to the roster in order of first appearance.
	PolicyCreate Policy = "create"
	// PolicyReject fails the recompute and leaves the roster untouched.
	PolicyReject Policy = "reject"
)

// ParsePolicy maps a config value to a Policy. An empty string selects PolicyDiscard.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyDiscard, nil
	case PolicyDiscard, PolicyCreate, PolicyReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown team policy %q", s)
	}
}

// Result is the outcome of a recompute.
type Result struct {
	// Teams is the new roster, in the order of the input roster
	// followed by any teams created under PolicyCreate.
	Teams []model.Team
	// Unknown lists team names found in the ledger but not on the input roster,
	// in order of first appearance.
	Unknown []string
	// UnknownRecords counts the ledger records that referenced those teams.
	UnknownRecords int
	// Duplicates lists roster names that appeared more than once. Only the
	// first entry for a name is kept; later ones are dropped from Teams.
	Duplicates []string
}

// Recompute rebuilds muscle and events for every team from the full ledger.
// Cosplay counts and roster order are carried over; the inputs are not modified.
func Recompute(ledger []model.ScoreRecord, roster []model.Team, policy Policy) (Result, error) {
	var res Result
	teams := make([]model.Team, 0, len(roster))
	index := make(map[string]int, len(roster))
	for _, t := range roster {
		if _, dup := index[t.Name]; dup {
			res.Duplicates = append(res.Duplicates, t.Name)
			continue
		}
		index[t.Name] = len(teams)
		teams = append(teams, model.Team{
			Name:    t.Name,
			Cosplay: t.Cosplay,
			Events:  map[string]float64{},
		})
	}

	unknown := map[string]bool{}
	for _, r := range ledger {
		i, ok := index[r.Team]
		if !ok || unknown[r.Team] {
			res.UnknownRecords++
			if !unknown[r.Team] {
				unknown[r.Team] = true
				res.Unknown = append(res.Unknown, r.Team)
				if policy == PolicyCreate {
					teams = append(teams, model.Team{Name: r.Team, Events: map[string]float64{}})
					i = len(teams) - 1
					index[r.Team] = i
				}
			}
			if policy != PolicyCreate {
				continue
			}
		}
		apply(&teams[i], r)
	}

	if policy == PolicyReject && len(res.Unknown) > 0 {
		return Result{Unknown: res.Unknown, UnknownRecords: res.UnknownRecords, Duplicates: res.Duplicates},
			fmt.Errorf("%w: %s", ErrUnknownTeam, strings.Join(res.Unknown, ", "))
	}
	res.Teams = teams
	return res, nil
}

func apply(t *model.Team, r model.ScoreRecord) {
	t.Muscle += r.Point
	if best, ok := t.Events[r.Event]; !ok || r.Value > best {
		t.Events[r.Event] = r.Value
	}
}
