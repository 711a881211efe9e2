// Package model contains domain models passed between layers.
package model

// Team is one roster entry together with its derived standing.
type Team struct {
	Name    string             `json:"name"`
	Cosplay int                `json:"cosplay"`
	Muscle  float64            `json:"muscle"`
	Events  map[string]float64 `json:"events"`
}

// Clone returns a deep copy of t. The events map is never nil in the copy.
func (t Team) Clone() Team {
	events := make(map[string]float64, len(t.Events))
	for k, v := range t.Events {
		events[k] = v
	}
	t.Events = events
	return t
}

// CloneTeams deep-copies a roster. A nil roster becomes an empty one.
func CloneTeams(teams []Team) []Team {
	out := make([]Team, len(teams))
	for i, t := range teams {
		out[i] = t.Clone()
	}
	return out
}

// ValidateTeams checks a roster before it replaces the stored one.
// Names must be present and unique.
func ValidateTeams(teams []Team) error {
	seen := make(map[string]struct{}, len(teams))
	for i, t := range teams {
		if t.Name == "" {
			return malformed("teams[%d]: missing name", i)
		}
		if _, dup := seen[t.Name]; dup {
			return malformed("teams[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = struct{}{}
		for event, v := range t.Events {
			if !finite(v) {
				return malformed("teams[%d]: events[%q] is not a finite number", i, event)
			}
		}
		if !finite(t.Muscle) {
			return malformed("teams[%d]: muscle is not a finite number", i)
		}
	}
	return nil
}
