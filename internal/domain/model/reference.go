package model

import "encoding/json"

// MuscleMax holds the ceiling value for each strength exercise.
// Clients use it to normalize scores; a missing record reads as all zeros.
type MuscleMax struct {
	Grip     int `json:"grip"`
	Situp30  int `json:"situp30"`
	WallSit  int `json:"wallSit"`
	Pushup60 int `json:"pushup60"`
	BackExt  int `json:"backExt"`
	Yoga60   int `json:"yoga60"`
}

// CosplayVote is an opaque, caller-defined vote record.
type CosplayVote = json.RawMessage

// CloneVotes copies the vote list and every raw record in it.
func CloneVotes(votes []CosplayVote) []CosplayVote {
	out := make([]CosplayVote, len(votes))
	for i, v := range votes {
		out[i] = append(CosplayVote(nil), v...)
	}
	return out
}

// ValidateVotes rejects entries that are not well-formed JSON values.
func ValidateVotes(votes []CosplayVote) error {
	for i, v := range votes {
		if len(v) == 0 || !json.Valid(v) {
			return malformed("votes[%d]: not a JSON value", i)
		}
	}
	return nil
}
