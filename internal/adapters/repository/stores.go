package repository

import (
	"context"

	"github.com/okian/taikai/internal/adapters/storage"
	model "github.com/okian/taikai/internal/domain/model"
)

// TeamStore holds the team roster.
type TeamStore struct {
	*Document[[]model.Team]
}

// NewTeamStore returns the roster document. It reads as empty until written.
func NewTeamStore(b storage.Backend) *TeamStore {
	return &TeamStore{NewDocument(b, TeamsKey,
		func() []model.Team { return []model.Team{} },
		model.CloneTeams,
	)}
}

// Len returns the number of teams, loading the roster if needed.
func (s *TeamStore) Len(ctx context.Context) (int, error) {
	teams, err := s.Read(ctx)
	return len(teams), err
}

// MuscleMaxStore holds the reference ceilings. It reads as all zero until written.
type MuscleMaxStore struct {
	*Document[model.MuscleMax]
}

// NewMuscleMaxStore returns the muscle-max document.
func NewMuscleMaxStore(b storage.Backend) *MuscleMaxStore {
	return &MuscleMaxStore{NewDocument(b, MuscleMaxKey,
		func() model.MuscleMax { return model.MuscleMax{} },
		func(m model.MuscleMax) model.MuscleMax { return m },
	)}
}

// CosplayStore holds the opaque cosplay votes. It reads as empty until written.
type CosplayStore struct {
	*Document[[]model.CosplayVote]
}

// NewCosplayStore returns the cosplay vote document.
func NewCosplayStore(b storage.Backend) *CosplayStore {
	return &CosplayStore{NewDocument(b, CosplayKey,
		func() []model.CosplayVote { return []model.CosplayVote{} },
		model.CloneVotes,
	)}
}
