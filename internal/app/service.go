// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
//
// Every mutation of a shared document runs as a job on that document's
// queue, so read-modify-write cycles on the same document never overlap.
// Notifications are published only after the job has committed.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/taikai/internal/adapters/broadcast"
	"github.com/okian/taikai/internal/adapters/mq/queue"
	"github.com/okian/taikai/internal/adapters/mq/worker"
	"github.com/okian/taikai/internal/adapters/repository"
	"github.com/okian/taikai/internal/adapters/storage"
	model "github.com/okian/taikai/internal/domain/model"
	"github.com/okian/taikai/internal/domain/scoring"
	"github.com/okian/taikai/internal/domain/types"
	"github.com/okian/taikai/pkg/logger"
	"github.com/okian/taikai/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize     = 1024
	defaultPublishBuffer = 256
)

// Service implements the API dependencies for the score ledger.
type Service struct {
	mu sync.RWMutex

	backend     storage.Backend
	backendName string

	teams   *repository.TeamStore
	muscle  *repository.MuscleMaxStore
	cosplay *repository.CosplayStore
	ledger  *repository.LedgerStore

	queue *queue.InMemoryQueue
	pool  *worker.Pool
	hub   *broadcast.Hub

	queueSize     int
	publishBuffer int
	autoRecompute bool
	policy        scoring.Policy

	started bool
	stopped bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service. Without WithBackend it keeps state in memory.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:     defaultQueueSize,
		publishBuffer: defaultPublishBuffer,
		autoRecompute: true,
		policy:        scoring.PolicyDiscard,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.backend == nil {
		s.backend = storage.Instrument(storage.BackendMemory, storage.NewMemory())
		s.backendName = storage.BackendMemory
	}

	s.teams = repository.NewTeamStore(s.backend)
	s.muscle = repository.NewMuscleMaxStore(s.backend)
	s.cosplay = repository.NewCosplayStore(s.backend)
	s.ledger = repository.NewLedgerStore(s.backend)

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.queue, worker.WithLogger(s.logger))
	s.hub = broadcast.NewHub(
		broadcast.WithPublishBuffer(s.publishBuffer),
		broadcast.WithLogger(s.logger.Named("broadcast")),
	)
	return s
}

// Hub returns the broadcaster so transports can attach subscribers.
func (s *Service) Hub() *broadcast.Hub { return s.hub }

// Start loads every document, then starts the workers and the broadcaster.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return ErrShuttingDown
	}

	s.logger.Info(ctx, "starting score service...",
		logger.String("backend", s.backendName),
		logger.String("unknown_team_policy", string(s.policy)),
		logger.Bool("auto_recompute", s.autoRecompute),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.teams.Load(gctx) })
	g.Go(func() error { return s.muscle.Load(gctx) })
	g.Go(func() error { return s.cosplay.Load(gctx) })
	g.Go(func() error { return s.ledger.Load(gctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load documents: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)
	s.hub.Start(runCtx)

	if teams, err := s.teams.Read(ctx); err == nil {
		metrics.UpdateTeamCount(len(teams))
	}
	if records, err := s.ledger.Read(ctx); err == nil {
		metrics.UpdateLedgerSize(len(records))
	}

	s.started = true
	s.logger.Info(ctx, "score service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int64("ledgerKeys", s.ledger.IndexSize()),
	)
	return nil
}

// Stop drains pending mutations, then stops the broadcaster.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping score service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancel()
	<-s.hub.Done()

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "score service stopped")
}

// submit runs fn on resource's queue and waits for its result.
func (s *Service) submit(ctx context.Context, r queue.Resource, fn func(ctx context.Context) (any, error)) (any, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		if s.queue.IsClosed() {
			return nil, ErrShuttingDown
		}
		return nil, ErrNotStarted
	}
	return queue.Submit(ctx, s.queue, r, fn)
}

func (s *Service) publish(ctx context.Context, topic broadcast.Topic, payload any) {
	if err := s.hub.Publish(topic, payload); err != nil {
		s.logger.Warn(ctx, "notification not sent", logger.String("topic", string(topic)), logger.Error(err))
	}
}

// GetTeams returns the committed roster.
func (s *Service) GetTeams(ctx context.Context) ([]model.Team, error) {
	return s.teams.Read(ctx)
}

// SetTeams overwrites the roster and notifies subscribers with the new roster.
func (s *Service) SetTeams(ctx context.Context, teams []model.Team) error {
	if err := model.ValidateTeams(teams); err != nil {
		return err
	}
	teams = model.CloneTeams(teams)

	// Roster notifications are published from inside the roster job so they
	// leave in commit order.
	_, err := s.submit(ctx, queue.Roster, func(ctx context.Context) (any, error) {
		if err := s.teams.Write(ctx, teams); err != nil {
			return nil, err
		}
		metrics.UpdateTeamCount(len(teams))
		s.publish(ctx, broadcast.TeamsUpdated, teams)
		return nil, nil
	})
	return err
}

// GetMuscleMax returns the reference ceilings, all zero if never set.
func (s *Service) GetMuscleMax(ctx context.Context) (model.MuscleMax, error) {
	return s.muscle.Read(ctx)
}

// SetMuscleMax overwrites the reference ceilings.
func (s *Service) SetMuscleMax(ctx context.Context, m model.MuscleMax) error {
	_, err := s.submit(ctx, queue.MuscleMax, func(ctx context.Context) (any, error) {
		return nil, s.muscle.Write(ctx, m)
	})
	return err
}

// GetCosplayVotes returns the stored votes, empty if never set.
func (s *Service) GetCosplayVotes(ctx context.Context) ([]model.CosplayVote, error) {
	return s.cosplay.Read(ctx)
}

// SetCosplayVotes overwrites the vote list and signals subscribers.
func (s *Service) SetCosplayVotes(ctx context.Context, votes []model.CosplayVote) error {
	if err := model.ValidateVotes(votes); err != nil {
		return err
	}
	votes = model.CloneVotes(votes)

	_, err := s.submit(ctx, queue.Cosplay, func(ctx context.Context) (any, error) {
		return nil, s.cosplay.Write(ctx, votes)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, broadcast.CosplayUpdated, nil)
	return nil
}

// GetEventScores returns the ledger in submission order.
func (s *Service) GetEventScores(ctx context.Context) ([]model.ScoreRecord, error) {
	return s.ledger.Read(ctx)
}

// SubmitEventScore appends r unless its identity key is already in the ledger.
// A duplicate is not an error: it reports accepted=false and changes nothing.
func (s *Service) SubmitEventScore(ctx context.Context, r model.ScoreRecord) (bool, error) {
	if err := r.Validate(); err != nil {
		metrics.RecordSubmission("rejected")
		return false, err
	}

	v, err := s.submit(ctx, queue.Ledger, func(ctx context.Context) (any, error) {
		accepted, err := s.ledger.Append(ctx, r)
		if err != nil || !accepted {
			return accepted, err
		}
		if records, err := s.ledger.Read(ctx); err == nil {
			metrics.UpdateLedgerSize(len(records))
		}
		return true, nil
	})
	if err != nil {
		metrics.RecordSubmission("failed")
		return false, err
	}

	accepted, _ := v.(bool)
	if !accepted {
		metrics.RecordSubmission("duplicate")
		s.logger.Debug(ctx, "duplicate submission ignored",
			logger.String("event", r.Event),
			logger.String("team", r.Team),
		)
		return false, nil
	}

	metrics.RecordSubmission("accepted")
	s.publish(ctx, broadcast.EventScoresUpdated, nil)
	s.afterLedgerChange(ctx)
	return true, nil
}

// ReplaceEventScores overwrites the whole ledger. Records are stored as given,
// without a duplicate check.
func (s *Service) ReplaceEventScores(ctx context.Context, records []model.ScoreRecord) error {
	if err := model.ValidateScores(records); err != nil {
		return err
	}
	records = model.CloneScores(records)

	_, err := s.submit(ctx, queue.Ledger, func(ctx context.Context) (any, error) {
		return nil, s.ledger.Replace(ctx, records)
	})
	if err != nil {
		return err
	}
	metrics.UpdateLedgerSize(len(records))
	s.publish(ctx, broadcast.EventScoresUpdated, nil)
	s.afterLedgerChange(ctx)
	return nil
}

func (s *Service) afterLedgerChange(ctx context.Context) {
	if !s.autoRecompute {
		return
	}
	if _, err := s.RecomputeTeamsFromEvents(ctx); err != nil {
		reason := staleReason(err)
		metrics.RecordAutoRecomputeFailure(reason)
		s.logger.Warn(ctx, "recompute after ledger change failed; roster is stale until the next recompute",
			logger.String("reason", reason),
			logger.Error(err),
		)
	}
}

// staleReason labels why an automatic recompute left the roster behind the ledger.
func staleReason(err error) string {
	switch {
	case errors.Is(err, ErrBackpressure):
		return "backpressure"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, ErrCorruptDocument):
		return "corrupt_document"
	case errors.Is(err, ErrUnknownTeam):
		return "unknown_team"
	case errors.Is(err, ErrShuttingDown), errors.Is(err, ErrNotStarted):
		return "unavailable"
	default:
		return "other"
	}
}

// RecomputeTeamsFromEvents rebuilds every team's muscle and events from the
// committed ledger, stores the roster and notifies subscribers.
// It runs on the roster queue, so it never interleaves with another roster write
// and its notification is ordered with every other roster change.
func (s *Service) RecomputeTeamsFromEvents(ctx context.Context) ([]model.Team, error) {
	v, err := s.submit(ctx, queue.Roster, func(ctx context.Context) (any, error) {
		start := time.Now()
		records, err := s.ledger.Read(ctx)
		if err != nil {
			return nil, err
		}
		roster, err := s.teams.Read(ctx)
		if err != nil {
			return nil, err
		}
		res, err := scoring.Recompute(records, roster, s.policy)
		if err != nil {
			return nil, err
		}
		if err := s.teams.Write(ctx, res.Teams); err != nil {
			return nil, err
		}
		metrics.RecordRecompute(float64(time.Since(start).Microseconds())/1000, res.UnknownRecords)
		metrics.UpdateTeamCount(len(res.Teams))
		s.publish(ctx, broadcast.TeamsUpdated, res.Teams)
		if len(res.Duplicates) > 0 {
			s.logger.Warn(ctx, "stored roster repeats team names; later entries dropped",
				logger.Strings("teams", res.Duplicates),
			)
		}
		if len(res.Unknown) > 0 {
			s.logger.Warn(ctx, "ledger references teams missing from the roster",
				logger.Strings("teams", res.Unknown),
				logger.Int("records", res.UnknownRecords),
				logger.String("policy", string(s.policy)),
			)
		}
		return res.Teams, nil
	})
	if err != nil {
		metrics.RecordRecomputeError()
		return nil, err
	}

	teams, _ := v.([]model.Team)
	return model.CloneTeams(teams), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{
		DedupeKeys:        s.ledger.IndexSize(),
		Subscribers:       s.hub.Subscribers(),
		QueueDepth:        make(map[string]int),
		StorageBackend:    s.backendName,
		UnknownTeamPolicy: string(s.policy),
		AutoRecompute:     s.autoRecompute,
		Started:           s.started,
	}
	for _, r := range s.queue.Resources() {
		stats.QueueDepth[string(r)] = s.queue.Len(ctx, r)
	}
	if records, err := s.ledger.Read(ctx); err == nil {
		stats.LedgerRecords = len(records)
	}
	if n, err := s.teams.Len(ctx); err == nil {
		stats.Teams = n
	}
	if votes, err := s.cosplay.Read(ctx); err == nil {
		stats.CosplayVotes = len(votes)
	}
	return stats
}
