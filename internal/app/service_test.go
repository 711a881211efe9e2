package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/taikai/internal/app"
	"github.com/okian/taikai/internal/adapters/repository"
	"github.com/okian/taikai/internal/adapters/storage"
	model "github.com/okian/taikai/internal/domain/model"
	"github.com/okian/taikai/internal/domain/scoring"
	"github.com/okian/taikai/pkg/logger"
	"github.com/okian/taikai/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// failingBackend loads nothing and refuses every save.
type failingBackend struct{}

var errDiskFull = errors.New("disk full")

func (failingBackend) Load(context.Context, string) ([]byte, error) { return nil, storage.ErrNotFound }
func (failingBackend) Save(context.Context, string, []byte) error   { return errDiskFull }
func (failingBackend) Close() error                                 { return nil }

// rosterWriteFailure wraps a working backend and, once armed, refuses to
// save the roster document only.
type rosterWriteFailure struct {
	storage.Backend
	armed atomic.Bool
}

func (b *rosterWriteFailure) Save(ctx context.Context, key string, data []byte) error {
	if key == repository.TeamsKey && b.armed.Load() {
		return errDiskFull
	}
	return b.Backend.Save(ctx, key, data)
}

// counterValue sums a gathered counter family over samples carrying label=value.
func counterValue(name, label, value string) float64 {
	mfs, err := metrics.GetRegistry().Gather()
	So(err, ShouldBeNil)
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == label && l.GetValue() == value {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats(context.Background())
			So(stats.StorageBackend, ShouldEqual, storage.BackendMemory)
			So(stats.UnknownTeamPolicy, ShouldEqual, string(scoring.PolicyDiscard))
			So(stats.AutoRecompute, ShouldBeTrue)
			So(stats.Started, ShouldBeFalse)
			So(stats.QueueDepth, ShouldHaveLength, 4)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithQueueSize(16),
			service.WithPublishBuffer(8),
			service.WithAutoRecompute(false),
			service.WithUnknownTeamPolicy(scoring.PolicyCreate),
			service.WithBackend("test", storage.NewMemory()),
			service.WithLogger(logger.Nop()),
		)

		Convey("Then the options are reflected in stats", func() {
			stats := svc.GetStats(context.Background())
			So(stats.StorageBackend, ShouldEqual, "test")
			So(stats.UnknownTeamPolicy, ShouldEqual, string(scoring.PolicyCreate))
			So(stats.AutoRecompute, ShouldBeFalse)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				So(svc.GetStats(ctx).Started, ShouldBeTrue)
			})

			Convey("And starting twice is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a backend holding a corrupt document", t, func() {
		mem := storage.NewMemory()
		So(mem.Save(context.Background(), "teams", []byte("{not json")), ShouldBeNil)
		svc := service.New(service.WithBackend("memory", mem))

		Convey("Then start fails with a corrupt document error", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrCorruptDocument), ShouldBeTrue)
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := svc.Start(ctx)
		So(err, ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats(ctx).Started, ShouldBeFalse)
			})

			Convey("And mutations are refused", func() {
				_, err := svc.SubmitEventScore(ctx, model.ScoreRecord{Event: "grip", Team: "Red"})
				So(errors.Is(err, service.ErrShuttingDown), ShouldBeTrue)
			})

			Convey("And it cannot be restarted", func() {
				So(errors.Is(svc.Start(ctx), service.ErrShuttingDown), ShouldBeTrue)
			})

			Convey("And stopping again is safe", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})

	Convey("Given a service that never started", t, func() {
		svc := service.New()

		Convey("Then Stop does nothing", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)
		})
	})
}

func TestService_NotStarted(t *testing.T) {
	Convey("Given a service that was not started", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("When mutating", func() {
			_, err := svc.SubmitEventScore(ctx, model.ScoreRecord{Event: "grip", Team: "Red"})

			Convey("Then the call fails instead of hanging", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When reading", func() {
			teams, err := svc.GetTeams(ctx)

			Convey("Then reads still work", func() {
				So(err, ShouldBeNil)
				So(teams, ShouldBeEmpty)
			})
		})
	})
}

func TestService_Validation(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New()
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a score has no team", func() {
			accepted, err := svc.SubmitEventScore(ctx, model.ScoreRecord{Event: "grip"})

			Convey("Then it is malformed and nothing is stored", func() {
				So(accepted, ShouldBeFalse)
				So(errors.Is(err, service.ErrMalformedInput), ShouldBeTrue)
				records, _ := svc.GetEventScores(ctx)
				So(records, ShouldBeEmpty)
			})
		})

		Convey("When a roster repeats a name", func() {
			err := svc.SetTeams(ctx, []model.Team{{Name: "Red"}, {Name: "Red"}})

			Convey("Then it is malformed", func() {
				So(errors.Is(err, service.ErrMalformedInput), ShouldBeTrue)
			})
		})

		Convey("When a bulk import has a bad record", func() {
			err := svc.ReplaceEventScores(ctx, []model.ScoreRecord{{Event: "grip", Team: "Red"}, {Team: "Blue"}})

			Convey("Then the whole import is rejected", func() {
				So(errors.Is(err, service.ErrMalformedInput), ShouldBeTrue)
				records, _ := svc.GetEventScores(ctx)
				So(records, ShouldBeEmpty)
			})
		})

		Convey("When votes are not JSON", func() {
			err := svc.SetCosplayVotes(ctx, []model.CosplayVote{model.CosplayVote("nope")})

			Convey("Then they are malformed", func() {
				So(errors.Is(err, service.ErrMalformedInput), ShouldBeTrue)
			})
		})
	})
}

func TestService_StorageFailure(t *testing.T) {
	Convey("Given a service whose backend refuses writes", t, func() {
		svc := service.New(service.WithBackend("broken", failingBackend{}))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When submitting a score", func() {
			accepted, err := svc.SubmitEventScore(ctx, model.ScoreRecord{Event: "grip", Team: "Red", Point: 5})

			Convey("Then storage is reported unavailable and nothing changed", func() {
				So(accepted, ShouldBeFalse)
				So(errors.Is(err, service.ErrStorageUnavailable), ShouldBeTrue)
				records, _ := svc.GetEventScores(ctx)
				So(records, ShouldBeEmpty)
				So(svc.GetStats(ctx).DedupeKeys, ShouldEqual, 0)
			})
		})

		Convey("When setting muscle max", func() {
			err := svc.SetMuscleMax(ctx, model.MuscleMax{Grip: 60})

			Convey("Then the old value is kept", func() {
				So(errors.Is(err, service.ErrStorageUnavailable), ShouldBeTrue)
				m, _ := svc.GetMuscleMax(ctx)
				So(m, ShouldResemble, model.MuscleMax{})
			})
		})
	})
}

func TestService_AutoRecomputeFailure(t *testing.T) {
	Convey("Given a service whose roster document stops accepting writes", t, func() {
		backend := &rosterWriteFailure{Backend: storage.NewMemory()}
		svc := service.New(service.WithBackend("flaky", backend))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(svc.SetTeams(ctx, []model.Team{{Name: "Red"}}), ShouldBeNil)
		backend.armed.Store(true)

		const failures = "taikai_scores_auto_recompute_failures_total"
		before := counterValue(failures, "reason", "storage_unavailable")

		Convey("When a score is submitted", func() {
			accepted, err := svc.SubmitEventScore(ctx, model.ScoreRecord{Event: "grip", Team: "Red", Point: 5, Value: 40})

			Convey("Then the submission still commits", func() {
				So(err, ShouldBeNil)
				So(accepted, ShouldBeTrue)
				records, _ := svc.GetEventScores(ctx)
				So(records, ShouldHaveLength, 1)
			})

			Convey("Then the stale roster is counted by reason", func() {
				So(counterValue(failures, "reason", "storage_unavailable"), ShouldEqual, before+1)
				teams, _ := svc.GetTeams(ctx)
				So(teams[0].Muscle, ShouldEqual, 0)
			})

			Convey("Then a manual recompute after recovery catches up", func() {
				backend.armed.Store(false)
				teams, err := svc.RecomputeTeamsFromEvents(ctx)
				So(err, ShouldBeNil)
				So(teams[0].Muscle, ShouldEqual, 5)
			})
		})
	})
}
