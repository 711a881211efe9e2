package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/taikai/internal/adapters/repository"
	"github.com/okian/taikai/internal/adapters/storage"
	model "github.com/okian/taikai/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// flakyBackend wraps a memory backend and fails saves or loads on demand.
type flakyBackend struct {
	*storage.Memory
	mu        sync.Mutex
	failSave  bool
	failLoad  bool
	saveCalls int
}

func newFlaky() *flakyBackend { return &flakyBackend{Memory: storage.NewMemory()} }

func (f *flakyBackend) Save(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	f.saveCalls++
	fail := f.failSave
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Memory.Save(ctx, key, data)
}

func (f *flakyBackend) Load(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	fail := f.failLoad
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return f.Memory.Load(ctx, key)
}

func (f *flakyBackend) setFailSave(v bool) { f.mu.Lock(); f.failSave = v; f.mu.Unlock() }
func (f *flakyBackend) setFailLoad(v bool) { f.mu.Lock(); f.failLoad = v; f.mu.Unlock() }

func rec(event, team string, point, value float64) model.ScoreRecord {
	return model.ScoreRecord{Event: event, Team: team, Point: point, Value: value}
}

func TestDefaults(t *testing.T) {
	Convey("Given an empty backend", t, func() {
		ctx := context.Background()
		b := storage.NewMemory()

		Convey("Then every store reads its default", func() {
			teams, err := repository.NewTeamStore(b).Read(ctx)
			So(err, ShouldBeNil)
			So(teams, ShouldNotBeNil)
			So(teams, ShouldBeEmpty)

			mm, err := repository.NewMuscleMaxStore(b).Read(ctx)
			So(err, ShouldBeNil)
			So(mm, ShouldResemble, model.MuscleMax{})

			votes, err := repository.NewCosplayStore(b).Read(ctx)
			So(err, ShouldBeNil)
			So(votes, ShouldNotBeNil)
			So(votes, ShouldBeEmpty)

			ledger, err := repository.NewLedgerStore(b).Read(ctx)
			So(err, ShouldBeNil)
			So(ledger, ShouldNotBeNil)
			So(ledger, ShouldBeEmpty)
		})
	})

	Convey("Given a backend holding a null document", t, func() {
		ctx := context.Background()
		b := storage.NewMemory()
		So(b.Save(ctx, repository.TeamsKey, []byte(`null`)), ShouldBeNil)

		Convey("Then the roster reads as empty, not nil", func() {
			teams, err := repository.NewTeamStore(b).Read(ctx)
			So(err, ShouldBeNil)
			So(teams, ShouldNotBeNil)
		})
	})

	Convey("Given a backend holding broken JSON", t, func() {
		ctx := context.Background()
		b := storage.NewMemory()
		So(b.Save(ctx, repository.CosplayKey, []byte(`{`)), ShouldBeNil)

		Convey("Then reads fail as corrupt", func() {
			_, err := repository.NewCosplayStore(b).Read(ctx)
			So(errors.Is(err, repository.ErrCorruptDocument), ShouldBeTrue)
		})
	})
}

func TestDocumentWrite(t *testing.T) {
	Convey("Given a roster store", t, func() {
		ctx := context.Background()
		b := newFlaky()
		store := repository.NewTeamStore(b)
		So(store.Write(ctx, []model.Team{{Name: "Red", Cosplay: 1}}), ShouldBeNil)

		Convey("When a write succeeds", func() {
			So(store.Write(ctx, []model.Team{{Name: "Red"}, {Name: "Blue"}}), ShouldBeNil)

			Convey("Then a fresh store over the same backend sees it", func() {
				n, err := repository.NewTeamStore(b).Len(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})

		Convey("When the backend rejects the write", func() {
			b.setFailSave(true)
			err := store.Write(ctx, []model.Team{{Name: "Green"}})

			Convey("Then the error is storage-unavailable and the old value stays", func() {
				So(errors.Is(err, repository.ErrStorageUnavailable), ShouldBeTrue)
				teams, err := store.Read(ctx)
				So(err, ShouldBeNil)
				So(teams, ShouldHaveLength, 1)
				So(teams[0].Name, ShouldEqual, "Red")
			})
		})

		Convey("When a caller mutates what it read", func() {
			teams, _ := store.Read(ctx)
			teams[0].Name = "Mutated"

			Convey("Then the committed value is unaffected", func() {
				again, _ := store.Read(ctx)
				So(again[0].Name, ShouldEqual, "Red")
			})
		})

		Convey("When the backend cannot be read on first use", func() {
			b.setFailLoad(true)
			_, err := repository.NewMuscleMaxStore(b).Read(ctx)

			Convey("Then the read fails as storage-unavailable", func() {
				So(errors.Is(err, repository.ErrStorageUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestLedgerStore(t *testing.T) {
	Convey("Given a ledger store", t, func() {
		ctx := context.Background()
		b := newFlaky()
		ledger := repository.NewLedgerStore(b)

		Convey("When the same record is appended twice", func() {
			first, err1 := ledger.Append(ctx, rec("grip", "Red", 5, 40))
			second, err2 := ledger.Append(ctx, rec("grip", "Red", 5, 40))

			Convey("Then only the first is stored", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				records, _ := ledger.Read(ctx)
				So(records, ShouldHaveLength, 1)
				So(ledger.IndexSize(), ShouldEqual, 1)
			})
		})

		Convey("When records differ only in optional fields", func() {
			a := rec("grip", "Red", 5, 40)
			withEmpty := a
			withEmpty.Name = model.StringPtr("")
			withName := a
			withName.Name = model.StringPtr("Aiko")

			ok1, _ := ledger.Append(ctx, a)
			ok2, _ := ledger.Append(ctx, withEmpty)
			ok3, _ := ledger.Append(ctx, withName)

			Convey("Then each is a distinct identity", func() {
				So(ok1 && ok2 && ok3, ShouldBeTrue)
				records, _ := ledger.Read(ctx)
				So(records, ShouldHaveLength, 3)
			})
		})

		Convey("When the backend rejects an append", func() {
			b.setFailSave(true)
			ok, err := ledger.Append(ctx, rec("grip", "Blue", 1, 1))

			Convey("Then nothing is stored and the key can be retried", func() {
				So(ok, ShouldBeFalse)
				So(errors.Is(err, repository.ErrStorageUnavailable), ShouldBeTrue)

				b.setFailSave(false)
				ok, err = ledger.Append(ctx, rec("grip", "Blue", 1, 1))
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				records, _ := ledger.Read(ctx)
				So(records, ShouldHaveLength, 1)
			})
		})

		Convey("When the ledger is replaced", func() {
			_, _ = ledger.Append(ctx, rec("grip", "Red", 5, 40))
			err := ledger.Replace(ctx, []model.ScoreRecord{
				rec("situp30", "Blue", 1, 20),
				rec("situp30", "Blue", 1, 20),
			})

			Convey("Then duplicates in the import are kept and the index follows", func() {
				So(err, ShouldBeNil)
				records, _ := ledger.Read(ctx)
				So(records, ShouldHaveLength, 2)
				So(ledger.IndexSize(), ShouldEqual, 1)

				again, _ := ledger.Append(ctx, rec("grip", "Red", 5, 40))
				So(again, ShouldBeTrue)
				dup, _ := ledger.Append(ctx, rec("situp30", "Blue", 9, 9))
				So(dup, ShouldBeFalse)
			})
		})

		Convey("When the ledger is replaced with nothing", func() {
			_, _ = ledger.Append(ctx, rec("grip", "Red", 5, 40))
			So(ledger.Replace(ctx, nil), ShouldBeNil)

			Convey("Then it reads as empty", func() {
				records, err := ledger.Read(ctx)
				So(err, ShouldBeNil)
				So(records, ShouldNotBeNil)
				So(records, ShouldBeEmpty)
			})
		})

		Convey("When a new store opens a persisted ledger", func() {
			_, _ = ledger.Append(ctx, rec("grip", "Red", 5, 40))
			reopened := repository.NewLedgerStore(b)

			Convey("Then its index is rebuilt before the first append", func() {
				ok, err := reopened.Append(ctx, rec("grip", "Red", 1, 1))
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})
	})
}
