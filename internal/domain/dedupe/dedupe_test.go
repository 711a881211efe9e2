package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/taikai/internal/domain/dedupe"
	model "github.com/okian/taikai/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should be empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When creating a deduper with an initial size", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithInitialSize(64))

			Convey("Then it should still be empty", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording keys", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the key is new", func() {
				seen := d.SeenAndRecord(ctx, "k1")

				Convey("Then it should return false and record the key", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key was already seen", func() {
				d.SeenAndRecord(ctx, "k1")
				seen := d.SeenAndRecord(ctx, "k1")

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And many keys are recorded", func() {
				const n = 1000
				for i := 0; i < n; i++ {
					So(d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i)), ShouldBeFalse)
				}

				Convey("Then none are ever evicted", func() {
					So(d.Size(), ShouldEqual, int64(n))
					for i := 0; i < n; i++ {
						So(d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i)), ShouldBeTrue)
					}
				})
			})
		})

		Convey("When unrecording keys", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the key exists", func() {
				d.SeenAndRecord(ctx, "k1")
				d.Unrecord(ctx, "k1")

				Convey("Then it should be removed", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
				})
			})

			Convey("And the key doesn't exist", func() {
				d.Unrecord(ctx, "nonexistent")

				Convey("Then it should not affect the size", func() {
					So(d.Size(), ShouldEqual, 0)
				})
			})
		})

		Convey("When resetting", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "old")
			d.Reset(ctx, []string{"a", "b", "a"})

			Convey("Then only the new keys are known", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "old"), ShouldBeFalse)
			})
		})
	})
}

func TestKey(t *testing.T) {
	Convey("Given score records", t, func() {
		base := model.ScoreRecord{Event: "grip", Team: "Red", Point: 5, Value: 40}

		Convey("When only point and value differ", func() {
			other := base
			other.Point = 1
			other.Value = 99

			Convey("Then the keys are equal", func() {
				So(dedupe.Key(other), ShouldEqual, dedupe.Key(base))
			})
		})

		Convey("When classCode is absent on one and empty on the other", func() {
			empty := base
			empty.ClassCode = model.StringPtr("")

			Convey("Then the keys differ", func() {
				So(dedupe.Key(empty), ShouldNotEqual, dedupe.Key(base))
			})
		})

		Convey("When both optional fields are set", func() {
			a := base
			a.ClassCode = model.StringPtr("3A")
			a.Name = model.StringPtr("Kenji")
			b := a
			b.ClassCode = model.StringPtr("3A")
			b.Name = model.StringPtr("Kenji")

			Convey("Then equal values produce equal keys", func() {
				So(dedupe.Key(a), ShouldEqual, dedupe.Key(b))
			})
		})

		Convey("When fields contain separators", func() {
			a := model.ScoreRecord{Event: "a|b", Team: "c"}
			b := model.ScoreRecord{Event: "a", Team: "b|c"}

			Convey("Then the keys still differ", func() {
				So(dedupe.Key(a), ShouldNotEqual, dedupe.Key(b))
			})
		})

		Convey("When computing keys for a ledger", func() {
			keys := dedupe.Keys([]model.ScoreRecord{base, base})

			Convey("Then order and length are kept", func() {
				So(keys, ShouldHaveLength, 2)
				So(keys[0], ShouldEqual, keys[1])
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper()
		const numGoroutines = 10
		const keysPerGoroutine = 100

		Convey("When multiple goroutines record the same keys", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0

			for g := 0; g < numGoroutines; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < keysPerGoroutine; i++ {
						if !d.SeenAndRecord(context.Background(), fmt.Sprintf("k-%d", i)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each key is reported new exactly once", func() {
				So(fresh, ShouldEqual, keysPerGoroutine)
				So(d.Size(), ShouldEqual, int64(keysPerGoroutine))
			})
		})
	})
}
