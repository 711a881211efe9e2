package loadgen

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/taikai/internal/adapters/http/api"
	service "github.com/okian/taikai/internal/app"
	model "github.com/okian/taikai/internal/domain/model"
	"github.com/okian/taikai/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := service.New(service.WithLogger(logger.Nop()))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	srv := httptest.NewServer(api.NewServer(svc, svc).Handler())
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv
}

func TestGenerateRecords(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		rng := rand.New(rand.NewPCG(7, 11))
		records := generateRecords(rng, 300, 5)

		Convey("Then every record is valid and names a generated team", func() {
			So(records, ShouldHaveLength, 300)
			teams := map[string]bool{}
			for _, tm := range generateRoster(5) {
				teams[tm.Name] = true
			}
			for _, r := range records {
				So(r.Validate(), ShouldBeNil)
				So(teams[r.Team], ShouldBeTrue)
				So(r.Point, ShouldBeBetweenOrEqual, 1.0, float64(maxPoint))
			}
		})

		Convey("Then no two records share a participant name", func() {
			seen := map[string]bool{}
			for _, r := range records {
				So(seen[*r.Name], ShouldBeFalse)
				seen[*r.Name] = true
			}
		})
	})
}

func TestExpectedTeams(t *testing.T) {
	Convey("Given records for two teams", t, func() {
		records := []model.ScoreRecord{
			{Event: "grip", Team: "a", Point: 3, Value: 10},
			{Event: "grip", Team: "a", Point: 2, Value: 30},
			{Event: "yoga60", Team: "b", Point: 5, Value: 0},
		}

		Convey("Then points are summed and the best value kept", func() {
			got := expectedTeams(records)
			So(got["a"].Muscle, ShouldEqual, 5)
			So(got["a"].Events, ShouldResemble, map[string]float64{"grip": 30})
			So(got["b"].Muscle, ShouldEqual, 5)
			So(got["b"].Events, ShouldResemble, map[string]float64{"yoga60": 0})
		})
	})
}

func TestConfigDefaults(t *testing.T) {
	Convey("Given an empty config", t, func() {
		cfg := (&Config{Duplicates: -3}).withDefaults()

		Convey("Then defaults are filled in", func() {
			So(cfg.Records, ShouldEqual, DefaultRecords)
			So(cfg.Teams, ShouldEqual, DefaultTeams)
			So(cfg.Workers, ShouldEqual, DefaultWorkers)
			So(cfg.Timeout, ShouldEqual, DefaultTimeout)
			So(cfg.Duplicates, ShouldEqual, 0)
			So(cfg.Seed, ShouldNotEqual, 0)
		})
	})

	Convey("Given more duplicates than records", t, func() {
		cfg := (&Config{Records: 5, Duplicates: 50}).withDefaults()

		Convey("Then duplicates are capped", func() {
			So(cfg.Duplicates, ShouldEqual, 5)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv := newServer(t)

		Convey("When a load run completes", func() {
			stats, err := Run(context.Background(), &Config{
				BaseURL:    srv.URL,
				Records:    200,
				Teams:      4,
				Duplicates: 25,
				Workers:    8,
				Seed:       42,
			})

			Convey("Then every record is accepted once and the standings verify", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, 200)
				So(stats.Submitted, ShouldEqual, 225)
				So(stats.Accepted, ShouldEqual, 200)
				So(stats.Duplicates, ShouldEqual, 25)
				So(stats.Failed, ShouldEqual, 0)
			})

			Convey("And a second run resets the server first", func() {
				stats, err := Run(context.Background(), &Config{BaseURL: srv.URL, Records: 50, Teams: 2, Seed: 43})
				So(err, ShouldBeNil)
				So(stats.Accepted, ShouldEqual, 50)
			})
		})
	})

	Convey("Given no server", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		Convey("Then the health check fails", func() {
			_, err := Run(context.Background(), &Config{BaseURL: url, Records: 1})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})

	Convey("Given a server that never reports duplicates", t, func() {
		mux := http.NewServeMux()
		ok := func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"accepted":true}`))
		}
		mux.HandleFunc("/healthz", ok)
		mux.HandleFunc("/api/teams", ok)
		mux.HandleFunc("/api/eventscores", ok)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("Then the run fails verification", func() {
			_, err := Run(context.Background(), &Config{BaseURL: srv.URL, Records: 10, Duplicates: 3, Seed: 1})
			So(errors.Is(err, ErrVerification), ShouldBeTrue)
		})
	})
}

func TestClient(t *testing.T) {
	Convey("Given a server that rejects everything", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"code":"unavailable"}`, http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		client := NewClient(srv.URL+"/", DefaultTimeout)

		Convey("Then calls report the status", func() {
			_, err := client.Submit(context.Background(), model.ScoreRecord{Event: "grip", Team: "a"})
			So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "503")
		})
	})

	Convey("Given a server that omits the accepted flag", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":true}`))
		}))
		defer srv.Close()

		Convey("Then Submit returns an error", func() {
			_, err := NewClient(srv.URL, DefaultTimeout).Submit(context.Background(), model.ScoreRecord{Event: "grip", Team: "a"})
			So(err, ShouldNotBeNil)
		})
	})
}
