package loadgen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	model "github.com/okian/taikai/internal/domain/model"
	"github.com/okian/taikai/pkg/logger"
)

// Run seeds a fresh roster, submits generated records concurrently, re-sends
// a sample to check duplicate detection and verifies the server's ledger and
// standings against what was sent.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	cfg := config.withDefaults()
	log := logger.Get().Named("loadgen")
	client := NewClient(cfg.BaseURL, cfg.Timeout)
	stats := &Stats{StartTime: time.Now(), Teams: cfg.Teams}

	log.Info(ctx, "starting load run",
		logger.String("url", cfg.BaseURL),
		logger.Int("records", cfg.Records),
		logger.Int("teams", cfg.Teams),
		logger.Int("duplicates", cfg.Duplicates),
		logger.Int("workers", cfg.Workers),
	)

	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 1: a clean roster and an empty ledger
	if err := client.SetTeams(ctx, generateRoster(cfg.Teams)); err != nil {
		return nil, fmt.Errorf("set roster: %w", err)
	}
	if err := client.ReplaceScores(ctx, []model.ScoreRecord{}); err != nil {
		return nil, fmt.Errorf("reset ledger: %w", err)
	}

	// Step 2: generate
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed>>1|1))
	records := generateRecords(rng, cfg.Records, cfg.Teams)
	stats.Generated = len(records)

	// Step 3: submit
	submitAll(ctx, client, records, cfg, stats, log)
	log.Info(ctx, "submission finished",
		logger.Int64("accepted", stats.Accepted),
		logger.Int64("duplicates", stats.Duplicates),
		logger.Int64("failed", stats.Failed),
	)

	// Step 4: re-send a sample, every one should come back as a duplicate
	accepted := stats.Accepted
	submitAll(ctx, client, records[:cfg.Duplicates], cfg, stats, log)
	if stats.Accepted != accepted {
		return stats, fmt.Errorf("%w: %d resubmitted records were accepted again",
			ErrVerification, stats.Accepted-accepted)
	}

	// Step 5: recompute and verify
	if _, err := client.Recompute(ctx); err != nil {
		return stats, fmt.Errorf("recompute: %w", err)
	}
	if err := verify(ctx, client, records, stats); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// submitAll posts records with at most cfg.Workers requests in flight.
// Request failures are counted, not returned.
func submitAll(ctx context.Context, client *Client, records []model.ScoreRecord, cfg Config, stats *Stats, log logger.Logger) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, r := range records {
		g.Go(func() error {
			atomic.AddInt64(&stats.Submitted, 1)
			ok, err := client.Submit(gctx, r)
			switch {
			case err != nil:
				atomic.AddInt64(&stats.Failed, 1)
				if cfg.Verbose {
					log.Warn(gctx, "submit failed", logger.String("team", r.Team), logger.String("event", r.Event), logger.Error(err))
				}
			case ok:
				atomic.AddInt64(&stats.Accepted, 1)
			default:
				atomic.AddInt64(&stats.Duplicates, 1)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	rate := 0.0
	if stats.Duration > 0 {
		rate = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "load run complete",
		logger.Int("generated", stats.Generated),
		logger.Int64("submitted", stats.Submitted),
		logger.Int64("accepted", stats.Accepted),
		logger.Int64("duplicates", stats.Duplicates),
		logger.Int64("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("requests_per_second", rate),
	)
}
