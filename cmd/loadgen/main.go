// Command loadgen drives a running taikai server with concurrent score
// submissions and verifies the resulting standings.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/taikai/internal/loadgen"
	"github.com/okian/taikai/pkg/logger"
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:3000", "Base URL of the taikai service")
		records    = flag.Int("records", loadgen.DefaultRecords, "Number of distinct score records to submit")
		teams      = flag.Int("teams", loadgen.DefaultTeams, "Number of teams on the generated roster")
		duplicates = flag.Int("duplicates", loadgen.DefaultDuplicates, "Number of records to resubmit as duplicates")
		workers    = flag.Int("workers", loadgen.DefaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", loadgen.DefaultTimeout, "HTTP request timeout")
		seed       = flag.Uint64("seed", 0, "Random seed (0 picks one from the clock)")
		format     = flag.String("log-format", "text", "Log format (text|json)")
		verbose    = flag.Bool("verbose", false, "Log every failed request")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Resets the roster and the ledger of the target server, then submits generated scores.")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := logger.InitWithFormat(*format); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err := loadgen.Run(ctx, &loadgen.Config{
		BaseURL:    *baseURL,
		Records:    *records,
		Teams:      *teams,
		Duplicates: *duplicates,
		Workers:    *workers,
		Timeout:    *timeout,
		Seed:       *seed,
		Verbose:    *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		os.Exit(1)
	}
}
