// Command listingcheck runs the listing search verification scenarios
// against every browser in the scenario document's capability matrix.
//
// Configuration comes from the environment (LISTINGCHECK_*); the scenario
// document path from LISTINGCHECK_SCENARIO. Exit codes:
//
//	0  every assertion passed in every case
//	1  at least one failure was recorded
//	2  configuration error
//	3  a required precondition timed out; the run was aborted
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ysmood/gson"

	"github.com/use-agent/listingcheck/config"
	"github.com/use-agent/listingcheck/models"
	"github.com/use-agent/listingcheck/runner"
)

const (
	exitOK           = 0
	exitFailures     = 1
	exitConfig       = 2
	exitPrecondition = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)

	sc, err := config.LoadScenario(cfg.Run.ScenarioPath)
	if err != nil {
		slog.Error("failed to load scenario", "path", cfg.Run.ScenarioPath, "error", err)
		return exitCode(nil, err)
	}
	slog.Info("listingcheck starting",
		"scenario", cfg.Run.ScenarioPath,
		"url", sc.TestedURL,
		"browsers", len(sc.Browsers),
		"engine", cfg.Run.Engine,
	)

	// ── 3. Run until done or interrupted ────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx, runner.Options{Config: cfg, Scenario: sc})
	if err != nil {
		slog.Error("run aborted", "error", err)
		return exitCode(nil, err)
	}

	// ── 4. Report ───────────────────────────────────────────────────
	fmt.Println(gson.New(report).JSON("", "  "))
	for _, u := range report.Units {
		if u.Err != nil {
			slog.Error("case aborted", "case", u.Case, "error", u.Err)
		}
		for _, s := range u.Scenarios {
			for _, f := range s.Failures {
				slog.Warn("failure", "case", u.Case, "scenario", s.Name, "code", f.Code, "page", f.Page, "message", f.Message)
			}
		}
	}
	return exitCode(report, nil)
}

// exitCode maps the run outcome to the process exit status.
func exitCode(report *models.RunReport, err error) int {
	switch {
	case models.IsCode(err, models.ErrCodePreconditionTimeout):
		return exitPrecondition
	case models.IsCode(err, models.ErrCodeConfiguration):
		return exitConfig
	case err != nil:
		return exitFailures
	case report == nil || !report.Passed():
		return exitFailures
	default:
		return exitOK
	}
}

// initLogger configures slog based on the LogConfig. Logs go to stderr so
// the JSON report on stdout stays machine readable.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
