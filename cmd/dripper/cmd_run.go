package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dripper/internal/browser"
	"dripper/internal/claim"
	"dripper/internal/config"
	"dripper/internal/runner"
	"dripper/internal/sheet"
)

var (
	runEvery    time.Duration
	runLimit    int
	runDryRun   bool
	runHeadless bool
)

// runCmd claims for every eligible profile
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Claim for every eligible profile in the sheet",
	Long: `Makes one pass over the worksheet: refreshes the eligibility labels,
lists the profiles whose cooldown has passed, and claims for each one
through its AdsPower browser. With --every the pass repeats on an
interval and config file edits are picked up between passes.`,
	RunE: runClaims,
}

func init() {
	runCmd.Flags().DurationVar(&runEvery, "every", 0, "Repeat the pass on this interval (0 = run once)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Process at most this many profiles per pass (0 = all)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "List eligible profiles without claiming")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Start profile browsers headless")
}

func runClaims(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if runEvery <= 0 {
		sum, err := executeRun(ctx, cfg)
		printSummary(sum)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return runScheduled(ctx, cfg)
}

// executeRun wires the stack for one pass and runs it.
func executeRun(ctx context.Context, cfg *config.Config) (runner.Summary, error) {
	store, err := sheet.NewStore(ctx, cfg.Sheet, cfg.CooldownWindow(), logger.Named("sheet"))
	if err != nil {
		return runner.Summary{}, err
	}

	client := browser.NewClient(cfg.Browser.BaseURL, cfg.RequestTimeout(), logger.Named("adspower"))
	pool := browser.NewPool(client, cfg.Browser.Headless || runHeadless, logger.Named("browser"))

	claimer := claim.New(claim.Options{
		FaucetURL:        cfg.Faucet.URL,
		MaxAttempts:      cfg.Faucet.RetryCount,
		PageLoadTimeout:  cfg.PageLoadTimeout(),
		InterActionDelay: cfg.InterActionDelay(),
		CooldownWindow:   cfg.CooldownWindow(),
	}, logger.Named("claim"))

	r := runner.New(store, poolAdapter{pool}, claimer, runner.Options{
		ProfileDelay:      cfg.ProfileDelay(),
		RefreshLabels:     cfg.Runner.RefreshLabels,
		ValidateAddresses: cfg.Faucet.ValidateAddresses,
		Limit:             runLimit,
		DryRun:            runDryRun,
	}, logger.Named("runner"))

	return r.Run(ctx)
}

// runScheduled repeats the pass on an interval. Overlapping passes are
// rescheduled, never run concurrently, and config edits apply to the
// next pass.
func runScheduled(ctx context.Context, cfg *config.Config) error {
	var mu sync.Mutex
	current := cfg

	watcher, err := config.NewWatcher(configPath, logger.Named("config"), func(updated *config.Config) {
		mu.Lock()
		current = updated
		mu.Unlock()
	})
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else if err := watcher.Start(); err != nil {
		logger.Warn("config watcher failed to start", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(runEvery),
		gocron.NewTask(func() {
			mu.Lock()
			cfg := current
			mu.Unlock()

			sum, err := executeRun(ctx, cfg)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("pass failed", zap.Error(err))
			}
			printSummary(sum)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule pass: %w", err)
	}

	sched.Start()
	logger.Info("scheduled mode", zap.Duration("every", runEvery))

	<-ctx.Done()
	return sched.Shutdown()
}

// poolAdapter narrows *browser.Pool to the runner's interface.
type poolAdapter struct {
	pool *browser.Pool
}

func (a poolAdapter) Acquire(ctx context.Context, serial string) (runner.Session, error) {
	s, err := a.pool.Acquire(ctx, serial)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func printSummary(sum runner.Summary) {
	fmt.Printf("\nProcessed %d profile(s): %d succeeded, %d failed\n",
		sum.Total, sum.Succeeded, sum.Failed)
}
