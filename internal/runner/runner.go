// Package runner walks the profile queue and drives one claim per
// eligible profile, strictly in sequence.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dripper/internal/claim"
	"dripper/internal/sheet"
)

// Queue is the worksheet-backed profile queue as the runner consumes it.
type Queue interface {
	Eligible(ctx context.Context) ([]sheet.Profile, error)
	PersistResult(ctx context.Context, row int, outcome claim.Outcome, newCount int) error
	RefreshEligibility(ctx context.Context) (int, error)
	SetStatus(ctx context.Context, row int, status string) error
}

// Browsers hands out one session per profile serial.
type Browsers interface {
	Acquire(ctx context.Context, serial string) (Session, error)
}

// Session is one acquired profile browser.
type Session interface {
	Page() (claim.Page, error)
	Release(ctx context.Context)
}

// Claimer runs the claim sequence against a page.
type Claimer interface {
	Run(page claim.Page, wallet string) claim.Outcome
}

// Options tune a run.
type Options struct {
	ProfileDelay      time.Duration
	RefreshLabels     bool
	ValidateAddresses bool
	Limit             int  // max profiles per run, 0 = all
	DryRun            bool // list what would be processed, touch nothing
}

// Summary is the result of one full pass over the queue.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Runner processes eligible profiles one at a time.
type Runner struct {
	queue   Queue
	pool    Browsers
	claimer Claimer
	opts    Options
	log     *zap.Logger

	sleep func(time.Duration)
}

// New wires a runner. A nil logger is replaced with a no-op one.
func New(queue Queue, pool Browsers, claimer Claimer, opts Options, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		queue:   queue,
		pool:    pool,
		claimer: claimer,
		opts:    opts,
		log:     log,
		sleep:   time.Sleep,
	}
}

// Run makes one pass: refresh labels if asked, list eligible profiles,
// then claim for each in sheet order. Cancellation is honored between
// profiles only; a profile in flight always finishes and persists.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	log := r.log.With(zap.String("run", uuid.NewString()[:8]))

	if r.opts.RefreshLabels {
		if n, err := r.queue.RefreshEligibility(ctx); err != nil {
			log.Warn("eligibility refresh failed", zap.Error(err))
		} else if n > 0 {
			log.Info("eligibility labels corrected", zap.Int("rows", n))
		}
	}

	profiles, err := r.queue.Eligible(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list eligible profiles: %w", err)
	}
	if r.opts.Limit > 0 && len(profiles) > r.opts.Limit {
		log.Info("limiting run", zap.Int("eligible", len(profiles)), zap.Int("limit", r.opts.Limit))
		profiles = profiles[:r.opts.Limit]
	}

	sum := Summary{Total: len(profiles)}
	log.Info("run starting", zap.Int("profiles", len(profiles)))

	if r.opts.DryRun {
		for _, p := range profiles {
			log.Info("would process",
				zap.String("serial", p.Serial),
				zap.String("address", p.Address),
				zap.Int("row", p.Row))
		}
		return sum, nil
	}

	for i, p := range profiles {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled", zap.Int("remaining", len(profiles)-i))
			return sum, err
		}
		if i > 0 {
			r.sleep(r.opts.ProfileDelay)
		}

		if r.processProfile(context.WithoutCancel(ctx), p, log) {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}

	log.Info("run finished",
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed))
	return sum, nil
}

// processProfile takes one profile through validation, browser
// acquisition, the claim sequence, and persistence. Reports success.
// Every acquired resource is released before returning.
func (r *Runner) processProfile(ctx context.Context, p sheet.Profile, log *zap.Logger) bool {
	plog := log.With(zap.String("serial", p.Serial), zap.Int("row", p.Row))

	if r.opts.ValidateAddresses && !common.IsHexAddress(p.Address) {
		plog.Warn("invalid wallet address", zap.String("address", p.Address))
		r.setStatus(ctx, p.Row, "invalid wallet address", plog)
		return false
	}

	session, err := r.pool.Acquire(ctx, p.Serial)
	if err != nil {
		plog.Error("browser acquire failed", zap.Error(err))
		r.setStatus(ctx, p.Row, "browser start failed", plog)
		return false
	}
	defer session.Release(ctx)

	page, err := session.Page()
	if err != nil {
		plog.Error("page open failed", zap.Error(err))
		r.setStatus(ctx, p.Row, "page open failed", plog)
		return false
	}

	outcome := r.claimer.Run(page, p.Address)
	plog.Info("claim finished",
		zap.Stringer("outcome", outcome.Kind),
		zap.String("detail", outcome.Detail))

	newCount := p.ClaimCount
	if outcome.Kind == claim.Success {
		newCount++
	}
	if err := r.queue.PersistResult(ctx, p.Row, outcome, newCount); err != nil {
		plog.Error("result write failed", zap.Error(err))
	}

	return outcome.Kind == claim.Success
}

func (r *Runner) setStatus(ctx context.Context, row int, status string, log *zap.Logger) {
	if err := r.queue.SetStatus(ctx, row, status); err != nil {
		log.Warn("status write failed", zap.Error(err))
	}
}
