// Package scheduler runs the follow, check and unfollow jobs on their
// cadences. Jobs share a single worker so device actions never overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"iggrowth/pkg/account"
	"iggrowth/pkg/config"
	"iggrowth/pkg/device"
	errs "iggrowth/pkg/errors"
	"iggrowth/pkg/lifecycle"
	"iggrowth/pkg/logger"
	"iggrowth/pkg/ratelimit"
	"iggrowth/pkg/retry"
	"iggrowth/pkg/store"
)

// Summary reports what one job pass did.
type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Runner executes lifecycle work against a device, one action at a time.
type Runner struct {
	engine  *lifecycle.Engine
	store   *store.Store
	exec    device.Executor
	cfg     *config.Config
	limiter ratelimit.Limiter
	retrier *retry.Retrier
	logger  logger.Logger
}

// New wires a runner over the engine, store and executor.
func New(engine *lifecycle.Engine, st *store.Store, exec device.Executor, cfg *config.Config) *Runner {
	retrier := retry.NewRetrier(&retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    cfg.Retry.BaseDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: context.Background(),
		Logger:  logger.GetLogger(),
	})

	return &Runner{
		engine:  engine,
		store:   st,
		exec:    exec,
		cfg:     cfg,
		limiter: ratelimit.NewSlidingWindow(cfg.Limits.ActionsPerHour, time.Hour),
		retrier: retrier,
		logger:  logger.GetLogger(),
	}
}

// Run ticks until ctx is cancelled, dispatching each job when its interval
// has elapsed. A failed job is logged and retried on its next due tick; the
// loop itself only stops on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoWithFields("scheduler started", map[string]interface{}{
		"follow_interval":   r.cfg.Scheduler.FollowInterval.String(),
		"check_interval":    r.cfg.Scheduler.CheckInterval.String(),
		"unfollow_interval": r.cfg.Scheduler.UnfollowInterval.String(),
	})

	var lastFollow, lastCheck, lastUnfollow time.Time

	ticker := time.NewTicker(r.cfg.Scheduler.Tick)
	defer ticker.Stop()

	for {
		now := time.Now()

		if now.Sub(lastFollow) >= r.cfg.Scheduler.FollowInterval {
			lastFollow = now
			if sum, err := r.RunFollowBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.WithError(err).Error("follow job failed")
			} else {
				logger.LogJobSummary("follow", sum.Attempted, sum.Succeeded, sum.Failed)
			}
		}

		if now.Sub(lastCheck) >= r.cfg.Scheduler.CheckInterval {
			lastCheck = now
			if sum, err := r.RunChecks(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.WithError(err).Error("check job failed")
			} else {
				logger.LogJobSummary("check", sum.Attempted, sum.Succeeded, sum.Failed)
			}
		}

		if now.Sub(lastUnfollow) >= r.cfg.Scheduler.UnfollowInterval {
			lastUnfollow = now
			if sum, err := r.RunUnfollowBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.WithError(err).Error("unfollow job failed")
			} else {
				logger.LogJobSummary("unfollow", sum.Attempted, sum.Succeeded, sum.Failed)
			}
		}

		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunFollowBatch follows up to one batch of pending accounts, bounded by
// the daily follow cap. When the cap is reached the batch makes zero
// attempts.
func (r *Runner) RunFollowBatch(ctx context.Context) (Summary, error) {
	var sum Summary

	now := time.Now()
	stats, err := r.store.Statistics(now)
	if err != nil {
		return sum, err
	}
	remaining := r.cfg.Limits.MaxFollowsPerDay - stats.FollowsToday
	if remaining <= 0 {
		logger.LogDailyCap("follow", r.cfg.Limits.MaxFollowsPerDay)
		return sum, nil
	}

	size := r.cfg.Limits.FollowBatchSize
	if remaining < size {
		size = remaining
	}

	batch, err := r.engine.DecideFollowBatch(size)
	if err != nil {
		return sum, err
	}

	for i, acct := range batch {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if i > 0 {
			if err := r.pauseBetweenActions(ctx); err != nil {
				return sum, err
			}
		}

		sum.Attempted++
		if err := r.followOne(ctx, acct); err != nil {
			if isFatal(err) {
				return sum, err
			}
			sum.Failed++
			continue
		}
		sum.Succeeded++
	}
	return sum, nil
}

func (r *Runner) followOne(ctx context.Context, acct account.Account) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	now := time.Now()
	actionID, err := r.store.RecordAction(acct.Username, account.ActionFollow, now)
	if err != nil {
		return err
	}

	execErr := r.retrier.WithContext(ctx).Do(func() error {
		if err := r.exec.OpenProfile(ctx, acct.Username); err != nil {
			return err
		}
		return r.exec.TapFollow(ctx)
	})
	if execErr != nil {
		logger.LogAction(acct.Username, "follow", false, execErr)
		if err := r.engine.RecordFollowFailure(acct.Username); err != nil {
			return err
		}
		if err := r.store.ResolveAction(actionID, account.OutcomeFailure, execErr.Error()); err != nil {
			return err
		}
		return execErr
	}

	if err := r.engine.RecordFollowSuccess(acct.Username, now); err != nil {
		return err
	}
	logger.LogAction(acct.Username, "follow", true, nil)
	return r.store.ResolveAction(actionID, account.OutcomeSuccess, "")
}

// RunChecks resolves every due reciprocation check. Inconclusive
// observations leave the account as is; it surfaces again next pass.
func (r *Runner) RunChecks(ctx context.Context) (Summary, error) {
	var sum Summary

	due, err := r.engine.DecideChecks(time.Now())
	if err != nil {
		return sum, err
	}

	for i, acct := range due {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if i > 0 {
			if err := r.pauseBetweenActions(ctx); err != nil {
				return sum, err
			}
		}

		sum.Attempted++
		if err := r.checkOne(ctx, acct); err != nil {
			if isFatal(err) {
				return sum, err
			}
			sum.Failed++
			continue
		}
		sum.Succeeded++
	}
	return sum, nil
}

func (r *Runner) checkOne(ctx context.Context, acct account.Account) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	now := time.Now()
	actionID, err := r.store.RecordAction(acct.Username, account.ActionCheck, now)
	if err != nil {
		return err
	}

	obs, execErr := r.exec.ObserveRelationship(ctx, acct.Username)
	if execErr != nil {
		logger.LogAction(acct.Username, "check", false, execErr)
		if err := r.store.ResolveAction(actionID, account.OutcomeFailure, execErr.Error()); err != nil {
			return err
		}
		return execErr
	}

	recErr := r.engine.RecordCheckResult(acct.Username, obs.FollowsBack, now)
	if recErr != nil {
		var appErr *errs.Error
		if errors.As(recErr, &appErr) && appErr.Type == errs.ErrorTypeAmbiguousCheck {
			detail := "inconclusive"
			if obs.Evidence != "" {
				detail = fmt.Sprintf("inconclusive, evidence %s", obs.Evidence)
			}
			if err := r.store.ResolveAction(actionID, account.OutcomeFailure, detail); err != nil {
				return err
			}
			return recErr
		}
		return recErr
	}

	logger.LogAction(acct.Username, "check", true, nil)
	return r.store.ResolveAction(actionID, account.OutcomeSuccess, obs.Evidence)
}

// RunUnfollowBatch unfollows up to one batch of confirmed non-reciprocating
// accounts, bounded by the daily unfollow cap.
func (r *Runner) RunUnfollowBatch(ctx context.Context) (Summary, error) {
	var sum Summary

	now := time.Now()
	stats, err := r.store.Statistics(now)
	if err != nil {
		return sum, err
	}
	remaining := r.cfg.Limits.MaxUnfollowsPerDay - stats.UnfollowsToday
	if remaining <= 0 {
		logger.LogDailyCap("unfollow", r.cfg.Limits.MaxUnfollowsPerDay)
		return sum, nil
	}

	size := r.cfg.Limits.UnfollowBatchSize
	if remaining < size {
		size = remaining
	}

	batch, err := r.engine.DecideUnfollows(size)
	if err != nil {
		return sum, err
	}

	for i, acct := range batch {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if i > 0 {
			if err := r.pauseBetweenActions(ctx); err != nil {
				return sum, err
			}
		}

		sum.Attempted++
		if err := r.unfollowOne(ctx, acct); err != nil {
			if isFatal(err) {
				return sum, err
			}
			sum.Failed++
			continue
		}
		sum.Succeeded++
	}
	return sum, nil
}

func (r *Runner) unfollowOne(ctx context.Context, acct account.Account) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	now := time.Now()
	actionID, err := r.store.RecordAction(acct.Username, account.ActionUnfollow, now)
	if err != nil {
		return err
	}

	execErr := r.retrier.WithContext(ctx).Do(func() error {
		if err := r.exec.OpenProfile(ctx, acct.Username); err != nil {
			return err
		}
		return r.exec.TapUnfollow(ctx)
	})
	if execErr != nil {
		logger.LogAction(acct.Username, "unfollow", false, execErr)
		if err := r.store.ResolveAction(actionID, account.OutcomeFailure, execErr.Error()); err != nil {
			return err
		}
		return execErr
	}

	if err := r.engine.RecordUnfollowSuccess(acct.Username, now); err != nil {
		return err
	}
	logger.LogAction(acct.Username, "unfollow", true, nil)
	return r.store.ResolveAction(actionID, account.OutcomeSuccess, "")
}

// pauseBetweenActions sleeps a random duration inside the configured delay
// band, returning early on cancellation.
func (r *Runner) pauseBetweenActions(ctx context.Context) error {
	min := r.cfg.Limits.MinActionDelay
	max := r.cfg.Limits.MaxActionDelay
	d := min
	if max > min {
		d = min + time.Duration(rand.Int63n(int64(max-min)))
	}
	r.logger.DebugWithFields("pausing between actions", map[string]interface{}{
		"delay": d.String(),
	})
	return retry.Wait(ctx, d)
}

// isFatal reports whether an error should abort the whole job pass rather
// than just fail the current account. Store failures and cancellation are
// fatal; device and action failures are not.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var appErr *errs.Error
	if errors.As(err, &appErr) {
		return appErr.Type == errs.ErrorTypeStoreUnavailable ||
			appErr.Type == errs.ErrorTypeNotFound ||
			appErr.Type == errs.ErrorTypeInvalidTransition
	}
	return false
}
