// Package lifecycle decides what work is due and applies state transitions
// as action outcomes arrive. Execution is left to the caller.
package lifecycle

import (
	"time"

	"iggrowth/pkg/account"
	"iggrowth/pkg/errors"
	"iggrowth/pkg/logger"
	"iggrowth/pkg/store"
)

// Engine decides which accounts are due for work and applies lifecycle
// transitions when action outcomes come back. It never talks to a device;
// callers execute the actions and report results.
type Engine struct {
	store             *store.Store
	checkDelay        time.Duration
	maxFollowAttempts int
	logger            logger.Logger
}

// New creates an engine over the given store. checkDelay is how long after
// a follow the reciprocation check becomes due. maxFollowAttempts bounds
// how many times a failing follow is re-offered.
func New(st *store.Store, checkDelay time.Duration, maxFollowAttempts int) *Engine {
	return &Engine{
		store:             st,
		checkDelay:        checkDelay,
		maxFollowAttempts: maxFollowAttempts,
		logger:            logger.GetLogger(),
	}
}

// Enroll adds a username to the pending queue. Adding an already tracked
// username is a no-op regardless of its current state.
func (e *Engine) Enroll(username string) (store.AddResult, error) {
	return e.store.Add(username, account.ProfileLinkFor(username))
}

// DecideFollowBatch returns up to batchSize pending accounts, oldest first.
// Accounts whose follow attempts are exhausted are excluded.
func (e *Engine) DecideFollowBatch(batchSize int) ([]account.Account, error) {
	return e.store.ListDueForFollow(batchSize, e.maxFollowAttempts)
}

// DecideChecks returns followed accounts whose reciprocation check is due
// at or before now. Accounts already resolved are never returned.
func (e *Engine) DecideChecks(now time.Time) ([]account.Account, error) {
	return e.store.ListDueForCheck(now)
}

// DecideUnfollows returns up to batchSize accounts confirmed as not
// following back and not yet unfollowed.
func (e *Engine) DecideUnfollows(batchSize int) ([]account.Account, error) {
	return e.store.ListDueForUnfollow(batchSize)
}

// RecordFollowSuccess moves username to followed and schedules its
// reciprocation check checkDelay after the follow time.
func (e *Engine) RecordFollowSuccess(username string, at time.Time) error {
	due := at.Add(e.checkDelay)
	err := e.store.ApplyTransition(username, account.StateFollowed, store.Transition{
		At:         at,
		CheckDueAt: due,
	})
	if err != nil {
		return err
	}
	e.logger.DebugWithFields("account followed", map[string]interface{}{
		"username":  username,
		"check_due": due.UTC().Format(time.RFC3339),
	})
	return nil
}

// RecordFollowFailure keeps username pending and burns one follow attempt.
// Once attempts are exhausted the account is no longer offered for work.
func (e *Engine) RecordFollowFailure(username string) error {
	if err := e.store.IncrementFollowAttempts(username); err != nil {
		return err
	}
	acct, err := e.store.Get(username)
	if err != nil {
		return err
	}
	if acct.FollowAttempts >= e.maxFollowAttempts {
		e.logger.WarnWithFields("follow attempts exhausted", map[string]interface{}{
			"username": username,
			"attempts": acct.FollowAttempts,
		})
	}
	return nil
}

// RecordCheckResult resolves a reciprocation check. followsBack nil means
// the check could not determine the relationship; the account stays
// followed and will be offered again on the next check pass.
func (e *Engine) RecordCheckResult(username string, followsBack *bool, at time.Time) error {
	if followsBack == nil {
		e.logger.WarnWithFields("reciprocation check inconclusive", map[string]interface{}{
			"username": username,
		})
		return errors.New(errors.ErrorTypeAmbiguousCheck, "relationship could not be determined for "+username)
	}
	next := account.StateNoFollowBack
	if *followsBack {
		next = account.StateFollowsBack
	}
	err := e.store.ApplyTransition(username, next, store.Transition{
		At:          at,
		FollowsBack: followsBack,
	})
	if err != nil {
		return err
	}
	e.logger.InfoWithFields("reciprocation resolved", map[string]interface{}{
		"username":     username,
		"follows_back": *followsBack,
	})
	return nil
}

// RecordUnfollowSuccess moves username to the terminal unfollowed state.
func (e *Engine) RecordUnfollowSuccess(username string, at time.Time) error {
	err := e.store.ApplyTransition(username, account.StateUnfollowed, store.Transition{At: at})
	if err != nil {
		return err
	}
	e.logger.DebugWithFields("account unfollowed", map[string]interface{}{
		"username": username,
	})
	return nil
}
