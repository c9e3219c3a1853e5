package lifecycle

import (
	"path/filepath"
	"testing"
	"time"

	"iggrowth/pkg/account"
	"iggrowth/pkg/errors"
	"iggrowth/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, checkDelay time.Duration, maxAttempts int) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, checkDelay, maxAttempts), st
}

func boolPtr(b bool) *bool { return &b }

func TestEnrollIsIdempotent(t *testing.T) {
	eng, _ := newTestEngine(t, 24*time.Hour, 5)

	res, err := eng.Enroll("alice")
	require.NoError(t, err)
	assert.Equal(t, store.AddCreated, res)

	res, err = eng.Enroll("alice")
	require.NoError(t, err)
	assert.Equal(t, store.AddAlreadyExists, res)

	batch, err := eng.DecideFollowBatch(10)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestEnrollDoesNotResetProgressedAccount(t *testing.T) {
	eng, st := newTestEngine(t, 24*time.Hour, 5)
	now := time.Now()

	_, err := eng.Enroll("alice")
	require.NoError(t, err)
	require.NoError(t, eng.RecordFollowSuccess("alice", now))

	res, err := eng.Enroll("alice")
	require.NoError(t, err)
	assert.Equal(t, store.AddAlreadyExists, res)

	acct, err := st.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, account.StateFollowed, acct.State)
}

func TestDecideFollowBatchRespectsBatchSize(t *testing.T) {
	eng, _ := newTestEngine(t, 24*time.Hour, 5)

	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, n := range names {
		_, err := eng.Enroll(n)
		require.NoError(t, err)
	}

	batch, err := eng.DecideFollowBatch(5)
	require.NoError(t, err)
	require.Len(t, batch, 5)

	// Oldest enrollments come first.
	assert.Equal(t, "a", batch[0].Username)
	assert.Equal(t, "e", batch[4].Username)
}

func TestCheckBecomesDueAfterDelay(t *testing.T) {
	eng, _ := newTestEngine(t, 24*time.Hour, 5)
	followedAt := time.Now()

	_, err := eng.Enroll("alice")
	require.NoError(t, err)
	require.NoError(t, eng.RecordFollowSuccess("alice", followedAt))

	due, err := eng.DecideChecks(followedAt.Add(23 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due, "check must not be due before the delay elapses")

	due, err = eng.DecideChecks(followedAt.Add(24*time.Hour + time.Second))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "alice", due[0].Username)
}

func TestFollowedAccountNotOfferedForFollowAgain(t *testing.T) {
	eng, _ := newTestEngine(t, 24*time.Hour, 5)

	_, err := eng.Enroll("alice")
	require.NoError(t, err)
	require.NoError(t, eng.RecordFollowSuccess("alice", time.Now()))

	batch, err := eng.DecideFollowBatch(10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestFollowsBackIsTerminal(t *testing.T) {
	eng, st := newTestEngine(t, time.Hour, 5)
	now := time.Now()

	_, err := eng.Enroll("alice")
	require.NoError(t, err)
	require.NoError(t, eng.RecordFollowSuccess("alice", now))
	require.NoError(t, eng.RecordCheckResult("alice", boolPtr(true), now.Add(time.Hour)))

	acct, err := st.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, account.StateFollowsBack, acct.State)
	require.NotNil(t, acct.FollowsBack)
	assert.True(t, *acct.FollowsBack)

	// Never offered for any further work.
	checks, err := eng.DecideChecks(now.Add(100 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, checks)

	unfollows, err := eng.DecideUnfollows(10)
	require.NoError(t, err)
	assert.Empty(t, unfollows)
}

func TestNoFollowBackFlowsToUnfollowed(t *testing.T) {
	eng, st := newTestEngine(t, time.Hour, 5)
	now := time.Now()

	_, err := eng.Enroll("bob")
	require.NoError(t, err)
	require.NoError(t, eng.RecordFollowSuccess("bob", now))
	require.NoError(t, eng.RecordCheckResult("bob", boolPtr(false), now.Add(time.Hour)))

	unfollows, err := eng.DecideUnfollows(10)
	require.NoError(t, err)
	require.Len(t, unfollows, 1)
	assert.Equal(t, "bob", unfollows[0].Username)

	require.NoError(t, eng.RecordUnfollowSuccess("bob", now.Add(2*time.Hour)))

	acct, err := st.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, account.StateUnfollowed, acct.State)
	require.NotNil(t, acct.UnfollowedAt)

	// Terminal: never surfaces in any queue again.
	batch, err := eng.DecideFollowBatch(10)
	require.NoError(t, err)
	assert.Empty(t, batch)

	checks, err := eng.DecideChecks(now.Add(1000 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, checks)

	unfollows, err = eng.DecideUnfollows(10)
	require.NoError(t, err)
	assert.Empty(t, unfollows)
}

func TestAmbiguousCheckLeavesAccountFollowed(t *testing.T) {
	eng, st := newTestEngine(t, time.Hour, 5)
	now := time.Now()

	_, err := eng.Enroll("carol")
	require.NoError(t, err)
	require.NoError(t, eng.RecordFollowSuccess("carol", now))

	err = eng.RecordCheckResult("carol", nil, now.Add(time.Hour))
	require.Error(t, err)

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrorTypeAmbiguousCheck, appErr.Type)

	acct, err := st.Get("carol")
	require.NoError(t, err)
	assert.Equal(t, account.StateFollowed, acct.State)
	assert.Nil(t, acct.FollowsBack)

	// The account is offered again on the next pass.
	due, err := eng.DecideChecks(now.Add(2 * time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "carol", due[0].Username)
}

func TestCheckResolvesOnlyOnce(t *testing.T) {
	eng, _ := newTestEngine(t, time.Hour, 5)
	now := time.Now()

	_, err := eng.Enroll("dave")
	require.NoError(t, err)
	require.NoError(t, eng.RecordFollowSuccess("dave", now))
	require.NoError(t, eng.RecordCheckResult("dave", boolPtr(true), now.Add(time.Hour)))

	err = eng.RecordCheckResult("dave", boolPtr(false), now.Add(2*time.Hour))
	require.Error(t, err)

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrorTypeInvalidTransition, appErr.Type)
}

func TestFollowFailureBurnsAttempts(t *testing.T) {
	eng, st := newTestEngine(t, time.Hour, 2)

	_, err := eng.Enroll("erin")
	require.NoError(t, err)

	require.NoError(t, eng.RecordFollowFailure("erin"))

	batch, err := eng.DecideFollowBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1, "one failure left, still offered")

	require.NoError(t, eng.RecordFollowFailure("erin"))

	batch, err = eng.DecideFollowBatch(10)
	require.NoError(t, err)
	assert.Empty(t, batch, "attempts exhausted, no longer offered")

	acct, err := st.Get("erin")
	require.NoError(t, err)
	assert.Equal(t, account.StatePending, acct.State)
	assert.Equal(t, 2, acct.FollowAttempts)
}

func TestUnfollowRequiresConfirmedNoFollowBack(t *testing.T) {
	eng, _ := newTestEngine(t, time.Hour, 5)
	now := time.Now()

	_, err := eng.Enroll("frank")
	require.NoError(t, err)
	require.NoError(t, eng.RecordFollowSuccess("frank", now))

	err = eng.RecordUnfollowSuccess("frank", now.Add(time.Hour))
	require.Error(t, err)

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrorTypeInvalidTransition, appErr.Type)
}
