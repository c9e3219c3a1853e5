package store

import (
	"path/filepath"
	"testing"
	"time"

	"iggrowth/pkg/account"
	"iggrowth/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func boolPtr(b bool) *bool { return &b }

func TestOpenCreatesSchema(t *testing.T) {
	st := newTestStore(t)

	stats, err := st.Statistics(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestAddAndGet(t *testing.T) {
	st := newTestStore(t)

	res, err := st.Add("alice", "")
	require.NoError(t, err)
	assert.Equal(t, AddCreated, res)

	acct, err := st.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", acct.Username)
	assert.Equal(t, account.StatePending, acct.State)
	assert.Equal(t, account.ProfileLinkFor("alice"), acct.ProfileLink)
	assert.Nil(t, acct.FollowedAt)
	assert.Nil(t, acct.FollowsBack)
	assert.Zero(t, acct.FollowAttempts)
}

func TestAddIgnoresDuplicates(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Add("alice", "")
	require.NoError(t, err)

	due := time.Now().Add(time.Hour)
	require.NoError(t, st.ApplyTransition("alice", account.StateFollowed, Transition{
		At: time.Now(), CheckDueAt: due,
	}))

	res, err := st.Add("alice", "")
	require.NoError(t, err)
	assert.Equal(t, AddAlreadyExists, res)

	acct, err := st.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, account.StateFollowed, acct.State, "re-add must not reset state")
}

func TestGetUnknownAccount(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Get("ghost")
	require.Error(t, err)

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrorTypeNotFound, appErr.Type)
}

func TestApplyTransitionFullLifecycle(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Add("alice", "")
	require.NoError(t, err)

	followedAt := time.Now()
	checkDue := followedAt.Add(24 * time.Hour)
	require.NoError(t, st.ApplyTransition("alice", account.StateFollowed, Transition{
		At: followedAt, CheckDueAt: checkDue,
	}))

	acct, err := st.Get("alice")
	require.NoError(t, err)
	require.NotNil(t, acct.FollowedAt)
	require.NotNil(t, acct.CheckDueAt)
	assert.WithinDuration(t, followedAt, *acct.FollowedAt, time.Second)
	assert.WithinDuration(t, checkDue, *acct.CheckDueAt, time.Second)

	require.NoError(t, st.ApplyTransition("alice", account.StateNoFollowBack, Transition{
		At: time.Now(), FollowsBack: boolPtr(false),
	}))

	acct, err = st.Get("alice")
	require.NoError(t, err)
	require.NotNil(t, acct.FollowsBack)
	assert.False(t, *acct.FollowsBack)

	unfollowedAt := time.Now()
	require.NoError(t, st.ApplyTransition("alice", account.StateUnfollowed, Transition{At: unfollowedAt}))

	acct, err = st.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, account.StateUnfollowed, acct.State)
	require.NotNil(t, acct.UnfollowedAt)
	assert.WithinDuration(t, unfollowedAt, *acct.UnfollowedAt, time.Second)
}

func TestApplyTransitionRejectsSkips(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Add("alice", "")
	require.NoError(t, err)

	err = st.ApplyTransition("alice", account.StateUnfollowed, Transition{At: time.Now()})
	require.Error(t, err)

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrorTypeInvalidTransition, appErr.Type)

	// Row is untouched after a rejected transition.
	acct, err := st.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, account.StatePending, acct.State)
	assert.Nil(t, acct.UnfollowedAt)
}

func TestApplyTransitionRequiresReciprocationResult(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Add("alice", "")
	require.NoError(t, err)
	require.NoError(t, st.ApplyTransition("alice", account.StateFollowed, Transition{
		At: time.Now(), CheckDueAt: time.Now().Add(time.Hour),
	}))

	err = st.ApplyTransition("alice", account.StateFollowsBack, Transition{At: time.Now()})
	require.Error(t, err, "follows_back flag must accompany the resolution")
}

func TestListDueForFollow(t *testing.T) {
	st := newTestStore(t)

	for _, u := range []string{"a", "b", "c"} {
		_, err := st.Add(u, "")
		require.NoError(t, err)
	}

	due, err := st.ListDueForFollow(2, 5)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "a", due[0].Username)
	assert.Equal(t, "b", due[1].Username)

	// Exhausted accounts drop out.
	require.NoError(t, st.IncrementFollowAttempts("a"))
	due, err = st.ListDueForFollow(10, 1)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "b", due[0].Username)
}

func TestListDueForCheckBoundary(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Add("alice", "")
	require.NoError(t, err)

	followedAt := time.Now()
	checkDue := followedAt.Add(24 * time.Hour)
	require.NoError(t, st.ApplyTransition("alice", account.StateFollowed, Transition{
		At: followedAt, CheckDueAt: checkDue,
	}))

	due, err := st.ListDueForCheck(checkDue.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = st.ListDueForCheck(checkDue)
	require.NoError(t, err)
	require.Len(t, due, 1, "due exactly at the boundary")

	due, err = st.ListDueForCheck(checkDue.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "alice", due[0].Username)
}

func TestListDueForUnfollow(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Add("bob", "")
	require.NoError(t, err)
	require.NoError(t, st.ApplyTransition("bob", account.StateFollowed, Transition{
		At: time.Now(), CheckDueAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, st.ApplyTransition("bob", account.StateNoFollowBack, Transition{
		At: time.Now(), FollowsBack: boolPtr(false),
	}))

	due, err := st.ListDueForUnfollow(10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "bob", due[0].Username)

	require.NoError(t, st.ApplyTransition("bob", account.StateUnfollowed, Transition{At: time.Now()}))

	due, err = st.ListDueForUnfollow(10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestActionAudit(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Add("alice", "")
	require.NoError(t, err)

	id, err := st.RecordAction("alice", account.ActionFollow, time.Now())
	require.NoError(t, err)
	require.NoError(t, st.ResolveAction(id, account.OutcomeSuccess, ""))

	id, err = st.RecordAction("alice", account.ActionCheck, time.Now())
	require.NoError(t, err)
	require.NoError(t, st.ResolveAction(id, account.OutcomeFailure, "inconclusive"))
}

func TestStatistics(t *testing.T) {
	st := newTestStore(t)
	now := time.Now()

	for _, u := range []string{"a", "b", "c", "d"} {
		_, err := st.Add(u, "")
		require.NoError(t, err)
	}

	// a follows back, b does not and is unfollowed, c stays followed.
	for _, u := range []string{"a", "b", "c"} {
		require.NoError(t, st.ApplyTransition(u, account.StateFollowed, Transition{
			At: now, CheckDueAt: now.Add(time.Hour),
		}))
	}
	require.NoError(t, st.ApplyTransition("a", account.StateFollowsBack, Transition{
		At: now, FollowsBack: boolPtr(true),
	}))
	require.NoError(t, st.ApplyTransition("b", account.StateNoFollowBack, Transition{
		At: now, FollowsBack: boolPtr(false),
	}))
	require.NoError(t, st.ApplyTransition("b", account.StateUnfollowed, Transition{At: now}))

	stats, err := st.Statistics(now)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.ByState[account.StatePending])
	assert.Equal(t, 1, stats.ByState[account.StateFollowed])
	assert.Equal(t, 1, stats.ByState[account.StateFollowsBack])
	assert.Equal(t, 1, stats.ByState[account.StateUnfollowed])
	assert.Equal(t, 3, stats.FollowsToday)
	assert.Equal(t, 1, stats.UnfollowsToday)
	assert.InDelta(t, 0.5, stats.FollowBackRate, 0.001)
}

func TestStatisticsDayBoundary(t *testing.T) {
	st := newTestStore(t)
	now := time.Now()

	_, err := st.Add("old", "")
	require.NoError(t, err)
	require.NoError(t, st.ApplyTransition("old", account.StateFollowed, Transition{
		At: now.Add(-48 * time.Hour), CheckDueAt: now,
	}))

	stats, err := st.Statistics(now)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FollowsToday, "follows from earlier days never count against today")
}

func TestReset(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Add("alice", "")
	require.NoError(t, err)
	_, err = st.RecordAction("alice", account.ActionFollow, time.Now())
	require.NoError(t, err)

	require.NoError(t, st.Reset())

	stats, err := st.Statistics(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}
