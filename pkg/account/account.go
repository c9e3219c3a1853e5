package account

import (
	"fmt"
	"strings"
	"time"
)

// State is an account's position in the follow/check/unfollow lifecycle.
type State string

const (
	StatePending      State = "pending"
	StateFollowed     State = "followed"
	StateFollowsBack  State = "follows_back"
	StateNoFollowBack State = "no_follow_back"
	StateUnfollowed   State = "unfollowed"
)

// rank orders states along the lifecycle. Transitions may only move to a
// strictly higher rank; follows_back and no_follow_back share a rank since
// an account reaches exactly one of them.
var rank = map[State]int{
	StatePending:      0,
	StateFollowed:     1,
	StateFollowsBack:  2,
	StateNoFollowBack: 2,
	StateUnfollowed:   3,
}

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	_, ok := rank[s]
	return ok
}

// Terminal reports whether no further action is ever scheduled for s.
// follows_back is terminal too: a reciprocated account is kept.
func (s State) Terminal() bool {
	return s == StateUnfollowed || s == StateFollowsBack
}

// CanTransitionTo reports whether moving from s to next is allowed by the
// lifecycle ordering pending -> followed -> {follows_back|no_follow_back} -> unfollowed.
func (s State) CanTransitionTo(next State) bool {
	from, ok := rank[s]
	if !ok {
		return false
	}
	to, ok := rank[next]
	if !ok {
		return false
	}
	if next == StateUnfollowed {
		// Only confirmed non-reciprocating accounts are unfollowed.
		return s == StateNoFollowBack
	}
	return to == from+1
}

// ParseState converts a stored string back into a State.
func ParseState(s string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown lifecycle state %q", s)
	}
	return st, nil
}

// Account is one tracked Instagram handle and its lifecycle position.
type Account struct {
	Username    string
	ProfileLink string
	State       State
	FollowedAt  *time.Time
	CheckDueAt  *time.Time
	// FollowsBack is nil until a reciprocation check resolves, then set once.
	FollowsBack    *bool
	UnfollowedAt   *time.Time
	FollowAttempts int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProfileLinkFor derives the canonical profile URL for a username.
func ProfileLinkFor(username string) string {
	return fmt.Sprintf("https://www.instagram.com/%s/", username)
}

// ActionKind identifies what an audit entry recorded.
type ActionKind string

const (
	ActionFollow   ActionKind = "follow"
	ActionCheck    ActionKind = "check"
	ActionUnfollow ActionKind = "unfollow"
)

// Outcome is the recorded result of an attempted action.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ActionRecord is an append-only audit entry. It is written for
// observability and never read back to drive lifecycle decisions.
type ActionRecord struct {
	ID         int64
	Username   string
	Kind       ActionKind
	Outcome    Outcome
	OccurredAt time.Time
	Detail     string
}

// Stats is an aggregate snapshot of the account table.
type Stats struct {
	Total          int
	ByState        map[State]int
	FollowsToday   int
	UnfollowsToday int
	// FollowBackRate is follows_back / (follows_back + no_follow_back),
	// zero when nothing has been checked yet.
	FollowBackRate float64
}
