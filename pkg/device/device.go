// Package device defines the capability surface the lifecycle needs from an
// Instagram client and provides an ADB-backed implementation plus a
// simulated one for dry runs and tests.
package device

import "context"

// Observation is the result of a reciprocation check.
type Observation struct {
	// FollowsBack is nil when the relationship could not be read from the
	// screen. Callers must treat nil as inconclusive, never as a no.
	FollowsBack *bool
	// Evidence is the path of a screenshot captured during the check,
	// empty when none was taken.
	Evidence string
}

// Executor performs Instagram actions on behalf of the lifecycle. All
// methods honor context cancellation.
type Executor interface {
	// OpenProfile navigates the app to the given user's profile.
	OpenProfile(ctx context.Context, username string) error
	// TapFollow presses follow on the currently open profile.
	TapFollow(ctx context.Context) error
	// TapUnfollow presses unfollow on the currently open profile and
	// confirms the dialog when one appears.
	TapUnfollow(ctx context.Context) error
	// ObserveRelationship reports whether username follows the operator.
	ObserveRelationship(ctx context.Context, username string) (Observation, error)
	// CaptureEvidence saves a screenshot labeled with the given tag and
	// returns its path.
	CaptureEvidence(ctx context.Context, label string) (string, error)
}
