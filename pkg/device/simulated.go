package device

import (
	"context"
	"fmt"
	"sync"

	"iggrowth/pkg/logger"
)

// SimulatedExecutor is a stand-in for a real device. It records every call
// and returns scripted results. Used by --dry-run and by tests; it is never
// wired in as a source of real outcomes.
type SimulatedExecutor struct {
	mu sync.Mutex

	// Relationships scripts ObserveRelationship per username. A missing
	// entry yields an inconclusive observation.
	Relationships map[string]*bool
	// FollowErr and UnfollowErr, when set, are returned by the
	// corresponding taps.
	FollowErr   error
	UnfollowErr error

	// Calls lists every method invocation in order, e.g. "follow:alice".
	Calls []string

	current string
	logger  logger.Logger
}

// NewSimulated returns an executor whose every action succeeds and whose
// observations are inconclusive until scripted.
func NewSimulated() *SimulatedExecutor {
	return &SimulatedExecutor{
		Relationships: make(map[string]*bool),
		logger:        logger.GetLogger(),
	}
}

func (s *SimulatedExecutor) record(call string) {
	s.mu.Lock()
	s.Calls = append(s.Calls, call)
	s.mu.Unlock()
}

func (s *SimulatedExecutor) OpenProfile(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = username
	s.mu.Unlock()
	s.record("open:" + username)
	s.logger.DebugWithFields("simulated open profile", map[string]interface{}{
		"username": username,
	})
	return nil
}

func (s *SimulatedExecutor) TapFollow(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	s.record("follow:" + current)
	return s.FollowErr
}

func (s *SimulatedExecutor) TapUnfollow(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	s.record("unfollow:" + current)
	return s.UnfollowErr
}

func (s *SimulatedExecutor) ObserveRelationship(ctx context.Context, username string) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}
	s.record("check:" + username)
	s.mu.Lock()
	rel := s.Relationships[username]
	s.mu.Unlock()
	return Observation{FollowsBack: rel}, nil
}

func (s *SimulatedExecutor) CaptureEvidence(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.record("evidence:" + label)
	return fmt.Sprintf("simulated://%s.png", label), nil
}
