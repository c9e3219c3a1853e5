package account

import "testing"

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from    State
		to      State
		allowed bool
	}{
		{StatePending, StateFollowed, true},
		{StatePending, StateFollowsBack, false},
		{StatePending, StateNoFollowBack, false},
		{StatePending, StateUnfollowed, false},
		{StateFollowed, StateFollowsBack, true},
		{StateFollowed, StateNoFollowBack, true},
		{StateFollowed, StateUnfollowed, false},
		{StateFollowed, StatePending, false},
		{StateFollowsBack, StateUnfollowed, false},
		{StateFollowsBack, StateNoFollowBack, false},
		{StateNoFollowBack, StateUnfollowed, true},
		{StateNoFollowBack, StateFollowsBack, false},
		{StateUnfollowed, StatePending, false},
		{StateUnfollowed, StateFollowed, false},
		{State("bogus"), StateFollowed, false},
		{StatePending, State("bogus"), false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestTerminal(t *testing.T) {
	terminal := map[State]bool{
		StatePending:      false,
		StateFollowed:     false,
		StateFollowsBack:  true,
		StateNoFollowBack: false,
		StateUnfollowed:   true,
	}
	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal(): expected %v, got %v", state, want, got)
		}
	}
}

func TestParseState(t *testing.T) {
	if st, err := ParseState("  Followed "); err != nil || st != StateFollowed {
		t.Errorf("Expected followed, got %q (err %v)", st, err)
	}
	if _, err := ParseState("nonsense"); err == nil {
		t.Error("Expected error for unknown state")
	}
}

func TestProfileLinkFor(t *testing.T) {
	want := "https://www.instagram.com/johndoe/"
	if got := ProfileLinkFor("johndoe"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
