// Package store persists tracked accounts and the action audit trail in
// SQLite.
//
// The accounts table is the single source of truth for lifecycle state.
// Every state change goes through ApplyTransition, which re-reads the
// current state inside a transaction and rejects moves outside the
// ordering pending -> followed -> {follows_back|no_follow_back} ->
// unfollowed. The actions table is append-only and never read back to
// drive decisions.
//
// Timestamps are stored as fixed-width RFC 3339 UTC strings so SQLite's
// lexicographic comparison matches chronological order.
package store
