package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"iggrowth/pkg/account"
	igerrors "iggrowth/pkg/errors"
)

// Store provides SQLite-backed persistence for tracked accounts and the
// action audit trail. All lifecycle mutations go through ApplyTransition so
// readers never observe a half-written row.
type Store struct {
	db *sql.DB
}

// AddResult reports what Add did.
type AddResult string

const (
	AddCreated       AddResult = "created"
	AddAlreadyExists AddResult = "already_exists"
)

// Open opens (creating if necessary) the account database at path and runs
// migrations. The connection pool is capped at one connection so writes
// never contend for the SQLite lock.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "open database", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "ping database", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "migrate schema", err)
	}

	return &Store{db: db}, nil
}

// New returns a Store bound to an existing database handle. Intended for
// tests and callers that manage the handle themselves.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is nil")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// timeLayout is RFC 3339 with a fixed-width fractional second so stored
// UTC strings compare correctly under SQLite's lexicographic ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Add inserts a new account in pending state. Re-adding an existing
// username is a no-op that leaves the existing row untouched.
func (s *Store) Add(username, profileLink string) (AddResult, error) {
	if username == "" {
		return "", fmt.Errorf("add account: username is empty")
	}
	if profileLink == "" {
		profileLink = account.ProfileLinkFor(username)
	}
	now := formatTime(time.Now())

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO accounts (username, profile_link, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		username, profileLink, string(account.StatePending), now, now,
	)
	if err != nil {
		return "", igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "add account: insert", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "add account: rows affected", err)
	}
	if affected == 0 {
		return AddAlreadyExists, nil
	}
	return AddCreated, nil
}

// Get returns the account for username.
func (s *Store) Get(username string) (account.Account, error) {
	row := s.db.QueryRow(selectColumns+` FROM accounts WHERE username = ?`, username)
	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.Account{}, igerrors.New(igerrors.ErrorTypeNotFound, fmt.Sprintf("account %q not found", username))
		}
		return account.Account{}, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "get account", err)
	}
	return acct, nil
}

// ListDueForFollow returns pending accounts in insertion order, bounded by
// limit, excluding accounts whose follow attempts are exhausted.
func (s *Store) ListDueForFollow(limit, maxAttempts int) ([]account.Account, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("list due for follow: limit must be > 0")
	}
	rows, err := s.db.Query(
		selectColumns+` FROM accounts
		 WHERE state = ? AND follow_attempts < ?
		 ORDER BY id ASC
		 LIMIT ?`,
		string(account.StatePending), maxAttempts, limit,
	)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "list due for follow: query", err)
	}
	return collectAccounts(rows, limit)
}

// ListDueForCheck returns followed accounts whose check window has elapsed
// and whose reciprocation is still unknown.
func (s *Store) ListDueForCheck(now time.Time) ([]account.Account, error) {
	rows, err := s.db.Query(
		selectColumns+` FROM accounts
		 WHERE state = ? AND follows_back IS NULL AND check_due_at IS NOT NULL AND check_due_at <= ?
		 ORDER BY check_due_at ASC, id ASC`,
		string(account.StateFollowed), formatTime(now),
	)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "list due for check: query", err)
	}
	return collectAccounts(rows, 16)
}

// ListDueForUnfollow returns confirmed non-reciprocating accounts, bounded
// by limit.
func (s *Store) ListDueForUnfollow(limit int) ([]account.Account, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("list due for unfollow: limit must be > 0")
	}
	rows, err := s.db.Query(
		selectColumns+` FROM accounts
		 WHERE state = ? AND unfollowed_at IS NULL
		 ORDER BY id ASC
		 LIMIT ?`,
		string(account.StateNoFollowBack), limit,
	)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "list due for unfollow: query", err)
	}
	return collectAccounts(rows, limit)
}

// Transition describes the timestamp fields accompanying a state change.
type Transition struct {
	At time.Time
	// CheckDueAt must be set alongside the move to followed.
	CheckDueAt time.Time
	// FollowsBack must be set alongside the move to follows_back or
	// no_follow_back.
	FollowsBack *bool
}

// ApplyTransition moves an account to next, setting the associated
// timestamp fields in a single transaction. Transitions outside the
// lifecycle ordering are rejected without mutating the row.
func (s *Store) ApplyTransition(username string, next account.State, tr Transition) error {
	if !next.Valid() {
		return igerrors.New(igerrors.ErrorTypeInvalidTransition, fmt.Sprintf("unknown target state %q", next))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "apply transition: begin", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var currentStr string
	row := tx.QueryRow(`SELECT state FROM accounts WHERE username = ?`, username)
	if err := row.Scan(&currentStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return igerrors.New(igerrors.ErrorTypeNotFound, fmt.Sprintf("account %q not found", username))
		}
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "apply transition: read state", err)
	}

	current, err := account.ParseState(currentStr)
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "apply transition: stored state", err)
	}
	if !current.CanTransitionTo(next) {
		return igerrors.New(igerrors.ErrorTypeInvalidTransition,
			fmt.Sprintf("account %q: %s -> %s not allowed", username, current, next))
	}

	now := formatTime(time.Now())

	switch next {
	case account.StateFollowed:
		_, err = tx.Exec(
			`UPDATE accounts SET state = ?, followed_at = ?, check_due_at = ?, updated_at = ? WHERE username = ?`,
			string(next), formatTime(tr.At), formatTime(tr.CheckDueAt), now, username,
		)
	case account.StateFollowsBack, account.StateNoFollowBack:
		if tr.FollowsBack == nil {
			return igerrors.New(igerrors.ErrorTypeInvalidTransition,
				fmt.Sprintf("account %q: transition to %s without reciprocation result", username, next))
		}
		_, err = tx.Exec(
			`UPDATE accounts SET state = ?, follows_back = ?, updated_at = ? WHERE username = ?`,
			string(next), boolToInt(*tr.FollowsBack), now, username,
		)
	case account.StateUnfollowed:
		_, err = tx.Exec(
			`UPDATE accounts SET state = ?, unfollowed_at = ?, updated_at = ? WHERE username = ?`,
			string(next), formatTime(tr.At), now, username,
		)
	default:
		return igerrors.New(igerrors.ErrorTypeInvalidTransition,
			fmt.Sprintf("account %q: cannot transition into %s", username, next))
	}
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "apply transition: update", err)
	}

	if err := tx.Commit(); err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "apply transition: commit", err)
	}
	return nil
}

// IncrementFollowAttempts bumps the bounded retry counter after a failed
// follow attempt. The account stays pending.
func (s *Store) IncrementFollowAttempts(username string) error {
	res, err := s.db.Exec(
		`UPDATE accounts SET follow_attempts = follow_attempts + 1, updated_at = ? WHERE username = ?`,
		formatTime(time.Now()), username,
	)
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "increment follow attempts", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "increment follow attempts: rows affected", err)
	}
	if affected == 0 {
		return igerrors.New(igerrors.ErrorTypeNotFound, fmt.Sprintf("account %q not found", username))
	}
	return nil
}

// RecordAction appends an audit entry in pending outcome and returns its ID.
func (s *Store) RecordAction(username string, kind account.ActionKind, at time.Time) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO actions (username, kind, outcome, occurred_at) VALUES (?, ?, ?, ?)`,
		username, string(kind), string(account.OutcomePending), formatTime(at),
	)
	if err != nil {
		return 0, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "record action: insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "record action: last insert id", err)
	}
	return id, nil
}

// ResolveAction updates an audit entry with its final outcome. Entries are
// never deleted and never read back to drive lifecycle decisions.
func (s *Store) ResolveAction(id int64, outcome account.Outcome, detail string) error {
	var detailValue any
	if detail != "" {
		detailValue = detail
	}
	_, err := s.db.Exec(
		`UPDATE actions SET outcome = ?, detail = ?, occurred_at = ? WHERE id = ?`,
		string(outcome), detailValue, formatTime(time.Now()), id,
	)
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "resolve action", err)
	}
	return nil
}

// Statistics returns an aggregate snapshot as of the given time. "Today"
// counts use the calendar day containing asOf in the local time zone.
func (s *Store) Statistics(asOf time.Time) (account.Stats, error) {
	stats := account.Stats{ByState: make(map[account.State]int)}

	rows, err := s.db.Query(`SELECT state, COUNT(*) FROM accounts GROUP BY state`)
	if err != nil {
		return stats, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "statistics: states", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stateStr string
		var n int
		if err := rows.Scan(&stateStr, &n); err != nil {
			return stats, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "statistics: scan", err)
		}
		st, err := account.ParseState(stateStr)
		if err != nil {
			return stats, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "statistics: stored state", err)
		}
		stats.ByState[st] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return stats, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "statistics: rows", err)
	}

	dayStart := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM accounts WHERE followed_at >= ? AND followed_at < ?`,
		formatTime(dayStart), formatTime(dayEnd),
	).Scan(&stats.FollowsToday)
	if err != nil {
		return stats, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "statistics: follows today", err)
	}

	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM accounts WHERE unfollowed_at >= ? AND unfollowed_at < ?`,
		formatTime(dayStart), formatTime(dayEnd),
	).Scan(&stats.UnfollowsToday)
	if err != nil {
		return stats, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "statistics: unfollows today", err)
	}

	reciprocated := stats.ByState[account.StateFollowsBack]
	declined := stats.ByState[account.StateNoFollowBack] + stats.ByState[account.StateUnfollowed]
	if reciprocated+declined > 0 {
		stats.FollowBackRate = float64(reciprocated) / float64(reciprocated+declined)
	}

	return stats, nil
}

// Reset deletes all account rows and audit entries. This is the only path
// that physically removes data.
func (s *Store) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "reset: begin", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`DELETE FROM actions`); err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "reset: delete actions", err)
	}
	if _, err := tx.Exec(`DELETE FROM accounts`); err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "reset: delete accounts", err)
	}

	if err := tx.Commit(); err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "reset: commit", err)
	}
	return nil
}

const selectColumns = `SELECT username, profile_link, state, followed_at, check_due_at, follows_back, unfollowed_at, follow_attempts, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (account.Account, error) {
	var acct account.Account
	var stateStr, createdAtStr, updatedAtStr string
	var followedAtStr, checkDueAtStr, unfollowedAtStr sql.NullString
	var followsBack sql.NullInt64

	err := row.Scan(
		&acct.Username, &acct.ProfileLink, &stateStr,
		&followedAtStr, &checkDueAtStr, &followsBack, &unfollowedAtStr,
		&acct.FollowAttempts, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return account.Account{}, err
	}

	acct.State, err = account.ParseState(stateStr)
	if err != nil {
		return account.Account{}, err
	}

	acct.CreatedAt, err = time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return account.Account{}, fmt.Errorf("parse created_at: %w", err)
	}
	acct.UpdatedAt, err = time.Parse(timeLayout, updatedAtStr)
	if err != nil {
		return account.Account{}, fmt.Errorf("parse updated_at: %w", err)
	}

	if followedAtStr.Valid {
		t, err := time.Parse(timeLayout, followedAtStr.String)
		if err != nil {
			return account.Account{}, fmt.Errorf("parse followed_at: %w", err)
		}
		acct.FollowedAt = &t
	}
	if checkDueAtStr.Valid {
		t, err := time.Parse(timeLayout, checkDueAtStr.String)
		if err != nil {
			return account.Account{}, fmt.Errorf("parse check_due_at: %w", err)
		}
		acct.CheckDueAt = &t
	}
	if unfollowedAtStr.Valid {
		t, err := time.Parse(timeLayout, unfollowedAtStr.String)
		if err != nil {
			return account.Account{}, fmt.Errorf("parse unfollowed_at: %w", err)
		}
		acct.UnfollowedAt = &t
	}
	if followsBack.Valid {
		fb := followsBack.Int64 != 0
		acct.FollowsBack = &fb
	}

	return acct, nil
}

func collectAccounts(rows *sql.Rows, sizeHint int) ([]account.Account, error) {
	defer rows.Close()

	accounts := make([]account.Account, 0, sizeHint)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "scan account", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeStoreUnavailable, "account rows", err)
	}
	return accounts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
