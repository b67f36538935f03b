package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/PhilTenno/filesyncgo/internal/repository"
)

// ErrCredentialGone means the credential was deleted after it was verified.
var ErrCredentialGone = errors.New("credential no longer exists")

// Decision is the outcome of one Consume call.
type Decision struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// RetryAfter is the time left until the window resets, rounded up to a second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	left := d.ResetAt.Sub(now)
	if left <= 0 {
		return 0
	}
	if rem := left % time.Second; rem != 0 {
		left += time.Second - rem
	}
	return left
}

// RateLimiter admits at most limit requests per credential per window. The
// window starts at the first admitted request and resets once it has fully
// elapsed.
type RateLimiter struct {
	db      *sqlx.DB
	windows repository.RateWindowRepository
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter(
	db *sqlx.DB,
	windows repository.RateWindowRepository,
	limit int,
	window time.Duration,
) *RateLimiter {
	return &RateLimiter{
		db:      db,
		windows: windows,
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	l.now = now
	return l
}

// Consume counts one request against credentialID. The read, decision and
// write happen under one lock on the credential's window row; a rejected or
// failed call leaves the row untouched.
func (l *RateLimiter) Consume(ctx context.Context, credentialID string) (Decision, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("begin rate limit tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := l.now()
	windows := l.windows.WithTx(tx)

	if err := windows.EnsureExists(ctx, credentialID, now); err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return Decision{}, ErrCredentialGone
		}
		return Decision{}, fmt.Errorf("ensure rate window: %w", err)
	}

	w, err := windows.LockByCredentialID(ctx, credentialID)
	if err != nil {
		return Decision{}, fmt.Errorf("lock rate window: %w", err)
	}
	if w == nil {
		return Decision{}, ErrCredentialGone
	}

	start, count := w.WindowStart.Time, w.Count
	switch {
	case count == 0 || w.Expired(now, l.window):
		start, count = now, 1
	case count >= l.limit:
		return Decision{Allowed: false, Count: count, Limit: l.limit, ResetAt: start.Add(l.window)}, nil
	default:
		count++
	}

	if err := windows.Update(ctx, w.ID, start, count); err != nil {
		return Decision{}, fmt.Errorf("update rate window: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Decision{}, fmt.Errorf("commit rate limit tx: %w", err)
	}
	committed = true

	return Decision{Allowed: true, Count: count, Limit: l.limit, ResetAt: start.Add(l.window)}, nil
}
