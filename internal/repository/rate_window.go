package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/PhilTenno/filesyncgo/internal/model"
)

type RateWindowRepository interface {
	FindByCredentialID(ctx context.Context, credentialID string) (*model.RateWindow, error)
	// EnsureExists inserts an empty window starting at windowStart unless the
	// credential already has one. It returns ErrCredentialNotFound when the
	// credential has been deleted.
	EnsureExists(ctx context.Context, credentialID string, windowStart time.Time) error
	// LockByCredentialID reads the window and, on postgres, holds a row lock
	// until the surrounding transaction ends. Must be called inside WithTx.
	LockByCredentialID(ctx context.Context, credentialID string) (*model.RateWindow, error)
	Update(ctx context.Context, id string, windowStart time.Time, count int) error
	WithTx(tx *sqlx.Tx) RateWindowRepository
}

type rateWindowRepo struct {
	db sqlxDB
}

func NewRateWindowRepository(db *sqlx.DB) RateWindowRepository {
	return &rateWindowRepo{db: db}
}

func (r *rateWindowRepo) WithTx(tx *sqlx.Tx) RateWindowRepository {
	return &rateWindowRepo{db: tx}
}

func (r *rateWindowRepo) FindByCredentialID(ctx context.Context, credentialID string) (*model.RateWindow, error) {
	var w model.RateWindow
	err := r.db.GetContext(ctx, &w, r.db.Rebind(`
		SELECT id, credential_id, window_start, count
		FROM rate_windows WHERE credential_id = ?
	`), credentialID)
	return HandleNotFound(&w, err)
}

func (r *rateWindowRepo) EnsureExists(ctx context.Context, credentialID string, windowStart time.Time) error {
	// Selecting from credentials skips the insert for a deleted credential;
	// the foreign key catches a delete that races with it.
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO rate_windows (id, credential_id, window_start, count)
		SELECT ?, id, CAST(? AS BIGINT), 0 FROM credentials WHERE id = ?
		ON CONFLICT (credential_id) DO NOTHING
	`), uuid.NewString(), model.NewTimestamp(windowStart), credentialID)
	if IsForeignKeyViolation(err) {
		return ErrCredentialNotFound
	}
	return err
}

func (r *rateWindowRepo) LockByCredentialID(ctx context.Context, credentialID string) (*model.RateWindow, error) {
	query := `
		SELECT id, credential_id, window_start, count
		FROM rate_windows WHERE credential_id = ?`
	// sqlite has no row locks; its immediate transaction already holds the
	// database write lock.
	if r.db.DriverName() == "postgres" {
		query += ` FOR UPDATE`
	}

	var w model.RateWindow
	err := r.db.GetContext(ctx, &w, r.db.Rebind(query), credentialID)
	return HandleNotFound(&w, err)
}

func (r *rateWindowRepo) Update(ctx context.Context, id string, windowStart time.Time, count int) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE rate_windows SET window_start = ?, count = ? WHERE id = ?
	`), model.NewTimestamp(windowStart), count, id)
	return err
}
