package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/PhilTenno/filesyncgo/internal/model"
)

type CredentialRepository interface {
	FindByID(ctx context.Context, id string) (*model.Credential, error)
	// FindAll returns every stored credential in one statement, oldest first.
	FindAll(ctx context.Context) ([]model.Credential, error)
	// FindCurrent returns the most recently created credential or nil.
	FindCurrent(ctx context.Context) (*model.Credential, error)
	Create(ctx context.Context, params model.CreateCredentialParams) (*model.Credential, error)
	Delete(ctx context.Context, id string) (bool, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) CredentialRepository
}

type credentialRepo struct {
	db  sqlxDB
	now func() time.Time
}

func NewCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &credentialRepo{db: db, now: time.Now}
}

func (r *credentialRepo) WithTx(tx *sqlx.Tx) CredentialRepository {
	return &credentialRepo{db: tx, now: r.now}
}

func (r *credentialRepo) FindByID(ctx context.Context, id string) (*model.Credential, error) {
	var cred model.Credential
	err := r.db.GetContext(ctx, &cred, r.db.Rebind(`
		SELECT id, secret_hash, display_hint, created_at, updated_at
		FROM credentials WHERE id = ?
	`), id)
	return HandleNotFound(&cred, err)
}

func (r *credentialRepo) FindAll(ctx context.Context) ([]model.Credential, error) {
	var creds []model.Credential
	err := r.db.SelectContext(ctx, &creds, `
		SELECT id, secret_hash, display_hint, created_at, updated_at
		FROM credentials
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *credentialRepo) FindCurrent(ctx context.Context) (*model.Credential, error) {
	var cred model.Credential
	err := r.db.GetContext(ctx, &cred, `
		SELECT id, secret_hash, display_hint, created_at, updated_at
		FROM credentials
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)
	return HandleNotFound(&cred, err)
}

func (r *credentialRepo) Create(ctx context.Context, params model.CreateCredentialParams) (*model.Credential, error) {
	now := model.NewTimestamp(r.now())
	cred := model.Credential{
		ID:          uuid.NewString(),
		SecretHash:  params.SecretHash,
		DisplayHint: params.DisplayHint,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO credentials (id, secret_hash, display_hint, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`), cred.ID, cred.SecretHash, cred.DisplayHint, cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM credentials WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
