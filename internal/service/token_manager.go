package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/PhilTenno/filesyncgo/internal/audit"
	"github.com/PhilTenno/filesyncgo/internal/model"
	"github.com/PhilTenno/filesyncgo/internal/repository"
	"github.com/PhilTenno/filesyncgo/internal/util"
)

const maskedNone = "none"

var ErrInvalidTokenLength = fmt.Errorf("token must be between 1 and %d characters", util.MaxTokenLength)

// TokenManager issues, replaces and removes trigger credentials. Plaintext
// secrets are returned to the caller once and never stored or logged.
type TokenManager struct {
	db          *sqlx.DB
	credRepo    repository.CredentialRepository
	windows     repository.RateWindowRepository
	hasher      SecretHasher
	recorder    audit.Recorder
	singleToken bool
}

func NewTokenManager(
	db *sqlx.DB,
	credRepo repository.CredentialRepository,
	windows repository.RateWindowRepository,
	hasher SecretHasher,
	recorder audit.Recorder,
	singleToken bool,
) *TokenManager {
	return &TokenManager{
		db:          db,
		credRepo:    credRepo,
		windows:     windows,
		hasher:      hasher,
		recorder:    recorder,
		singleToken: singleToken,
	}
}

// Rotate generates a new secret and makes it the current credential. In
// single-token mode the previous current credential is removed in the same
// transaction.
func (m *TokenManager) Rotate(ctx context.Context, length int) (string, *model.Credential, error) {
	return m.generate(ctx, length, m.singleToken)
}

// Create generates an additional credential without removing any.
func (m *TokenManager) Create(ctx context.Context, length int) (string, *model.Credential, error) {
	return m.generate(ctx, length, false)
}

// Set stores an administrator-chosen secret as the current credential.
func (m *TokenManager) Set(ctx context.Context, plaintext string) (*model.Credential, error) {
	secret := strings.TrimSpace(plaintext)
	if n := utf8.RuneCountInString(secret); n == 0 || n > util.MaxTokenLength {
		return nil, ErrInvalidTokenLength
	}

	cred, err := m.store(ctx, secret, m.singleToken)
	if err != nil {
		return nil, err
	}
	m.recordRotate(ctx, cred.ID)
	return cred, nil
}

// MaskedView returns the current credential as "xxxx...hint", or "none".
func (m *TokenManager) MaskedView(ctx context.Context) (string, error) {
	cred, err := m.credRepo.FindCurrent(ctx)
	if err != nil {
		return "", fmt.Errorf("find current credential: %w", err)
	}
	if cred == nil {
		return maskedNone, nil
	}
	return cred.Masked(), nil
}

func (m *TokenManager) List(ctx context.Context) ([]model.Credential, error) {
	creds, err := m.credRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return creds, nil
}

// TokenDetail is one credential with its rate window. Window is nil until the
// credential has been used.
type TokenDetail struct {
	Credential model.Credential
	Window     *model.RateWindow
}

// Get returns the credential with the given id, or nil if there is none.
func (m *TokenManager) Get(ctx context.Context, id string) (*TokenDetail, error) {
	cred, err := m.credRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	if cred == nil {
		return nil, nil
	}

	w, err := m.windows.FindByCredentialID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find rate window: %w", err)
	}
	return &TokenDetail{Credential: *cred, Window: w}, nil
}

// Delete removes a credential and, by cascade, its rate window.
func (m *TokenManager) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := m.credRepo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete credential: %w", err)
	}
	if deleted {
		m.recorder.Record(ctx, audit.Event{
			Action:       audit.ActionDelete,
			Outcome:      audit.OutcomeSuccess,
			CredentialID: id,
			Time:         time.Now(),
		})
		log.Info().Str("credentialId", id).Msg("credential deleted")
	}
	return deleted, nil
}

func (m *TokenManager) generate(ctx context.Context, length int, replace bool) (string, *model.Credential, error) {
	secret, err := util.GenerateToken(util.NormalizeTokenLength(length))
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	cred, err := m.store(ctx, secret, replace)
	if err != nil {
		return "", nil, err
	}
	m.recordRotate(ctx, cred.ID)
	return secret, cred, nil
}

func (m *TokenManager) store(ctx context.Context, secret string, replace bool) (cred *model.Credential, err error) {
	hash, err := m.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error().Err(rbErr).Msg("failed to rollback credential tx")
			}
		}
	}()

	credRepo := m.credRepo.WithTx(tx)

	var replaced string
	if replace {
		current, err := credRepo.FindCurrent(ctx)
		if err != nil {
			return nil, fmt.Errorf("find current credential: %w", err)
		}
		if current != nil {
			if _, err := credRepo.Delete(ctx, current.ID); err != nil {
				return nil, fmt.Errorf("delete current credential: %w", err)
			}
			replaced = current.ID
		}
	}

	cred, err = credRepo.Create(ctx, model.CreateCredentialParams{
		SecretHash:  hash,
		DisplayHint: util.Hint(secret),
	})
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	entry := log.Info().Str("credentialId", cred.ID)
	if replaced != "" {
		entry = entry.Str("replacedId", replaced)
	}
	entry.Msg("credential stored")

	return cred, nil
}

func (m *TokenManager) recordRotate(ctx context.Context, id string) {
	m.recorder.Record(ctx, audit.Event{
		Action:       audit.ActionRotate,
		Outcome:      audit.OutcomeSuccess,
		CredentialID: id,
		Time:         time.Now(),
	})
}
