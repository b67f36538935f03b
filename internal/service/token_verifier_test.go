package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/PhilTenno/filesyncgo/internal/audit"
	"github.com/PhilTenno/filesyncgo/internal/database/dbtest"
	"github.com/PhilTenno/filesyncgo/internal/model"
	"github.com/PhilTenno/filesyncgo/internal/repository"
)

type failingCredentialRepo struct {
	repository.CredentialRepository
	err error
}

func (r *failingCredentialRepo) FindAll(context.Context) ([]model.Credential, error) {
	return nil, r.err
}

func TestExtractBearer(t *testing.T) {
	t.Run("accepts bearer tokens", func(t *testing.T) {
		for header, want := range map[string]string{
			"Bearer abc123":       "abc123",
			"bearer abc123":       "abc123",
			"  BEARER   abc123  ": "abc123",
			"Bearer\tabc123":      "abc123",
		} {
			got, ok := ExtractBearer(header)
			assert.True(t, ok, header)
			assert.Equal(t, want, got, header)
		}
	})

	t.Run("rejects malformed headers", func(t *testing.T) {
		for _, header := range []string{
			"",
			"Bearer",
			"Bearer   ",
			"Basic abc123",
			"Token abc123",
			"Bearerabc123",
			"Bearer " + strings.Repeat("a", maxBearerLength+1),
		} {
			_, ok := ExtractBearer(header)
			assert.False(t, ok, header)
		}
	})

	t.Run("accepts the maximum length", func(t *testing.T) {
		token := strings.Repeat("a", maxBearerLength)
		got, ok := ExtractBearer("Bearer " + token)
		assert.True(t, ok)
		assert.Equal(t, token, got)
	})
}

func TestTokenVerifier_MatchesAnyPositionWithUniformCost(t *testing.T) {
	db := dbtest.NewSQLite(t)
	hasher := newCountingHasher()
	recorder := &recordingRecorder{}

	secrets := []string{"first-secret", "second-secret", "third-secret", "fourth-secret", "fifth-secret"}
	creds := make([]*model.Credential, len(secrets))
	for i, s := range secrets {
		creds[i] = storeSecret(t, db, hasher, s)
	}

	verifier, err := NewTokenVerifier(repository.NewCredentialRepository(db.DB), hasher, recorder)
	require.NoError(t, err)
	ctx := context.Background()

	for i, s := range secrets {
		hasher.reset()
		cred, err := verifier.Verify(ctx, s)
		require.NoError(t, err)
		require.NotNil(t, cred, "secret at position %d", i)
		assert.Equal(t, creds[i].ID, cred.ID)
		assert.Equal(t, int64(len(secrets)), hasher.reset(), "compare calls for position %d", i)

		event := recorder.last()
		assert.Equal(t, audit.ActionVerify, event.Action)
		assert.Equal(t, audit.OutcomeSuccess, event.Outcome)
		assert.Equal(t, creds[i].ID, event.CredentialID)
	}

	hasher.reset()
	cred, err := verifier.Verify(ctx, "unknown-secret")
	require.NoError(t, err)
	assert.Nil(t, cred)
	assert.Equal(t, int64(len(secrets)), hasher.reset())
	assert.Equal(t, audit.OutcomeFailure, recorder.last().Outcome)
	assert.Empty(t, recorder.last().CredentialID)
}

func TestTokenVerifier_EmptySecret(t *testing.T) {
	db := dbtest.NewSQLite(t)
	hasher := newCountingHasher()
	recorder := &recordingRecorder{}
	storeSecret(t, db, hasher, "some-secret")

	verifier, err := NewTokenVerifier(repository.NewCredentialRepository(db.DB), hasher, recorder)
	require.NoError(t, err)
	hasher.reset()

	cred, err := verifier.Verify(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, cred)
	assert.Zero(t, hasher.reset())
	assert.Zero(t, recorder.count())
}

func TestTokenVerifier_NoCredentials(t *testing.T) {
	db := dbtest.NewSQLite(t)
	hasher := newCountingHasher()

	verifier, err := NewTokenVerifier(repository.NewCredentialRepository(db.DB), hasher, &recordingRecorder{})
	require.NoError(t, err)
	hasher.reset()

	cred, err := verifier.Verify(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, cred)
	assert.Equal(t, int64(1), hasher.reset(), "dummy comparison keeps an empty store from answering instantly")
}

func TestTokenVerifier_UnusableHashesNeverMatch(t *testing.T) {
	db := dbtest.NewSQLite(t)
	hasher := newCountingHasher()

	storeHash(t, db, "")
	storeHash(t, db, "not-a-hash")
	valid := storeSecret(t, db, hasher, "real-secret")

	verifier, err := NewTokenVerifier(repository.NewCredentialRepository(db.DB), hasher, &recordingRecorder{})
	require.NoError(t, err)
	ctx := context.Background()

	cred, err := verifier.Verify(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, cred)

	cred, err = verifier.Verify(ctx, "not-a-hash")
	require.NoError(t, err)
	assert.Nil(t, cred)

	cred, err = verifier.Verify(ctx, "real-secret")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, valid.ID, cred.ID)
}

func TestTokenVerifier_LegacyBcrypt(t *testing.T) {
	db := dbtest.NewSQLite(t)
	hasher := newCountingHasher()

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	encoded := "$2y$" + strings.TrimPrefix(string(legacy), "$2a$")
	stored := storeHash(t, db, encoded)

	verifier, err := NewTokenVerifier(repository.NewCredentialRepository(db.DB), hasher, &recordingRecorder{})
	require.NoError(t, err)

	cred, err := verifier.Verify(context.Background(), "legacy-secret")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, stored.ID, cred.ID)
}

func TestTokenVerifier_StoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	recorder := &recordingRecorder{}
	verifier, err := NewTokenVerifier(&failingCredentialRepo{err: storeErr}, newCountingHasher(), recorder)
	require.NoError(t, err)

	cred, err := verifier.Verify(context.Background(), "secret")
	assert.Nil(t, cred)
	assert.ErrorIs(t, err, storeErr)
	assert.Zero(t, recorder.count())
}
