package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PhilTenno/filesyncgo/internal/audit"
	"github.com/PhilTenno/filesyncgo/internal/database"
	"github.com/PhilTenno/filesyncgo/internal/hashing"
	"github.com/PhilTenno/filesyncgo/internal/model"
	"github.com/PhilTenno/filesyncgo/internal/repository"
)

type countingHasher struct {
	*hashing.Hasher
	compares atomic.Int64
}

func newCountingHasher() *countingHasher {
	return &countingHasher{Hasher: hashing.NewHasher(hashing.Argon2Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})}
}

func (h *countingHasher) Compare(secret, encoded string) (bool, error) {
	h.compares.Add(1)
	return h.Hasher.Compare(secret, encoded)
}

func (h *countingHasher) reset() int64 {
	return h.compares.Swap(0)
}

type recordingRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingRecorder) Record(_ context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingRecorder) last() audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return audit.Event{}
	}
	return r.events[len(r.events)-1]
}

func (r *recordingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func storeSecret(t *testing.T, db *database.DB, hasher *countingHasher, secret string) *model.Credential {
	t.Helper()
	hash, err := hasher.Hash(secret)
	require.NoError(t, err)
	return storeHash(t, db, hash)
}

func storeHash(t *testing.T, db *database.DB, hash string) *model.Credential {
	t.Helper()
	cred, err := repository.NewCredentialRepository(db.DB).Create(context.Background(), model.CreateCredentialParams{
		SecretHash:  hash,
		DisplayHint: "test",
	})
	require.NoError(t, err)
	return cred
}
