package handler

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/PhilTenno/filesyncgo/internal/filesync"
	"github.com/PhilTenno/filesyncgo/internal/metrics"
	"github.com/PhilTenno/filesyncgo/internal/model"
	"github.com/PhilTenno/filesyncgo/internal/service"
)

const (
	bodyInvalidRequest = `{"status":"error","message":"Invalid request."}`
	bodyInvalidToken   = `{"status":"error","message":"Invalid token."}`
	bodyRateLimited    = `{"status":"error","message":"Rate limit exceeded."}`
	bodySuccess        = `{"status":"success","message":"File synchronized."}`
	bodyInternalError  = `{"status":"error","message":"Internal server error."}`
)

type mockVerifier struct {
	secret string
	err    error
	calls  int
}

func (m *mockVerifier) Verify(ctx context.Context, secret string) (*model.Credential, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if secret != m.secret {
		return nil, nil
	}
	return &model.Credential{ID: "cred-1"}, nil
}

type mockLimiter struct {
	decision service.Decision
	err      error
	calls    int
}

func (m *mockLimiter) Consume(ctx context.Context, credentialID string) (service.Decision, error) {
	m.calls++
	return m.decision, m.err
}

type mockRunner struct {
	err   error
	panic bool
	calls int
}

func (m *mockRunner) Run(ctx context.Context) error {
	m.calls++
	if m.panic {
		panic("runner exploded")
	}
	return m.err
}

type triggerFixture struct {
	handler  *TriggerHandler
	verifier *mockVerifier
	limiter  *mockLimiter
	runner   *mockRunner
	now      time.Time
}

func newTriggerFixture(trustProxy bool) *triggerFixture {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &triggerFixture{
		verifier: &mockVerifier{secret: "good-token"},
		limiter: &mockLimiter{decision: service.Decision{
			Allowed: true, Count: 1, Limit: 24, ResetAt: now.Add(24 * time.Hour),
		}},
		runner: &mockRunner{},
		now:    now,
	}
	f.handler = NewTriggerHandler(f.verifier, f.limiter, f.runner, metrics.New(), trustProxy, 4096)
	f.handler.now = func() time.Time { return now }
	return f
}

func (f *triggerFixture) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.Trigger(rec, r)
	return rec
}

func secureRequest(body, auth string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/filesync/trigger", strings.NewReader(body))
	r.TLS = &tls.ConnectionState{}
	if auth != "" {
		r.Header.Set("Authorization", auth)
	}
	return r
}

func TestTrigger_Success(t *testing.T) {
	f := newTriggerFixture(false)

	rec := f.do(secureRequest("", "Bearer good-token"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, bodySuccess, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 1, f.runner.calls)
}

func TestTrigger_InsecureTransport(t *testing.T) {
	t.Run("plain http", func(t *testing.T) {
		f := newTriggerFixture(false)
		r := httptest.NewRequest(http.MethodPost, "/filesync/trigger", nil)
		r.Header.Set("Authorization", "Bearer good-token")

		rec := f.do(r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, bodyInvalidRequest, rec.Body.String())
		assert.Zero(t, f.verifier.calls)
	})

	t.Run("forwarded proto without trust", func(t *testing.T) {
		f := newTriggerFixture(false)
		r := httptest.NewRequest(http.MethodPost, "/filesync/trigger", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		r.Header.Set("Authorization", "Bearer good-token")

		rec := f.do(r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("forwarded proto with trust", func(t *testing.T) {
		f := newTriggerFixture(true)
		r := httptest.NewRequest(http.MethodPost, "/filesync/trigger", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		r.Header.Set("Authorization", "Bearer good-token")

		rec := f.do(r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("insecure wins over bad token", func(t *testing.T) {
		f := newTriggerFixture(false)
		r := httptest.NewRequest(http.MethodPost, "/filesync/trigger", strings.NewReader("payload"))

		rec := f.do(r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, bodyInvalidRequest, rec.Body.String())
	})
}

func TestTrigger_NonEmptyBody(t *testing.T) {
	t.Run("payload rejected before authentication", func(t *testing.T) {
		f := newTriggerFixture(false)

		rec := f.do(secureRequest(`{"sync":true}`, "Bearer good-token"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, bodyInvalidRequest, rec.Body.String())
		assert.Zero(t, f.verifier.calls)
		assert.Zero(t, f.runner.calls)
	})

	t.Run("whitespace body is empty", func(t *testing.T) {
		f := newTriggerFixture(false)

		rec := f.do(secureRequest(" \r\n\t ", "Bearer good-token"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		f := newTriggerFixture(false)

		rec := f.do(secureRequest(strings.Repeat(" ", 5000), "Bearer good-token"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTrigger_InvalidToken(t *testing.T) {
	for name, auth := range map[string]string{
		"missing header":  "",
		"wrong scheme":    "Basic Z29vZC10b2tlbg==",
		"empty bearer":    "Bearer   ",
		"unknown token":   "Bearer wrong-token",
		"no space bearer": "Bearergood-token",
	} {
		t.Run(name, func(t *testing.T) {
			f := newTriggerFixture(false)

			rec := f.do(secureRequest("", auth))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, bodyInvalidToken, rec.Body.String())
			assert.Zero(t, f.limiter.calls)
			assert.Zero(t, f.runner.calls)
		})
	}
}

func TestTrigger_VerifierError(t *testing.T) {
	f := newTriggerFixture(false)
	f.verifier.err = errors.New("db down")

	rec := f.do(secureRequest("", "Bearer good-token"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, bodyInternalError, rec.Body.String())
	assert.Zero(t, f.limiter.calls)
}

func TestTrigger_RateLimited(t *testing.T) {
	f := newTriggerFixture(false)
	f.limiter.decision = service.Decision{
		Allowed: false,
		Count:   24,
		Limit:   24,
		ResetAt: f.now.Add(90*time.Minute + 500*time.Millisecond),
	}

	rec := f.do(secureRequest("", "Bearer good-token"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, bodyRateLimited, rec.Body.String())
	assert.Equal(t, "5401", rec.Header().Get("Retry-After"))
	assert.Zero(t, f.runner.calls)
}

func TestTrigger_LimiterError(t *testing.T) {
	f := newTriggerFixture(false)
	f.limiter.err = errors.New("deadlock detected")

	rec := f.do(secureRequest("", "Bearer good-token"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, bodyInternalError, rec.Body.String())
	assert.Zero(t, f.runner.calls)
}

func TestTrigger_CredentialDeletedBeforeConsume(t *testing.T) {
	f := newTriggerFixture(false)
	f.limiter.err = service.ErrCredentialGone

	rec := f.do(secureRequest("", "Bearer good-token"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, bodyInvalidToken, rec.Body.String())
	assert.Zero(t, f.runner.calls)
}

func TestTrigger_SyncFailure(t *testing.T) {
	t.Run("error text is not leaked", func(t *testing.T) {
		f := newTriggerFixture(false)
		f.runner.err = errors.New("exit status 1: /var/www/secret/path not writable")

		rec := f.do(secureRequest("", "Bearer good-token"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, bodyInternalError, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "secret/path")
	})

	t.Run("timeout", func(t *testing.T) {
		f := newTriggerFixture(false)
		f.runner.err = filesync.ErrTimeout

		rec := f.do(secureRequest("", "Bearer good-token"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		f := newTriggerFixture(false)
		f.runner.panic = true

		rec := f.do(secureRequest("", "Bearer good-token"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, bodyInternalError, rec.Body.String())
	})
}
