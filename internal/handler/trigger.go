package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PhilTenno/filesyncgo/internal/filesync"
	"github.com/PhilTenno/filesyncgo/internal/httputil"
	"github.com/PhilTenno/filesyncgo/internal/metrics"
	"github.com/PhilTenno/filesyncgo/internal/middleware"
	"github.com/PhilTenno/filesyncgo/internal/model"
	"github.com/PhilTenno/filesyncgo/internal/service"
)

const defaultMaxBodyBytes = 4096

type triggerOutcome struct {
	label  string
	status int
	body   httputil.StatusResponse
}

var (
	outcomeInvalidRequest = triggerOutcome{"invalid_request", http.StatusBadRequest, httputil.StatusResponse{Status: "error", Message: "Invalid request."}}
	outcomeInvalidToken   = triggerOutcome{"invalid_token", http.StatusUnauthorized, httputil.StatusResponse{Status: "error", Message: "Invalid token."}}
	outcomeRateLimited    = triggerOutcome{"rate_limited", http.StatusTooManyRequests, httputil.StatusResponse{Status: "error", Message: "Rate limit exceeded."}}
	outcomeSuccess        = triggerOutcome{"success", http.StatusOK, httputil.StatusResponse{Status: "success", Message: "File synchronized."}}
	outcomeInternalError  = triggerOutcome{"error", http.StatusInternalServerError, httputil.StatusResponse{Status: "error", Message: "Internal server error."}}
)

type CredentialVerifier interface {
	Verify(ctx context.Context, secret string) (*model.Credential, error)
}

type RequestLimiter interface {
	Consume(ctx context.Context, credentialID string) (service.Decision, error)
}

type TriggerHandler struct {
	verifier     CredentialVerifier
	limiter      RequestLimiter
	runner       filesync.Runner
	metrics      *metrics.Metrics
	trustProxy   bool
	maxBodyBytes int64
	now          func() time.Time
}

func NewTriggerHandler(
	verifier CredentialVerifier,
	limiter RequestLimiter,
	runner filesync.Runner,
	m *metrics.Metrics,
	trustProxy bool,
	maxBodyBytes int64,
) *TriggerHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &TriggerHandler{
		verifier:     verifier,
		limiter:      limiter,
		runner:       runner,
		metrics:      m,
		trustProxy:   trustProxy,
		maxBodyBytes: maxBodyBytes,
		now:          time.Now,
	}
}

// Trigger authenticates the caller, charges its rate window and runs one file
// sync. Checks run in a fixed order and the first failing one decides the
// response.
func (h *TriggerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("trigger: recovered from panic")
			h.respond(w, outcomeInternalError)
		}
	}()

	ctx := r.Context()

	if !middleware.IsSecure(r, h.trustProxy) {
		h.respond(w, outcomeInvalidRequest)
		return
	}

	if !h.bodyIsEmpty(r) {
		h.respond(w, outcomeInvalidRequest)
		return
	}

	secret, ok := service.ExtractBearer(r.Header.Get("Authorization"))
	if !ok {
		h.respond(w, outcomeInvalidToken)
		return
	}

	cred, err := h.verifier.Verify(ctx, secret)
	if err != nil {
		log.Error().Err(err).Msg("trigger: failed to verify credential")
		h.respond(w, outcomeInternalError)
		return
	}
	if cred == nil {
		h.respond(w, outcomeInvalidToken)
		return
	}

	decision, err := h.limiter.Consume(ctx, cred.ID)
	if errors.Is(err, service.ErrCredentialGone) {
		log.Warn().Str("credentialId", cred.ID).Msg("trigger: credential deleted during request")
		h.respond(w, outcomeInvalidToken)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("credentialId", cred.ID).Msg("trigger: failed to consume rate limit")
		h.respond(w, outcomeInternalError)
		return
	}
	h.metrics.RateLimitDecision(decision.Allowed)
	if !decision.Allowed {
		retryAfter := decision.RetryAfter(h.now())
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter/time.Second)))
		log.Warn().
			Str("credentialId", cred.ID).
			Int("limit", decision.Limit).
			Time("resetAt", decision.ResetAt).
			Msg("trigger: rate limit exceeded")
		h.respond(w, outcomeRateLimited)
		return
	}

	start := time.Now()
	err = h.runner.Run(ctx)
	h.metrics.SyncFinished(time.Since(start), err)
	if err != nil {
		log.Error().Err(err).Str("credentialId", cred.ID).Msg("trigger: file sync failed")
		h.respond(w, outcomeInternalError)
		return
	}

	log.Info().
		Str("credentialId", cred.ID).
		Int("count", decision.Count).
		Int("limit", decision.Limit).
		Dur("duration", time.Since(start)).
		Msg("trigger: file sync completed")
	h.respond(w, outcomeSuccess)
}

func (h *TriggerHandler) bodyIsEmpty(r *http.Request) bool {
	if r.Body == nil {
		return true
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes+1))
	if err != nil || int64(len(body)) > h.maxBodyBytes {
		return false
	}
	return strings.TrimSpace(string(body)) == ""
}

func (h *TriggerHandler) respond(w http.ResponseWriter, outcome triggerOutcome) {
	h.metrics.TriggerOutcome(outcome.label)
	writeJSON(w, outcome.status, outcome.body)
}
