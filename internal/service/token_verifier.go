package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PhilTenno/filesyncgo/internal/audit"
	"github.com/PhilTenno/filesyncgo/internal/model"
	"github.com/PhilTenno/filesyncgo/internal/repository"
)

const maxBearerLength = 512

var bearerPattern = regexp.MustCompile(`(?i)^\s*Bearer\s+(.+)$`)

// ExtractBearer returns the token from an Authorization header value.
func ExtractBearer(header string) (string, bool) {
	m := bearerPattern.FindStringSubmatch(header)
	if m == nil {
		return "", false
	}
	token := strings.TrimSpace(m[1])
	if token == "" || len(token) > maxBearerLength {
		return "", false
	}
	return token, true
}

type TokenVerifier struct {
	credRepo  repository.CredentialRepository
	hasher    SecretHasher
	recorder  audit.Recorder
	dummyHash string
}

func NewTokenVerifier(
	credRepo repository.CredentialRepository,
	hasher SecretHasher,
	recorder audit.Recorder,
) (*TokenVerifier, error) {
	dummy, err := hasher.DummyHash()
	if err != nil {
		return nil, fmt.Errorf("create dummy hash: %w", err)
	}
	return &TokenVerifier{
		credRepo:  credRepo,
		hasher:    hasher,
		recorder:  recorder,
		dummyHash: dummy,
	}, nil
}

// Verify returns the credential whose hash matches secret, or nil. Every
// stored credential is compared regardless of where the match is, so the
// cost depends only on the number of credentials.
func (v *TokenVerifier) Verify(ctx context.Context, secret string) (*model.Credential, error) {
	if secret == "" {
		return nil, nil
	}

	creds, err := v.credRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	if len(creds) == 0 {
		_, _ = v.hasher.Compare(secret, v.dummyHash)
	}

	var matched *model.Credential
	for i := range creds {
		encoded := creds[i].SecretHash
		if encoded == "" {
			encoded = v.dummyHash
		}

		ok, err := v.hasher.Compare(secret, encoded)
		if err != nil {
			log.Warn().Err(err).Str("credentialId", creds[i].ID).Msg("unreadable credential hash")
			_, _ = v.hasher.Compare(secret, v.dummyHash)
			continue
		}
		if ok && matched == nil {
			matched = &creds[i]
		}
	}

	event := audit.Event{Action: audit.ActionVerify, Outcome: audit.OutcomeFailure, Time: time.Now()}
	if matched != nil {
		event.Outcome = audit.OutcomeSuccess
		event.CredentialID = matched.ID
	}
	v.recorder.Record(ctx, event)

	return matched, nil
}
