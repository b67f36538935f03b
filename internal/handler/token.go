package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/PhilTenno/filesyncgo/internal/model"
	"github.com/PhilTenno/filesyncgo/internal/service"
)

type TokenAdmin interface {
	Rotate(ctx context.Context, length int) (string, *model.Credential, error)
	Create(ctx context.Context, length int) (string, *model.Credential, error)
	Set(ctx context.Context, plaintext string) (*model.Credential, error)
	MaskedView(ctx context.Context) (string, error)
	List(ctx context.Context) ([]model.Credential, error)
	Get(ctx context.Context, id string) (*service.TokenDetail, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type TokenHandler struct {
	tokens TokenAdmin
}

func NewTokenHandler(tokens TokenAdmin) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

func (h *TokenHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/current", h.Current)
	r.Put("/current", h.Set)
	r.Post("/rotate", h.Rotate)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	return r
}

type setTokenRequest struct {
	Token string `json:"token"`
}

func formatCredential(cred *model.Credential) map[string]any {
	return map[string]any{
		"id":        cred.ID,
		"masked":    cred.Masked(),
		"createdAt": cred.CreatedAt,
		"updatedAt": cred.UpdatedAt,
	}
}

func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, err := h.tokens.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("admin: failed to list tokens")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list tokens"})
		return
	}

	result := make([]map[string]any, 0, len(creds))
	for i := range creds {
		result = append(result, formatCredential(&creds[i]))
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *TokenHandler) Current(w http.ResponseWriter, r *http.Request) {
	masked, err := h.tokens.MaskedView(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("admin: failed to get current token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get current token"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": masked})
}

func (h *TokenHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.tokens.Rotate, "rotate")
}

func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.tokens.Create, "create")
}

func (h *TokenHandler) issue(
	w http.ResponseWriter,
	r *http.Request,
	generate func(context.Context, int) (string, *model.Credential, error),
	op string,
) {
	length, _ := strconv.Atoi(r.URL.Query().Get("length"))

	token, cred, err := generate(r.Context(), length)
	if err != nil {
		log.Error().Err(err).Str("op", op).Msg("admin: failed to issue token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to issue token"})
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	result := formatCredential(cred)
	result["token"] = token
	writeJSON(w, http.StatusOK, result)
}

func (h *TokenHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	cred, err := h.tokens.Set(r.Context(), req.Token)
	if errors.Is(err, service.ErrInvalidTokenLength) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("admin: failed to set token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to set token"})
		return
	}

	writeJSON(w, http.StatusOK, formatCredential(cred))
}

func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	detail, err := h.tokens.Get(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("admin: failed to get token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get token"})
		return
	}
	if detail == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Token not found"})
		return
	}

	result := formatCredential(&detail.Credential)
	result["window"] = detail.Window
	writeJSON(w, http.StatusOK, result)
}

func (h *TokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.tokens.Delete(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("admin: failed to delete token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete token"})
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Token not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
