package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/logging"
	"github.com/dmitrijs2005/gideon/internal/server/auth"
	"github.com/dmitrijs2005/gideon/internal/server/models"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type handler struct {
	gw     Gateway
	logger logging.Logger
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type apiKeyRequest struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
	APIKey   string `json:"api_key"`
}

type apiKeyResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Provider   string    `json:"provider"`
	Name       string    `json:"name"`
	Active     bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	KeyPreview string    `json:"key_preview,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func toAPIKeyResponse(k *models.APIKey, preview string) apiKeyResponse {
	return apiKeyResponse{
		ID:         k.ID,
		UserID:     k.UserID,
		Provider:   k.Provider,
		Name:       k.Name,
		Active:     k.Active,
		CreatedAt:  k.CreatedAt,
		KeyPreview: preview,
	}
}

var errBadBody = common.NewValidationError("", "invalid request body")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return common.NewValidationError("", "request body is empty")
		}
		return errBadBody
	}
	return nil
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.gw.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *handler) loginForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, errBadBody)
		return
	}
	h.login(w, r, r.PostForm.Get("username"), r.PostForm.Get("password"))
}

func (h *handler) loginJSON(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.login(w, r, req.Username, req.Password)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request, username, password string) {
	token, err := h.gw.Login(r.Context(), username, password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	raw, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errorResponse{Detail: "Not authenticated"})
		return
	}

	token, err := h.gw.RefreshToken(r.Context(), raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// currentUser is only called behind bearerAuth.
func currentUser(r *http.Request) *models.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var upd models.UserUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.gw.UpdateProfile(r.Context(), currentUser(r), upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *handler) preferences(w http.ResponseWriter, r *http.Request) {
	prefs := currentUser(r).Preferences
	if prefs == nil {
		prefs = map[string]any{}
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *handler) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs map[string]any
	if err := decodeJSON(w, r, &prefs); err != nil {
		h.fail(w, r, err)
		return
	}
	if prefs == nil {
		h.fail(w, r, common.NewValidationError("preferences", "must be a JSON object"))
		return
	}

	updated, err := h.gw.UpdatePreferences(r.Context(), currentUser(r), prefs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) createAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	issued, err := h.gw.IssueSecret(r.Context(), currentUser(r).ID, req.Provider, req.Name, req.APIKey)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAPIKeyResponse(issued.Key, issued.Preview))
}

func (h *handler) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.gw.ListSecrets(r.Context(), currentUser(r).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := make([]apiKeyResponse, 0, len(keys))
	for i := range keys {
		resp = append(resp, toAPIKeyResponse(&keys[i], ""))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) deleteAPIKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.gw.RevokeSecret(r.Context(), currentUser(r).ID, id)
	if errors.Is(err, common.ErrorNotFound) {
		writeError(w, http.StatusNotFound, errorResponse{Detail: "API key not found"})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "API key deleted successfully"})
}
