package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/cryptox"
)

const (
	msgInvalidCredentials = "Incorrect username or password"
	msgUnauthorized       = "Could not validate credentials"
	msgInactiveUser       = "Inactive user"
	msgNotFound           = "Not found"
	msgInternal           = "Internal server error"
)

type errorResponse struct {
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, body)
}

// statusFor maps the error taxonomy onto HTTP. Auth failures collapse to a
// fixed message; only the inactive-account case is told apart.
func statusFor(err error) (int, errorResponse) {
	var (
		ve *common.ValidationError
		de *common.DuplicateError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{Detail: ve.Reason, Field: ve.Field}
	case errors.As(err, &de):
		return http.StatusBadRequest, errorResponse{Detail: de.Error(), Field: de.Field}
	case errors.Is(err, common.ErrInactiveUser):
		return http.StatusForbidden, errorResponse{Detail: msgInactiveUser}
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Detail: msgInvalidCredentials}
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, errorResponse{Detail: msgUnauthorized}
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, errorResponse{Detail: msgNotFound}
	case errors.Is(err, cryptox.ErrIntegrity):
		return http.StatusInternalServerError, errorResponse{Detail: "Stored secret failed integrity check"}
	default:
		return http.StatusInternalServerError, errorResponse{Detail: msgInternal}
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, body)
}
