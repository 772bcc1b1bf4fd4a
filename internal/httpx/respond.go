package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-shop-backend.git/internal/logger"
	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("admin access required")
)

type errorBody struct {
	Error   string             `json:"error"`
	Message string             `json:"message"`
	Details *orders.StockError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind string) int {
	switch kind {
	case "NotFound":
		return http.StatusNotFound
	case "InsufficientStock", "InvalidStateTransition", "Conflict":
		return http.StatusConflict
	case "EmptySelection", "Validation":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to status codes. Storage failures are
// logged and answered without their internal message.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, errUnauthorized), errors.Is(err, users.ErrBadCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized", Message: err.Error()})
		return
	case errors.Is(err, errForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "Forbidden", Message: err.Error()})
		return
	}

	kind := orders.Kind(err)
	code := statusFor(kind)
	body := errorBody{Error: kind, Message: err.Error()}
	var se *orders.StockError
	if errors.As(err, &se) {
		body.Details = se
	}
	if code == http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "req_id", middleware.GetReqID(r.Context()), "err", err)
		body.Message = "internal error"
	}
	writeJSON(w, code, body)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %v", orders.ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", orders.ErrValidation, name)
	}
	return id, nil
}

// callerID resolves the acting user: a user_id sent in the body wins, then
// the X-User-ID header, then the user_id query parameter.
func callerID(r *http.Request, fromBody int64) (int64, error) {
	if fromBody > 0 {
		return fromBody, nil
	}
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		raw = r.URL.Query().Get("user_id")
	}
	if raw == "" {
		return 0, fmt.Errorf("%w: user_id is required", orders.ErrValidation)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid user_id", orders.ErrValidation)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", orders.ErrValidation, name)
	}
	return n, nil
}
