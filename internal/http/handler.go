package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Options are shared by all handlers.
type Options struct {
	Timeout       time.Duration
	Production    bool
	MaxUploadSize int64
}

type base struct {
	timeout time.Duration
	errs    errorWriter
}

func newBase(opts Options) base {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return base{timeout: timeout, errs: errorWriter{production: opts.Production}}
}

// begin applies the handler timeout and resolves the caller. It writes a 401
// and returns ok=false when no identity is present.
func (b base) begin(w http.ResponseWriter, r *http.Request) (ctx context.Context, cancel context.CancelFunc, userID string, ok bool) {
	userID = getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return nil, nil, "", false
	}
	ctx, cancel = context.WithTimeout(r.Context(), b.timeout)
	return ctx, cancel, userID, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
