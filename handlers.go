// Operator endpoints for quota inspection and administration.
//
// Mount under an internal or authenticated route; these handlers perform no
// authentication themselves:
//
//	r.Mount("/internal/quota", cache.Routes())

package quotakit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type apiError struct {
	Error string `json:"error"`
}

type resetRequest struct {
	Provider string `json:"provider" validate:"required"`
}

// Routes returns a router with the operator endpoints:
//
//	GET  /usage/{userID}?provider=<tier>&limit=<n>  — today's usage, read-only
//	POST /usage/{userID}/reset                      — zero today's counter
//	GET  /stats                                     — cache statistics
func (c *Cache) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/usage/{userID}", c.handleUsage)
	r.Post("/usage/{userID}/reset", c.handleReset)
	r.Get("/stats", c.handleStats)
	return r
}

func (c *Cache) handleUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	provider := r.URL.Query().Get("provider")

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "limit must be an integer"})
		return
	}

	res, err := c.GetCurrentUsage(r.Context(), userID, provider, limit)
	if err != nil {
		writeJSON(w, statusFor(err), apiError{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (c *Cache) handleReset(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "provider is required"})
		return
	}

	if err := c.ResetUsage(r.Context(), userID, req.Provider); err != nil {
		writeJSON(w, statusFor(err), apiError{Error: err.Error()})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *Cache) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Stats())
}

func statusFor(err error) int {
	if errors.Is(err, ErrEmptyUserID) || errors.Is(err, ErrEmptyProvider) || errors.Is(err, ErrNegativeLimit) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
