package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/openvle/messaging/backend/internal/auth"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/models"
)

// GetUserFromContext extracts the authenticated user from the request context
// and writes a 401 when it is missing. Returns (user, true) on success.
// This is a shared helper used across handlers for consistent auth handling.
func GetUserFromContext(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		log.Println("API: No user in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

// ParsePaginationParams parses page and per_page from query parameters.
// Returns default values (page=1, perPage=defaultPerPage) if parameters are
// missing or invalid.
func ParsePaginationParams(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if perPageStr := r.URL.Query().Get("per_page"); perPageStr != "" {
		if parsed, err := strconv.Atoi(perPageStr); err == nil && parsed > 0 {
			perPage = parsed
		}
	}

	return page, perPage
}

// PaginationInfo carries the paging section of list responses.
type PaginationInfo struct {
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
}

// WriteJSONResponse encodes the payload to a buffer first to prevent partial
// writes, then sends it with the JSON content type. Returns false if the
// response could not be fully written.
func WriteJSONResponse(w http.ResponseWriter, payload any) bool {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		log.Printf("API: Failed to encode response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("API: Failed to write response: %v", err)
		return false
	}
	return true
}

// WriteStoreError maps store sentinel errors onto HTTP statuses: a record the
// caller addressed that does not exist is a 404, a record owned by somebody
// else is a 403, anything else is a 500.
func WriteStoreError(w http.ResponseWriter, logPrefix string, err error) {
	switch {
	case errors.Is(err, db.ErrItemNotFound),
		errors.Is(err, db.ErrMessageNotFound),
		errors.Is(err, db.ErrUserNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, db.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		log.Printf("%s: %v", logPrefix, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
