package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/directory"
	"github.com/openvle/messaging/backend/internal/models"
)

// RecipientsHandler handles the directory search used by the recipient picker.
type RecipientsHandler struct {
	pool *pgxpool.Pool
}

// NewRecipientsHandler creates a new RecipientsHandler instance.
func NewRecipientsHandler(pool *pgxpool.Pool) *RecipientsHandler {
	return &RecipientsHandler{pool: pool}
}

// SearchRequest is the body of POST /api/v1/recipients/search. Exclude lists
// directory ids already picked, so they drop out of further results.
type SearchRequest struct {
	Query   string             `json:"query"`
	Exclude []models.Recipient `json:"exclude"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
}

// SearchResponse is the body of POST /api/v1/recipients/search. TotalCount
// counts all matches across users, groups and courses before paging.
type SearchResponse struct {
	Results    []directory.SearchResult `json:"results"`
	TotalCount int                      `json:"total_count"`
}

// Search runs the visibility-filtered directory search over users, groups
// and courses.
func (h *RecipientsHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUserFromContext(w, r)
	if !ok {
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("RecipientsHandler: Failed to decode request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 1 {
		perPage = 10
	}

	results, total, err := directory.Search(ctx, h.pool, req.Query, req.Exclude, user, page-1, perPage)
	if err != nil {
		log.Printf("RecipientsHandler: Failed to search directory: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := SearchResponse{Results: results, TotalCount: total}

	if !WriteJSONResponse(w, response) {
		return
	}
}
