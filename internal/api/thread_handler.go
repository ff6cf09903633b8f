package api

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/messaging"
	"github.com/openvle/messaging/backend/internal/models"
)

// ThreadHandler handles thread reconstruction and reply prefill requests.
type ThreadHandler struct {
	pool    *pgxpool.Pool
	service *messaging.Service
}

// NewThreadHandler creates a new ThreadHandler instance.
func NewThreadHandler(pool *pgxpool.Pool, service *messaging.Service) *ThreadHandler {
	return &ThreadHandler{pool: pool, service: service}
}

// ThreadRow is one message of a reconstructed thread, from the caller's
// perspective. Read reflects the state before the view marked it.
type ThreadRow struct {
	ItemID      string `json:"item_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Sender      string `json:"sender"`
	Sent        string `json:"sent"`
	SentDisplay string `json:"sent_display"`
	Read        bool   `json:"read"`
}

// ThreadResponse is the body of GET /api/v1/thread.
type ThreadResponse struct {
	Messages   []ThreadRow `json:"messages"`
	TotalCount int         `json:"total_count"`
}

// GetThread returns the caller's view of the thread the given item belongs
// to, newest first, and marks every returned item read.
func (h *ThreadHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUserFromContext(w, r)
	if !ok {
		return
	}

	itemID := r.URL.Query().Get("item_id")
	if itemID == "" {
		http.Error(w, "item_id query parameter is required", http.StatusBadRequest)
		return
	}

	entries, total, err := h.service.GetThread(ctx, user, itemID)
	if err != nil {
		WriteStoreError(w, "ThreadHandler: Failed to get thread", err)
		return
	}

	now := time.Now()
	rows := make([]ThreadRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, ThreadRow{
			ItemID:      e.Item.ID,
			Subject:     e.Subject,
			Body:        e.Body,
			Sender:      e.SenderName(),
			Sent:        e.Sent.Format(time.RFC3339),
			SentDisplay: models.FormatSent(e.Sent, now),
			Read:        e.Item.IsRead(),
		})
	}

	response := ThreadResponse{Messages: rows, TotalCount: total}

	if !WriteJSONResponse(w, response) {
		return
	}
}

// GetReplyInfo returns the prefill data for replying to the message behind
// the given item: original sender, reconstructed recipient list, subject
// and body.
func (h *ThreadHandler) GetReplyInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUserFromContext(w, r)
	if !ok {
		return
	}

	itemID := r.URL.Query().Get("item_id")
	if itemID == "" {
		http.Error(w, "item_id query parameter is required", http.StatusBadRequest)
		return
	}

	info, err := h.service.GetReplyInfo(ctx, user, itemID)
	if err != nil {
		WriteStoreError(w, "ThreadHandler: Failed to get reply info", err)
		return
	}

	if !WriteJSONResponse(w, info) {
		return
	}
}
