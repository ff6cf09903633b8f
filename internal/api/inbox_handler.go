package api

import (
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/models"
)

// InboxHandler handles the inbox listing and the unread badge count.
type InboxHandler struct {
	pool *pgxpool.Pool
}

// NewInboxHandler creates a new InboxHandler instance.
func NewInboxHandler(pool *pgxpool.Pool) *InboxHandler {
	return &InboxHandler{pool: pool}
}

// InboxRow is one thread in the inbox listing: the newest delivery record
// the user holds in that tree, plus per-tree counts.
type InboxRow struct {
	ItemID      string `json:"item_id"`
	Subject     string `json:"subject"`
	Sender      string `json:"sender"`
	Sent        string `json:"sent"`
	SentDisplay string `json:"sent_display"`
	Read        bool   `json:"read"`
	TreeID      int64  `json:"tree_id"`
	TotalCount  int    `json:"total_count"`
	UnreadCount int    `json:"unread_count"`
}

// InboxResponse is the body of GET /api/v1/inbox.
type InboxResponse struct {
	Threads    []InboxRow     `json:"threads"`
	Pagination PaginationInfo `json:"pagination"`
}

// GetInbox returns one row per message tree, paged, with per-tree undeleted
// and unread counts fetched for the page's trees only.
func (h *InboxHandler) GetInbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUserFromContext(w, r)
	if !ok {
		return
	}

	sortField := r.URL.Query().Get("sort_field")
	sortDir := r.URL.Query().Get("sort_dir")
	page, perPage := ParsePaginationParams(r, 20)

	entries, total, err := db.GetInbox(ctx, h.pool, user.ID, sortField, sortDir)
	if err != nil {
		log.Printf("InboxHandler: Failed to get inbox: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	start := (page - 1) * perPage
	if start > len(entries) {
		start = len(entries)
	}
	end := start + perPage
	if end > len(entries) {
		end = len(entries)
	}
	pageEntries := entries[start:end]

	treeIDs := make([]int64, 0, len(pageEntries))
	for _, e := range pageEntries {
		treeIDs = append(treeIDs, e.TreeID)
	}

	totals, err := db.UndeletedCountPerTree(ctx, h.pool, user.ID, treeIDs)
	if err != nil {
		log.Printf("InboxHandler: Failed to get per-tree totals: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	unreads, err := db.UnreadCountPerTree(ctx, h.pool, user.ID, treeIDs)
	if err != nil {
		log.Printf("InboxHandler: Failed to get per-tree unread counts: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	rows := make([]InboxRow, 0, len(pageEntries))
	for _, e := range pageEntries {
		rows = append(rows, InboxRow{
			ItemID:      e.Item.ID,
			Subject:     e.Subject,
			Sender:      e.SenderName(),
			Sent:        e.Sent.Format(time.RFC3339),
			SentDisplay: models.FormatSent(e.Sent, now),
			Read:        e.Item.IsRead(),
			TreeID:      e.TreeID,
			TotalCount:  totals[e.TreeID],
			UnreadCount: unreads[e.TreeID],
		})
	}

	response := InboxResponse{
		Threads: rows,
		Pagination: PaginationInfo{
			TotalCount: total,
			Page:       page,
			PerPage:    perPage,
		},
	}

	if !WriteJSONResponse(w, response) {
		return
	}
}

// GetUnreadCount returns the badge count of unread, undeleted items. The
// notifications query parameter switches between the two scopes.
func (h *InboxHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUserFromContext(w, r)
	if !ok {
		return
	}

	notifications := r.URL.Query().Get("notifications") == "true"

	count, err := db.GetUnreadCount(ctx, h.pool, user.ID, notifications)
	if err != nil {
		log.Printf("InboxHandler: Failed to get unread count: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := struct {
		Count int `json:"count"`
	}{Count: count}

	if !WriteJSONResponse(w, response) {
		return
	}
}
