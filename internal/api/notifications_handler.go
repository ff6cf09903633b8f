package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/messaging"
	"github.com/openvle/messaging/backend/internal/models"
)

// NotificationsHandler handles the notification listing, the trusted
// notification-creation endpoint and single-item read marking.
type NotificationsHandler struct {
	pool    *pgxpool.Pool
	service *messaging.Service
}

// NewNotificationsHandler creates a new NotificationsHandler instance.
func NewNotificationsHandler(pool *pgxpool.Pool, service *messaging.Service) *NotificationsHandler {
	return &NotificationsHandler{pool: pool, service: service}
}

// NotificationRow is one notification in the listing.
type NotificationRow struct {
	ItemID      string `json:"item_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	URL         string `json:"url"`
	Sent        string `json:"sent"`
	SentDisplay string `json:"sent_display"`
	Read        bool   `json:"read"`
}

// NotificationsResponse is the body of GET /api/v1/notifications.
type NotificationsResponse struct {
	Notifications []NotificationRow `json:"notifications"`
	Pagination    PaginationInfo    `json:"pagination"`
}

// GetNotifications returns the caller's undeleted notifications, newest
// first, paged.
func (h *NotificationsHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUserFromContext(w, r)
	if !ok {
		return
	}

	page, perPage := ParsePaginationParams(r, 20)

	entries, total, err := db.GetNotifications(ctx, h.pool, user.ID)
	if err != nil {
		log.Printf("NotificationsHandler: Failed to get notifications: %v", err)
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

	now := time.Now()
	rows := make([]NotificationRow, 0, end-start)
	for _, e := range entries[start:end] {
		rows = append(rows, NotificationRow{
			ItemID:      e.Item.ID,
			Subject:     e.Subject,
			Body:        e.Body,
			URL:         e.URL,
			Sent:        e.Sent.Format(time.RFC3339),
			SentDisplay: models.FormatSent(e.Sent, now),
			Read:        e.Item.IsRead(),
		})
	}

	response := NotificationsResponse{
		Notifications: rows,
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

// PostNotificationRequest is the body of the trusted POST /api/v1/notifications.
type PostNotificationRequest struct {
	Usernames []string `json:"usernames"`
	URL       string   `json:"url"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
}

// PostNotification creates a notification for the named users. Guarded by
// basic auth at the router, not by the bearer middleware: the callers are
// other backend systems, not end users.
func (h *NotificationsHandler) PostNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PostNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("NotificationsHandler: Failed to decode request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Usernames) == 0 {
		http.Error(w, "usernames is required", http.StatusBadRequest)
		return
	}
	if req.Subject == "" {
		http.Error(w, "subject is required", http.StatusBadRequest)
		return
	}

	message, err := h.service.SendNotification(ctx, req.Usernames, req.URL, req.Subject, req.Body)
	if err != nil {
		log.Printf("NotificationsHandler: Failed to send notification: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := struct {
		Success   bool   `json:"success"`
		MessageID string `json:"message_id"`
	}{Success: true, MessageID: message.ID}

	if !WriteJSONResponse(w, response) {
		return
	}
}

// MarkReadRequest is the body of POST /api/v1/notifications/read.
type MarkReadRequest struct {
	ItemID string `json:"item_id"`
}

// MarkRead marks one of the caller's delivery records read. Already-read
// records are left untouched.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUserFromContext(w, r)
	if !ok {
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("NotificationsHandler: Failed to decode request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ItemID == "" {
		http.Error(w, "item_id is required", http.StatusBadRequest)
		return
	}

	if err := h.service.MarkItemRead(ctx, user, req.ItemID); err != nil {
		WriteStoreError(w, "NotificationsHandler: Failed to mark item read", err)
		return
	}

	response := struct {
		Success bool `json:"success"`
	}{Success: true}

	if !WriteJSONResponse(w, response) {
		return
	}
}
