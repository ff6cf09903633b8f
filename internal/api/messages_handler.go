package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/messaging"
	"github.com/openvle/messaging/backend/internal/models"
)

// MessagesHandler handles message sending API requests.
type MessagesHandler struct {
	pool    *pgxpool.Pool
	service *messaging.Service
}

// NewMessagesHandler creates a new MessagesHandler instance.
func NewMessagesHandler(pool *pgxpool.Pool, service *messaging.Service) *MessagesHandler {
	return &MessagesHandler{pool: pool, service: service}
}

// SendMessageRequest is the body of POST /api/v1/messages. ItemID, when set,
// names the caller's own delivery record of the message being replied to.
type SendMessageRequest struct {
	Recipients []models.Recipient `json:"recipients"`
	Subject    string             `json:"subject"`
	Body       string             `json:"body"`
	ItemID     string             `json:"item_id"`
	TargetAll  bool               `json:"target_all"`
	SendEmail  bool               `json:"send_email"`
}

// SendMessage sends a new message or a reply. Broadcasts (target_all) are
// limited to superusers; everyone else gets a 403 regardless of recipients.
func (h *MessagesHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUserFromContext(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("MessagesHandler: Failed to decode request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Subject == "" || req.Body == "" {
		http.Error(w, "subject and body are required", http.StatusBadRequest)
		return
	}

	var parent *models.Message
	if req.ItemID != "" {
		item, err := h.service.GetItemForUser(ctx, user, req.ItemID)
		if err != nil {
			WriteStoreError(w, "MessagesHandler: Failed to resolve reply item", err)
			return
		}
		parent, err = db.GetMessageByID(ctx, h.pool, item.MessageID)
		if err != nil {
			WriteStoreError(w, "MessagesHandler: Failed to load parent message", err)
			return
		}
	}

	var message *models.Message
	var err error
	if req.TargetAll {
		if !user.IsSuperuser {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		message, err = h.service.SendBroadcast(ctx, user, req.Subject, req.Body, parent)
	} else {
		message, err = h.service.SendMessage(ctx, user, req.Recipients, req.Subject, req.Body, parent, req.SendEmail)
	}
	if err != nil {
		WriteStoreError(w, "MessagesHandler: Failed to send message", err)
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
