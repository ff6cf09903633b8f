package api

import (
	"net/http"
	"strings"

	"github.com/openvle/messaging/backend/internal/messaging"
)

// ReadHandler resolves message-addressed deep links to the caller's own
// delivery record, so notification URLs can point at a message id without
// knowing who will click them.
type ReadHandler struct {
	service *messaging.Service
}

// NewReadHandler creates a new ReadHandler instance.
func NewReadHandler(service *messaging.Service) *ReadHandler {
	return &ReadHandler{service: service}
}

// GetReadItem handles GET /api/v1/read/{message_id}: returns the id of the
// caller's newest delivery record for that message, 404 when they hold none.
func (h *ReadHandler) GetReadItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUserFromContext(w, r)
	if !ok {
		return
	}

	messageID := strings.TrimPrefix(r.URL.Path, "/api/v1/read/")
	if messageID == "" || strings.Contains(messageID, "/") {
		http.Error(w, "message_id is required", http.StatusBadRequest)
		return
	}

	item, err := h.service.ResolveReadItem(ctx, user, messageID)
	if err != nil {
		WriteStoreError(w, "ReadHandler: Failed to resolve read item", err)
		return
	}

	response := struct {
		ItemID string `json:"item_id"`
	}{ItemID: item.ID}

	if !WriteJSONResponse(w, response) {
		return
	}
}
