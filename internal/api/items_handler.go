package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/openvle/messaging/backend/internal/messaging"
)

// ItemsHandler handles soft-deletion of delivery records.
type ItemsHandler struct {
	service *messaging.Service
}

// NewItemsHandler creates a new ItemsHandler instance.
func NewItemsHandler(service *messaging.Service) *ItemsHandler {
	return &ItemsHandler{service: service}
}

// DeleteRequest is the body of POST /api/v1/items/delete. Thread=true deletes
// every record the caller holds across the item's message tree.
type DeleteRequest struct {
	ItemID string `json:"item_id"`
	Thread bool   `json:"thread"`
}

// Delete soft-deletes a delivery record, or the caller's whole thread.
// The records stay in the store; they just stop appearing in listings.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUserFromContext(w, r)
	if !ok {
		return
	}

	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ItemsHandler: Failed to decode request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ItemID == "" {
		http.Error(w, "item_id is required", http.StatusBadRequest)
		return
	}

	isNotification, err := h.service.DeleteItem(ctx, user, req.ItemID, req.Thread)
	if err != nil {
		WriteStoreError(w, "ItemsHandler: Failed to delete item", err)
		return
	}

	response := struct {
		Success      bool `json:"success"`
		Notification bool `json:"notification"`
	}{Success: true, Notification: isNotification}

	if !WriteJSONResponse(w, response) {
		return
	}
}
