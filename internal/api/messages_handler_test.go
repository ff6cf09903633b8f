package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/messaging"
	"github.com/openvle/messaging/backend/internal/models"
	"github.com/openvle/messaging/backend/internal/testutil"
)

func TestSendMessageHandler(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	alice := createAPIUser(t, pool, "alice", "Alice", "Archer", false)
	bob := createAPIUser(t, pool, "bob", "Bob", "Baker", false)
	admin := createAPIUser(t, pool, "admin", "Ada", "Admin", true)

	service := messaging.NewService(pool, nil, "")
	handler := NewMessagesHandler(pool, service)

	t.Run("requires auth", func(t *testing.T) {
		VerifyAuthCheck(t, handler.SendMessage, http.MethodPost, "/api/v1/messages")
	})

	t.Run("sends to recipients", func(t *testing.T) {
		body := jsonBody(t, SendMessageRequest{
			Recipients: []models.Recipient{{ID: bob.ID, Type: models.RecipientUser}},
			Subject:    "Hello",
			Body:       "World",
		})
		req := createRequestWithUser(http.MethodPost, "/api/v1/messages", body, alice)
		rr := httptest.NewRecorder()

		handler.SendMessage(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Success   bool   `json:"success"`
			MessageID string `json:"message_id"`
		}
		decodeResponse(t, rr, &resp)
		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.MessageID)

		item, err := db.GetNewestItemForMessage(ctx, pool, resp.MessageID, bob.ID)
		assert.NoError(t, err)
		assert.False(t, item.IsRead())
	})

	t.Run("rejects broadcast from regular users", func(t *testing.T) {
		body := jsonBody(t, SendMessageRequest{
			Subject:   "To everyone",
			Body:      "hi",
			TargetAll: true,
		})
		req := createRequestWithUser(http.MethodPost, "/api/v1/messages", body, alice)
		rr := httptest.NewRecorder()

		handler.SendMessage(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("superuser broadcast", func(t *testing.T) {
		body := jsonBody(t, SendMessageRequest{
			Subject:   "Maintenance",
			Body:      "tonight",
			TargetAll: true,
		})
		req := createRequestWithUser(http.MethodPost, "/api/v1/messages", body, admin)
		rr := httptest.NewRecorder()

		handler.SendMessage(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("requires subject and body", func(t *testing.T) {
		body := jsonBody(t, SendMessageRequest{
			Recipients: []models.Recipient{{ID: bob.ID, Type: models.RecipientUser}},
		})
		req := createRequestWithUser(http.MethodPost, "/api/v1/messages", body, alice)
		rr := httptest.NewRecorder()

		handler.SendMessage(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		req := createRequestWithUser(http.MethodPost, "/api/v1/messages", strings.NewReader("{"), alice)
		rr := httptest.NewRecorder()

		handler.SendMessage(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("reply item ownership", func(t *testing.T) {
		message, err := service.SendMessage(ctx, alice,
			[]models.Recipient{{ID: bob.ID, Type: models.RecipientUser}},
			"Root", "body", nil, false)
		assert.NoError(t, err)

		bobItem, err := db.GetNewestItemForMessage(ctx, pool, message.ID, bob.ID)
		assert.NoError(t, err)

		// Replying through someone else's item is forbidden.
		body := jsonBody(t, SendMessageRequest{
			Recipients: []models.Recipient{{ID: bob.ID, Type: models.RecipientUser}},
			Subject:    "Re: Root",
			Body:       "reply",
			ItemID:     bobItem.ID,
		})
		req := createRequestWithUser(http.MethodPost, "/api/v1/messages", body, alice)
		rr := httptest.NewRecorder()
		handler.SendMessage(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)

		// A reply through a nonexistent item is a 404.
		body = jsonBody(t, SendMessageRequest{
			Recipients: []models.Recipient{{ID: bob.ID, Type: models.RecipientUser}},
			Subject:    "Re: Root",
			Body:       "reply",
			ItemID:     "00000000-0000-0000-0000-000000000000",
		})
		req = createRequestWithUser(http.MethodPost, "/api/v1/messages", body, alice)
		rr = httptest.NewRecorder()
		handler.SendMessage(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		// The recipient can reply through their own item.
		body = jsonBody(t, SendMessageRequest{
			Recipients: []models.Recipient{{ID: alice.ID, Type: models.RecipientUser}},
			Subject:    "Re: Root",
			Body:       "reply",
			ItemID:     bobItem.ID,
		})
		req = createRequestWithUser(http.MethodPost, "/api/v1/messages", body, bob)
		rr = httptest.NewRecorder()
		handler.SendMessage(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
