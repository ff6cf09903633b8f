package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/messaging"
	"github.com/openvle/messaging/backend/internal/models"
	"github.com/openvle/messaging/backend/internal/testutil"
)

func TestGetReadItemHandler(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	alice := createAPIUser(t, pool, "alice", "Alice", "Archer", false)
	bob := createAPIUser(t, pool, "bob", "Bob", "Baker", false)
	carol := createAPIUser(t, pool, "carol", "Carol", "Chase", false)

	service := messaging.NewService(pool, nil, "")
	handler := NewReadHandler(service)

	message, err := service.SendMessage(ctx, alice,
		[]models.Recipient{{ID: bob.ID, Type: models.RecipientUser}},
		"Deep link", "body", nil, false)
	assert.NoError(t, err)

	t.Run("requires auth", func(t *testing.T) {
		VerifyAuthCheck(t, handler.GetReadItem, http.MethodGet, "/api/v1/read/"+message.ID)
	})

	t.Run("resolves the caller's delivery record", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/read/"+message.ID, nil, bob)
		rr := httptest.NewRecorder()

		handler.GetReadItem(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			ItemID string `json:"item_id"`
		}
		decodeResponse(t, rr, &resp)

		item, err := db.GetNewestItemForMessage(ctx, pool, message.ID, bob.ID)
		assert.NoError(t, err)
		assert.Equal(t, item.ID, resp.ItemID)
	})

	t.Run("each user resolves their own record", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/read/"+message.ID, nil, alice)
		rr := httptest.NewRecorder()

		handler.GetReadItem(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			ItemID string `json:"item_id"`
		}
		decodeResponse(t, rr, &resp)

		bobItem, err := db.GetNewestItemForMessage(ctx, pool, message.ID, bob.ID)
		assert.NoError(t, err)
		assert.NotEqual(t, bobItem.ID, resp.ItemID)
	})

	t.Run("non-recipient is a 404", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/read/"+message.ID, nil, carol)
		rr := httptest.NewRecorder()

		handler.GetReadItem(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("unknown message is a 404", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/read/00000000-0000-0000-0000-000000000000", nil, bob)
		rr := httptest.NewRecorder()

		handler.GetReadItem(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("empty message id is a 400", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/read/", nil, bob)
		rr := httptest.NewRecorder()

		handler.GetReadItem(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
