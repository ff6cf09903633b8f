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

func TestGetThreadHandler(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	alice := createAPIUser(t, pool, "alice", "Alice", "Archer", false)
	bob := createAPIUser(t, pool, "bob", "Bob", "Baker", false)

	service := messaging.NewService(pool, nil, "")
	handler := NewThreadHandler(pool, service)

	root, err := service.SendMessage(ctx, alice,
		[]models.Recipient{{ID: bob.ID, Type: models.RecipientUser}},
		"Root", "first", nil, false)
	assert.NoError(t, err)
	_, err = service.SendMessage(ctx, alice,
		[]models.Recipient{{ID: bob.ID, Type: models.RecipientUser}},
		"Re: Root", "second", root, false)
	assert.NoError(t, err)

	bobItem, err := db.GetNewestItemForMessage(ctx, pool, root.ID, bob.ID)
	assert.NoError(t, err)

	t.Run("requires auth", func(t *testing.T) {
		VerifyAuthCheck(t, handler.GetThread, http.MethodGet, "/api/v1/thread?item_id=x")
	})

	t.Run("requires item_id", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/thread", nil, bob)
		rr := httptest.NewRecorder()
		handler.GetThread(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("returns the thread and marks it read", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/thread?item_id="+bobItem.ID, nil, bob)
		rr := httptest.NewRecorder()

		handler.GetThread(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp ThreadResponse
		decodeResponse(t, rr, &resp)
		assert.Equal(t, 2, resp.TotalCount)
		assert.Len(t, resp.Messages, 2)
		assert.Equal(t, "Re: Root", resp.Messages[0].Subject)
		assert.Equal(t, "Alice Archer", resp.Messages[0].Sender)
		// The response reflects the pre-mark state.
		assert.False(t, resp.Messages[0].Read)

		count, err := db.GetUnreadCount(ctx, pool, bob.ID, false)
		assert.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("foreign item is a 403", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet, "/api/v1/thread?item_id="+bobItem.ID, nil, alice)
		rr := httptest.NewRecorder()
		handler.GetThread(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("missing item is a 404", func(t *testing.T) {
		req := createRequestWithUser(http.MethodGet,
			"/api/v1/thread?item_id=00000000-0000-0000-0000-000000000000", nil, bob)
		rr := httptest.NewRecorder()
		handler.GetThread(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestGetReplyInfoHandler(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	alice := createAPIUser(t, pool, "alice", "Alice", "Archer", false)
	bob := createAPIUser(t, pool, "bob", "Bob", "Baker", false)

	service := messaging.NewService(pool, nil, "")
	handler := NewThreadHandler(pool, service)

	message, err := service.SendMessage(ctx, alice,
		[]models.Recipient{{ID: bob.ID, Type: models.RecipientUser}},
		"Question", "What about...", nil, false)
	assert.NoError(t, err)

	bobItem, err := db.GetNewestItemForMessage(ctx, pool, message.ID, bob.ID)
	assert.NoError(t, err)

	req := createRequestWithUser(http.MethodGet, "/api/v1/reply-info?item_id="+bobItem.ID, nil, bob)
	rr := httptest.NewRecorder()

	handler.GetReplyInfo(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp messaging.ReplyInfo
	decodeResponse(t, rr, &resp)
	assert.Equal(t, "Alice Archer", resp.Sender)
	assert.Equal(t, "Question", resp.Subject)
	assert.Len(t, resp.Recipients, 1)
	assert.Equal(t, alice.ID, resp.Recipients[0].ID)
}
