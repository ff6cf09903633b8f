package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/messaging"
	"github.com/openvle/messaging/backend/internal/testutil"
)

func TestNotificationsHandler(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	bob := createAPIUser(t, pool, "bob", "Bob", "Baker", false)

	service := messaging.NewService(pool, nil, "")
	handler := NewNotificationsHandler(pool, service)

	t.Run("create then list", func(t *testing.T) {
		body := jsonBody(t, PostNotificationRequest{
			Usernames: []string{"bob", "ghost"},
			URL:       "/course/cs101",
			Subject:   "Grade posted",
			Body:      "See your result",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", body)
		rr := httptest.NewRecorder()

		handler.PostNotification(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		listReq := createRequestWithUser(http.MethodGet, "/api/v1/notifications", nil, bob)
		listRR := httptest.NewRecorder()

		handler.GetNotifications(listRR, listReq)

		assert.Equal(t, http.StatusOK, listRR.Code)

		var resp NotificationsResponse
		decodeResponse(t, listRR, &resp)
		assert.Equal(t, 1, resp.Pagination.TotalCount)
		assert.Equal(t, "Grade posted", resp.Notifications[0].Subject)
		assert.Equal(t, "/course/cs101", resp.Notifications[0].URL)
		assert.False(t, resp.Notifications[0].Read)
	})

	t.Run("create requires usernames and subject", func(t *testing.T) {
		body := jsonBody(t, PostNotificationRequest{Subject: "No recipients"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", body)
		rr := httptest.NewRecorder()
		handler.PostNotification(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		body = jsonBody(t, PostNotificationRequest{Usernames: []string{"bob"}})
		req = httptest.NewRequest(http.MethodPost, "/api/v1/notifications", body)
		rr = httptest.NewRecorder()
		handler.PostNotification(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("mark read", func(t *testing.T) {
		message, err := service.SendNotification(ctx, []string{"bob"}, "/z", "Unread note", "body")
		assert.NoError(t, err)
		item, err := db.GetNewestItemForMessage(ctx, pool, message.ID, bob.ID)
		assert.NoError(t, err)

		body := jsonBody(t, MarkReadRequest{ItemID: item.ID})
		req := createRequestWithUser(http.MethodPost, "/api/v1/notifications/read", body, bob)
		rr := httptest.NewRecorder()

		handler.MarkRead(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		updated, err := db.GetItemByID(ctx, pool, item.ID)
		assert.NoError(t, err)
		assert.True(t, updated.IsRead())
	})

	t.Run("mark read on a missing item is a 404", func(t *testing.T) {
		body := jsonBody(t, MarkReadRequest{ItemID: "00000000-0000-0000-0000-000000000000"})
		req := createRequestWithUser(http.MethodPost, "/api/v1/notifications/read", body, bob)
		rr := httptest.NewRecorder()

		handler.MarkRead(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
