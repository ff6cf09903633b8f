package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/openvle/messaging/backend/internal/auth"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/models"
)

// createAPIUser creates a user for handler tests.
func createAPIUser(t *testing.T, pool *pgxpool.Pool, username, firstName, lastName string, superuser bool) *models.User {
	t.Helper()

	user := &models.User{
		Username:    username,
		Email:       username + "@example.com",
		FirstName:   firstName,
		LastName:    lastName,
		IsSuperuser: superuser,
	}
	if err := db.CreateUser(context.Background(), pool, user); err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

// createRequestWithUser creates an HTTP request with the user in context, the
// way the auth middleware would leave it.
func createRequestWithUser(method, url string, body io.Reader, user *models.User) *http.Request {
	req := httptest.NewRequest(method, url, body)
	ctx := context.WithValue(req.Context(), auth.UserKey, user)
	return req.WithContext(ctx)
}

// jsonBody marshals a request payload for handler tests.
func jsonBody(t *testing.T, payload any) io.Reader {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	return bytes.NewReader(data)
}

// decodeResponse unmarshals a recorded JSON response.
func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
}

// VerifyAuthCheck verifies that the handler returns 401 Unauthorized when no user is in context.
func VerifyAuthCheck(t *testing.T, handlerFunc http.HandlerFunc, method, url string) {
	t.Helper()
	req := httptest.NewRequest(method, url, nil)
	rr := httptest.NewRecorder()
	handlerFunc(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected status 401 when no user in context")
}
