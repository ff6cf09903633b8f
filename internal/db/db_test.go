package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/models"
)

// createTestUser creates a user with a deterministic email derived from the
// username.
func createTestUser(t *testing.T, pool *pgxpool.Pool, username, firstName, lastName string, superuser bool) *models.User {
	t.Helper()

	user := &models.User{
		Username:    username,
		Email:       username + "@example.com",
		FirstName:   firstName,
		LastName:    lastName,
		IsSuperuser: superuser,
	}
	if err := CreateUser(context.Background(), pool, user); err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

// sendTestMessage inserts a message from sender and fans it out to the given
// recipients, including the sender's auto-read source item.
func sendTestMessage(t *testing.T, pool *pgxpool.Pool, sender *models.User, subject string, parent *models.Message, recipients ...*models.User) *models.Message {
	t.Helper()

	ctx := context.Background()
	message := &models.Message{Subject: subject, Body: "body of " + subject, UserID: &sender.ID}
	if parent != nil {
		message.ParentID = &parent.ID
	}
	if err := InsertMessage(ctx, pool, message); err != nil {
		t.Fatalf("Failed to insert message %q: %v", subject, err)
	}

	recipientIDs := make([]string, 0, len(recipients))
	for _, r := range recipients {
		recipientIDs = append(recipientIDs, r.ID)
	}
	if err := CreateMessageItems(ctx, pool, message.ID, recipientIDs); err != nil {
		t.Fatalf("Failed to fan out message %q: %v", subject, err)
	}
	if err := EnsureSourceItem(ctx, pool, message.ID, sender.ID); err != nil {
		t.Fatalf("Failed to create source item for %q: %v", subject, err)
	}

	return message
}

// itemOf looks up the delivery record a user holds for a message.
func itemOf(t *testing.T, pool *pgxpool.Pool, message *models.Message, user *models.User) *models.MessageItem {
	t.Helper()

	var itemID string
	err := pool.QueryRow(context.Background(), `
		SELECT id FROM message_items WHERE message_id = $1 AND user_id = $2
	`, message.ID, user.ID).Scan(&itemID)
	if err != nil {
		t.Fatalf("Failed to find item for message %q, user %s: %v", message.Subject, user.Username, err)
	}

	item, err := GetItemByID(context.Background(), pool, itemID)
	if err != nil {
		t.Fatalf("Failed to load item %s: %v", itemID, err)
	}
	return item
}
