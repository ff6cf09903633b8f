package db

import (
	"context"
	"errors"
	"testing"

	"github.com/openvle/messaging/backend/internal/testutil"
)

func TestGetUserByUsername(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	alice := createTestUser(t, pool, "alice", "Alice", "Archer", false)

	t.Run("existing user", func(t *testing.T) {
		user, err := GetUserByUsername(ctx, pool, "alice")
		if err != nil {
			t.Fatalf("GetUserByUsername failed: %v", err)
		}
		if user.ID != alice.ID {
			t.Errorf("Expected user %s, got %s", alice.ID, user.ID)
		}
		if user.DisplayName() != "Alice Archer" {
			t.Errorf("Expected display name 'Alice Archer', got '%s'", user.DisplayName())
		}
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := GetUserByUsername(ctx, pool, "nobody")
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("Expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestFilterExistingUserIDs(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	alice := createTestUser(t, pool, "alice", "Alice", "Archer", false)
	bob := createTestUser(t, pool, "bob", "Bob", "Baker", false)

	missing := "00000000-0000-0000-0000-000000000000"
	ids, err := FilterExistingUserIDs(ctx, pool, []string{alice.ID, missing, bob.ID})
	if err != nil {
		t.Fatalf("FilterExistingUserIDs failed: %v", err)
	}

	if len(ids) != 2 {
		t.Fatalf("Expected 2 ids, got %d", len(ids))
	}
	for _, id := range ids {
		if id == missing {
			t.Error("Expected the unknown id to be dropped")
		}
	}

	ids, err = FilterExistingUserIDs(ctx, pool, nil)
	if err != nil {
		t.Fatalf("FilterExistingUserIDs failed on empty input: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no ids for empty input, got %d", len(ids))
	}
}

func TestGetUserIDsByUsernames(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	alice := createTestUser(t, pool, "alice", "Alice", "Archer", false)
	createTestUser(t, pool, "bob", "Bob", "Baker", false)

	ids, err := GetUserIDsByUsernames(ctx, pool, []string{"alice", "alice", "ghost"})
	if err != nil {
		t.Fatalf("GetUserIDsByUsernames failed: %v", err)
	}

	if len(ids) != 1 {
		t.Fatalf("Expected 1 resolved username, got %d", len(ids))
	}
	if ids["alice"] != alice.ID {
		t.Errorf("Expected alice to resolve to %s, got %s", alice.ID, ids["alice"])
	}
	if _, ok := ids["ghost"]; ok {
		t.Error("Expected unknown username to be absent")
	}
}

func TestGetNonSuperuserIDs(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	alice := createTestUser(t, pool, "alice", "Alice", "Archer", false)
	bob := createTestUser(t, pool, "bob", "Bob", "Baker", false)
	admin := createTestUser(t, pool, "admin", "Ada", "Admin", true)

	ids, err := GetNonSuperuserIDs(ctx, pool)
	if err != nil {
		t.Fatalf("GetNonSuperuserIDs failed: %v", err)
	}

	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		found[id] = true
	}
	if !found[alice.ID] || !found[bob.ID] {
		t.Error("Expected both regular users to be included")
	}
	if found[admin.ID] {
		t.Error("Expected the superuser to be excluded")
	}
}

func TestGetUserEmails(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	alice := createTestUser(t, pool, "alice", "Alice", "Archer", false)

	noEmail := createTestUser(t, pool, "quiet", "Quiet", "Person", false)
	if _, err := pool.Exec(ctx, `UPDATE users SET email = '' WHERE id = $1`, noEmail.ID); err != nil {
		t.Fatalf("Failed to clear email: %v", err)
	}

	emails, err := GetUserEmails(ctx, pool, []string{alice.ID, noEmail.ID})
	if err != nil {
		t.Fatalf("GetUserEmails failed: %v", err)
	}

	if len(emails) != 1 {
		t.Fatalf("Expected 1 email, got %d", len(emails))
	}
	if emails[0] != "alice@example.com" {
		t.Errorf("Expected 'alice@example.com', got '%s'", emails[0])
	}
}
