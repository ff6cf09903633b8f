package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/models"
)

// ErrUserNotFound is returned when a requested user cannot be found.
var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, username, email, first_name, last_name, is_superuser, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.IsSuperuser,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user and populates its ID.
func CreateUser(ctx context.Context, pool *pgxpool.Pool, user *models.User) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO users (username, email, first_name, last_name, is_superuser)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, user.Username, user.Email, user.FirstName, user.LastName, user.IsSuperuser).
		Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID returns the user with the given id.
func GetUserByID(ctx context.Context, pool *pgxpool.Pool, userID string) (*models.User, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, userID)
	return scanUser(row)
}

// GetUserByUsername returns the user with the given username.
func GetUserByUsername(ctx context.Context, pool *pgxpool.Pool, username string) (*models.User, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)
	return scanUser(row)
}

// GetUsersByIDs returns the users with the given ids, keyed by id.
// Unknown ids are simply absent from the result.
func GetUsersByIDs(ctx context.Context, pool *pgxpool.Pool, userIDs []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User)
	if len(userIDs) == 0 {
		return users, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users[u.ID] = u
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// FilterExistingUserIDs returns the subset of the given ids that belong to
// existing users. Unknown ids are dropped silently.
func FilterExistingUserIDs(ctx context.Context, pool *pgxpool.Pool, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT id
		FROM users
		WHERE id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to filter user ids: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		existing = append(existing, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user ids: %w", err)
	}

	return existing, nil
}

// GetUserIDsByUsernames maps the given usernames to user ids.
// Unknown usernames are simply absent from the result.
func GetUserIDsByUsernames(ctx context.Context, pool *pgxpool.Pool, usernames []string) (map[string]string, error) {
	ids := make(map[string]string)
	if len(usernames) == 0 {
		return ids, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT username, id
		FROM users
		WHERE username = ANY($1)
	`, usernames)
	if err != nil {
		return nil, fmt.Errorf("failed to get user ids by usernames: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var username, id string
		if err := rows.Scan(&username, &id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids[username] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user ids: %w", err)
	}

	return ids, nil
}

// GetNonSuperuserIDs returns the ids of every user that is not a superuser.
// Used for broadcast fan-out: superusers are never auto-subscribed.
func GetNonSuperuserIDs(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT id
		FROM users
		WHERE is_superuser = FALSE
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get non-superuser ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user ids: %w", err)
	}

	return ids, nil
}

// GetUserEmails returns the email addresses of the given users, skipping
// users without an email address.
func GetUserEmails(ctx context.Context, pool *pgxpool.Pool, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT email
		FROM users
		WHERE id = ANY($1) AND email <> ''
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get user emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emails: %w", err)
	}

	return emails, nil
}
