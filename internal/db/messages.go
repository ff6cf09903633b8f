package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/models"
)

// ErrMessageNotFound is returned when a requested message cannot be found.
var ErrMessageNotFound = errors.New("message not found")

// Querier is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx.
// Insert paths that must run inside the send transaction take a Querier so the
// same functions work against either.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const messageColumns = `id, user_id, is_notification, url, subject, body, sent, target_all, parent_id, tree_id, level, lft, rgt`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.IsNotification,
		&m.URL,
		&m.Subject,
		&m.Body,
		&m.Sent,
		&m.TargetAll,
		&m.ParentID,
		&m.TreeID,
		&m.Level,
		&m.Lft,
		&m.Rgt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	return &m, nil
}

// InsertMessage inserts a message and maintains the tree fields.
//
// A message without a parent starts a new tree: it gets a fresh tree id,
// level 0 and the interval [1, 2]. A reply inherits its parent's tree id,
// gets level = parent.level + 1 and is placed as the parent's last child,
// shifting the intervals of everything to its right. The parent row is
// locked for the duration so concurrent replies to one tree serialize.
//
// This is the only code that writes tree_id, level, lft or rgt.
func InsertMessage(ctx context.Context, q Querier, message *models.Message) error {
	if message.ParentID == nil {
		err := q.QueryRow(ctx, `
			INSERT INTO messages (user_id, is_notification, url, subject, body, target_all, parent_id, tree_id, level, lft, rgt)
			VALUES ($1, $2, $3, $4, $5, $6, NULL, nextval('message_tree_id_seq'), 0, 1, 2)
			RETURNING id, sent, tree_id, level, lft, rgt
		`, message.UserID, message.IsNotification, message.URL, message.Subject, message.Body, message.TargetAll).
			Scan(&message.ID, &message.Sent, &message.TreeID, &message.Level, &message.Lft, &message.Rgt)

		if err != nil {
			return fmt.Errorf("failed to insert root message: %w", err)
		}

		return nil
	}

	var treeID int64
	var parentLevel, parentRgt int
	err := q.QueryRow(ctx, `
		SELECT tree_id, level, rgt
		FROM messages
		WHERE id = $1
		FOR UPDATE
	`, *message.ParentID).Scan(&treeID, &parentLevel, &parentRgt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock parent message: %w", err)
	}

	if _, err := q.Exec(ctx, `
		UPDATE messages SET rgt = rgt + 2 WHERE tree_id = $1 AND rgt >= $2
	`, treeID, parentRgt); err != nil {
		return fmt.Errorf("failed to shift tree intervals: %w", err)
	}

	if _, err := q.Exec(ctx, `
		UPDATE messages SET lft = lft + 2 WHERE tree_id = $1 AND lft > $2
	`, treeID, parentRgt); err != nil {
		return fmt.Errorf("failed to shift tree intervals: %w", err)
	}

	err = q.QueryRow(ctx, `
		INSERT INTO messages (user_id, is_notification, url, subject, body, target_all, parent_id, tree_id, level, lft, rgt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, sent
	`, message.UserID, message.IsNotification, message.URL, message.Subject, message.Body, message.TargetAll,
		*message.ParentID, treeID, parentLevel+1, parentRgt, parentRgt+1).
		Scan(&message.ID, &message.Sent)

	if err != nil {
		return fmt.Errorf("failed to insert reply message: %w", err)
	}

	message.TreeID = treeID
	message.Level = parentLevel + 1
	message.Lft = parentRgt
	message.Rgt = parentRgt + 1

	return nil
}

// GetMessageByID returns the message with the given id.
func GetMessageByID(ctx context.Context, pool *pgxpool.Pool, messageID string) (*models.Message, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1
	`, messageID)
	return scanMessage(row)
}

// GetAncestorChain returns the message and its ancestors, closest first
// (message itself, then its parent, up to the tree root). Used to render the
// thread history in outgoing mail.
func GetAncestorChain(ctx context.Context, pool *pgxpool.Pool, message *models.Message) ([]*models.Message, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE tree_id = $1 AND lft <= $2 AND rgt >= $3
		ORDER BY lft DESC
	`, message.TreeID, message.Lft, message.Rgt)
	if err != nil {
		return nil, fmt.Errorf("failed to get ancestor chain: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// SetMessageSent overwrites a message's sent timestamp. Authors backdating
// messages reorders inbox display without touching tree structure; kept for
// parity with the legacy system and for test fixtures.
func SetMessageSent(ctx context.Context, pool *pgxpool.Pool, messageID string, sent time.Time) error {
	tag, err := pool.Exec(ctx, `
		UPDATE messages SET sent = $2 WHERE id = $1
	`, messageID, sent)
	if err != nil {
		return fmt.Errorf("failed to set message sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// SaveAttachment records an opaque attachment reference for a message.
func SaveAttachment(ctx context.Context, q Querier, attachment *models.Attachment) error {
	err := q.QueryRow(ctx, `
		INSERT INTO message_attachments (message_id, filename, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, attachment.MessageID, attachment.Filename, attachment.MimeType, attachment.SizeBytes).
		Scan(&attachment.ID)

	if err != nil {
		return fmt.Errorf("failed to save attachment: %w", err)
	}

	return nil
}

// GetAttachmentsForMessage returns the attachment references of a message.
func GetAttachmentsForMessage(ctx context.Context, pool *pgxpool.Pool, messageID string) ([]*models.Attachment, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, message_id, filename, mime_type, size_bytes
		FROM message_attachments
		WHERE message_id = $1
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Filename, &a.MimeType, &a.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	return attachments, nil
}
