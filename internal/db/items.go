package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/models"
)

// ErrItemNotFound is returned when a delivery record does not exist at all.
var ErrItemNotFound = errors.New("message item not found")

// ErrForbidden is returned when a delivery record exists but belongs to a
// different user than the caller. Kept distinct from ErrItemNotFound so the
// API layer can map them to different status codes.
var ErrForbidden = errors.New("message item belongs to another user")

const itemColumns = `id, message_id, user_id, source, read, deleted`

func scanItem(row pgx.Row) (*models.MessageItem, error) {
	var mi models.MessageItem
	err := row.Scan(
		&mi.ID,
		&mi.MessageID,
		&mi.UserID,
		&mi.Source,
		&mi.Read,
		&mi.Deleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan message item: %w", err)
	}
	return &mi, nil
}

// CreateMessageItems fans a message out to the given users: one delivery
// record per user. Duplicate user ids collapse into a single record.
func CreateMessageItems(ctx context.Context, q Querier, messageID string, userIDs []string) error {
	for _, userID := range userIDs {
		if _, err := q.Exec(ctx, `
			INSERT INTO message_items (message_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (message_id, user_id) DO NOTHING
		`, messageID, userID); err != nil {
			return fmt.Errorf("failed to create message item: %w", err)
		}
	}
	return nil
}

// EnsureSourceItem creates the sender's own delivery record, pre-marked read,
// unless the sender already received the message as a recipient.
func EnsureSourceItem(ctx context.Context, q Querier, messageID, senderID string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO message_items (message_id, user_id, source, read)
		VALUES ($1, $2, TRUE, NOW())
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, messageID, senderID)

	if err != nil {
		return fmt.Errorf("failed to create source item: %w", err)
	}

	return nil
}

// GetItemByID returns the delivery record with the given id.
func GetItemByID(ctx context.Context, pool *pgxpool.Pool, itemID string) (*models.MessageItem, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM message_items
		WHERE id = $1
	`, itemID)
	return scanItem(row)
}

// GetItemForUser returns the delivery record with the given id if it belongs
// to the given user. A record that does not exist yields ErrItemNotFound; a
// record owned by someone else yields ErrForbidden.
func GetItemForUser(ctx context.Context, pool *pgxpool.Pool, itemID, userID string) (*models.MessageItem, error) {
	item, err := GetItemByID(ctx, pool, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, ErrForbidden
	}
	return item, nil
}

// GetNewestItemForMessage returns the user's delivery record for the given
// message, used to resolve notification deep links to a thread view.
func GetNewestItemForMessage(ctx context.Context, pool *pgxpool.Pool, messageID, userID string) (*models.MessageItem, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM message_items
		WHERE message_id = $1 AND user_id = $2
	`, messageID, userID)
	return scanItem(row)
}

// threadSQL selects, for the delivery record mi1, every delivery record of
// the same user across the whole message tree that is not soft-deleted.
// Notifications never participate in threads.
const threadSQL = `
	FROM message_items mi1
	INNER JOIN messages m1
		ON m1.id = mi1.message_id
		AND m1.is_notification = FALSE
	INNER JOIN messages m2
		ON m2.tree_id = m1.tree_id
		AND m2.is_notification = FALSE
	INNER JOIN message_items mi2
		ON mi2.message_id = m2.id
		AND mi2.user_id = mi1.user_id
		AND mi2.deleted IS NULL
	LEFT JOIN users u
		ON u.id = m2.user_id
	WHERE mi1.id = $1
`

// GetThread returns the thread seen from the given delivery record: every
// undeleted record of the record's owner across the record's message tree,
// newest first by message sent time, plus the count. A record whose entire
// tree is deleted for its owner yields an empty thread.
func GetThread(ctx context.Context, pool *pgxpool.Pool, itemID string) ([]*models.ThreadEntry, int, error) {
	rows, err := pool.Query(ctx, `
		SELECT mi2.id, mi2.message_id, mi2.user_id, mi2.source, mi2.read, mi2.deleted,
			m2.subject, m2.body, m2.sent,
			COALESCE(u.first_name, ''), COALESCE(u.last_name, '')
		`+threadSQL+`
		ORDER BY m2.sent DESC
	`, itemID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get thread: %w", err)
	}
	defer rows.Close()

	var entries []*models.ThreadEntry
	for rows.Next() {
		var e models.ThreadEntry
		if err := rows.Scan(
			&e.Item.ID,
			&e.Item.MessageID,
			&e.Item.UserID,
			&e.Item.Source,
			&e.Item.Read,
			&e.Item.Deleted,
			&e.Subject,
			&e.Body,
			&e.Sent,
			&e.SenderFirstName,
			&e.SenderLastName,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan thread entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating thread entries: %w", err)
	}

	return entries, len(entries), nil
}

// MarkAllRead sets read=now on every given delivery record that is still
// unread. Already-read records keep their original timestamp, so the
// operation is idempotent and order-independent.
func MarkAllRead(ctx context.Context, pool *pgxpool.Pool, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	_, err := pool.Exec(ctx, `
		UPDATE message_items
		SET read = NOW()
		WHERE id = ANY($1) AND read IS NULL
	`, itemIDs)

	if err != nil {
		return fmt.Errorf("failed to mark items read: %w", err)
	}

	return nil
}

// MarkAllDeleted soft-deletes every given delivery record that is not
// already deleted. Records are never hard-deleted.
func MarkAllDeleted(ctx context.Context, pool *pgxpool.Pool, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	_, err := pool.Exec(ctx, `
		UPDATE message_items
		SET deleted = NOW()
		WHERE id = ANY($1) AND deleted IS NULL
	`, itemIDs)

	if err != nil {
		return fmt.Errorf("failed to mark items deleted: %w", err)
	}

	return nil
}

// MarkThreadDeleted soft-deletes every undeleted delivery record the user
// holds across the given message tree. Other users' views of the tree are
// unaffected.
func MarkThreadDeleted(ctx context.Context, pool *pgxpool.Pool, userID string, treeID int64) error {
	_, err := pool.Exec(ctx, `
		UPDATE message_items mi
		SET deleted = NOW()
		FROM messages m
		WHERE m.id = mi.message_id
			AND m.is_notification = FALSE
			AND m.tree_id = $2
			AND mi.user_id = $1
			AND mi.deleted IS NULL
	`, userID, treeID)

	if err != nil {
		return fmt.Errorf("failed to mark thread deleted: %w", err)
	}

	return nil
}

// inboxSQL selects one delivery record per conversation tree for a user: the
// record of the most recently sent message in the tree for which the user
// still holds an undeleted, non-source record. Trees where the user only
// holds source records (sent but never replied to) do not appear.
const inboxSQL = `
	FROM message_items mi
	INNER JOIN messages m
		ON mi.message_id = m.id
	INNER JOIN users u
		ON u.id = m.user_id
	WHERE mi.user_id = $1
		AND m.is_notification = FALSE
		AND m.id = (
			SELECT m1.id
			FROM messages m1
			INNER JOIN message_items mi1
				ON mi1.message_id = m1.id
			WHERE mi1.user_id = mi.user_id
				AND m1.is_notification = FALSE
				AND m1.tree_id = m.tree_id
				AND mi1.deleted IS NULL
				AND mi1.source = FALSE
			ORDER BY m1.sent DESC
			LIMIT 1
		)
`

// InboxSort maps a (sort field, sort direction) pair to an ORDER BY clause.
// Sender ordering is by the sender's first name then last name.
var inboxOrderBy = map[string]string{
	"date asc":    "m.sent",
	"date desc":   "m.sent DESC",
	"sender asc":  "u.first_name, u.last_name",
	"sender desc": "u.first_name DESC, u.last_name DESC",
}

// GetInbox returns one row per conversation tree for the user, sorted by
// sent time or sender name, plus the number of trees. An unknown sort
// combination falls back to newest-first by date.
func GetInbox(ctx context.Context, pool *pgxpool.Pool, userID, sortField, sortDir string) ([]*models.InboxEntry, int, error) {
	orderBy, ok := inboxOrderBy[sortField+" "+sortDir]
	if !ok {
		orderBy = inboxOrderBy["date desc"]
	}

	rows, err := pool.Query(ctx, `
		SELECT mi.id, mi.message_id, mi.user_id, mi.source, mi.read, mi.deleted,
			m.subject, m.sent, m.tree_id, u.first_name, u.last_name
		`+inboxSQL+`
		ORDER BY `+orderBy, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get inbox: %w", err)
	}
	defer rows.Close()

	var entries []*models.InboxEntry
	for rows.Next() {
		var e models.InboxEntry
		if err := rows.Scan(
			&e.Item.ID,
			&e.Item.MessageID,
			&e.Item.UserID,
			&e.Item.Source,
			&e.Item.Read,
			&e.Item.Deleted,
			&e.Subject,
			&e.Sent,
			&e.TreeID,
			&e.SenderFirstName,
			&e.SenderLastName,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan inbox entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating inbox entries: %w", err)
	}

	return entries, len(entries), nil
}

// GetNotifications returns the user's undeleted notification records, newest
// first by message sent time, plus the total.
func GetNotifications(ctx context.Context, pool *pgxpool.Pool, userID string) ([]*models.NotificationEntry, int, error) {
	rows, err := pool.Query(ctx, `
		SELECT mi.id, mi.message_id, mi.user_id, mi.source, mi.read, mi.deleted,
			m.subject, m.body, m.url, m.sent
		FROM message_items mi
		INNER JOIN messages m
			ON mi.message_id = m.id
		WHERE mi.user_id = $1
			AND m.is_notification = TRUE
			AND mi.deleted IS NULL
		ORDER BY m.sent DESC
	`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var entries []*models.NotificationEntry
	for rows.Next() {
		var e models.NotificationEntry
		if err := rows.Scan(
			&e.Item.ID,
			&e.Item.MessageID,
			&e.Item.UserID,
			&e.Item.Source,
			&e.Item.Read,
			&e.Item.Deleted,
			&e.Subject,
			&e.Body,
			&e.URL,
			&e.Sent,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating notification entries: %w", err)
	}

	return entries, len(entries), nil
}

// UndeletedCountPerTree counts the user's undeleted delivery records per
// given tree, notifications excluded. An empty tree id set yields an empty
// map without querying.
func UndeletedCountPerTree(ctx context.Context, pool *pgxpool.Pool, userID string, treeIDs []int64) (map[int64]int, error) {
	return countPerTree(ctx, pool, userID, treeIDs, false)
}

// UnreadCountPerTree counts the user's unread, undeleted delivery records
// per given tree, notifications excluded.
func UnreadCountPerTree(ctx context.Context, pool *pgxpool.Pool, userID string, treeIDs []int64) (map[int64]int, error) {
	return countPerTree(ctx, pool, userID, treeIDs, true)
}

func countPerTree(ctx context.Context, pool *pgxpool.Pool, userID string, treeIDs []int64, excludeRead bool) (map[int64]int, error) {
	counts := make(map[int64]int)
	if len(treeIDs) == 0 {
		return counts, nil
	}

	unreadClause := ""
	if excludeRead {
		unreadClause = "AND mi.read IS NULL"
	}

	rows, err := pool.Query(ctx, `
		SELECT m.tree_id, COUNT(mi.id)
		FROM message_items mi
		INNER JOIN messages m
			ON mi.message_id = m.id
		WHERE mi.user_id = $1
			AND m.is_notification = FALSE
			AND m.tree_id = ANY($2)
			AND mi.deleted IS NULL
			`+unreadClause+`
		GROUP BY m.tree_id
	`, userID, treeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count items per tree: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var treeID int64
		var count int
		if err := rows.Scan(&treeID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tree count: %w", err)
		}
		counts[treeID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tree counts: %w", err)
	}

	return counts, nil
}

// GetUnreadCount returns the number of unread, undeleted delivery records
// the user holds, either for notifications or for regular messages.
func GetUnreadCount(ctx context.Context, pool *pgxpool.Pool, userID string, notifications bool) (int, error) {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT COUNT(mi.id)
		FROM message_items mi
		INNER JOIN messages m
			ON mi.message_id = m.id
		WHERE mi.user_id = $1
			AND m.is_notification = $2
			AND mi.read IS NULL
			AND mi.deleted IS NULL
	`, userID, notifications).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count unread items: %w", err)
	}

	return count, nil
}
