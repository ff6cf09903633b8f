package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/models"
)

// CreateTargetUser records that the message was originally addressed to the
// given user. One row per distinct user specifier, regardless of fan-out.
func CreateTargetUser(ctx context.Context, q Querier, messageID, userID string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO message_target_users (message_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, messageID, userID)

	if err != nil {
		return fmt.Errorf("failed to create target user: %w", err)
	}

	return nil
}

// CreateTargetCourse records that the message was originally addressed to
// the given course.
func CreateTargetCourse(ctx context.Context, q Querier, messageID, courseID string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO message_target_courses (message_id, course_id)
		VALUES ($1, $2)
		ON CONFLICT (message_id, course_id) DO NOTHING
	`, messageID, courseID)

	if err != nil {
		return fmt.Errorf("failed to create target course: %w", err)
	}

	return nil
}

// CreateTargetGroup records that the message was originally addressed to the
// given group.
func CreateTargetGroup(ctx context.Context, q Querier, messageID, courseID, groupID string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO message_target_groups (message_id, course_id, group_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, course_id, group_id) DO NOTHING
	`, messageID, courseID, groupID)

	if err != nil {
		return fmt.Errorf("failed to create target group: %w", err)
	}

	return nil
}

// GetTargetUsers returns the message's target users, ascending by user id.
func GetTargetUsers(ctx context.Context, pool *pgxpool.Pool, messageID string) ([]*models.MessageTargetUser, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, message_id, user_id
		FROM message_target_users
		WHERE message_id = $1
		ORDER BY user_id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get target users: %w", err)
	}
	defer rows.Close()

	var targets []*models.MessageTargetUser
	for rows.Next() {
		var t models.MessageTargetUser
		if err := rows.Scan(&t.ID, &t.MessageID, &t.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan target user: %w", err)
		}
		targets = append(targets, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating target users: %w", err)
	}

	return targets, nil
}

// GetTargetGroups returns the message's target groups.
func GetTargetGroups(ctx context.Context, pool *pgxpool.Pool, messageID string) ([]*models.MessageTargetGroup, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, message_id, course_id, group_id
		FROM message_target_groups
		WHERE message_id = $1
		ORDER BY course_id, group_id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get target groups: %w", err)
	}
	defer rows.Close()

	var targets []*models.MessageTargetGroup
	for rows.Next() {
		var t models.MessageTargetGroup
		if err := rows.Scan(&t.ID, &t.MessageID, &t.CourseID, &t.GroupID); err != nil {
			return nil, fmt.Errorf("failed to scan target group: %w", err)
		}
		targets = append(targets, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating target groups: %w", err)
	}

	return targets, nil
}

// GetTargetCourses returns the message's target courses.
func GetTargetCourses(ctx context.Context, pool *pgxpool.Pool, messageID string) ([]*models.MessageTargetCourse, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, message_id, course_id
		FROM message_target_courses
		WHERE message_id = $1
		ORDER BY course_id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get target courses: %w", err)
	}
	defer rows.Close()

	var targets []*models.MessageTargetCourse
	for rows.Next() {
		var t models.MessageTargetCourse
		if err := rows.Scan(&t.ID, &t.MessageID, &t.CourseID); err != nil {
			return nil, fmt.Errorf("failed to scan target course: %w", err)
		}
		targets = append(targets, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating target courses: %w", err)
	}

	return targets, nil
}
