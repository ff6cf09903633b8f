package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/models"
)

// CreateCourse inserts a course directory entry.
func CreateCourse(ctx context.Context, pool *pgxpool.Pool, course *models.Course) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO courses (course_id, name)
		VALUES ($1, $2)
		ON CONFLICT (course_id) DO UPDATE SET name = EXCLUDED.name
	`, course.CourseID, course.Name)

	if err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}

	return nil
}

// DeleteCourse removes a course directory entry. Membership rows are kept:
// target-audit reconstruction degrades by omission when the course is gone.
func DeleteCourse(ctx context.Context, pool *pgxpool.Pool, courseID string) error {
	_, err := pool.Exec(ctx, `DELETE FROM courses WHERE course_id = $1`, courseID)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	return nil
}

// CreateGroup inserts a group directory entry.
func CreateGroup(ctx context.Context, pool *pgxpool.Pool, group *models.Group) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO course_groups (course_id, group_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (course_id, group_id) DO UPDATE SET name = EXCLUDED.name
	`, group.CourseID, group.GroupID, group.Name)

	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	return nil
}

// DeleteGroup removes a group directory entry.
func DeleteGroup(ctx context.Context, pool *pgxpool.Pool, courseID, groupID string) error {
	_, err := pool.Exec(ctx, `
		DELETE FROM course_groups WHERE course_id = $1 AND group_id = $2
	`, courseID, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// AddCourseMember enrols a user in a course, optionally as a tutor.
func AddCourseMember(ctx context.Context, pool *pgxpool.Pool, courseID, userID string, isTutor bool) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO course_members (course_id, user_id, is_tutor)
		VALUES ($1, $2, $3)
		ON CONFLICT (course_id, user_id) DO UPDATE SET is_tutor = EXCLUDED.is_tutor
	`, courseID, userID, isTutor)

	if err != nil {
		return fmt.Errorf("failed to add course member: %w", err)
	}

	return nil
}

// AddGroupMember adds a user to a group within a course.
func AddGroupMember(ctx context.Context, pool *pgxpool.Pool, courseID, groupID, userID string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO group_members (course_id, group_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, courseID, groupID, userID)

	if err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}

	return nil
}

// GetCourseByID returns the course with the given id, or ErrCourseNotFound.
func GetCourseByID(ctx context.Context, pool *pgxpool.Pool, courseID string) (*models.Course, error) {
	var c models.Course
	err := pool.QueryRow(ctx, `
		SELECT course_id, name
		FROM courses
		WHERE course_id = $1
	`, courseID).Scan(&c.CourseID, &c.Name)

	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	return &c, nil
}

// GetGroupByID returns the group with the given composite key.
func GetGroupByID(ctx context.Context, pool *pgxpool.Pool, courseID, groupID string) (*models.Group, error) {
	var g models.Group
	err := pool.QueryRow(ctx, `
		SELECT course_id, group_id, name
		FROM course_groups
		WHERE course_id = $1 AND group_id = $2
	`, courseID, groupID).Scan(&g.CourseID, &g.GroupID, &g.Name)

	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return &g, nil
}

// GetCourseMemberIDs returns the user ids of every member of the course.
// An unknown course yields an empty result, not an error.
func GetCourseMemberIDs(ctx context.Context, pool *pgxpool.Pool, courseID string) ([]string, error) {
	return queryUserIDs(ctx, pool, `
		SELECT user_id
		FROM course_members
		WHERE course_id = $1
	`, courseID)
}

// GetGroupMemberIDs returns the user ids of every member of the group.
// An unknown group yields an empty result, not an error.
func GetGroupMemberIDs(ctx context.Context, pool *pgxpool.Pool, courseID, groupID string) ([]string, error) {
	return queryUserIDs(ctx, pool, `
		SELECT user_id
		FROM group_members
		WHERE course_id = $1 AND group_id = $2
	`, courseID, groupID)
}

// GetCoursesOfUser returns the course ids the user is a member of.
func GetCoursesOfUser(ctx context.Context, pool *pgxpool.Pool, userID string) ([]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT course_id
		FROM course_members
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get courses of user: %w", err)
	}
	defer rows.Close()

	var courseIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan course id: %w", err)
		}
		courseIDs = append(courseIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating course ids: %w", err)
	}

	return courseIDs, nil
}

// GetGroupsOfUser returns the groups the user is a member of.
func GetGroupsOfUser(ctx context.Context, pool *pgxpool.Pool, userID string) ([]models.Group, error) {
	rows, err := pool.Query(ctx, `
		SELECT gm.course_id, gm.group_id, COALESCE(cg.name, '')
		FROM group_members gm
		LEFT JOIN course_groups cg
			ON cg.course_id = gm.course_id
			AND cg.group_id = gm.group_id
		WHERE gm.user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups of user: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.CourseID, &g.GroupID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	return groups, nil
}

// IsTutorInAnyCourse reports whether the user is a tutor in at least one course.
func IsTutorInAnyCourse(ctx context.Context, pool *pgxpool.Pool, userID string) (bool, error) {
	var isTutor bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM course_members
			WHERE user_id = $1 AND is_tutor = TRUE
		)
	`, userID).Scan(&isTutor)

	if err != nil {
		return false, fmt.Errorf("failed to check tutor status: %w", err)
	}

	return isTutor, nil
}

// GetAllTutorIDs returns the ids of every user that is a tutor in at least
// one course, excluding the given user.
func GetAllTutorIDs(ctx context.Context, pool *pgxpool.Pool, excludeUserID string) ([]string, error) {
	return queryUserIDs(ctx, pool, `
		SELECT DISTINCT user_id
		FROM course_members
		WHERE is_tutor = TRUE AND user_id != $1
		ORDER BY 1
	`, excludeUserID)
}

// GetCourseCoMemberIDs returns the ids of every user sharing at least one
// course with the given user, excluding the user themselves. Group membership
// does not widen visibility: only shared courses count.
func GetCourseCoMemberIDs(ctx context.Context, pool *pgxpool.Pool, userID string) ([]string, error) {
	return queryUserIDs(ctx, pool, `
		SELECT DISTINCT cm1.user_id
		FROM course_members cm1
		INNER JOIN course_members cm2
			ON cm2.course_id = cm1.course_id
			AND cm2.user_id = $1
		WHERE cm1.user_id != $1
		ORDER BY 1
	`, userID)
}

func queryUserIDs(ctx context.Context, pool *pgxpool.Pool, sql string, args ...any) ([]string, error) {
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user ids: %w", err)
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

// SearchUsers returns users whose name, username or email contains the query,
// case-insensitively.
func SearchUsers(ctx context.Context, pool *pgxpool.Pool, query string) ([]*models.User, error) {
	pattern := "%" + query + "%"

	rows, err := pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE first_name ILIKE $1
			OR last_name ILIKE $1
			OR username ILIKE $1
			OR email ILIKE $1
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// SearchGroups returns groups whose course id, group id or name contains the
// query, case-insensitively.
func SearchGroups(ctx context.Context, pool *pgxpool.Pool, query string) ([]models.Group, error) {
	pattern := "%" + query + "%"

	rows, err := pool.Query(ctx, `
		SELECT course_id, group_id, name
		FROM course_groups
		WHERE course_id ILIKE $1
			OR group_id ILIKE $1
			OR name ILIKE $1
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.CourseID, &g.GroupID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	return groups, nil
}

// SearchCourses returns courses whose id or name contains the query,
// case-insensitively.
func SearchCourses(ctx context.Context, pool *pgxpool.Pool, query string) ([]models.Course, error) {
	pattern := "%" + query + "%"

	rows, err := pool.Query(ctx, `
		SELECT course_id, name
		FROM courses
		WHERE course_id ILIKE $1
			OR name ILIKE $1
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search courses: %w", err)
	}
	defer rows.Close()

	var courses []models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.CourseID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating courses: %w", err)
	}

	return courses, nil
}

// GetCourseNames maps the given course ids to their names. Unknown courses
// are absent from the result.
func GetCourseNames(ctx context.Context, pool *pgxpool.Pool, courseIDs []string) (map[string]string, error) {
	names := make(map[string]string)
	if len(courseIDs) == 0 {
		return names, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT course_id, name
		FROM courses
		WHERE course_id = ANY($1)
	`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get course names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan course name: %w", err)
		}
		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating course names: %w", err)
	}

	return names, nil
}
