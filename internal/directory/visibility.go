package directory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/models"
)

// VisibleUserIDs returns the set of user ids the given user may target:
// everyone sharing at least one course with them, plus — if the user is a
// tutor in any course — every other tutor in any course. The user's own id
// is never included.
//
// Superusers bypass visibility entirely; callers check IsSuperuser and skip
// this filter rather than calling it.
func VisibleUserIDs(ctx context.Context, pool *pgxpool.Pool, user *models.User) (map[string]struct{}, error) {
	visible := make(map[string]struct{})

	coMembers, err := db.GetCourseCoMemberIDs(ctx, pool, user.ID)
	if err != nil {
		return nil, err
	}
	for _, id := range coMembers {
		visible[id] = struct{}{}
	}

	isTutor, err := db.IsTutorInAnyCourse(ctx, pool, user.ID)
	if err != nil {
		return nil, err
	}
	if isTutor {
		tutors, err := db.GetAllTutorIDs(ctx, pool, user.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range tutors {
			visible[id] = struct{}{}
		}
	}

	return visible, nil
}
