// Package directory resolves recipient specifiers against the membership
// directory and enforces who may see and message whom.
package directory

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/models"
)

// SplitRecipients partitions a recipient specification into user, group and
// course id lists. Entries with an empty id or an unknown type are dropped.
func SplitRecipients(recipients []models.Recipient) (userIDs, groupIDs, courseIDs []string) {
	for _, r := range recipients {
		if r.ID == "" {
			continue
		}
		switch r.Type {
		case models.RecipientUser:
			userIDs = append(userIDs, r.ID)
		case models.RecipientGroup:
			groupIDs = append(groupIDs, r.ID)
		case models.RecipientCourse:
			courseIDs = append(courseIDs, r.ID)
		}
	}
	return userIDs, groupIDs, courseIDs
}

// SplitGroupID splits a composite group specifier into its course and group
// ids. Returns false for malformed specifiers.
func SplitGroupID(id string) (courseID, groupID string, ok bool) {
	parts := strings.SplitN(id, models.GroupIDDelimiter, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// JoinGroupID builds the composite group specifier for a course/group pair.
func JoinGroupID(courseID, groupID string) string {
	return courseID + models.GroupIDDelimiter + groupID
}

// ExpandRecipients expands user, group and course ids into a deduplicated
// set of user ids. A user reachable through several specifiers appears once.
// Unknown or malformed ids are dropped silently: a send proceeds with
// whatever resolves.
func ExpandRecipients(ctx context.Context, pool *pgxpool.Pool, userIDs, groupIDs, courseIDs []string) (map[string]struct{}, error) {
	resolved := make(map[string]struct{})

	existing, err := db.FilterExistingUserIDs(ctx, pool, userIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range existing {
		resolved[id] = struct{}{}
	}

	for _, id := range groupIDs {
		courseID, groupID, ok := SplitGroupID(id)
		if !ok {
			continue
		}
		members, err := db.GetGroupMemberIDs(ctx, pool, courseID, groupID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			resolved[m] = struct{}{}
		}
	}

	for _, id := range courseIDs {
		members, err := db.GetCourseMemberIDs(ctx, pool, id)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			resolved[m] = struct{}{}
		}
	}

	return resolved, nil
}
