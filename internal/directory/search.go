package directory

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/models"
)

// SearchResult is one recipient-picker entry: a user, group or course.
type SearchResult struct {
	Name string               `json:"name"`
	ID   string               `json:"id"`
	Type models.RecipientType `json:"type"`
}

// Search searches users, groups and courses independently, filters each by
// the caller's visibility and by the exclude list, then merges the three
// result sets sorted by display name and returns one page. The returned
// total is the sum of the three counts before pagination, so it may exceed
// the number of rows returned.
func Search(ctx context.Context, pool *pgxpool.Pool, query string, exclude []models.Recipient, user *models.User, page, perPage int) ([]SearchResult, int, error) {
	users, err := searchUsers(ctx, pool, query, exclude, user)
	if err != nil {
		return nil, 0, err
	}

	groups, err := searchGroups(ctx, pool, query, exclude, user)
	if err != nil {
		return nil, 0, err
	}

	courses, err := searchCourses(ctx, pool, query, exclude, user)
	if err != nil {
		return nil, 0, err
	}

	merged := make([]SearchResult, 0, len(users)+len(groups)+len(courses))
	merged = append(merged, users...)
	merged = append(merged, groups...)
	merged = append(merged, courses...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })

	total := len(users) + len(groups) + len(courses)

	from := page * perPage
	if from > len(merged) {
		from = len(merged)
	}
	to := from + perPage
	if to > len(merged) {
		to = len(merged)
	}

	return merged[from:to], total, nil
}

func searchUsers(ctx context.Context, pool *pgxpool.Pool, query string, exclude []models.Recipient, user *models.User) ([]SearchResult, error) {
	candidates, err := db.SearchUsers(ctx, pool, query)
	if err != nil {
		return nil, err
	}

	var visible map[string]struct{}
	if !user.IsSuperuser {
		visible, err = VisibleUserIDs(ctx, pool, user)
		if err != nil {
			return nil, err
		}
		if len(visible) == 0 {
			return nil, nil
		}
	}

	excluded := make(map[string]struct{})
	for _, r := range exclude {
		if r.Type == models.RecipientUser && r.ID != "" {
			excluded[r.ID] = struct{}{}
		}
	}
	excluded[user.ID] = struct{}{}

	var results []SearchResult
	for _, u := range candidates {
		if _, ok := excluded[u.ID]; ok {
			continue
		}
		if visible != nil {
			if _, ok := visible[u.ID]; !ok {
				continue
			}
		}
		results = append(results, SearchResult{
			Name: u.DisplayName(),
			ID:   u.ID,
			Type: models.RecipientUser,
		})
	}

	return results, nil
}

func searchGroups(ctx context.Context, pool *pgxpool.Pool, query string, exclude []models.Recipient, user *models.User) ([]SearchResult, error) {
	candidates, err := db.SearchGroups(ctx, pool, query)
	if err != nil {
		return nil, err
	}

	// Non-superusers only see groups they are a member of.
	var visible map[string]struct{}
	if !user.IsSuperuser {
		memberOf, err := db.GetGroupsOfUser(ctx, pool, user.ID)
		if err != nil {
			return nil, err
		}
		if len(memberOf) == 0 {
			return nil, nil
		}
		visible = make(map[string]struct{}, len(memberOf))
		for _, g := range memberOf {
			visible[JoinGroupID(g.CourseID, g.GroupID)] = struct{}{}
		}
	}

	excluded := make(map[string]struct{})
	for _, r := range exclude {
		if r.Type == models.RecipientGroup && r.ID != "" {
			excluded[r.ID] = struct{}{}
		}
	}

	var filtered []models.Group
	var courseIDs []string
	for _, g := range candidates {
		id := JoinGroupID(g.CourseID, g.GroupID)
		if _, ok := excluded[id]; ok {
			continue
		}
		if visible != nil {
			if _, ok := visible[id]; !ok {
				continue
			}
		}
		filtered = append(filtered, g)
		courseIDs = append(courseIDs, g.CourseID)
	}

	courseNames, err := db.GetCourseNames(ctx, pool, courseIDs)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, g := range filtered {
		results = append(results, SearchResult{
			Name: courseNames[g.CourseID] + " - " + g.Name + " (Group)",
			ID:   JoinGroupID(g.CourseID, g.GroupID),
			Type: models.RecipientGroup,
		})
	}

	return results, nil
}

func searchCourses(ctx context.Context, pool *pgxpool.Pool, query string, exclude []models.Recipient, user *models.User) ([]SearchResult, error) {
	candidates, err := db.SearchCourses(ctx, pool, query)
	if err != nil {
		return nil, err
	}

	// Non-superusers only see courses they are a member of.
	var visible map[string]struct{}
	if !user.IsSuperuser {
		memberOf, err := db.GetCoursesOfUser(ctx, pool, user.ID)
		if err != nil {
			return nil, err
		}
		if len(memberOf) == 0 {
			return nil, nil
		}
		visible = make(map[string]struct{}, len(memberOf))
		for _, id := range memberOf {
			visible[id] = struct{}{}
		}
	}

	excluded := make(map[string]struct{})
	for _, r := range exclude {
		if r.Type == models.RecipientCourse && r.ID != "" {
			excluded[r.ID] = struct{}{}
		}
	}

	var results []SearchResult
	for _, c := range candidates {
		if _, ok := excluded[c.CourseID]; ok {
			continue
		}
		if visible != nil {
			if _, ok := visible[c.CourseID]; !ok {
				continue
			}
		}
		results = append(results, SearchResult{
			Name: c.Name + " (Module)",
			ID:   c.CourseID,
			Type: models.RecipientCourse,
		})
	}

	return results, nil
}
