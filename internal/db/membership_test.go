package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/models"
	"github.com/openvle/messaging/backend/internal/testutil"
)

func setupCourse(t *testing.T, pool *pgxpool.Pool, courseID, name string) {
	t.Helper()
	if err := CreateCourse(context.Background(), pool, &models.Course{CourseID: courseID, Name: name}); err != nil {
		t.Fatalf("Failed to create course %s: %v", courseID, err)
	}
}

func TestCourseMembership(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	alice := createTestUser(t, pool, "alice", "Alice", "Archer", false)
	bob := createTestUser(t, pool, "bob", "Bob", "Baker", false)
	tutor := createTestUser(t, pool, "tina", "Tina", "Tutor", false)

	setupCourse(t, pool, "CS101", "Computing Basics")
	if err := AddCourseMember(ctx, pool, "CS101", alice.ID, false); err != nil {
		t.Fatalf("AddCourseMember failed: %v", err)
	}
	if err := AddCourseMember(ctx, pool, "CS101", bob.ID, false); err != nil {
		t.Fatalf("AddCourseMember failed: %v", err)
	}
	if err := AddCourseMember(ctx, pool, "CS101", tutor.ID, true); err != nil {
		t.Fatalf("AddCourseMember failed: %v", err)
	}

	t.Run("member ids", func(t *testing.T) {
		ids, err := GetCourseMemberIDs(ctx, pool, "CS101")
		if err != nil {
			t.Fatalf("GetCourseMemberIDs failed: %v", err)
		}
		if len(ids) != 3 {
			t.Errorf("Expected 3 members, got %d", len(ids))
		}
	})

	t.Run("co-members exclude self", func(t *testing.T) {
		ids, err := GetCourseCoMemberIDs(ctx, pool, alice.ID)
		if err != nil {
			t.Fatalf("GetCourseCoMemberIDs failed: %v", err)
		}
		found := make(map[string]bool, len(ids))
		for _, id := range ids {
			found[id] = true
		}
		if found[alice.ID] {
			t.Error("Expected alice to be absent from her own co-member set")
		}
		if !found[bob.ID] || !found[tutor.ID] {
			t.Error("Expected both co-members to be present")
		}
	})

	t.Run("tutor detection", func(t *testing.T) {
		isTutor, err := IsTutorInAnyCourse(ctx, pool, tutor.ID)
		if err != nil {
			t.Fatalf("IsTutorInAnyCourse failed: %v", err)
		}
		if !isTutor {
			t.Error("Expected tina to be a tutor")
		}

		isTutor, err = IsTutorInAnyCourse(ctx, pool, alice.ID)
		if err != nil {
			t.Fatalf("IsTutorInAnyCourse failed: %v", err)
		}
		if isTutor {
			t.Error("Expected alice not to be a tutor")
		}
	})

	t.Run("all tutors excluding one", func(t *testing.T) {
		setupCourse(t, pool, "CS102", "More Computing")
		other := createTestUser(t, pool, "tom", "Tom", "Turner", false)
		if err := AddCourseMember(ctx, pool, "CS102", other.ID, true); err != nil {
			t.Fatalf("AddCourseMember failed: %v", err)
		}

		ids, err := GetAllTutorIDs(ctx, pool, tutor.ID)
		if err != nil {
			t.Fatalf("GetAllTutorIDs failed: %v", err)
		}
		if len(ids) != 1 || ids[0] != other.ID {
			t.Errorf("Expected only tom, got %v", ids)
		}
	})
}

func TestGroupMembership(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	alice := createTestUser(t, pool, "alice", "Alice", "Archer", false)
	bob := createTestUser(t, pool, "bob", "Bob", "Baker", false)

	setupCourse(t, pool, "CS101", "Computing Basics")
	if err := CreateGroup(ctx, pool, &models.Group{CourseID: "CS101", GroupID: "g1", Name: "Seminar A"}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if err := AddGroupMember(ctx, pool, "CS101", "g1", alice.ID); err != nil {
		t.Fatalf("AddGroupMember failed: %v", err)
	}
	if err := AddGroupMember(ctx, pool, "CS101", "g1", bob.ID); err != nil {
		t.Fatalf("AddGroupMember failed: %v", err)
	}

	t.Run("group members", func(t *testing.T) {
		ids, err := GetGroupMemberIDs(ctx, pool, "CS101", "g1")
		if err != nil {
			t.Fatalf("GetGroupMemberIDs failed: %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("Expected 2 members, got %d", len(ids))
		}
	})

	t.Run("groups of a user carry names", func(t *testing.T) {
		groups, err := GetGroupsOfUser(ctx, pool, alice.ID)
		if err != nil {
			t.Fatalf("GetGroupsOfUser failed: %v", err)
		}
		if len(groups) != 1 {
			t.Fatalf("Expected 1 group, got %d", len(groups))
		}
		if groups[0].CourseID != "CS101" || groups[0].GroupID != "g1" || groups[0].Name != "Seminar A" {
			t.Errorf("Unexpected group %+v", groups[0])
		}
	})

	t.Run("lookup by id", func(t *testing.T) {
		group, err := GetGroupByID(ctx, pool, "CS101", "g1")
		if err != nil {
			t.Fatalf("GetGroupByID failed: %v", err)
		}
		if group.Name != "Seminar A" {
			t.Errorf("Expected 'Seminar A', got '%s'", group.Name)
		}
	})
}

func TestDirectorySearches(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	createTestUser(t, pool, "alice", "Alice", "Archer", false)
	createTestUser(t, pool, "alina", "Alina", "Arnold", false)
	createTestUser(t, pool, "bob", "Bob", "Baker", false)

	setupCourse(t, pool, "CS101", "Algorithms")
	setupCourse(t, pool, "CS102", "Algebra for Computing")
	if err := CreateGroup(ctx, pool, &models.Group{CourseID: "CS101", GroupID: "g1", Name: "Algo seminar"}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	t.Run("users by substring", func(t *testing.T) {
		users, err := SearchUsers(ctx, pool, "ali")
		if err != nil {
			t.Fatalf("SearchUsers failed: %v", err)
		}
		if len(users) != 2 {
			t.Errorf("Expected 2 users matching 'ali', got %d", len(users))
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		users, err := SearchUsers(ctx, pool, "BAKER")
		if err != nil {
			t.Fatalf("SearchUsers failed: %v", err)
		}
		if len(users) != 1 {
			t.Errorf("Expected 1 user matching 'BAKER', got %d", len(users))
		}
	})

	t.Run("courses and groups", func(t *testing.T) {
		courses, err := SearchCourses(ctx, pool, "alg")
		if err != nil {
			t.Fatalf("SearchCourses failed: %v", err)
		}
		if len(courses) != 2 {
			t.Errorf("Expected 2 courses matching 'alg', got %d", len(courses))
		}

		groups, err := SearchGroups(ctx, pool, "seminar")
		if err != nil {
			t.Fatalf("SearchGroups failed: %v", err)
		}
		if len(groups) != 1 {
			t.Errorf("Expected 1 group matching 'seminar', got %d", len(groups))
		}
	})

	t.Run("course names", func(t *testing.T) {
		names, err := GetCourseNames(ctx, pool, []string{"CS101", "missing"})
		if err != nil {
			t.Fatalf("GetCourseNames failed: %v", err)
		}
		if names["CS101"] != "Algorithms" {
			t.Errorf("Expected 'Algorithms', got '%s'", names["CS101"])
		}
		if _, ok := names["missing"]; ok {
			t.Error("Expected unknown course to be absent")
		}
	})
}
