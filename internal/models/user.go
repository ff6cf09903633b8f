package models

import (
	"strings"
	"time"
)

// User represents a platform user as known to the user directory.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayName returns the user's name as shown in inbox rows and search
// results: first name then last name.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Course is a directory entry for a course.
type Course struct {
	CourseID string `json:"course_id"`
	Name     string `json:"name"`
}

// Group is a directory entry for a group within a course.
type Group struct {
	CourseID string `json:"course_id"`
	GroupID  string `json:"group_id"`
	Name     string `json:"name"`
}
