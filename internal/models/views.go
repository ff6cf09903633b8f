package models

import "time"

// InboxEntry is one inbox row: the delivery record representing a whole
// conversation tree for one user, enriched with display fields.
type InboxEntry struct {
	Item            MessageItem `json:"item"`
	Subject         string      `json:"subject"`
	Sent            time.Time   `json:"sent"`
	TreeID          int64       `json:"tree_id"`
	SenderFirstName string      `json:"-"`
	SenderLastName  string      `json:"-"`
}

// SenderName returns the sender's display name: first name then last name.
func (e *InboxEntry) SenderName() string {
	u := User{FirstName: e.SenderFirstName, LastName: e.SenderLastName}
	return u.DisplayName()
}

// ThreadEntry is one message of a thread as seen by one user: the user's
// delivery record plus the message fields needed for display.
type ThreadEntry struct {
	Item            MessageItem `json:"item"`
	Subject         string      `json:"subject"`
	Body            string      `json:"body"`
	Sent            time.Time   `json:"sent"`
	SenderFirstName string      `json:"-"`
	SenderLastName  string      `json:"-"`
}

// SenderName returns the sender's display name: first name then last name.
func (e *ThreadEntry) SenderName() string {
	u := User{FirstName: e.SenderFirstName, LastName: e.SenderLastName}
	return u.DisplayName()
}

// NotificationEntry is one notification feed row.
type NotificationEntry struct {
	Item    MessageItem `json:"item"`
	Subject string      `json:"subject"`
	Body    string      `json:"body"`
	URL     string      `json:"url"`
	Sent    time.Time   `json:"sent"`
}
