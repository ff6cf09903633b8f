package models

import "time"

// RecipientType tags a recipient specifier as a user, a group or a course.
type RecipientType string

const (
	RecipientUser   RecipientType = "u"
	RecipientGroup  RecipientType = "g"
	RecipientCourse RecipientType = "c"
)

// GroupIDDelimiter separates the course id from the group id in a composite
// group specifier, e.g. "c002::g001".
const GroupIDDelimiter = "::"

// Recipient is one entry of a recipient specification as submitted by a
// sender: a user id, a composite group id or a course id, tagged by type.
type Recipient struct {
	ID   string        `json:"id"`
	Type RecipientType `json:"type"`
}

// Message is one authored message or one system notification. Tree fields
// (TreeID, Level, Lft, Rgt) group all messages of a conversation and are
// maintained exclusively by the insert path in the db package.
type Message struct {
	ID             string     `json:"id"`
	UserID         *string    `json:"user_id,omitempty"`
	IsNotification bool       `json:"is_notification"`
	URL            string     `json:"url,omitempty"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	Sent           time.Time  `json:"sent"`
	TargetAll      bool       `json:"target_all"`
	ParentID       *string    `json:"parent_id,omitempty"`
	TreeID         int64      `json:"tree_id"`
	Level          int        `json:"level"`
	Lft            int        `json:"lft"`
	Rgt            int        `json:"rgt"`
}

// SentDisplay formats the sent timestamp for list views: just the time of day
// if the message was sent today, otherwise the weekday and date.
func (m *Message) SentDisplay(now time.Time) string {
	return FormatSent(m.Sent, now)
}

// FormatSent is SentDisplay for timestamps carried outside a Message.
func FormatSent(sent, now time.Time) string {
	sent = sent.In(now.Location())
	if sent.Year() == now.Year() && sent.YearDay() == now.YearDay() {
		return sent.Format("15:04")
	}
	return sent.Format("Mon 02/01")
}

// MessageItem is the per-recipient delivery record: the only mutable per-user
// state, layered over the shared immutable Message. Read and Deleted are nil
// until the owner marks the item.
type MessageItem struct {
	ID        string     `json:"id"`
	MessageID string     `json:"message_id"`
	UserID    string     `json:"user_id"`
	Source    bool       `json:"source"`
	Read      *time.Time `json:"read,omitempty"`
	Deleted   *time.Time `json:"deleted,omitempty"`
}

// IsRead reports whether the item has been marked read.
func (mi *MessageItem) IsRead() bool { return mi.Read != nil }

// IsDeleted reports whether the item has been soft-deleted.
func (mi *MessageItem) IsDeleted() bool { return mi.Deleted != nil }

// MessageTargetUser records that a message was originally addressed to a user.
// Target rows are immutable audit data used only for reply prefill.
type MessageTargetUser struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
}

// MessageTargetCourse records that a message was originally addressed to a course.
type MessageTargetCourse struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	CourseID  string `json:"course_id"`
}

// MessageTargetGroup records that a message was originally addressed to a group.
type MessageTargetGroup struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	CourseID  string `json:"course_id"`
	GroupID   string `json:"group_id"`
}

// Attachment is an opaque file reference owned by a message. Blob storage is
// handled elsewhere; the backend only tracks the reference.
type Attachment struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}
