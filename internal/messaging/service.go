// Package messaging implements the send, thread and delete operations that
// span the message store, the membership directory and the mail transport.
package messaging

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/directory"
	"github.com/openvle/messaging/backend/internal/mail"
	"github.com/openvle/messaging/backend/internal/models"
)

// Service owns the multi-step messaging operations. Reads that are a single
// query (inbox, notifications, counts) go straight to the db package.
type Service struct {
	pool    *pgxpool.Pool
	mailer  mail.Sender
	wwwRoot string
}

// NewService creates a messaging service. mailer may be nil, in which case
// sends never produce email.
func NewService(pool *pgxpool.Pool, mailer mail.Sender, wwwRoot string) *Service {
	return &Service{pool: pool, mailer: mailer, wwwRoot: wwwRoot}
}

// SendMessage fans a message out to the resolved recipients.
//
// The message row, every delivery record and every target-audit row are
// created in one transaction, so readers never observe a partially
// fanned-out message. Unknown recipient ids resolve to nothing and are
// dropped; the send proceeds with whatever remains. If sendEmail is set,
// the thread is emailed to all resolved recipients after commit, best
// effort: transport failures are logged and never reach the caller.
func (s *Service) SendMessage(ctx context.Context, sender *models.User, recipients []models.Recipient, subject, body string, parent *models.Message, sendEmail bool) (*models.Message, error) {
	userIDs, groupIDs, courseIDs := directory.SplitRecipients(recipients)

	resolved, err := directory.ExpandRecipients(ctx, s.pool, userIDs, groupIDs, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to expand recipients: %w", err)
	}

	// Target-audit rows reference the original specifiers, not the fan-out,
	// but unknown direct user ids are dropped from both.
	targetUserIDs, err := db.FilterExistingUserIDs(ctx, s.pool, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target users: %w", err)
	}

	message := &models.Message{Subject: subject, Body: body, UserID: &sender.ID}
	if parent != nil {
		message.ParentID = &parent.ID
	}

	resolvedIDs := make([]string, 0, len(resolved))
	for id := range resolved {
		resolvedIDs = append(resolvedIDs, id)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := db.InsertMessage(ctx, tx, message); err != nil {
		return nil, err
	}

	if err := db.CreateMessageItems(ctx, tx, message.ID, resolvedIDs); err != nil {
		return nil, err
	}

	if err := db.EnsureSourceItem(ctx, tx, message.ID, sender.ID); err != nil {
		return nil, err
	}

	for _, id := range targetUserIDs {
		if err := db.CreateTargetUser(ctx, tx, message.ID, id); err != nil {
			return nil, err
		}
	}
	for _, id := range courseIDs {
		if err := db.CreateTargetCourse(ctx, tx, message.ID, id); err != nil {
			return nil, err
		}
	}
	for _, id := range groupIDs {
		courseID, groupID, ok := directory.SplitGroupID(id)
		if !ok {
			continue
		}
		if err := db.CreateTargetGroup(ctx, tx, message.ID, courseID, groupID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit send: %w", err)
	}

	if sendEmail && s.mailer != nil {
		go s.emailThread(context.WithoutCancel(ctx), message, sender, resolvedIDs)
	}

	return message, nil
}

// SendBroadcast fans a message out to every non-superuser in the system.
// No target-audit rows are recorded. The caller is responsible for having
// verified the sender's privilege; the store does not re-check.
func (s *Service) SendBroadcast(ctx context.Context, sender *models.User, subject, body string, parent *models.Message) (*models.Message, error) {
	recipientIDs, err := db.GetNonSuperuserIDs(ctx, s.pool)
	if err != nil {
		return nil, err
	}

	message := &models.Message{Subject: subject, Body: body, UserID: &sender.ID, TargetAll: true}
	if parent != nil {
		message.ParentID = &parent.ID
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := db.InsertMessage(ctx, tx, message); err != nil {
		return nil, err
	}

	if err := db.CreateMessageItems(ctx, tx, message.ID, recipientIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit broadcast: %w", err)
	}

	return message, nil
}

// SendNotification creates an authorless notification message and delivers
// it to the named users. Duplicate usernames collapse to one record and
// unknown usernames are skipped.
func (s *Service) SendNotification(ctx context.Context, usernames []string, url, subject, body string) (*models.Message, error) {
	ids, err := db.GetUserIDsByUsernames(ctx, s.pool, usernames)
	if err != nil {
		return nil, err
	}

	recipientIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		recipientIDs = append(recipientIDs, id)
	}

	message := &models.Message{IsNotification: true, URL: url, Subject: subject, Body: body}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := db.InsertMessage(ctx, tx, message); err != nil {
		return nil, err
	}

	if err := db.CreateMessageItems(ctx, tx, message.ID, recipientIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit notification: %w", err)
	}

	return message, nil
}

// GetItemForUser resolves a delivery record id for the given user,
// distinguishing a record that does not exist (db.ErrItemNotFound) from one
// owned by somebody else (db.ErrForbidden).
func (s *Service) GetItemForUser(ctx context.Context, user *models.User, itemID string) (*models.MessageItem, error) {
	return db.GetItemForUser(ctx, s.pool, itemID, user.ID)
}

// GetThread returns the thread the given delivery record belongs to, from
// the owner's perspective, and then marks every returned record read. The
// returned entries carry the read flags as they were before marking.
func (s *Service) GetThread(ctx context.Context, user *models.User, itemID string) ([]*models.ThreadEntry, int, error) {
	if _, err := db.GetItemForUser(ctx, s.pool, itemID, user.ID); err != nil {
		return nil, 0, err
	}

	entries, total, err := db.GetThread(ctx, s.pool, itemID)
	if err != nil {
		return nil, 0, err
	}

	var unreadIDs []string
	for _, e := range entries {
		if !e.Item.IsRead() {
			unreadIDs = append(unreadIDs, e.Item.ID)
		}
	}
	if err := db.MarkAllRead(ctx, s.pool, unreadIDs); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// MarkItemRead marks a single delivery record read, if it belongs to the
// given user. Re-marking a read record is a no-op.
func (s *Service) MarkItemRead(ctx context.Context, user *models.User, itemID string) error {
	item, err := db.GetItemForUser(ctx, s.pool, itemID, user.ID)
	if err != nil {
		return err
	}
	return db.MarkAllRead(ctx, s.pool, []string{item.ID})
}

// DeleteItem soft-deletes one delivery record or, when wholeThread is set,
// every record the user holds across the record's message tree. Returns
// whether the record's message was a notification, for response wording.
func (s *Service) DeleteItem(ctx context.Context, user *models.User, itemID string, wholeThread bool) (bool, error) {
	item, err := db.GetItemForUser(ctx, s.pool, itemID, user.ID)
	if err != nil {
		return false, err
	}

	message, err := db.GetMessageByID(ctx, s.pool, item.MessageID)
	if err != nil {
		return false, err
	}

	if wholeThread {
		if err := db.MarkThreadDeleted(ctx, s.pool, user.ID, message.TreeID); err != nil {
			return false, err
		}
	} else {
		if err := db.MarkAllDeleted(ctx, s.pool, []string{item.ID}); err != nil {
			return false, err
		}
	}

	return message.IsNotification, nil
}

// ResolveReadItem maps a message id to the calling user's delivery record
// for it, used by deep links that address messages rather than records.
func (s *Service) ResolveReadItem(ctx context.Context, user *models.User, messageID string) (*models.MessageItem, error) {
	if _, err := db.GetMessageByID(ctx, s.pool, messageID); err != nil {
		return nil, err
	}
	return db.GetNewestItemForMessage(ctx, s.pool, messageID, user.ID)
}

// ReplyInfo is everything needed to prefill a reply: the original sender,
// the reconstructed recipient list, and the original subject and body.
type ReplyInfo struct {
	Sender     string                   `json:"sender"`
	Recipients []directory.SearchResult `json:"recipients"`
	Subject    string                   `json:"subject"`
	Body       string                   `json:"body"`
}

// GetReplyInfo reconstructs the original recipient list of the message the
// given delivery record points at: the sender first, then target users in
// ascending id order (excluding the sender and the caller), then target
// groups, then target courses. Directory entries that no longer resolve are
// omitted rather than failing the operation.
func (s *Service) GetReplyInfo(ctx context.Context, user *models.User, itemID string) (*ReplyInfo, error) {
	item, err := db.GetItemForUser(ctx, s.pool, itemID, user.ID)
	if err != nil {
		return nil, err
	}

	message, err := db.GetMessageByID(ctx, s.pool, item.MessageID)
	if err != nil {
		return nil, err
	}

	info := &ReplyInfo{Subject: message.Subject, Body: message.Body}

	var senderID string
	if message.UserID != nil {
		senderID = *message.UserID
		sender, err := db.GetUserByID(ctx, s.pool, senderID)
		if err == nil {
			info.Sender = sender.DisplayName()
			info.Recipients = append(info.Recipients, directory.SearchResult{
				Name: sender.DisplayName(),
				ID:   sender.ID,
				Type: models.RecipientUser,
			})
		}
	}

	targetUsers, err := db.GetTargetUsers(ctx, s.pool, message.ID)
	if err != nil {
		return nil, err
	}
	targetUserIDs := make([]string, 0, len(targetUsers))
	for _, t := range targetUsers {
		targetUserIDs = append(targetUserIDs, t.UserID)
	}
	users, err := db.GetUsersByIDs(ctx, s.pool, targetUserIDs)
	if err != nil {
		return nil, err
	}
	for _, t := range targetUsers {
		if t.UserID == senderID || t.UserID == user.ID {
			continue
		}
		u, ok := users[t.UserID]
		if !ok {
			continue
		}
		info.Recipients = append(info.Recipients, directory.SearchResult{
			Name: u.DisplayName(),
			ID:   u.ID,
			Type: models.RecipientUser,
		})
	}

	targetGroups, err := db.GetTargetGroups(ctx, s.pool, message.ID)
	if err != nil {
		return nil, err
	}
	for _, t := range targetGroups {
		group, err := db.GetGroupByID(ctx, s.pool, t.CourseID, t.GroupID)
		if err != nil {
			continue
		}
		info.Recipients = append(info.Recipients, directory.SearchResult{
			Name: group.Name,
			ID:   directory.JoinGroupID(t.CourseID, t.GroupID),
			Type: models.RecipientGroup,
		})
	}

	targetCourses, err := db.GetTargetCourses(ctx, s.pool, message.ID)
	if err != nil {
		return nil, err
	}
	for _, t := range targetCourses {
		course, err := db.GetCourseByID(ctx, s.pool, t.CourseID)
		if err != nil {
			continue
		}
		info.Recipients = append(info.Recipients, directory.SearchResult{
			Name: course.Name,
			ID:   course.CourseID,
			Type: models.RecipientCourse,
		})
	}

	return info, nil
}

// emailThread emails the message's ancestor chain to every resolved
// recipient. Runs detached from the request; failures are logged only.
func (s *Service) emailThread(ctx context.Context, message *models.Message, sender *models.User, recipientIDs []string) {
	chain, err := db.GetAncestorChain(ctx, s.pool, message)
	if err != nil {
		log.Printf("Messaging: Failed to load thread for email: %v", err)
		return
	}

	authorIDs := make([]string, 0, len(chain))
	for _, m := range chain {
		if m.UserID != nil {
			authorIDs = append(authorIDs, *m.UserID)
		}
	}
	authors, err := db.GetUsersByIDs(ctx, s.pool, authorIDs)
	if err != nil {
		log.Printf("Messaging: Failed to load thread authors for email: %v", err)
		return
	}

	subject := fmt.Sprintf("New message from %s: %s", sender.DisplayName(), message.Subject)

	var b strings.Builder
	fmt.Fprintf(&b, "You have a new message. Read and reply at %s/messaging/read/%s\n", s.wwwRoot, message.ID)
	for _, m := range chain {
		name := ""
		if m.UserID != nil {
			if u, ok := authors[*m.UserID]; ok {
				name = u.DisplayName()
			}
		}
		fmt.Fprintf(&b, "\n---\nFrom: %s\nSent: %s\nSubject: %s\n\n%s\n", name, m.Sent.Format("02/01/2006 15:04"), m.Subject, m.Body)
	}
	body := b.String()

	emails, err := db.GetUserEmails(ctx, s.pool, recipientIDs)
	if err != nil {
		log.Printf("Messaging: Failed to load recipient emails: %v", err)
		return
	}

	outgoing := make([]mail.OutgoingMessage, 0, len(emails))
	for _, email := range emails {
		outgoing = append(outgoing, mail.OutgoingMessage{Subject: subject, Body: body, RecipientEmail: email})
	}

	if err := s.mailer.SendBulk(ctx, outgoing); err != nil {
		log.Printf("Messaging: Failed to email thread: %v", err)
	}
}
