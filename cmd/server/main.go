package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/api"
	"github.com/openvle/messaging/backend/internal/auth"
	"github.com/openvle/messaging/backend/internal/config"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/mail"
	"github.com/openvle/messaging/backend/internal/messaging"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	log.Printf("Successfully connected to database")

	server := NewServer(cfg, pool)

	address := ":" + cfg.Port
	log.Printf("Messaging backend server starting on %s (environment: %s)", address, cfg.Environment)

	if err := http.ListenAndServe(address, server); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// NewServer creates and returns a new HTTP handler for the messaging API server.
func NewServer(cfg *config.Config, dbPool *pgxpool.Pool) http.Handler {
	mailer := mail.NewSMTPSender(cfg)
	service := messaging.NewService(dbPool, mailer, cfg.WWWRoot)

	messagesHandler := api.NewMessagesHandler(dbPool, service)
	inboxHandler := api.NewInboxHandler(dbPool)
	threadHandler := api.NewThreadHandler(dbPool, service)
	notificationsHandler := api.NewNotificationsHandler(dbPool, service)
	itemsHandler := api.NewItemsHandler(service)
	recipientsHandler := api.NewRecipientsHandler(dbPool)
	readHandler := api.NewReadHandler(service)

	requireAuth := func(h http.HandlerFunc) http.Handler {
		return auth.RequireAuth(dbPool, h)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	mux.Handle("/api/v1/messages", requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		messagesHandler.SendMessage(w, r)
	}))
	mux.Handle("/api/v1/inbox", requireAuth(inboxHandler.GetInbox))
	mux.Handle("/api/v1/unread-count", requireAuth(inboxHandler.GetUnreadCount))
	mux.Handle("/api/v1/thread", requireAuth(threadHandler.GetThread))
	mux.Handle("/api/v1/reply-info", requireAuth(threadHandler.GetReplyInfo))
	mux.Handle("/api/v1/items/delete", requireAuth(itemsHandler.Delete))
	mux.Handle("/api/v1/recipients/search", requireAuth(recipientsHandler.Search))

	// GET lists the caller's notifications; POST is the trusted creation
	// endpoint for other backend systems, guarded by basic auth instead of
	// the bearer middleware.
	mux.Handle("/api/v1/notifications", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			requireAuth(notificationsHandler.GetNotifications).ServeHTTP(w, r)
		case http.MethodPost:
			auth.RequireBasicAuth(cfg.NotificationUser, cfg.NotificationPass,
				http.HandlerFunc(notificationsHandler.PostNotification)).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	mux.Handle("/api/v1/notifications/read", requireAuth(notificationsHandler.MarkRead))

	// Handle /api/v1/read/{message_id} pattern
	mux.Handle("/api/v1/read/", requireAuth(readHandler.GetReadItem))

	return mux
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Messaging API is running")
}
