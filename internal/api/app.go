package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/complydesk/chat-server/internal/chat"
	"github.com/complydesk/chat-server/internal/config"
	"github.com/complydesk/chat-server/internal/sessioncache"
	"github.com/gorilla/handlers"
)

const (
	serviceName    = "chat-server"
	serviceVersion = "1.0.0"
)

// SessionCache is the surface of the session record store the app
// drives per connection.
type SessionCache interface {
	Set(ctx context.Context, sess sessioncache.Session) error
	Get(ctx context.Context, clientId string) (*sessioncache.Session, error)
	Delete(ctx context.Context, clientId string) error
	Extend(ctx context.Context, clientId string) error
}

// ChatApp is the HTTP and WebSocket surface over the messaging core.
type ChatApp struct {
	log            *log.Logger
	service        *chat.Service
	registry       *chat.Registry
	broadcaster    *chat.Broadcaster
	sessions       SessionCache
	sessionTTL     time.Duration
	mux            *http.Server
	allowedOrigins []string
}

// NewChatApp wires the routes onto mux. sessions may be nil when the
// session cache is disabled.
func NewChatApp(mux *http.ServeMux, logger *log.Logger, service *chat.Service, registry *chat.Registry,
	broadcaster *chat.Broadcaster, sessions SessionCache, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:            logger,
		service:        service,
		registry:       registry,
		broadcaster:    broadcaster,
		sessions:       sessions,
		sessionTTL:     cfg.SessionTTL,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /ws/{clientId}/{roomName}/{displayName}", s.serveWs)
	mux.HandleFunc("GET /api/rooms/{roomName}/messages", s.getRoomMessages)
	mux.HandleFunc("GET /api/rooms/{roomName}/messages/search", s.searchMessages)
	mux.HandleFunc("GET /api/rooms/{roomName}/stats", s.getRoomStats)
	mux.HandleFunc("DELETE /api/rooms/{roomName}/messages", s.clearRoomMessages)
	mux.HandleFunc("GET /api/users/{userId}/messages", s.getUserMessages)
	mux.HandleFunc("POST /api/messages", s.createMessage)
	mux.HandleFunc("PUT /api/messages/{id}", s.updateMessage)
	mux.HandleFunc("DELETE /api/messages/{id}", s.deleteMessage)
	mux.HandleFunc("GET /api/connections", s.getConnectionStats)
	mux.HandleFunc("GET /api/sessions/{clientId}", s.getSession)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.requestLogger(h)
	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
