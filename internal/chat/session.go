package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/complydesk/chat-server/internal/types"
	"github.com/gorilla/websocket"
)

// frameOutcome distinguishes a recoverable per-message failure from one
// that ends the session.
type frameOutcome int

const (
	outcomeContinue frameOutcome = iota
	outcomeTerminate
)

// Session drives one client's lifecycle: register, join notice, history
// replay, the receive loop, and the unregister/left-notice teardown.
type Session struct {
	client      *Client
	registry    *Registry
	broadcaster *Broadcaster
	service     *Service
	log         *log.Logger
}

func NewSession(client *Client, registry *Registry, broadcaster *Broadcaster, service *Service, logger *log.Logger) *Session {
	return &Session{
		client:      client,
		registry:    registry,
		broadcaster: broadcaster,
		service:     service,
		log:         logger,
	}
}

// Register admits the session's client into the registry. A rejection
// is returned to the caller, which still owns the raw connection and
// must not start the session.
func (s *Session) Register() error {
	return s.registry.Register(s.client)
}

// Run drives a registered session to completion: it blocks until the
// client disconnects or the session can no longer make progress, then
// tears itself down.
func (s *Session) Run(ctx context.Context) {
	go s.client.WritePump()

	s.broadcaster.NotifyUserJoined(s.client.RoomName, s.client.User.Name)
	s.sendHistory(ctx)
	s.readLoop(ctx)
	s.close()
}

// sendHistory replays the most recent page of room history to the new
// client only. A store failure here is logged and skipped; the session
// proceeds without replay, as a fresh join is still useful.
func (s *Session) sendHistory(ctx context.Context) {
	history, err := s.service.RoomHistory(ctx, s.client.RoomName, DefaultHistoryLimit, 0)
	if err != nil {
		s.log.Printf("history replay for room %q: %v", s.client.RoomName, err)
		return
	}

	if err := s.broadcaster.SendDirect(s.client, NewPreviousMessagesFrame(history)); err != nil {
		s.log.Printf("send history to client %q: %v", s.client.Id, err)
	}
}

func (s *Session) readLoop(ctx context.Context) {
	conn := s.client.conn
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Printf("read from client %q: %v", s.client.Id, err)
			}
			return
		}

		if s.handleFrame(ctx, raw) == outcomeTerminate {
			return
		}
	}
}

// handleFrame processes one inbound payload. Malformed or invalid frames
// are dropped and the session continues; a persistence failure
// terminates the session rather than silently losing the message.
func (s *Session) handleFrame(ctx context.Context, raw []byte) frameOutcome {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.log.Printf("invalid frame from client %q: %v", s.client.Id, err)
		return outcomeContinue
	}

	kind, ok := types.ParseMessageType(frame.Type)
	if !ok {
		s.log.Printf("unknown message type %q from client %q", frame.Type, s.client.Id)
		return outcomeContinue
	}

	if strings.TrimSpace(frame.Content) == "" {
		return outcomeContinue
	}

	_, err := s.service.SendMessage(ctx, SendMessageParams{
		RoomName:        s.client.RoomName,
		User:            s.client.User,
		Content:         frame.Content,
		Type:            kind,
		Metadata:        frame.Metadata,
		ReplyTo:         frame.ReplyTo,
		ExcludeClientId: s.client.Id,
	})
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			s.log.Printf("rejected message from client %q: %v", s.client.Id, err)
			return outcomeContinue
		}

		s.log.Printf("persist message from client %q: %v", s.client.Id, err)
		return outcomeTerminate
	}

	return outcomeContinue
}

// close moves the session to its terminal state: unregister first so the
// membership view is accurate, then notify the room.
func (s *Session) close() {
	s.registry.Unregister(s.client.Id)
	s.client.Close()
	s.broadcaster.NotifyUserLeft(s.client.RoomName, s.client.User.Name)
}
