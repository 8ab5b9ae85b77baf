package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/complydesk/chat-server/internal/chat"
	"github.com/complydesk/chat-server/internal/sessioncache"
	"github.com/complydesk/chat-server/internal/types"
	"github.com/gorilla/websocket"
)

const closeWriteWait = 10 * time.Second

// serveWs upgrades the connection and hands it to a chat session. The
// identity in the path is trusted as given; verification belongs to an
// upstream auth provider.
func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	clientId := r.PathValue("clientId")
	roomName := r.PathValue("roomName")
	displayName := r.PathValue("displayName")
	if clientId == "" || roomName == "" || displayName == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("upgrade: %v", err)
		return
	}

	user := types.User{Id: clientId, Name: displayName}
	client := chat.NewClient(clientId, roomName, user, conn, s.log)
	session := chat.NewSession(client, s.registry, s.broadcaster, s.service, s.log)

	go s.runSession(session, client, conn)
}

// runSession is the connection's own task: register, record the session
// in the cache, run the lifecycle, clean up. Cache bookkeeping starts
// only once registration succeeds, so a rejected connection never
// touches the record of the client it collided with. Cache failures are
// logged and ignored; they never affect the messaging path.
func (s *ChatApp) runSession(session *chat.Session, client *chat.Client, conn *websocket.Conn) {
	ctx := context.Background()

	if err := session.Register(); err != nil {
		var dupErr *chat.DuplicateClientError
		if errors.As(err, &dupErr) {
			s.log.Printf("rejecting connection: %v", dupErr)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, dupErr.Error()),
				time.Now().Add(closeWriteWait))
		}
		conn.Close()
		return
	}

	if s.sessions != nil {
		if err := s.sessions.Set(ctx, sessioncache.Session{
			ClientId:    client.Id,
			RoomName:    client.RoomName,
			Username:    client.User.Name,
			ConnectedAt: chat.Now(),
		}); err != nil {
			s.log.Printf("session cache set: %v", err)
		}

		stopRefresh := make(chan struct{})
		go s.refreshSession(client.Id, stopRefresh)
		defer close(stopRefresh)

		defer func() {
			if err := s.sessions.Delete(ctx, client.Id); err != nil {
				s.log.Printf("session cache delete: %v", err)
			}
		}()
	}

	session.Run(ctx)
}

// refreshSession keeps the cached session record alive while the
// connection lasts.
func (s *ChatApp) refreshSession(clientId string, stop <-chan struct{}) {
	ticker := time.NewTicker(s.sessionTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.sessions.Extend(context.Background(), clientId); err != nil {
				s.log.Printf("session cache extend: %v", err)
			}
		case <-stop:
			return
		}
	}
}
