package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/complydesk/chat-server/internal/chat"
	"github.com/complydesk/chat-server/internal/sessioncache"
	"github.com/complydesk/chat-server/internal/store"
	"github.com/complydesk/chat-server/internal/types"
)

type CreateMessageRequest struct {
	Content     string         `json:"content"`
	RoomName    string         `json:"room_name"`
	User        types.User     `json:"user"`
	MessageType string         `json:"message_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ReplyTo     string         `json:"reply_to,omitempty"`
}

type UpdateMessageRequest struct {
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// writeServiceError maps core errors onto the HTTP taxonomy.
func (s *ChatApp) writeServiceError(w http.ResponseWriter, err error) {
	var errResp *ApiError
	var vErr *chat.ValidationError
	switch {
	case errors.As(err, &vErr):
		errResp = NewValidationError(vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		errResp = NewNotFoundError()
	default:
		errResp = NewInternalServerError(err)
		s.log.Println(errResp.Error())
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}

func pageParams(r *http.Request) (limit, skip int64) {
	limit, _ = strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	skip, _ = strconv.ParseInt(r.URL.Query().Get("skip"), 10, 64)
	if skip < 0 {
		skip = 0
	}

	return limit, skip
}

func (s *ChatApp) health(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   serviceName,
		"version":   serviceVersion,
		"timestamp": chat.Now(),
	})
}

func (s *ChatApp) getRoomMessages(w http.ResponseWriter, r *http.Request) {
	limit, skip := pageParams(r)

	msgs, err := s.service.RoomHistory(r.Context(), r.PathValue("roomName"), limit, skip)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, msgs)
}

func (s *ChatApp) searchMessages(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		errResp := NewValidationError("query parameter q is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	limit, _ := pageParams(r)

	msgs, err := s.service.Search(r.Context(), r.PathValue("roomName"), term, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, msgs)
}

func (s *ChatApp) getRoomStats(w http.ResponseWriter, r *http.Request) {
	rs, err := s.service.RoomStatistics(r.Context(), r.PathValue("roomName"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, rs)
}

func (s *ChatApp) clearRoomMessages(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.ClearRoom(r.Context(), r.PathValue("roomName"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]int64{"deleted_count": count})
}

func (s *ChatApp) getUserMessages(w http.ResponseWriter, r *http.Request) {
	limit, skip := pageParams(r)

	msgs, err := s.service.UserMessages(r.Context(), r.PathValue("userId"), limit, skip)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, msgs)
}

// createMessage injects a message into a room's broadcast stream without
// a live client connection, e.g. an analysis-complete notice from the
// document subsystem.
func (s *ChatApp) createMessage(w http.ResponseWriter, r *http.Request) {
	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.RoomName == "" || req.User.Id == "" || req.User.Name == "" {
		errResp := NewValidationError("room_name and user are required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	kind, ok := types.ParseMessageType(req.MessageType)
	if !ok {
		errResp := NewValidationError("unknown message_type " + strconv.Quote(req.MessageType))
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.service.SendMessage(r.Context(), chat.SendMessageParams{
		RoomName: req.RoomName,
		User:     req.User,
		Content:  req.Content,
		Type:     kind,
		Metadata: req.Metadata,
		ReplyTo:  req.ReplyTo,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *ChatApp) updateMessage(w http.ResponseWriter, r *http.Request) {
	var req UpdateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.service.EditMessage(r.Context(), r.PathValue("id"), req.Content, req.Metadata)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, msg)
}

func (s *ChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteMessage(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"message": "message deleted"})
}

func (s *ChatApp) getConnectionStats(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, s.registry.Counts())
}

// getSession looks up a connected client's cached session record. With
// the cache disabled every lookup is a miss.
func (s *ChatApp) getSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sess, err := s.sessions.Get(r.Context(), r.PathValue("clientId"))
	if err != nil {
		if errors.Is(err, sessioncache.ErrNotFound) {
			errResp := NewNotFoundError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		s.writeServiceError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, sess)
}
