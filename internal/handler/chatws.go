package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/service"
)

const (
	// Time allowed to write a message to the peer.
	wsWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	wsPongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than wsPongWait.
	wsPingPeriod = (wsPongWait * 9) / 10

	// Maximum message size allowed from peer.
	wsMaxMessage = 64 << 10
)

// wsIn is a client frame.
//
//	{"type": "message", "message": "What is Fawry?", "pageContext": "Startups page"}
//	{"type": "reset"}
//	{"type": "ping"}
type wsIn struct {
	Type        string `json:"type"`
	Message     string `json:"message,omitempty"`
	PageContext string `json:"pageContext,omitempty"`
}

// wsOut is a server frame: "ack" (the stored user turn), "reply", "superseded",
// "error" or "pong".
type wsOut struct {
	Type     string             `json:"type"`
	Message  *model.ChatMessage `json:"message,omitempty"`
	Fallback bool               `json:"fallback,omitempty"`
	ReplyTo  string             `json:"replyTo,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// ChatSocket runs the assistant chat over a websocket. The server keeps the
// transcript for the life of the connection. Each message is answered in
// its own goroutine; a message sent while an earlier one is still being
// answered supersedes it. The earlier user turn is removed from the
// transcript and its answer is reported as "superseded", so the transcript
// always alternates user and assistant turns.
type ChatSocket struct {
	assistant *service.AssistantService
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewChatSocket accepts upgrades from the given origins. An empty list
// allows same-origin requests only; "*" allows any origin.
func NewChatSocket(svc *service.AssistantService, allowedOrigins []string, logger *slog.Logger) *ChatSocket {
	h := &ChatSocket{assistant: svc, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		}
	}
	return h
}

// HandleChat upgrades the connection.
//
// HTTP: GET /api/ws/chat
func (h *ChatSocket) HandleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &chatSession{
		h:       h,
		conn:    conn,
		send:    make(chan wsOut, 16),
		ctx:     ctx,
		cancel:  cancel,
		user:    clientKey(r),
		surface: "ws-" + xid.New().String(),
	}
	h.logger.Debug("chat socket opened", slog.String("user", s.user))

	go s.writePump()
	s.readPump()
}

type chatSession struct {
	h       *ChatSocket
	conn    *websocket.Conn
	send    chan wsOut
	ctx     context.Context
	cancel  context.CancelFunc
	user    string
	surface string

	mu         sync.Mutex
	transcript []model.ChatMessage
	pending    string // ID of the user turn awaiting an answer
	wg         sync.WaitGroup
}

// readPump owns reads. When the peer goes away it cancels the session,
// which abandons in-flight answers and stops the writer.
func (s *chatSession) readPump() {
	defer func() {
		s.cancel()
		s.wg.Wait()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(wsMaxMessage)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.h.logger.Warn("chat socket read failed", slog.String("error", err.Error()))
			}
			return
		}

		var in wsIn
		if err := json.Unmarshal(raw, &in); err != nil {
			s.emit(wsOut{Type: "error", Error: "invalid JSON frame"})
			continue
		}

		switch in.Type {
		case "message":
			s.ask(in)
		case "reset":
			s.mu.Lock()
			s.transcript = nil
			s.pending = ""
			s.mu.Unlock()
		case "ping":
			s.emit(wsOut{Type: "pong"})
		default:
			s.emit(wsOut{Type: "error", Error: "unknown frame type " + in.Type})
		}
	}
}

// ask records the user turn and answers it in the background.
func (s *chatSession) ask(in wsIn) {
	if strings.TrimSpace(in.Message) == "" {
		s.emit(wsOut{Type: "error", Error: "message is required"})
		return
	}
	turn := model.ChatMessage{
		ID:        xid.New().String(),
		Role:      model.RoleUser,
		Content:   in.Message,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	if s.pending != "" {
		s.dropTurn(s.pending)
	}
	history := slices.Clone(s.transcript)
	s.transcript = append(s.transcript, turn)
	s.pending = turn.ID
	s.mu.Unlock()
	s.emit(wsOut{Type: "ack", Message: &turn})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		reply, err := s.h.assistant.Chat(s.ctx, s.user, s.surface, history, in.Message, in.PageContext)

		s.mu.Lock()
		current := s.pending == turn.ID
		switch {
		case !current:
		case err != nil || reply.Superseded:
			s.dropTurn(turn.ID)
			s.pending = ""
		default:
			s.transcript = append(s.transcript, reply.Message)
			s.pending = ""
		}
		s.mu.Unlock()

		switch {
		case err != nil && current:
			s.emit(wsOut{Type: "error", ReplyTo: turn.ID, Error: err.Error()})
		case err != nil || !current || reply.Superseded:
			s.emit(wsOut{Type: "superseded", ReplyTo: turn.ID})
		default:
			s.emit(wsOut{Type: "reply", ReplyTo: turn.ID, Message: &reply.Message, Fallback: reply.Fallback})
		}
	}()
}

// dropTurn removes the message with the given ID. Callers hold mu.
func (s *chatSession) dropTurn(id string) {
	s.transcript = slices.DeleteFunc(s.transcript, func(m model.ChatMessage) bool {
		return m.ID == id
	})
}

// emit queues a frame unless the session is over.
func (s *chatSession) emit(out wsOut) {
	select {
	case s.send <- out:
	case <-s.ctx.Done():
	}
}

// writePump owns writes and keeps the connection alive with pings.
func (s *chatSession) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case out := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteJSON(out); err != nil {
				s.cancel()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}
