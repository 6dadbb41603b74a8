// Package relay is the realtime messaging process: it authenticates
// websocket handshakes, gates conversation rooms to verified participants
// and fans chat events out to connected clients.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nebulahq/nebula/auth"
	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/event"
	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/metrics"
	"github.com/nebulahq/nebula/types"
	"github.com/nebulahq/nebula/validator"
)

// Service is the slice of the application layer the relay drives.
type Service interface {
	User(ctx context.Context, in types.RetrieveUser) (types.User, error)
	Conversation(ctx context.Context, in types.RetrieveConversation) (types.Conversation, error)
	CreateMessage(ctx context.Context, in types.CreateMessage) (types.Message, error)
	MarkConversationRead(ctx context.Context, in types.MarkConversationRead) error
}

type Config struct {
	Service Service
	Events  *event.Bus
	Tokens  auth.Tokens
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Origin identifies this relay on the event bus; it must match the
	// service's Origin so locally published events are not broadcast twice.
	Origin string

	// AllowUnauthenticated keeps sockets with a missing or invalid token
	// connected (they can only receive error events until they reconnect
	// with a valid token). Off by default.
	AllowUnauthenticated bool

	AllowedOrigins []string
	HandlerTimeout time.Duration
}

type Relay struct {
	svc     Service
	events  *event.Bus
	tokens  auth.Tokens
	logger  *slog.Logger
	metrics *metrics.Metrics

	origin         string
	permissive     bool
	handlerTimeout time.Duration

	router   *Router
	upgrader websocket.Upgrader
}

func New(cfg *Config) *Relay {
	origin := cfg.Origin
	if origin == "" {
		origin = id.Generate()
	}

	handlerTimeout := cfg.HandlerTimeout
	if handlerTimeout == 0 {
		handlerTimeout = 15 * time.Second
	}

	return &Relay{
		svc:     cfg.Service,
		events:  cfg.Events,
		tokens:  cfg.Tokens,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,

		origin:         origin,
		permissive:     cfg.AllowUnauthenticated,
		handlerTimeout: handlerTimeout,

		router: NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
	}
}

func (r *Relay) Origin() string {
	return r.origin
}

// Subscribe starts re-broadcasting message events published by other
// processes into this relay's local rooms. The returned func unsubscribes.
func (r *Relay) Subscribe() (func() error, error) {
	return r.events.SubscribeMessageCreated(func(ev event.MessageCreated) {
		if ev.Origin == r.origin {
			return
		}

		payload, err := encodeServerEvent(EventNewMessage, ev.Message)
		if err != nil {
			r.logger.Error("encode relayed message", "err", err)
			return
		}

		r.router.Broadcast(conversationRoom(ev.Message.ConversationID), payload)
	}, func(err error) {
		r.logger.Error("event bus", "err", err)
	})
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	user, authenticated := r.authenticate(req)

	if !authenticated && !r.permissive {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade", "err", err)
		return
	}

	conn := NewConnection(user.ID, ws)
	r.router.Attach(conn)
	conn.Start()

	if conn.Authenticated() {
		// Private per-user room, used for direct server pushes.
		r.router.Join(conn, userRoom(user.ID))
	}

	if r.metrics != nil {
		r.metrics.RelayConnections.Inc()
	}

	r.logger.Info("socket connected", "session", conn.ID, "user", user.ID, "authenticated", conn.Authenticated())

	r.readLoop(conn, user)

	r.router.Detach(conn)
	conn.Close(websocket.CloseNormalClosure, "")

	if r.metrics != nil {
		r.metrics.RelayConnections.Dec()
	}

	r.logger.Info("socket disconnected", "session", conn.ID, "user", user.ID)
}

// authenticate resolves the handshake token to an active user.
// Any failure simply leaves the connection unauthenticated; the
// permissive policy decides what happens next.
func (r *Relay) authenticate(req *http.Request) (types.User, bool) {
	var user types.User

	token := bearerToken(req)
	if token == "" {
		return user, false
	}

	userID, err := r.tokens.Verify(token)
	if err != nil {
		return user, false
	}

	ctx, cancel := context.WithTimeout(req.Context(), r.handlerTimeout)
	defer cancel()

	user, err = r.svc.User(ctx, types.RetrieveUser{UserID: userID})
	if err != nil || !user.IsActive {
		return types.User{}, false
	}

	return user, true
}

func bearerToken(req *http.Request) string {
	if h := req.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return req.URL.Query().Get("token")
}

func (r *Relay) readLoop(conn *Connection, user types.User) {
	conn.ws.SetReadLimit(4096)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}

		r.handleEvent(conn, user, data)
	}
}

// handleEvent dispatches one client event. Failures are converted to an
// error event on the socket; they never close the connection.
func (r *Relay) handleEvent(conn *Connection, user types.User, data []byte) {
	var envelope clientEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		r.emitError(conn, "Invalid event payload")
		return
	}

	if r.metrics != nil {
		r.metrics.RelayEventsTotal.WithLabelValues(envelope.Event).Inc()
	}

	if !conn.Authenticated() {
		r.emitError(conn, "Authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.handlerTimeout)
	defer cancel()
	ctx = auth.ContextWithUser(ctx, user)

	var err error
	switch envelope.Event {
	case EventJoinConversation:
		err = r.joinConversation(ctx, conn, envelope.Data)
	case EventSendMessage:
		err = r.sendMessage(ctx, conn, envelope.Data)
	case EventMarkRead:
		err = r.markRead(ctx, envelope.Data)
	case EventLeaveConversation:
		err = r.leaveConversation(conn, envelope.Data)
	default:
		r.emitError(conn, "Unknown event")
		return
	}

	if err != nil {
		r.emitError(conn, clientMessage(envelope.Event, err))
		var e *errs.Error
		if !errors.As(err, &e) {
			r.logger.Error("relay event", "event", envelope.Event, "err", err)
		}
	}
}

// clientMessage keeps internal failures generic on the wire.
func clientMessage(eventName string, err error) string {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Message
	}

	var v *validator.Validator
	if errors.As(err, &v) {
		return v.Error()
	}

	switch eventName {
	case EventSendMessage:
		return "Failed to send message"
	case EventMarkRead:
		return "Failed to mark conversation as read"
	default:
		return "Something went wrong"
	}
}

func (r *Relay) joinConversation(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var payload conversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errs.NewInvalidArgumentError("ConversationID", "Invalid event payload")
	}

	// Membership check: non-participants get not-found and no room access.
	if _, err := r.svc.Conversation(ctx, types.RetrieveConversation{
		ConversationID: payload.ConversationID,
	}); err != nil {
		return err
	}

	r.router.Join(conn, conversationRoom(payload.ConversationID))
	return nil
}

func (r *Relay) leaveConversation(conn *Connection, data json.RawMessage) error {
	var payload conversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errs.NewInvalidArgumentError("ConversationID", "Invalid event payload")
	}

	r.router.Leave(conn, conversationRoom(payload.ConversationID))
	return nil
}

func (r *Relay) sendMessage(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errs.NewInvalidArgumentError("Message", "Invalid event payload")
	}

	msg, err := r.svc.CreateMessage(ctx, types.CreateMessage{
		ConversationID: payload.ConversationID,
		Content:        payload.Content,
		Type:           types.MessageType(payload.Type),
	})
	if err != nil {
		return err
	}

	out, err := encodeServerEvent(EventNewMessage, msg)
	if err != nil {
		return err
	}

	// Local rooms get the message directly; the service already published
	// it on the bus for other processes.
	r.router.Broadcast(conversationRoom(msg.ConversationID), out)
	return nil
}

func (r *Relay) markRead(ctx context.Context, data json.RawMessage) error {
	var payload conversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errs.NewInvalidArgumentError("ConversationID", "Invalid event payload")
	}

	return r.svc.MarkConversationRead(ctx, types.MarkConversationRead{
		ConversationID: payload.ConversationID,
	})
}

func (r *Relay) emitError(conn *Connection, message string) {
	payload, err := encodeServerEvent(EventError, errorPayload{Message: message})
	if err != nil {
		r.logger.Error("encode error event", "err", err)
		return
	}
	_ = conn.Send(payload)
}

func conversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

func userRoom(userID string) string {
	return "user:" + userID
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}
