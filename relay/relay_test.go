package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/types"
)

type stubService struct {
	conversationErr  error
	createMessageErr error
	markReadErr      error

	calls int
}

func (s *stubService) User(_ context.Context, in types.RetrieveUser) (types.User, error) {
	s.calls++
	return types.User{ID: in.UserID, IsActive: true}, nil
}

func (s *stubService) Conversation(_ context.Context, in types.RetrieveConversation) (types.Conversation, error) {
	s.calls++
	if s.conversationErr != nil {
		return types.Conversation{}, s.conversationErr
	}
	return types.Conversation{ID: in.ConversationID}, nil
}

func (s *stubService) CreateMessage(_ context.Context, in types.CreateMessage) (types.Message, error) {
	s.calls++
	if s.createMessageErr != nil {
		return types.Message{}, s.createMessageErr
	}
	return types.Message{ID: "m1", ConversationID: in.ConversationID, Content: in.Content}, nil
}

func (s *stubService) MarkConversationRead(_ context.Context, in types.MarkConversationRead) error {
	s.calls++
	return s.markReadErr
}

func testRelay(svc Service) *Relay {
	return New(&Config{
		Service: svc,
		Logger:  slog.New(slog.DiscardHandler),
	})
}

type recvEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func receiveEvent(t *testing.T, conn *Connection) recvEnvelope {
	t.Helper()

	select {
	case raw := <-conn.send:
		var envelope recvEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			t.Fatalf("unmarshal server event: %v", err)
		}
		return envelope
	default:
		t.Fatal("no event on the socket")
		return recvEnvelope{}
	}
}

func receiveErrorMessage(t *testing.T, conn *Connection) string {
	t.Helper()

	envelope := receiveEvent(t, conn)
	if envelope.Event != EventError {
		t.Fatalf("event = %q, want %q", envelope.Event, EventError)
	}

	var payload errorPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	return payload.Message
}

func TestRelay_handleEvent_unauthenticated(t *testing.T) {
	svc := &stubService{}
	r := testRelay(svc)

	conn := NewConnection("", nil)
	r.router.Attach(conn)

	r.handleEvent(conn, types.User{}, []byte(`{"event":"join_conversation","data":{"conversationId":"c1"}}`))

	if got := receiveErrorMessage(t, conn); got != "Authentication required" {
		t.Errorf("error message = %q, want %q", got, "Authentication required")
	}
	if svc.calls != 0 {
		t.Errorf("service calls = %d, want none before auth", svc.calls)
	}
	if r.router.InRoom(conn, conversationRoom("c1")) {
		t.Error("unauthenticated socket must not join any room")
	}
}

func TestRelay_handleEvent_nonParticipantJoin(t *testing.T) {
	svc := &stubService{conversationErr: errs.NewNotFoundError("conversation not found")}
	r := testRelay(svc)

	user := types.User{ID: "eve", IsActive: true}
	conn := NewConnection(user.ID, nil)
	r.router.Attach(conn)

	r.handleEvent(conn, user, []byte(`{"event":"join_conversation","data":{"conversationId":"c1"}}`))

	if got := receiveErrorMessage(t, conn); got != "conversation not found" {
		t.Errorf("error message = %q, want %q", got, "conversation not found")
	}
	if r.router.InRoom(conn, conversationRoom("c1")) {
		t.Error("non-participant must not join the conversation room")
	}

	// Fan-out to the room must not reach the rejected socket.
	r.router.Broadcast(conversationRoom("c1"), []byte("payload"))
	select {
	case raw := <-conn.send:
		t.Errorf("received %q, want nothing", raw)
	default:
	}
}

func TestRelay_handleEvent_nonParticipantSend(t *testing.T) {
	svc := &stubService{createMessageErr: errs.NewPermissionDeniedError("you are not a participant of this conversation")}
	r := testRelay(svc)

	user := types.User{ID: "eve", IsActive: true}
	conn := NewConnection(user.ID, nil)
	r.router.Attach(conn)

	r.handleEvent(conn, user, []byte(`{"event":"send_message","data":{"conversationId":"c1","content":"hi"}}`))

	if got := receiveErrorMessage(t, conn); got != "you are not a participant of this conversation" {
		t.Errorf("error message = %q, want the permission error", got)
	}
}

func TestRelay_handleEvent_sendMessageBroadcasts(t *testing.T) {
	svc := &stubService{}
	r := testRelay(svc)

	alice := types.User{ID: "alice", IsActive: true}
	sender := NewConnection(alice.ID, nil)
	member := NewConnection("bob", nil)
	r.router.Attach(sender)
	r.router.Attach(member)
	r.router.Join(sender, conversationRoom("c1"))
	r.router.Join(member, conversationRoom("c1"))

	r.handleEvent(sender, alice, []byte(`{"event":"send_message","data":{"conversationId":"c1","content":"hi"}}`))

	for _, conn := range []*Connection{sender, member} {
		envelope := receiveEvent(t, conn)
		if envelope.Event != EventNewMessage {
			t.Errorf("%s got event %q, want %q", conn.UserID, envelope.Event, EventNewMessage)
		}
	}
}

func TestRelay_handleEvent_malformed(t *testing.T) {
	tt := []struct {
		name string
		data string
		want string
	}{
		{name: "not_json", data: `{{{`, want: "Invalid event payload"},
		{name: "unknown_event", data: `{"event":"presence_ping","data":{}}`, want: "Unknown event"},
		{name: "bad_event_data", data: `{"event":"join_conversation","data":"nope"}`, want: "Invalid event payload"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			r := testRelay(&stubService{})

			user := types.User{ID: "alice", IsActive: true}
			conn := NewConnection(user.ID, nil)
			r.router.Attach(conn)

			r.handleEvent(conn, user, []byte(tc.data))

			if got := receiveErrorMessage(t, conn); got != tc.want {
				t.Errorf("error message = %q, want %q", got, tc.want)
			}
		})
	}
}
