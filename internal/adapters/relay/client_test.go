package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/relaysrv"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type events struct {
	ready  chan struct{}
	closed chan struct{}
	msgs   chan domain.Envelope
}

func newEvents() *events {
	return &events{
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}, 2),
		msgs:   make(chan domain.Envelope, 64),
	}
}

func (e *events) OnConnectionReady()             { e.ready <- struct{}{} }
func (e *events) OnClose()                       { e.closed <- struct{}{} }
func (e *events) OnMessage(env domain.Envelope) { e.msgs <- env }

func (e *events) next(t *testing.T, typ domain.MessageType) json.RawMessage {
	t.Helper()
	for {
		select {
		case env := <-e.msgs:
			if env.Type == typ {
				return env.Data
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s event", typ)
		}
	}
}

func wait(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func startRelay(t *testing.T) (*httptest.Server, *Dialer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(relaysrv.New(relaysrv.Options{}).Router(ctx, "test"))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	d := NewDialer(Config{
		URL:        "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		PingPeriod: time.Second,
	})
	return srv, d
}

func connect(t *testing.T, d *Dialer) (*Client, *events) {
	t.Helper()
	ev := newEvents()
	c := d.Factory(ev).(*Client)
	t.Cleanup(c.Teardown)
	wait(t, ev.ready, "connection ready")
	return c, ev
}

func TestClient_RoundTrip(t *testing.T) {
	_, d := startRelay(t)
	ctx := context.Background()

	alice, aliceEv := connect(t, d)
	var aliceID domain.UserIDAssignment
	require.NoError(t, json.Unmarshal(aliceEv.next(t, domain.UserIDAssigned), &aliceID))
	assert.NotEmpty(t, aliceID.UserID)

	roomID, err := alice.CreateChatRoom(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, roomID)

	bob, bobEv := connect(t, d)
	var bobID domain.UserIDAssignment
	require.NoError(t, json.Unmarshal(bobEv.next(t, domain.UserIDAssigned), &bobID))

	res, err := bob.JoinChatRoom(ctx, "bob", roomID)
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.True(t, res.Messages[1].IsSystemMessage)
	assert.Equal(t, "bob", res.Messages[1].UserNickname)

	var joined domain.ChatMessage
	require.NoError(t, json.Unmarshal(aliceEv.next(t, domain.SendMessage), &joined))
	assert.Equal(t, res.Messages[1].PermID, joined.PermID)

	require.NoError(t, bob.SendMessage(domain.SendMessage, domain.OutgoingChat{Body: "hi"}))
	for _, ev := range []*events{aliceEv, bobEv} {
		var msg domain.ChatMessage
		require.NoError(t, json.Unmarshal(ev.next(t, domain.SendMessage), &msg))
		assert.Equal(t, "hi", msg.Body)
		assert.Equal(t, "bob", msg.UserNickname)
		assert.False(t, msg.IsSystemMessage)
	}

	require.NoError(t, bob.SendMessage(domain.SetTypingPresence, domain.TypingSignal{Typing: true}))
	var p domain.TypingPresence
	require.NoError(t, json.Unmarshal(aliceEv.next(t, domain.SetTypingPresence), &p))
	assert.True(t, p.AnyoneTyping)
	assert.Equal(t, []domain.UserID{bobID.UserID}, p.UsersTyping)
}

func TestClient_JoinUnknownRoom(t *testing.T) {
	_, d := startRelay(t)
	c, _ := connect(t, d)

	_, err := c.JoinChatRoom(context.Background(), "bob", "nope")

	assert.ErrorIs(t, err, domain.ErrJoinFailed)
	var je *domain.JoinError
	require.ErrorAs(t, err, &je)
	assert.Equal(t, domain.RoomID("nope"), je.RoomID)
}

func TestClient_ServerDropReportsCloseOnce(t *testing.T) {
	srv, d := startRelay(t)
	_, ev := connect(t, d)

	srv.CloseClientConnections()

	wait(t, ev.closed, "OnClose")
	select {
	case <-ev.closed:
		t.Fatal("OnClose reported twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_DialFailureReportsClose(t *testing.T) {
	srv, d := startRelay(t)
	srv.Close()
	ev := newEvents()

	c := d.Factory(ev)
	defer c.Teardown()

	wait(t, ev.closed, "OnClose")
	assert.Empty(t, ev.ready)
	assert.ErrorIs(t, c.SendMessage(domain.SendMessage, domain.OutgoingChat{Body: "x"}), domain.ErrNotConnected)
}

func TestClient_TeardownSuppressesClose(t *testing.T) {
	_, d := startRelay(t)
	c, ev := connect(t, d)

	c.Teardown()

	select {
	case <-ev.closed:
		t.Fatal("OnClose after Teardown")
	case <-time.After(200 * time.Millisecond):
	}
	assert.ErrorIs(t, c.SendMessage(domain.SendMessage, domain.OutgoingChat{Body: "x"}), domain.ErrNotConnected)
}

func TestClient_RequestCutOffByDrop(t *testing.T) {
	srv, d := startRelay(t)
	c, _ := connect(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() {
		_, err := c.JoinChatRoom(ctx, "bob", "whatever")
		errc <- err
	}()
	srv.CloseClientConnections()

	err := <-errc
	require.Error(t, err)
	// Either the relay refused first, or the drop cut the request off.
	if !errors.Is(err, domain.ErrJoinFailed) {
		assert.ErrorIs(t, err, domain.ErrNotConnected)
	}
}
