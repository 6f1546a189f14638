package orch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dkeye/Chat/internal/adapters/store"
	"github.com/dkeye/Chat/internal/app/clock"
	"github.com/dkeye/Chat/internal/app/conn"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/core/coretest"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	o     *Orchestrator
	f     *coretest.Factory
	sched *clock.Manual
	store *store.Memory
}

func newHarness(t *testing.T, persisted map[string]string) *harness {
	t.Helper()
	h := &harness{
		f:     &coretest.Factory{},
		sched: clock.NewManual(),
		store: store.NewMemory(),
	}
	for k, v := range persisted {
		require.NoError(t, h.store.Set(context.Background(), k, v))
	}
	h.o = New(h.f.New, h.store, Config{
		Policy:         conn.DefaultPolicy(),
		Grace:          2 * time.Second,
		TypingTimeout:  time.Second,
		RequestTimeout: time.Second,
		Scheduler:      h.sched,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go h.o.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.o.Loop.Done()
	})
	require.NoError(t, h.o.Start(ctx))
	return h
}

func (h *harness) do(t *testing.T, f func()) {
	t.Helper()
	require.NoError(t, h.o.Loop.Do(context.Background(), f))
}

func (h *harness) view(t *testing.T) View {
	t.Helper()
	v, err := h.o.View(context.Background())
	require.NoError(t, err)
	return v
}

func (h *harness) ready(t *testing.T) {
	t.Helper()
	h.f.Last().Handler.OnConnectionReady()
	h.do(t, func() {})
}

func (h *harness) deliver(t *testing.T, typ domain.MessageType, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	h.f.Last().Handler.OnMessage(domain.Envelope{Type: typ, Data: data})
	h.do(t, func() {})
}

func TestReload_FailedRejoinReturnsToEntry(t *testing.T) {
	h := newHarness(t, map[string]string{core.NicknameKey: "bob", core.RoomIDKey: "r9"})
	h.f.SetJoin(func(string, domain.RoomID) (domain.JoinResult, error) {
		return domain.JoinResult{}, &domain.JoinError{RoomID: "r9", Reason: "room closed"}
	})

	v := h.view(t)
	assert.Equal(t, ScreenChat, v.Screen)
	assert.Equal(t, "bob", v.Nickname)

	h.ready(t)
	h.do(t, func() { h.sched.Advance(2 * time.Second) })

	assert.Eventually(t, func() bool { return h.view(t).Screen == ScreenEntry }, time.Second, 5*time.Millisecond)
	v = h.view(t)
	assert.Contains(t, v.LastError, "room closed")
	assert.Zero(t, h.store.Len())
}

func TestJoin_HistoryThenLiveMessages(t *testing.T) {
	h := newHarness(t, nil)
	history := []domain.ChatMessage{{IsSystemMessage: true, UserNickname: "alice", Body: "alice joined", PermID: "p1", Timestamp: 1}}
	h.f.SetJoin(func(nick string, id domain.RoomID) (domain.JoinResult, error) {
		return domain.JoinResult{Messages: history}, nil
	})
	h.ready(t)

	require.NoError(t, h.o.JoinRoom(context.Background(), "alice", "room123"))
	v := h.view(t)
	assert.Equal(t, ScreenChat, v.Screen)
	assert.Equal(t, domain.RoomID("room123"), v.RoomID)
	assert.Equal(t, history, v.Messages)

	live := domain.ChatMessage{UserNickname: "carol", Body: "hi", PermID: "p2", Timestamp: 2}
	h.deliver(t, domain.SendMessage, live)
	assert.Equal(t, []domain.ChatMessage{history[0], live}, h.view(t).Messages)
}

func TestCreateRoom_EntersEmptyRoom(t *testing.T) {
	h := newHarness(t, nil)
	h.f.SetCreate(func(string) (domain.RoomID, error) { return "r42", nil })
	h.ready(t)

	id, err := h.o.CreateRoom(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("r42"), id)

	v := h.view(t)
	assert.Equal(t, ScreenChat, v.Screen)
	assert.Empty(t, v.Messages)
}

func TestCreateRoom_NotConnected(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.o.CreateRoom(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestCreateRoom_AfterExhaustion(t *testing.T) {
	h := newHarness(t, nil)
	for range 6 {
		h.f.Last().Handler.OnClose()
		h.do(t, func() { h.sched.Advance(time.Minute) })
	}
	require.True(t, h.view(t).Exhausted)

	_, err := h.o.CreateRoom(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrReconnectExhausted)
}

func TestChatMessageOutsideRoomIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	h.deliver(t, domain.SendMessage, domain.ChatMessage{Body: "stray", PermID: "x"})

	assert.Empty(t, h.view(t).Messages)
}

func TestTypingBanner_ExcludesSelf(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)
	h.deliver(t, domain.UserIDAssigned, domain.UserIDAssignment{UserID: "userX"})

	h.deliver(t, domain.SetTypingPresence, domain.TypingPresence{AnyoneTyping: true, UsersTyping: []domain.UserID{"userX"}})
	assert.False(t, h.view(t).SomeoneTyping)

	h.deliver(t, domain.SetTypingPresence, domain.TypingPresence{AnyoneTyping: true, UsersTyping: []domain.UserID{"userY"}})
	assert.True(t, h.view(t).SomeoneTyping)

	h.f.Last().Handler.OnClose()
	h.do(t, func() {})
	assert.False(t, h.view(t).SomeoneTyping, "remote presence is dropped with the connection")
}

func TestUpdateInput_EmitsEdgesOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	require.NoError(t, h.o.UpdateInput(context.Background(), "h"))
	require.NoError(t, h.o.UpdateInput(context.Background(), "he"))
	h.do(t, func() { h.sched.Advance(500 * time.Millisecond) })
	require.NoError(t, h.o.UpdateInput(context.Background(), "hel"))
	h.do(t, func() { h.sched.Advance(time.Second) })

	sent := h.f.Last().Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, domain.TypingSignal{Typing: true}, sent[0].Payload)
	assert.Equal(t, domain.TypingSignal{Typing: false}, sent[1].Payload)
	assert.False(t, h.view(t).Typing)
}

func TestSendChat(t *testing.T) {
	h := newHarness(t, nil)
	h.f.SetJoin(func(string, domain.RoomID) (domain.JoinResult, error) { return domain.JoinResult{}, nil })

	_, err := h.o.SendChat(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoRoom)

	h.ready(t)
	require.NoError(t, h.o.JoinRoom(context.Background(), "alice", "r1"))

	_, err = h.o.SendChat(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	delivered, err := h.o.SendChat(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Equal(t, coretest.Sent{Type: domain.SendMessage, Payload: domain.OutgoingChat{Body: "hello"}}, h.f.Last().Sent()[0])

	h.f.Last().Handler.OnClose()
	h.do(t, func() {})
	delivered, err = h.o.SendChat(context.Background(), "lost")
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestSubscribe_SignalsChanges(t *testing.T) {
	h := newHarness(t, nil)
	ch, cancel := h.o.Subscribe()
	defer cancel()

	h.ready(t)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change signal")
	}
}

func TestDisconnectDuringJoin_DropsStalePresence(t *testing.T) {
	h := newHarness(t, nil)
	entered, release := make(chan struct{}), make(chan struct{})
	h.f.SetJoin(func(string, domain.RoomID) (domain.JoinResult, error) {
		close(entered)
		<-release
		return domain.JoinResult{}, domain.ErrNotConnected
	})
	h.ready(t)
	h.deliver(t, domain.UserIDAssigned, domain.UserIDAssignment{UserID: "me"})

	errc := make(chan error, 1)
	go func() { errc <- h.o.JoinRoom(context.Background(), "alice", "r1") }()
	<-entered

	h.deliver(t, domain.SetTypingPresence, domain.TypingPresence{AnyoneTyping: true, UsersTyping: []domain.UserID{"other"}})
	h.deliver(t, domain.SendMessage, domain.ChatMessage{Body: "late", PermID: "p9"})
	h.f.Last().Handler.OnClose()
	h.do(t, func() {})
	require.False(t, h.view(t).SomeoneTyping)

	close(release)
	assert.ErrorIs(t, <-errc, domain.ErrNotConnected)

	v := h.view(t)
	assert.Equal(t, domain.Disconnected, v.Connection)
	assert.False(t, v.SomeoneTyping)
	assert.Empty(t, v.Messages)
}
