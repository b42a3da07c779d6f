package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/clementchew02/Timer/internal/lobby"
	"github.com/clementchew02/Timer/internal/room"
	"github.com/clementchew02/Timer/internal/types"
	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newServer(t *testing.T) (*lobby.Lobby, string) {
	t.Helper()
	return newServerWithRooms(t, []room.ID{"Room A", "Room B"})
}

func newServerWithRooms(t *testing.T, ids []room.ID) (*lobby.Lobby, string) {
	t.Helper()
	reg, err := room.New(ids, 5*time.Minute, t0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	l := lobby.New(ctx, reg, lobby.WithClock(clockwork.NewFakeClockAt(t0)))

	srv := httptest.NewServer(Handler(l, zap.NewNop(), nil))
	t.Cleanup(srv.Close)
	return l, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg types.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func write(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(payload)))
}

func TestHandler_JoinSyncThenCommand(t *testing.T) {
	_, url := newServer(t)
	conn := dial(t, url)

	for _, want := range []string{"Room A", "Room B"} {
		msg := readMsg(t, conn)
		assert.Equal(t, types.TypeUpdate, msg.Type)
		assert.Equal(t, want, msg.Room)
		require.NotNil(t, msg.TimeLeft)
		assert.Equal(t, int64(300000), *msg.TimeLeft)
		require.NotNil(t, msg.IsRunning)
		assert.False(t, *msg.IsRunning)
	}

	write(t, conn, `{"type":"timer-command","room":"Room B","command":"start"}`)

	msg := readMsg(t, conn)
	assert.Equal(t, "Room B", msg.Room)
	require.NotNil(t, msg.IsRunning)
	assert.True(t, *msg.IsRunning)
}

func TestHandler_GarbageIsIgnored(t *testing.T) {
	_, url := newServer(t)
	conn := dial(t, url)
	readMsg(t, conn)
	readMsg(t, conn)

	write(t, conn, `not json`)
	write(t, conn, `{"type":"hello"}`)
	write(t, conn, `{"type":"timer-command","room":"Room Z","command":"start"}`)
	write(t, conn, `{"type":"timer-command","room":"Room A","command":"explode"}`)
	write(t, conn, `{"type":"timer-command","room":"Room A","command":"restart"}`)

	// the first thing back is the restart broadcast
	msg := readMsg(t, conn)
	assert.Equal(t, types.TypeUpdate, msg.Type)
	assert.Equal(t, "Room A", msg.Room)
}

func TestHandler_BroadcastReachesOtherClients(t *testing.T) {
	_, url := newServer(t)
	c1 := dial(t, url)
	c2 := dial(t, url)
	for range 2 {
		readMsg(t, c1)
		readMsg(t, c2)
	}

	write(t, c1, `{"type":"timer-command","room":"Room A","command":"start"}`)

	msg := readMsg(t, c2)
	assert.Equal(t, "Room A", msg.Room)
	require.NotNil(t, msg.IsRunning)
	assert.True(t, *msg.IsRunning)
}

func TestHandler_DisconnectLeavesLobby(t *testing.T) {
	l, url := newServer(t)
	conn := dial(t, url)
	readMsg(t, conn)
	readMsg(t, conn)

	conn.Close(websocket.StatusNormalClosure, "done")

	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		v, err := l.State(ctx)
		return err == nil && v.NumClients == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHandler_DisconnectStopsWriter(t *testing.T) {
	l, url := newServer(t)
	numClients := func() int {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		v, err := l.State(ctx)
		require.NoError(t, err)
		return v.NumClients
	}
	require.Zero(t, numClients())
	base := runtime.NumGoroutine()

	const sessions = 10
	for range sessions {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		conn, _, err := websocket.Dial(ctx, url, nil)
		cancel()
		require.NoError(t, err)
		readMsg(t, conn)
		readMsg(t, conn)
		conn.Close(websocket.StatusNormalClosure, "done")
	}

	require.Eventually(t, func() bool { return numClients() == 0 }, 2*time.Second, 20*time.Millisecond)
	// One stranded writer per session would leave at least sessions extra.
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() < base+sessions/2
	}, 2*time.Second, 20*time.Millisecond, "goroutines: base=%d now=%d", base, runtime.NumGoroutine())
}

func TestHandler_JoinSyncWithManyRooms(t *testing.T) {
	ids := make([]room.ID, 100)
	for i := range ids {
		ids[i] = room.ID(fmt.Sprintf("Room %03d", i))
	}
	l, url := newServerWithRooms(t, ids)
	conn := dial(t, url)

	for _, want := range ids {
		msg := readMsg(t, conn)
		assert.Equal(t, string(want), msg.Room)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := l.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v.NumClients)
}
