package types

import (
	"encoding/json"
	"testing"

	"github.com/clementchew02/Timer/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEvent_JSON(t *testing.T) {
	cases := []struct {
		name string
		evt  engine.Event
		want string
	}{
		{
			name: "update",
			evt:  engine.Event{Type: engine.EvtStateUpdated, Room: "Room A", TimeLeftMs: 299400, Running: true},
			want: `{"type":"timer-update","room":"Room A","timeLeft":299400,"isRunning":true}`,
		},
		{
			name: "stopped at zero keeps both fields",
			evt:  engine.Event{Type: engine.EvtStateUpdated, Room: "Room B"},
			want: `{"type":"timer-update","room":"Room B","timeLeft":0,"isRunning":false}`,
		},
		{
			name: "alarm",
			evt:  engine.Event{Type: engine.EvtExpired, Room: "Room C"},
			want: `{"type":"timer-alarm","room":"Room C"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(FromEvent(tc.evt))
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(b))
		})
	}
}

func TestToCommand(t *testing.T) {
	id, cmd, ok := ToCommand(ClientMessage{Type: TypeCommand, Room: "Room A", Command: "start"})
	assert.True(t, ok)
	assert.Equal(t, "Room A", string(id))
	assert.Equal(t, "start", cmd)

	_, _, ok = ToCommand(ClientMessage{Type: "hello", Room: "Room A"})
	assert.False(t, ok)
}

func TestFromSnapshots(t *testing.T) {
	got := FromSnapshots([]engine.Snapshot{{Room: "Room A", TimeLeftMs: 10, Running: true}})
	assert.Equal(t, []RoomSnapshot{{Room: "Room A", TimeLeft: 10, IsRunning: true}}, got)
}
