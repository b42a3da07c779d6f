package types

import (
	"github.com/clementchew02/Timer/internal/engine"
	"github.com/clementchew02/Timer/internal/room"
)

// Client -> Server
// timer-command:
//   room: string
//   command: "start" | "stop" | "restart"
//
// Server -> Client
// timer-update:
//   room: string
//   timeLeft: number (ms)
//   isRunning: boolean
//
// timer-alarm:
//   room: string

const (
	TypeCommand = "timer-command"
	TypeUpdate  = string(engine.EvtStateUpdated)
	TypeAlarm   = string(engine.EvtExpired)
)

type ClientMessage struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Command string `json:"command"`
}

type ServerMessage struct {
	Type      string `json:"type"` // "timer-update" | "timer-alarm"
	Room      string `json:"room"`
	TimeLeft  *int64 `json:"timeLeft,omitempty"`
	IsRunning *bool  `json:"isRunning,omitempty"`
}

// RoomSnapshot is the REST view of one room.
type RoomSnapshot struct {
	Room      string `json:"room"`
	TimeLeft  int64  `json:"timeLeft"`
	IsRunning bool   `json:"isRunning"`
}

func FromEvent(e engine.Event) ServerMessage {
	msg := ServerMessage{Type: string(e.Type), Room: string(e.Room)}
	if e.Type == engine.EvtStateUpdated {
		msg.TimeLeft = &e.TimeLeftMs
		msg.IsRunning = &e.Running
	}
	return msg
}

func FromSnapshots(snaps []engine.Snapshot) []RoomSnapshot {
	out := make([]RoomSnapshot, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, RoomSnapshot{Room: string(s.Room), TimeLeft: s.TimeLeftMs, IsRunning: s.Running})
	}
	return out
}

// ToCommand reports false for anything other than a timer-command.
func ToCommand(m ClientMessage) (room.ID, string, bool) {
	if m.Type != TypeCommand {
		return "", "", false
	}
	return room.ID(m.Room), m.Command, true
}
