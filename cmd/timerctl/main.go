// Command timerctl sends a command to a timer server or watches its rooms.
//
//	timerctl --room "Room A" start
//	timerctl watch
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/clementchew02/Timer/internal/engine"
	"github.com/clementchew02/Timer/internal/types"
	"github.com/coder/websocket"
	"github.com/spf13/pflag"
)

func main() {
	addr := pflag.String("addr", "ws://localhost:3001/ws", "websocket endpoint")
	roomName := pflag.StringP("room", "r", "Room A", "room to command")
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: timerctl [flags] start|stop|restart|watch")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *addr, *roomName, pflag.Arg(0), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "timerctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, roomName, verb string, w io.Writer) error {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	conn, _, err := websocket.Dial(dialCtx, addr, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if verb == "watch" {
		return watch(ctx, conn, w)
	}

	if _, err := engine.ParseCommand(verb); err != nil {
		return fmt.Errorf("%q: %w", verb, err)
	}
	payload, err := json.Marshal(types.ClientMessage{Type: types.TypeCommand, Room: roomName, Command: verb})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

func watch(ctx context.Context, conn *websocket.Conn, w io.Writer) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var msg types.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		fmt.Fprintln(w, render(msg))
	}
}

func render(msg types.ServerMessage) string {
	switch msg.Type {
	case types.TypeAlarm:
		return fmt.Sprintf("%-10s ALARM", msg.Room)
	case types.TypeUpdate:
		state := "stopped"
		if msg.IsRunning != nil && *msg.IsRunning {
			state = "running"
		}
		var ms int64
		if msg.TimeLeft != nil {
			ms = *msg.TimeLeft
		}
		return fmt.Sprintf("%-10s %s %s", msg.Room, engine.FormatRemaining(ms), state)
	default:
		return fmt.Sprintf("%-10s %s", msg.Room, msg.Type)
	}
}
