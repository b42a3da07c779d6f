package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/clementchew02/Timer/internal/engine"
	"github.com/clementchew02/Timer/internal/lobby"
	"github.com/clementchew02/Timer/internal/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	outboxSize     = 64
	writeTimeout   = 3 * time.Second
	maxMessageSize = 1024
)

// Handler upgrades to a websocket and attaches the connection to the lobby
// as one observer. originPatterns follow websocket.AcceptOptions.
func Handler(l *lobby.Lobby, log *zap.Logger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(maxMessageSize)

		clientID := uuid.NewString()
		// The join sync needs one slot per room on top of the live buffer.
		out := make(chan engine.Event, outboxSize+l.NumRooms())

		if err := l.Send(r.Context(), lobby.Join{ClientID: clientID, Outbox: out}); err != nil {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		log.Info("client connected", zap.String("client_id", clientID))
		defer func() {
			_ = l.Send(context.Background(), lobby.Leave{ClientID: clientID})
			log.Info("client disconnected", zap.String("client_id", clientID))
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine; ends the session when the lobby closes out or
		// the reader returns.
		go func() {
			defer cancel()
			for {
				var evt engine.Event
				select {
				case <-ctx.Done():
					return
				case e, ok := <-out:
					if !ok {
						return
					}
					evt = e
				}
				payload, err := json.Marshal(types.FromEvent(evt))
				if err != nil {
					continue
				}
				wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
				err = conn.Write(wctx, websocket.MessageText, payload)
				wcancel()
				if err != nil {
					return
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if !errors.Is(err, context.Canceled) {
						log.Debug("websocket read failed", zap.String("client_id", clientID), zap.Error(err))
					}
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				log.Debug("bad json from client", zap.String("client_id", clientID), zap.Error(err))
				continue
			}

			id, cmd, ok := types.ToCommand(cm)
			if !ok {
				log.Debug("unknown message type", zap.String("client_id", clientID), zap.String("type", cm.Type))
				continue
			}

			if err := l.Send(ctx, lobby.FromClient{Room: id, Command: cmd}); err != nil {
				return
			}
		}
	}
}
