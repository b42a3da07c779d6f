package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/clementchew02/Timer/internal/lobby"
	"github.com/clementchew02/Timer/internal/room"
	"github.com/clementchew02/Timer/internal/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func ListRooms(l *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snaps, err := l.Rooms(r.Context())
		if err != nil {
			http.Error(w, "timer service unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.FromSnapshots(snaps))
	}
}

// PostCommand enqueues a command. Like the websocket path it never reports
// whether the command took effect; the outcome is visible only as a
// broadcast.
func PostCommand(l *lobby.Lobby, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := url.PathUnescape(chi.URLParam(r, "room"))
		if err != nil {
			name = chi.URLParam(r, "room")
		}
		msg := lobby.FromClient{
			Room:    room.ID(name),
			Command: chi.URLParam(r, "command"),
		}
		if err := l.Send(r.Context(), msg); err != nil {
			http.Error(w, "timer service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Debug("command received over http", zap.String("room", string(msg.Room)), zap.String("command", msg.Command))
		w.WriteHeader(http.StatusAccepted)
	}
}

func Healthz(l *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-l.Done():
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}
}
