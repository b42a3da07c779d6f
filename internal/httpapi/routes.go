package httpapi

import (
	"net/http"
	"net/url"

	"github.com/clementchew02/Timer/internal/lobby"
	"github.com/clementchew02/Timer/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func SetupRoutes(l *lobby.Lobby, log *zap.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthz", Healthz(l))
	r.Get("/ws", ws.Handler(l, log, originPatterns(allowedOrigins)))
	r.Get("/rooms", ListRooms(l))
	r.Post("/rooms/{room}/{command}", PostCommand(l, log))

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
	return c.Handler(r)
}

// originPatterns turns CORS origins into websocket host patterns.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}
