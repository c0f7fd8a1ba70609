/*
Package handler provides the HTTP gateway in front of the chat server.

The gateway exposes a health endpoint and a WebSocket bridge that speaks the
same packet protocol as the raw TCP listener, one packet per text frame. It
applies logging, CORS, and IP-based rate limiting before delegating to the
WebSocket handler.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"linechat/internal/pkg/limiter"
	"linechat/internal/pkg/logx"
	"linechat/internal/pkg/resp"
)

const (
	requestRate  = 10
	requestBurst = 20

	wsConnectRate  = 1
	wsConnectBurst = 5
)

// Router sets up the HTTP routing table (chi.Router) for the gateway.
// It configures CORS, applies global middleware, and wires the WebSocket
// bridge to the chat server.
func Router(deps *AppDeps) http.Handler {
	requestLimiter := limiter.NewIPRateLimiter(rate.Limit(requestRate), requestBurst)
	wsLimiter := limiter.NewIPRateLimiter(rate.Limit(wsConnectRate), wsConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)
	r.Use(requestLimiter.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "linechat",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, wsLimiter, deps))

	return r
}
