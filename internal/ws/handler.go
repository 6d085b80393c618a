package ws

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/domain"
	"chatrelay/internal/service"
)

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// MakeHandler returns the HTTP handler for the /ws endpoint. The upgrade is
// unauthenticated; the client proves identity with an in-band authenticate
// event, which lets browser clients connect without header control.
func MakeHandler(
	hub *Hub,
	verifier TokenVerifier,
	users domain.UserRepository,
	rooms *service.RoomService,
	messages *service.MessageService,
	allowedOrigins []string,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		sock, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		conn := newConn(sock)
		go conn.writePump()

		session := NewSession(hub, conn, verifier, users, rooms, messages)
		defer session.Close(context.Background())

		sock.SetReadLimit(maxMessageSize)
		_ = sock.SetReadDeadline(time.Now().Add(pongWait))
		sock.SetPongHandler(func(string) error {
			return sock.SetReadDeadline(time.Now().Add(pongWait))
		})

		ctx := r.Context()
		for {
			_, raw, err := sock.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("ws: read: %v", err)
				}
				return
			}
			session.Handle(ctx, raw)
		}
	}
}
