package httpserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chatrelay/internal/config"
	"chatrelay/internal/domain"
	"chatrelay/internal/security"
	"chatrelay/internal/service"
	"chatrelay/internal/store"
	"chatrelay/internal/ws"
)

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(cfg *config.Config, stores *store.Stores, hub *ws.Hub, tokenSvc *security.TokenService, passwordHasher *security.PasswordHasher) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Services
	authSvc := service.NewAuthService(stores.Users, tokenSvc, passwordHasher, cfg.RememberMeTTL())
	userSvc := service.NewUserService(stores.Users)
	friendSvc := service.NewFriendService(stores.Friends, stores.Users)
	roomSvc := service.NewRoomService(stores.Rooms, stores.Messages, stores.Users, friendSvc)
	msgSvc := service.NewMessageService(stores.Messages, stores.Rooms, stores.Users, cfg.PreviewLength, cfg.PageSize)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(authSvc))
			r.Post("/login", handleLogin(authSvc))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, stores.Users))

			r.Get("/auth/me", handleMe())

			r.Route("/users", func(r chi.Router) {
				r.Get("/", handleListUsers(userSvc))
				r.Get("/search", handleSearchUsers(userSvc))
				r.Get("/online", handleListOnlineUsers(userSvc))
				r.Get("/{userID}", handleGetUser(userSvc))
			})

			r.Route("/friends", func(r chi.Router) {
				r.Get("/", handleListFriends(friendSvc))
				r.Get("/search", handleFriendSearch(friendSvc))
				r.Delete("/{userID}", handleRemoveFriend(friendSvc))
				r.Route("/requests", func(r chi.Router) {
					r.Post("/", handleSendRequest(friendSvc, hub))
					r.Get("/incoming", handleListIncoming(friendSvc))
					r.Get("/outgoing", handleListOutgoing(friendSvc))
					r.Post("/{requestID}/accept", handleAcceptRequest(friendSvc, hub))
					r.Post("/{requestID}/decline", handleDeclineRequest(friendSvc))
					r.Delete("/{requestID}", handleCancelRequest(friendSvc))
				})
			})

			r.Route("/chat/rooms", func(r chi.Router) {
				r.Post("/", handleCreateRoom(roomSvc))
				r.Get("/", handleListRooms(roomSvc))
				r.Get("/{roomID}", handleGetRoom(roomSvc))
				r.Post("/{roomID}/members", handleAddMember(roomSvc))
				r.Post("/{roomID}/leave", handleLeaveRoom(roomSvc))
				r.Get("/{roomID}/messages", handleListMessages(msgSvc))
				r.Post("/{roomID}/messages", handleSendMessage(msgSvc))
				r.Post("/{roomID}/read", handleMarkAllRead(msgSvc))
				r.Get("/{roomID}/unread", handleUnreadCount(msgSvc))
			})
		})
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(hub, tokenSvc, stores.Users, roomSvc, msgSvc, cfg.CORSOrigins))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain sentinel errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrExpiredToken):
		status = http.StatusUnauthorized
	default:
		log.Printf("http: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
