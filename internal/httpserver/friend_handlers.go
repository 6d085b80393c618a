package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chatrelay/internal/domain"
	"chatrelay/internal/service"
	"chatrelay/internal/ws"
)

type sendRequestBody struct {
	ToUserID string `json:"to_user_id"`
}

func handleSendRequest(friendSvc *service.FriendService, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		var req sendRequestBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidInput))
			return
		}

		fr, err := friendSvc.SendRequest(r.Context(), user.ID, req.ToUserID)
		if err != nil {
			writeError(w, err)
			return
		}

		hub.SendToUser(fr.ToUserID, ws.EventFriendRequest, map[string]any{
			"request_id":    fr.ID,
			"from_user_id":  user.ID,
			"from_username": user.Username,
		})
		writeJSON(w, http.StatusCreated, fr)
	}
}

func handleAcceptRequest(friendSvc *service.FriendService, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		requestID := chi.URLParam(r, "requestID")

		f, err := friendSvc.AcceptRequest(r.Context(), user.ID, requestID)
		if err != nil {
			writeError(w, err)
			return
		}

		// Tell the original sender their request went through.
		otherID := f.UserA
		if otherID == user.ID {
			otherID = f.UserB
		}
		hub.SendToUser(otherID, ws.EventFriendAccepted, map[string]any{
			"user_id":  user.ID,
			"username": user.Username,
		})
		writeJSON(w, http.StatusOK, f)
	}
}

func handleDeclineRequest(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := friendSvc.DeclineRequest(r.Context(), user.ID, chi.URLParam(r, "requestID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleCancelRequest(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := friendSvc.CancelRequest(r.Context(), user.ID, chi.URLParam(r, "requestID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListFriends(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		friends, err := friendSvc.ListFriends(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, friends)
	}
}

func handleListIncoming(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		reqs, err := friendSvc.ListIncoming(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reqs)
	}
}

func handleListOutgoing(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		reqs, err := friendSvc.ListOutgoing(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reqs)
	}
}

func handleFriendSearch(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		results, err := friendSvc.SearchWithStatus(r.Context(), r.URL.Query().Get("q"), user.ID, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func handleRemoveFriend(friendSvc *service.FriendService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := friendSvc.RemoveFriend(r.Context(), user.ID, chi.URLParam(r, "userID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
