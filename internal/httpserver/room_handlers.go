package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatrelay/internal/domain"
	"chatrelay/internal/service"
)

type createRoomRequest struct {
	Name      *string  `json:"name"`
	Kind      string   `json:"room_type"`
	MemberIDs []string `json:"members"`
}

func handleCreateRoom(roomSvc *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidInput))
			return
		}

		room, err := roomSvc.CreateRoom(r.Context(), service.RoomCreateInput{
			Name:      req.Name,
			Kind:      req.Kind,
			MemberIDs: req.MemberIDs,
		}, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, room)
	}
}

func handleListRooms(roomSvc *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		rooms, err := roomSvc.ListForUser(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rooms)
	}
}

func handleGetRoom(roomSvc *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		room, err := roomSvc.GetRoom(r.Context(), chi.URLParam(r, "roomID"), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

func handleAddMember(roomSvc *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		var req addMemberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidInput))
			return
		}
		if err := roomSvc.AddMember(r.Context(), chi.URLParam(r, "roomID"), user.ID, req.UserID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleLeaveRoom(roomSvc *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := roomSvc.Leave(r.Context(), chi.URLParam(r, "roomID"), user.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
