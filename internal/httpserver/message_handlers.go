package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chatrelay/internal/domain"
	"chatrelay/internal/service"
)

func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		msgs, err := msgSvc.Page(r.Context(), chi.URLParam(r, "roomID"), user.ID, limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgSvc.ToViews(r.Context(), msgs))
	}
}

type sendMessageRequest struct {
	Content string `json:"content"`
	Kind    string `json:"message_type"`
}

func handleSendMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidInput))
			return
		}

		msg, err := msgSvc.Send(r.Context(), service.SendInput{
			RoomID:  chi.URLParam(r, "roomID"),
			Content: req.Content,
			Kind:    req.Kind,
		}, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msgSvc.ToView(r.Context(), msg))
	}
}

func handleMarkAllRead(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if err := msgSvc.MarkAllRead(r.Context(), chi.URLParam(r, "roomID"), user.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUnreadCount(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		count, err := msgSvc.UnreadCount(r.Context(), chi.URLParam(r, "roomID"), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
	}
}
