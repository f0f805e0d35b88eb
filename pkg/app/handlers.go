package app

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"patrolchat/pkg/api"
	"patrolchat/pkg/errors"
	myMiddleware "patrolchat/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8092,
	WriteBufferSize: 8092,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type sendMessageRequest struct {
	ConversationId string     `json:"chatId,omitempty"`
	ReceiverId     string     `json:"receiverId,omitempty"`
	Message        string     `json:"message,omitempty"`
	Media          *api.Media `json:"media,omitempty"`
}

func (s *Server) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := myMiddleware.UIDFromContext(r.Context())

		var req sendMessageRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			s.writeError(w, errors.Wrap(errors.CodeInvalidArgument, "malformed request body", err))
			return
		}

		var target api.SendTarget
		if req.ConversationId != "" {
			target = api.ByConversation(req.ConversationId)
		} else if req.ReceiverId != "" {
			target = api.ByCounterpart(req.ReceiverId)
		}

		result, err := s.chatService.SendMessage(r.Context(), uid, api.SendMessageInput{
			Target: target,
			Body:   req.Message,
			Media:  req.Media,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, result)
	}
}

func (s *Server) GetConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := myMiddleware.UIDFromContext(r.Context())
		conversationId := chi.URLParam(r, "conversationId")

		view, err := s.chatService.GetConversation(r.Context(), uid, conversationId)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) GetConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := myMiddleware.UIDFromContext(r.Context())

		summaries, err := s.chatService.ListConversations(r.Context(), uid)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, summaries)
	}
}

func (s *Server) MarkConversationAsRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := myMiddleware.UIDFromContext(r.Context())
		conversationId := chi.URLParam(r, "conversationId")

		if err := s.chatService.MarkRead(r.Context(), uid, conversationId); err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) UpdateUserConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := myMiddleware.UIDFromContext(r.Context())
		conversationId := chi.URLParam(r, "conversationId")

		patchJSON, err := io.ReadAll(r.Body)
		if err != nil {
			s.writeError(w, errors.Wrap(errors.CodeInvalidArgument, "reading request body", err))
			return
		}

		if err := s.chatService.UpdateUserConversation(r.Context(), patchJSON, uid, conversationId); err != nil {
			s.writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) GetContacts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := chi.URLParam(r, "query")

		users, err := s.userService.GetUsersByUsernameContaining(r.Context(), query)
		if err != nil {
			s.writeError(w, err)
			return
		}

		usersDTO := make([]api.User, 0, len(users))
		for _, user := range users {
			usersDTO = append(usersDTO, user.ConvertToDTO())
		}

		s.writeJSON(w, http.StatusOK, usersDTO)
	}
}

func (s *Server) ServeWs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := r.URL.Query().Get("uid")
		if uid == "" {
			http.Error(w, "uid query param required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := api.NewClient(s.hub, conn, uid, s.chatService, s.verifier, s.log)

		// Allow collection of memory referenced by the caller by doing
		// all work in new goroutines.
		go client.WritePump()
		go client.ReadPump()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("unable to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case errors.CodeInvalidArgument:
		status = http.StatusBadRequest
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodePermissionDenied:
		status = http.StatusForbidden
	case errors.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case errors.CodeAlreadyExists:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}
