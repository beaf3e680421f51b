package handler

import (
	"net/http"

	"github.com/sandeepkv93/realtime-hub/internal/http/middleware"
	"github.com/sandeepkv93/realtime-hub/internal/http/response"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

type ContactHandler struct {
	messages *service.MessageService
}

func NewContactHandler(messages *service.MessageService) *ContactHandler {
	return &ContactHandler{messages: messages}
}

type sendMessageRequest struct {
	ReceiverID uint   `json:"receiver_id"`
	Content    string `json:"content"`
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	contacts, err := h.messages.Contacts(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, contacts)
}

func (h *ContactHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	var in sendMessageRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.messages.Send(r.Context(), user.ID, in.ReceiverID, in.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, report)
}

func (h *ContactHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	peerID, err := uintParam(r, "peer_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.messages.Conversation(r.Context(), user.ID, peerID, pageRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}
