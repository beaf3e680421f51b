package handler

import (
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/realtime-hub/internal/http/middleware"
	"github.com/sandeepkv93/realtime-hub/internal/http/response"
	"github.com/sandeepkv93/realtime-hub/internal/relay"
)

type ChatHandler struct {
	builder  *relay.Builder
	executor *relay.Executor
	logger   *slog.Logger
}

func NewChatHandler(builder *relay.Builder, executor *relay.Executor, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{builder: builder, executor: executor, logger: logger}
}

func (h *ChatHandler) Completions(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	var req relay.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Messages) == 0 {
		response.Error(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "messages must not be empty", nil)
		return
	}

	prepared, err := h.builder.Build(r.Context(), relay.CallerFromUser(*user), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !req.Stream {
		data, err := h.executor.Execute(r.Context(), prepared.Candidates, prepared.Body)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Raw(w, r, http.StatusOK, data)
		return
	}

	committed := false
	err = h.executor.Stream(r.Context(), prepared.Candidates, prepared.Body, w, func() {
		committed = true
		response.StartEventStream(w)
	})
	if err == nil {
		return
	}
	if !committed {
		writeError(w, r, err)
		return
	}
	h.logger.WarnContext(r.Context(), "chat stream ended early", "user_id", user.ID, "error", err)
}
