package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/bot"
)

// EventHandler accepts inbound chat events from the transport adapter and
// returns the dispatcher's replies.
type EventHandler struct {
	dispatcher *bot.Dispatcher
	logger     *slog.Logger
}

func NewEventHandler(dispatcher *bot.Dispatcher, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// EventResponse carries the ordered replies for one event.
type EventResponse struct {
	Replies []bot.Reply `json:"replies"`
}

// Handle handles POST /api/events.
func (h *EventHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var event bot.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}
	if event.UserID <= 0 {
		writeError(w, apperror.ValidationFailed("userId", "userId is required"))
		return
	}
	if event.Text == "" && event.Callback == "" {
		writeError(w, apperror.ValidationFailed("text", "either text or callback is required"))
		return
	}

	replies, err := h.dispatcher.HandleEvent(r.Context(), event)
	if err != nil {
		h.logger.Error("event dispatch failed",
			slog.Int64("userId", event.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, EventResponse{Replies: replies})
}
