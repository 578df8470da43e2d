package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/service"
)

// UserHandler serves user-facing reads for the transport adapter.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// BalanceResponse is the body of GET /api/users/{id}/balance.
type BalanceResponse struct {
	UserID  int64 `json:"userId"`
	Credits int   `json:"credits"`
}

// Balance handles GET /api/users/{id}/balance.
func (h *UserHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, apperror.ValidationFailed("id", "user id must be a positive integer"))
		return
	}

	credits, err := h.users.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{UserID: userID, Credits: credits})
}
