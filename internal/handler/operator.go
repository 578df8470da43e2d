package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/auth"
	"github.com/sakif/editorial-bot/internal/service"
)

// OperatorHandler serves the ops API: login, the support inbox and payment
// reconciliation tooling. Everything except Login sits behind the
// RequireOperator middleware.
type OperatorHandler struct {
	tokens       *auth.TokenService
	passwords    *auth.PasswordService
	passwordHash string
	support      *service.SupportService
	payments     *service.PaymentService
	logger       *slog.Logger
}

func NewOperatorHandler(
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	passwordHash string,
	support *service.SupportService,
	payments *service.PaymentService,
	logger *slog.Logger,
) *OperatorHandler {
	return &OperatorHandler{
		tokens:       tokens,
		passwords:    passwords,
		passwordHash: passwordHash,
		support:      support,
		payments:     payments,
		logger:       logger,
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login handles POST /api/operator/login. A correct password yields a
// short-lived bearer token for the rest of the operator routes.
func (h *OperatorHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	if h.passwordHash == "" {
		writeError(w, apperror.Unavailable("operator access is not configured"))
		return
	}

	if err := h.passwords.Verify(h.passwordHash, req.Password); err != nil {
		// Same response for wrong password and malformed hash; no hints.
		h.logger.Warn("operator login rejected")
		writeError(w, apperror.Forbidden("invalid password"))
		return
	}

	token, err := h.tokens.Generate()
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("operator logged in")
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// ListSupport handles GET /api/operator/support?status=new.
func (h *OperatorHandler) ListSupport(w http.ResponseWriter, r *http.Request) {
	messages, err := h.support.Inbox(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type supportStatusRequest struct {
	Status string `json:"status"`
}

// SetSupportStatus handles PUT /api/operator/support/{id}/status.
func (h *OperatorHandler) SetSupportStatus(w http.ResponseWriter, r *http.Request) {
	var req supportStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	if err := h.support.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ListPayments handles GET /api/operator/payments?status=pending.
func (h *OperatorHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.ListByStatus(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

// Sweep handles POST /api/operator/payments/sweep: an on-demand run of the
// same reconciliation pass the background ticker performs.
func (h *OperatorHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	completed, err := h.payments.SweepPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if completed == nil {
		completed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"completed": completed})
}
