package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradechamp/tradechamp-server/internal/infrastructure/token"
	service "github.com/tradechamp/tradechamp-server/internal/services"
	"github.com/tradechamp/tradechamp-server/pkg/apperrors"
)

type Handler struct {
	service    service.UserService
	production bool
}

func NewHandler(s service.UserService, production bool) *Handler {
	return &Handler{service: s, production: production}
}

// WriteError is the global error rendering boundary: any typed failure
// renders as {status:"error", message, origin, stack} with the failure's
// HTTP status. Unclassified errors fall back to 500. The stack is
// suppressed in production.
func WriteError(w http.ResponseWriter, err error, production bool) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal("an error occurred", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	json.NewEncoder(w).Encode(appErr.Envelope(production))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	WriteError(w, err, h.production)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// Routes register OPTIONS alongside their real method so the CORS
// middleware sees preflight requests; it answers them before any
// handler runs.
func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST", "OPTIONS")
	r.HandleFunc("/login", h.Login).Methods("POST", "OPTIONS")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/balance", h.GetBalance).Methods("GET", "OPTIONS")
	r.HandleFunc("/coins/deposit", h.Deposit).Methods("POST", "OPTIONS")
	r.HandleFunc("/coins/withdraw", h.Withdraw).Methods("POST", "OPTIONS")
	r.HandleFunc("/status/toggle", h.ToggleStatus).Methods("POST", "OPTIONS")
	r.HandleFunc("/export", h.Export).Methods("POST", "OPTIONS")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, apperrors.InvalidInput("request body must be valid JSON"))
		return
	}

	created, err := h.service.Register(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"message": created})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"userPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidInput("request body must be valid JSON"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !result.Match {
		h.writeJSON(w, http.StatusOK, map[string]any{"message": false})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"message": true, "token": result.Token})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := token.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, apperrors.User("user not authenticated", http.StatusUnauthorized))
		return
	}

	balance, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.adjustCoins(w, r, h.service.Deposit)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.adjustCoins(w, r, h.service.Withdraw)
}

func (h *Handler) adjustCoins(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, amount int64) (int64, error)) {
	userID, ok := token.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, apperrors.User("user not authenticated", http.StatusUnauthorized))
		return
	}

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidInput("request body must be valid JSON"))
		return
	}

	balance, err := op(r.Context(), userID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *Handler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := token.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, apperrors.User("user not authenticated", http.StatusUnauthorized))
		return
	}

	status, err := h.service.ToggleStatus(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"active": status})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := token.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, apperrors.User("user not authenticated", http.StatusUnauthorized))
		return
	}

	var req struct {
		Destination string `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidInput("request body must be valid JSON"))
		return
	}

	if err := h.service.Export(r.Context(), userID, req.Destination); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"message": true})
}
