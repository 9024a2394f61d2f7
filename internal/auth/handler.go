package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/offerhub/backend/internal/models"
	"github.com/offerhub/backend/internal/services"
)

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProviderResponse struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	DisplayName       string `json:"display_name"`
	CreditBalance     int    `json:"credit_balance"`
	VerificationState string `json:"verification_state"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// Tracker is the fraud linkage detector, invoked after every successful
// authentication event.
type Tracker interface {
	Track(ctx context.Context, ev services.TrackEvent) (*services.TrackResult, error)
}

type Handler struct {
	svc     Service
	tracker Tracker
	log     *slog.Logger
}

func NewHandler(svc Service, tracker Tracker, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, tracker: tracker, log: log}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	p, err := h.svc.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		h.log.Error("register failed", "error", err)
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	h.track(r, p.ID, services.TrackEventRegister, p.Email)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(providerToResponse(p))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "missing email or password", http.StatusBadRequest)
		return
	}
	token, p, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.log.Error("login failed", "error", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	h.track(r, p.ID, services.TrackEventLogin, p.Email)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(LoginResponse{Token: token})
}

// track feeds the fraud linkage detector. Tracking never blocks or fails
// the auth response; a rejected device identifier is logged and skipped.
func (h *Handler) track(r *http.Request, uid uuid.UUID, event, email string) {
	if h.tracker == nil {
		return
	}
	res, err := h.tracker.Track(r.Context(), services.TrackEvent{
		UID:         uid,
		DeviceID:    r.Header.Get("X-Device-ID"),
		NetworkAddr: clientAddr(r),
		Event:       event,
		Role:        "provider",
		Email:       email,
	})
	if err != nil {
		h.log.Warn("identity tracking failed", "uid", uid, "event", event, "error", err)
		return
	}
	if res.Flagged {
		h.log.Info("registration produced a fraud flag", "uid", uid)
	}
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func providerToResponse(p *models.Provider) ProviderResponse {
	return ProviderResponse{
		ID:                p.ID.String(),
		Email:             p.Email,
		DisplayName:       p.DisplayName,
		CreditBalance:     p.CreditBalance,
		VerificationState: p.VerificationState,
	}
}
