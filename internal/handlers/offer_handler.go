package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/offerhub/backend/internal/middleware"
	"github.com/offerhub/backend/internal/models"
	"github.com/offerhub/backend/internal/services"
)

// OfferPlacer is the placement engine contract.
type OfferPlacer interface {
	PlaceOffer(ctx context.Context, providerID, requestID uuid.UUID, price float64, message string) (*services.PlacementResult, error)
}

// OfferLister returns the caller's offers.
type OfferLister interface {
	ListByProviderID(ctx context.Context, providerID uuid.UUID) ([]*models.Offer, error)
}

// LedgerLister returns the caller's ledger entries.
type LedgerLister interface {
	ListByProviderID(ctx context.Context, providerID uuid.UUID) ([]*models.LedgerEntry, error)
}

// OfferHandler serves the provider-facing offer and ledger endpoints.
type OfferHandler struct {
	Placement OfferPlacer
	Offers    OfferLister
	Ledger    LedgerLister
	Logger    *slog.Logger
}

type placeOfferRequest struct {
	RequestID string  `json:"request_id"`
	Price     float64 `json:"price"`
	Message   string  `json:"message"`
}

// PlaceOffer handles POST /api/v1/offers.
func (h *OfferHandler) PlaceOffer(w http.ResponseWriter, r *http.Request) {
	p := middleware.ProviderFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req placeOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		http.Error(w, `{"error":"invalid request_id"}`, http.StatusBadRequest)
		return
	}

	result, err := h.Placement.PlaceOffer(r.Context(), p.ID, requestID, req.Price, req.Message)
	if err != nil {
		status, ok := placementStatus(err)
		if !ok {
			h.Logger.Error("place offer", "provider_id", p.ID, "request_id", requestID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// placementStatus maps placement errors to HTTP statuses. Unknown errors
// are internal.
func placementStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, services.ErrInvalidPrice), errors.Is(err, services.ErrMessageTooLong):
		return http.StatusBadRequest, true
	case errors.Is(err, services.ErrProviderNotFound), errors.Is(err, services.ErrRequestNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, services.ErrProviderNotVerified):
		return http.StatusForbidden, true
	case errors.Is(err, services.ErrRequestArchived),
		errors.Is(err, services.ErrRequestClosed),
		errors.Is(err, services.ErrRequestNotApproved),
		errors.Is(err, services.ErrDuplicateOffer):
		return http.StatusConflict, true
	case errors.Is(err, services.ErrInsufficientBalance):
		return http.StatusPaymentRequired, true
	}
	return 0, false
}

// ListOffers handles GET /api/v1/offers.
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	p := middleware.ProviderFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	offers, err := h.Offers.ListByProviderID(r.Context(), p.ID)
	if err != nil {
		h.Logger.Error("list offers", "provider_id", p.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if offers == nil {
		offers = []*models.Offer{}
	}
	writeJSON(w, http.StatusOK, offers)
}

// ListLedger handles GET /api/v1/ledger.
func (h *OfferHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	p := middleware.ProviderFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	entries, err := h.Ledger.ListByProviderID(r.Context(), p.ID)
	if err != nil {
		h.Logger.Error("list ledger", "provider_id", p.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetMe handles GET /api/v1/account/me.
func (h *OfferHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	p := middleware.ProviderFromCtx(r.Context())
	if p == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
