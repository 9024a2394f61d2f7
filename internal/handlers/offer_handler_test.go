package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/offerhub/backend/internal/middleware"
	"github.com/offerhub/backend/internal/models"
	"github.com/offerhub/backend/internal/services"
)

type stubPlacer struct {
	result *services.PlacementResult
	err    error

	gotProviderID uuid.UUID
	gotRequestID  uuid.UUID
	gotPrice      float64
	gotMessage    string
}

func (s *stubPlacer) PlaceOffer(_ context.Context, providerID, requestID uuid.UUID, price float64, message string) (*services.PlacementResult, error) {
	s.gotProviderID = providerID
	s.gotRequestID = requestID
	s.gotPrice = price
	s.gotMessage = message
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubOfferLister struct {
	offers []*models.Offer
	err    error
}

func (s *stubOfferLister) ListByProviderID(context.Context, uuid.UUID) ([]*models.Offer, error) {
	return s.offers, s.err
}

type stubLedgerLister struct {
	entries []*models.LedgerEntry
}

func (s *stubLedgerLister) ListByProviderID(context.Context, uuid.UUID) ([]*models.LedgerEntry, error) {
	return s.entries, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func authedRequest(method, target string, body any, p *models.Provider) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if p != nil {
		req = req.WithContext(middleware.WithProvider(req.Context(), p))
	}
	return req
}

func TestPlaceOfferHandler(t *testing.T) {
	provider := &models.Provider{ID: uuid.New(), VerificationState: models.VerificationVerified}
	requestID := uuid.New()

	t.Run("created", func(t *testing.T) {
		placer := &stubPlacer{result: &services.PlacementResult{OfferID: uuid.New(), CostPaid: 4, RemainingBalance: 6}}
		h := &OfferHandler{Placement: placer, Logger: testLogger()}

		body := map[string]any{"request_id": requestID.String(), "price": 150.0, "message": "hello"}
		rec := httptest.NewRecorder()
		h.PlaceOffer(rec, authedRequest(http.MethodPost, "/api/v1/offers", body, provider))

		if rec.Code != http.StatusCreated {
			t.Fatalf("status: got %d, want 201: %s", rec.Code, rec.Body)
		}
		var got services.PlacementResult
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if got.CostPaid != 4 || got.RemainingBalance != 6 {
			t.Errorf("response: %+v", got)
		}
		if placer.gotProviderID != provider.ID || placer.gotRequestID != requestID {
			t.Error("handler passed wrong ids to the placement engine")
		}
		if placer.gotPrice != 150.0 || placer.gotMessage != "hello" {
			t.Errorf("handler passed price=%v message=%q", placer.gotPrice, placer.gotMessage)
		}
	})

	t.Run("error mapping", func(t *testing.T) {
		cases := []struct {
			err  error
			want int
		}{
			{services.ErrInvalidPrice, http.StatusBadRequest},
			{services.ErrMessageTooLong, http.StatusBadRequest},
			{services.ErrProviderNotFound, http.StatusNotFound},
			{services.ErrRequestNotFound, http.StatusNotFound},
			{services.ErrProviderNotVerified, http.StatusForbidden},
			{services.ErrRequestArchived, http.StatusConflict},
			{services.ErrRequestClosed, http.StatusConflict},
			{services.ErrRequestNotApproved, http.StatusConflict},
			{services.ErrDuplicateOffer, http.StatusConflict},
			{services.ErrInsufficientBalance, http.StatusPaymentRequired},
			{fmt.Errorf("connection reset"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			t.Run(tc.err.Error(), func(t *testing.T) {
				h := &OfferHandler{Placement: &stubPlacer{err: tc.err}, Logger: testLogger()}
				body := map[string]any{"request_id": requestID.String(), "price": 100.0}
				rec := httptest.NewRecorder()
				h.PlaceOffer(rec, authedRequest(http.MethodPost, "/api/v1/offers", body, provider))
				if rec.Code != tc.want {
					t.Errorf("status: got %d, want %d", rec.Code, tc.want)
				}
			})
		}
	})

	t.Run("bad request body", func(t *testing.T) {
		h := &OfferHandler{Placement: &stubPlacer{}, Logger: testLogger()}

		req := authedRequest(http.MethodPost, "/api/v1/offers", nil, provider)
		req.Body = http.NoBody
		rec := httptest.NewRecorder()
		h.PlaceOffer(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("empty body: got %d, want 400", rec.Code)
		}

		rec = httptest.NewRecorder()
		h.PlaceOffer(rec, authedRequest(http.MethodPost, "/api/v1/offers", map[string]any{"request_id": "not-a-uuid", "price": 10.0}, provider))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("bad request_id: got %d, want 400", rec.Code)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		h := &OfferHandler{Placement: &stubPlacer{}, Logger: testLogger()}
		rec := httptest.NewRecorder()
		h.PlaceOffer(rec, authedRequest(http.MethodPost, "/api/v1/offers", map[string]any{}, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status: got %d, want 401", rec.Code)
		}
	})
}

func TestListOffersHandler(t *testing.T) {
	provider := &models.Provider{ID: uuid.New()}

	t.Run("empty list is a JSON array", func(t *testing.T) {
		h := &OfferHandler{Offers: &stubOfferLister{}, Logger: testLogger()}
		rec := httptest.NewRecorder()
		h.ListOffers(rec, authedRequest(http.MethodGet, "/api/v1/offers", nil, provider))
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200", rec.Code)
		}
		if body := rec.Body.String(); body != "[]\n" {
			t.Errorf("body: got %q, want empty array", body)
		}
	})

	t.Run("lists the caller's offers", func(t *testing.T) {
		offers := []*models.Offer{{ID: uuid.New(), ProviderID: provider.ID, CostPaid: 3}}
		h := &OfferHandler{Offers: &stubOfferLister{offers: offers}, Logger: testLogger()}
		rec := httptest.NewRecorder()
		h.ListOffers(rec, authedRequest(http.MethodGet, "/api/v1/offers", nil, provider))
		var got []*models.Offer
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 1 || got[0].ID != offers[0].ID {
			t.Errorf("offers: %+v", got)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		h := &OfferHandler{Offers: &stubOfferLister{err: fmt.Errorf("timeout")}, Logger: testLogger()}
		rec := httptest.NewRecorder()
		h.ListOffers(rec, authedRequest(http.MethodGet, "/api/v1/offers", nil, provider))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status: got %d, want 500", rec.Code)
		}
	})
}

func TestListLedgerHandler(t *testing.T) {
	provider := &models.Provider{ID: uuid.New()}
	entries := []*models.LedgerEntry{{
		ID:           uuid.New(),
		ProviderID:   provider.ID,
		EntryType:    models.LedgerEntryOfferPlacement,
		Amount:       -3,
		BalanceAfter: 0,
	}}
	h := &OfferHandler{Ledger: &stubLedgerLister{entries: entries}, Logger: testLogger()}
	rec := httptest.NewRecorder()
	h.ListLedger(rec, authedRequest(http.MethodGet, "/api/v1/ledger", nil, provider))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var got []*models.LedgerEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Amount != -3 {
		t.Errorf("entries: %+v", got)
	}
}

func TestGetMeHandler(t *testing.T) {
	provider := &models.Provider{ID: uuid.New(), Email: "me@example.com", CreditBalance: 7, PasswordHash: "secret-hash"}
	h := &OfferHandler{Logger: testLogger()}
	rec := httptest.NewRecorder()
	h.GetMe(rec, authedRequest(http.MethodGet, "/api/v1/account/me", nil, provider))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["credit_balance"] != float64(7) {
		t.Errorf("credit_balance: got %v", got["credit_balance"])
	}
	if _, leaked := got["password_hash"]; leaked {
		t.Error("password hash must never be serialized")
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("secret-hash")) {
		t.Error("password hash leaked into the response body")
	}
}
