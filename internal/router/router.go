package router

import (
	"net/http"

	"github.com/offerhub/backend/internal/auth"
	"github.com/offerhub/backend/internal/handlers"
	"github.com/offerhub/backend/internal/middleware"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// New returns the http.Handler serving the API under /api/v1.
// authMW establishes the acting provider; rateMW throttles offer placement.
func New(authHandler *auth.Handler, offers *handlers.OfferHandler, admin *handlers.AdminHandler, authMW, rateMW Middleware) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/register", authHandler.Register)
	mux.HandleFunc("POST "+base+"/auth/login", authHandler.Login)

	mux.Handle("POST "+base+"/offers", authMW(rateMW(http.HandlerFunc(offers.PlaceOffer))))
	mux.Handle("GET "+base+"/offers", authMW(http.HandlerFunc(offers.ListOffers)))
	mux.Handle("GET "+base+"/ledger", authMW(http.HandlerFunc(offers.ListLedger)))
	mux.Handle("GET "+base+"/account/me", authMW(http.HandlerFunc(offers.GetMe)))

	operator := func(h http.HandlerFunc) http.Handler {
		return authMW(middleware.RequireOperator(h))
	}
	mux.Handle("GET "+base+"/admin/bulk-operations", operator(admin.ListBulkOperations))
	mux.Handle("POST "+base+"/admin/bulk-operations", operator(admin.RunBulk))
	mux.Handle("POST "+base+"/admin/duplicate-scan", operator(admin.RunDuplicateScan))
	mux.Handle("GET "+base+"/admin/fraud-flags", operator(admin.ListFraudFlags))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}
