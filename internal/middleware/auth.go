package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/offerhub/backend/internal/models"
)

type contextKey string

const ctxProviderKey contextKey = "provider"

// TokenValidator resolves a bearer token to (uid, isOperator).
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, bool, error)
}

// ProviderLookup loads the acting provider's profile.
type ProviderLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
}

// BearerAuth authenticates requests by validating the Bearer token and
// loading the provider profile into request context.
func BearerAuth(tokens TokenValidator, providers ProviderLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			uid, _, err := tokens.ValidateToken(r.Context(), raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			p, err := providers.GetByID(r.Context(), uid)
			if err != nil {
				http.Error(w, `{"error":"unknown account"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithProvider(r.Context(), p)))
		})
	}
}

// RequireOperator gates admin routes. Checked before any entity-specific
// logic runs; a non-operator gets 403, not 400.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := ProviderFromCtx(r.Context())
		if p == nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		if !p.IsOperator {
			http.Error(w, `{"error":"operator role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ProviderFromCtx returns the authenticated provider or nil.
func ProviderFromCtx(ctx context.Context) *models.Provider {
	p, _ := ctx.Value(ctxProviderKey).(*models.Provider)
	return p
}

// WithProvider returns a context carrying the given provider.
func WithProvider(ctx context.Context, p *models.Provider) context.Context {
	return context.WithValue(ctx, ctxProviderKey, p)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
