package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/offerhub/backend/internal/middleware"
	"github.com/offerhub/backend/internal/models"
	"github.com/offerhub/backend/internal/services"
)

// BulkRunner is the bulk operation executor contract.
type BulkRunner interface {
	RunBulk(ctx context.Context, actorID uuid.UUID, op string, ids []uuid.UUID, params services.BulkParams) (*services.BulkResult, error)
}

// DuplicateScanner runs the read-only duplicate submission scan.
type DuplicateScanner interface {
	DetectDuplicates(ctx context.Context, actorID uuid.UUID) (*services.DuplicateScanReport, error)
}

// FlagLister lists pending fraud flags for operator review.
type FlagLister interface {
	ListPending(ctx context.Context, limit int) ([]*models.FraudFlag, error)
}

// AdminHandler serves the operator tooling endpoints. All routes are
// behind RequireOperator.
type AdminHandler struct {
	Bulk    BulkRunner
	Scanner DuplicateScanner
	Flags   FlagLister
	Logger  *slog.Logger
}

// ListBulkOperations handles GET /api/v1/admin/bulk-operations.
func (h *AdminHandler) ListBulkOperations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, services.ListBulkOperations())
}

type runBulkRequest struct {
	Operation string              `json:"operation"`
	EntityIDs []string            `json:"entity_ids"`
	Params    services.BulkParams `json:"params"`
}

// RunBulk handles POST /api/v1/admin/bulk-operations.
func (h *AdminHandler) RunBulk(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ProviderFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req runBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	ids := make([]uuid.UUID, 0, len(req.EntityIDs))
	for _, raw := range req.EntityIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid entity id: " + raw})
			return
		}
		ids = append(ids, id)
	}

	result, err := h.Bulk.RunBulk(r.Context(), actor.ID, req.Operation, ids, req.Params)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownOperation),
			errors.Is(err, services.ErrNoEntities),
			errors.Is(err, services.ErrBatchTooLarge),
			errors.Is(err, services.ErrMissingAdjustment),
			errors.Is(err, services.ErrMissingNotifyBody):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.Logger.Error("bulk run", "operation", req.Operation, "actor_id", actor.ID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RunDuplicateScan handles POST /api/v1/admin/duplicate-scan.
func (h *AdminHandler) RunDuplicateScan(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ProviderFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	report, err := h.Scanner.DetectDuplicates(r.Context(), actor.ID)
	if err != nil {
		h.Logger.Error("duplicate scan", "actor_id", actor.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListFraudFlags handles GET /api/v1/admin/fraud-flags.
func (h *AdminHandler) ListFraudFlags(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	flags, err := h.Flags.ListPending(r.Context(), limit)
	if err != nil {
		h.Logger.Error("list fraud flags", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if flags == nil {
		flags = []*models.FraudFlag{}
	}
	writeJSON(w, http.StatusOK, flags)
}
