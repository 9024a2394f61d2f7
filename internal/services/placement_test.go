package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/offerhub/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks. noopTx satisfies pgx.Tx; fakeTx adds commit/rollback
// semantics so aborted transactions undo staged writes, letting us test the
// real service logic (including atomicity) without a database.
// ---------------------------------------------------------------------------

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type fakeTx struct {
	noopTx
	mu        sync.Mutex
	rollbacks []func()
	committed bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed {
		return pgx.ErrTxClosed
	}
	for i := len(t.rollbacks) - 1; i >= 0; i-- {
		t.rollbacks[i]()
	}
	t.rollbacks = nil
	return nil
}

func (t *fakeTx) onRollback(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollbacks = append(t.rollbacks, f)
}

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }

// --- provider store ---

type mockProviders struct {
	mu        sync.Mutex
	providers map[uuid.UUID]*models.Provider
}

func newMockProviders(ps ...*models.Provider) *mockProviders {
	m := &mockProviders{providers: make(map[uuid.UUID]*models.Provider)}
	for _, p := range ps {
		cp := *p
		m.providers[p.ID] = &cp
	}
	return m
}

func (m *mockProviders) GetByID(_ context.Context, id uuid.UUID) (*models.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

// DebitCredits mirrors the conditional UPDATE: no row matches when the
// balance is too low, surfacing as pgx.ErrNoRows.
func (m *mockProviders) DebitCredits(_ context.Context, tx pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok || p.CreditBalance < amount {
		return 0, pgx.ErrNoRows
	}
	p.CreditBalance -= amount
	if ft, ok := tx.(*fakeTx); ok {
		ft.onRollback(func() {
			m.mu.Lock()
			p.CreditBalance += amount
			m.mu.Unlock()
		})
	}
	return p.CreditBalance, nil
}

func (m *mockProviders) balance(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.providers[id].CreditBalance
}

// --- request store ---

type mockRequests struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*models.Request
}

func newMockRequests(qs ...*models.Request) *mockRequests {
	m := &mockRequests{requests: make(map[uuid.UUID]*models.Request)}
	for _, q := range qs {
		cp := *q
		m.requests[q.ID] = &cp
	}
	return m
}

func (m *mockRequests) GetByID(_ context.Context, id uuid.UUID) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *q
	return &cp, nil
}

// --- offer store enforcing the (request, provider) unique index ---

type pairKey struct {
	request, provider uuid.UUID
}

type mockOffers struct {
	mu     sync.Mutex
	offers map[pairKey]*models.Offer
}

func newMockOffers() *mockOffers {
	return &mockOffers{offers: make(map[pairKey]*models.Offer)}
}

func (m *mockOffers) ExistsByRequestProvider(_ context.Context, requestID, providerID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.offers[pairKey{requestID, providerID}]
	return ok, nil
}

func (m *mockOffers) CreateTx(_ context.Context, tx pgx.Tx, o *models.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{o.RequestID, o.ProviderID}
	if _, ok := m.offers[key]; ok {
		return &pgconn.PgError{Code: "23505", ConstraintName: "offers_request_provider_key"}
	}
	cp := *o
	m.offers[key] = &cp
	if ft, ok := tx.(*fakeTx); ok {
		ft.onRollback(func() {
			m.mu.Lock()
			delete(m.offers, key)
			m.mu.Unlock()
		})
	}
	return nil
}

func (m *mockOffers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.offers)
}

func (m *mockOffers) get(requestID, providerID uuid.UUID) *models.Offer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offers[pairKey{requestID, providerID}]
}

// --- ledger store with optional failure injection ---

type mockLedger struct {
	mu      sync.Mutex
	entries []*models.LedgerEntry
	failErr error
}

func (m *mockLedger) CreateTx(_ context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	cp := *e
	m.entries = append(m.entries, &cp)
	if ft, ok := tx.(*fakeTx); ok {
		ft.onRollback(func() {
			m.mu.Lock()
			m.entries = m.entries[:len(m.entries)-1]
			m.mu.Unlock()
		})
	}
	return nil
}

func (m *mockLedger) all() []*models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func verifiedProvider(balance int) *models.Provider {
	return &models.Provider{
		ID:                uuid.New(),
		CreditBalance:     balance,
		VerificationState: models.VerificationVerified,
	}
}

func openRequest() *models.Request {
	return &models.Request{ID: uuid.New(), Category: "plumbing", Approved: true}
}

func newPlacementService(providers *mockProviders, requests *mockRequests, offers *mockOffers, ledger *mockLedger, cost int) *PlacementService {
	return NewPlacementService(
		mockPool{}, providers, requests, offers, ledger,
		func(*models.Request) int { return cost },
		nil, 2000, 72*time.Hour, nil,
	)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPlaceOffer_ExactBalance(t *testing.T) {
	p := verifiedProvider(5)
	q := openRequest()
	providers := newMockProviders(p)
	offers := newMockOffers()
	ledger := &mockLedger{}
	svc := newPlacementService(providers, newMockRequests(q), offers, ledger, 5)

	ctx := context.Background()
	res, err := svc.PlaceOffer(ctx, p.ID, q.ID, 120.0, "happy to help")
	if err != nil {
		t.Fatalf("PlaceOffer: %v", err)
	}
	if res.CostPaid != 5 {
		t.Errorf("cost paid: got %d, want 5", res.CostPaid)
	}
	if res.RemainingBalance != 0 {
		t.Errorf("remaining balance: got %d, want 0", res.RemainingBalance)
	}
	if got := providers.balance(p.ID); got != 0 {
		t.Errorf("stored balance: got %d, want 0", got)
	}

	o := offers.get(q.ID, p.ID)
	if o == nil {
		t.Fatal("offer was not created")
	}
	if o.CostPaid != 5 || o.Status != models.OfferStatusPending {
		t.Errorf("offer: cost_paid=%d status=%q, want 5/pending", o.CostPaid, o.Status)
	}

	entries := ledger.all()
	if len(entries) != 1 {
		t.Fatalf("ledger entries: got %d, want 1", len(entries))
	}
	e := entries[0]
	if e.EntryType != models.LedgerEntryOfferPlacement || e.Amount != -5 || e.BalanceAfter != 0 {
		t.Errorf("ledger entry: type=%q amount=%d after=%d", e.EntryType, e.Amount, e.BalanceAfter)
	}
	if e.ReferenceID == nil || *e.ReferenceID != o.ID {
		t.Error("ledger entry should reference the offer")
	}
}

func TestPlaceOffer_DuplicateRetry(t *testing.T) {
	p := verifiedProvider(5)
	q := openRequest()
	providers := newMockProviders(p)
	svc := newPlacementService(providers, newMockRequests(q), newMockOffers(), &mockLedger{}, 5)

	ctx := context.Background()
	if _, err := svc.PlaceOffer(ctx, p.ID, q.ID, 120.0, ""); err != nil {
		t.Fatalf("first placement: %v", err)
	}
	if _, err := svc.PlaceOffer(ctx, p.ID, q.ID, 120.0, ""); !errors.Is(err, ErrDuplicateOffer) {
		t.Errorf("second placement: got %v, want ErrDuplicateOffer", err)
	}
	if got := providers.balance(p.ID); got != 0 {
		t.Errorf("balance after failed retry: got %d, want 0", got)
	}
}

func TestPlaceOffer_Preconditions(t *testing.T) {
	q := openRequest()
	archived := &models.Request{ID: uuid.New(), Approved: true, Archived: true}
	closed := &models.Request{ID: uuid.New(), Approved: true, Closed: true}
	unapproved := &models.Request{ID: uuid.New()}
	requests := newMockRequests(q, archived, closed, unapproved)

	verified := verifiedProvider(100)
	pending := &models.Provider{ID: uuid.New(), CreditBalance: 100, VerificationState: models.VerificationPending}
	broke := verifiedProvider(1)
	providers := newMockProviders(verified, pending, broke)

	svc := newPlacementService(providers, requests, newMockOffers(), &mockLedger{}, 5)
	ctx := context.Background()

	cases := []struct {
		name       string
		providerID uuid.UUID
		requestID  uuid.UUID
		price      float64
		message    string
		want       error
	}{
		{"zero price", verified.ID, q.ID, 0, "", ErrInvalidPrice},
		{"negative price", verified.ID, q.ID, -10, "", ErrInvalidPrice},
		{"oversized message", verified.ID, q.ID, 10, string(make([]byte, 2001)), ErrMessageTooLong},
		{"unknown provider", uuid.New(), q.ID, 10, "", ErrProviderNotFound},
		{"unverified provider", pending.ID, q.ID, 10, "", ErrProviderNotVerified},
		{"unknown request", verified.ID, uuid.New(), 10, "", ErrRequestNotFound},
		{"archived request", verified.ID, archived.ID, 10, "", ErrRequestArchived},
		{"closed request", verified.ID, closed.ID, 10, "", ErrRequestClosed},
		{"unapproved request", verified.ID, unapproved.ID, 10, "", ErrRequestNotApproved},
		{"insufficient balance", broke.ID, q.ID, 10, "", ErrInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PlaceOffer(ctx, tc.providerID, tc.requestID, tc.price, tc.message)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

// TestPlaceOffer_AtomicityOnLedgerFailure injects a failure after the debit
// and offer write; nothing may remain observable afterwards.
func TestPlaceOffer_AtomicityOnLedgerFailure(t *testing.T) {
	p := verifiedProvider(10)
	q := openRequest()
	providers := newMockProviders(p)
	offers := newMockOffers()
	ledger := &mockLedger{failErr: fmt.Errorf("write failed")}
	svc := newPlacementService(providers, newMockRequests(q), offers, ledger, 5)

	if _, err := svc.PlaceOffer(context.Background(), p.ID, q.ID, 80.0, ""); err == nil {
		t.Fatal("expected placement to fail")
	}
	if got := providers.balance(p.ID); got != 10 {
		t.Errorf("balance after rollback: got %d, want 10", got)
	}
	if offers.count() != 0 {
		t.Errorf("offers after rollback: got %d, want 0", offers.count())
	}
	if len(ledger.all()) != 0 {
		t.Errorf("ledger entries after rollback: got %d, want 0", len(ledger.all()))
	}
}

// TestPlaceOffer_ConcurrentNoOverspend hammers one provider with parallel
// placements on distinct requests. The conditional debit must keep the
// balance non-negative and the ledger must reconcile with the balance.
func TestPlaceOffer_ConcurrentNoOverspend(t *testing.T) {
	const cost = 5
	const initial = 3 * cost // only 3 of 10 placements can succeed

	p := verifiedProvider(initial)
	providers := newMockProviders(p)
	offers := newMockOffers()
	ledger := &mockLedger{}

	var reqs []*models.Request
	for i := 0; i < 10; i++ {
		reqs = append(reqs, openRequest())
	}
	svc := newPlacementService(providers, newMockRequests(reqs...), offers, ledger, cost)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0
	for _, q := range reqs {
		wg.Add(1)
		go func(requestID uuid.UUID) {
			defer wg.Done()
			_, err := svc.PlaceOffer(context.Background(), p.ID, requestID, 50.0, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientBalance):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(q.ID)
	}
	wg.Wait()

	if succeeded != 3 || insufficient != 7 {
		t.Errorf("outcomes: %d succeeded / %d insufficient, want 3/7", succeeded, insufficient)
	}
	if got := providers.balance(p.ID); got < 0 {
		t.Fatalf("balance went negative: %d", got)
	}
	if got := providers.balance(p.ID); got != 0 {
		t.Errorf("final balance: got %d, want 0", got)
	}

	// Ledger conservation: initial + sum(amounts) == balance.
	sum := 0
	for _, e := range ledger.all() {
		sum += e.Amount
	}
	if initial+sum != providers.balance(p.ID) {
		t.Errorf("ledger does not reconcile: initial(%d) + sum(%d) != balance(%d)", initial, sum, providers.balance(p.ID))
	}
	if offers.count() != succeeded {
		t.Errorf("offers: got %d, want %d", offers.count(), succeeded)
	}
}

// TestPlaceOffer_ConcurrentSamePair races two placements on the same
// (request, provider) pair; exactly one offer may exist afterwards.
func TestPlaceOffer_ConcurrentSamePair(t *testing.T) {
	p := verifiedProvider(100)
	q := openRequest()
	providers := newMockProviders(p)
	offers := newMockOffers()
	svc := newPlacementService(providers, newMockRequests(q), offers, &mockLedger{}, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var okCount, dupCount int
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOffer(context.Background(), p.ID, q.ID, 40.0, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				okCount++
			case errors.Is(err, ErrDuplicateOffer):
				dupCount++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if okCount != 1 {
		t.Errorf("successful placements: got %d, want 1", okCount)
	}
	if offers.count() != 1 {
		t.Errorf("offers: got %d, want 1", offers.count())
	}
	// The loser must not have been charged.
	if got := providers.balance(p.ID); got != 95 {
		t.Errorf("balance: got %d, want 95", got)
	}
}
