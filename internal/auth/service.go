package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/offerhub/backend/internal/models"
)

// ErrDuplicateEmail is returned when registering with an email that already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrInvalidCredentials is returned on bad email/password pairs.
var ErrInvalidCredentials = errors.New("invalid credentials")

// TxBeginner abstracts transaction creation.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ProviderStore is the minimal provider repository interface for auth.
type ProviderStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Provider) error
	GetByEmail(ctx context.Context, email string) (*models.Provider, error)
}

// LedgerStore appends the welcome-grant entry during registration.
type LedgerStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
}

type Service interface {
	Register(ctx context.Context, email, password, displayName string) (*models.Provider, error)
	Login(ctx context.Context, email, password string) (string, *models.Provider, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, bool, error)
}

type service struct {
	pool           TxBeginner
	providers      ProviderStore
	ledger         LedgerStore
	secret         []byte
	welcomeCredits int
}

func NewService(pool TxBeginner, providers ProviderStore, ledger LedgerStore, secret string, welcomeCredits int) Service {
	return &service{
		pool:           pool,
		providers:      providers,
		ledger:         ledger,
		secret:         []byte(secret),
		welcomeCredits: welcomeCredits,
	}
}

var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Operator bool `json:"operator"`
}

// Register creates the provider profile with the fixed welcome balance and
// its welcome_grant ledger entry in one transaction, so ledger conservation
// holds from the very first entry.
func (s *service) Register(ctx context.Context, email, password, displayName string) (*models.Provider, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	p := &models.Provider{
		ID:                uuid.New(),
		Email:             email,
		DisplayName:       displayName,
		PasswordHash:      string(hash),
		CreditBalance:     s.welcomeCredits,
		VerificationState: models.VerificationUnverified,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.providers.CreateTx(ctx, tx, p); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	if s.welcomeCredits > 0 {
		if err := s.ledger.CreateTx(ctx, tx, &models.LedgerEntry{
			ID:           uuid.New(),
			ProviderID:   p.ID,
			EntryType:    models.LedgerEntryWelcomeGrant,
			Amount:       s.welcomeCredits,
			BalanceAfter: s.welcomeCredits,
			Reason:       "welcome balance",
		}); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, *models.Provider, error) {
	p, err := s.providers.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issueToken(p.ID, p.IsOperator)
	if err != nil {
		return "", nil, err
	}
	return token, p, nil
}

func (s *service) issueToken(uid uuid.UUID, operator bool) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Operator: operator,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

// ValidateToken resolves a bearer token to (uid, isOperator).
func (s *service) ValidateToken(_ context.Context, token string) (uuid.UUID, bool, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, false, errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, c.Operator, nil
}
