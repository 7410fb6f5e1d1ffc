package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/wisbric/pixelgate/internal/auth"
)

// ErrDuplicateUsername is returned by Create when the username already exists.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrInsufficientQuota is returned by ConsumeQuota when the conditional
// update affects zero rows because remaining quota is too small.
var ErrInsufficientQuota = errors.New("insufficient quota")

// ErrInvalidCredentials is returned by Login on any lookup or digest mismatch.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Service encapsulates user business logic: CRUD, login, and quota
// accounting.
type Service struct {
	store  *Store
	tokens *auth.TokenManager
	logger *slog.Logger
}

// NewService creates a user Service.
func NewService(store *Store, tokens *auth.TokenManager, logger *slog.Logger) *Service {
	return &Service{store: store, tokens: tokens, logger: logger}
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]Response, error) {
	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	items := make([]Response, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToResponse())
	}
	return items, nil
}

// Get returns a single user by ID.
func (s *Service) Get(ctx context.Context, id int64) (Response, error) {
	row, err := s.store.Get(ctx, id)
	if err != nil {
		return Response{}, err
	}
	return row.ToResponse(), nil
}

// Create hashes the client's SHA-256 digest with bcrypt and inserts a new
// user with used=0.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Response, error) {
	digest, err := hashDigest(req.Password)
	if err != nil {
		return Response{}, fmt.Errorf("hashing password: %w", err)
	}

	row, err := s.store.Create(ctx, CreateParams{
		Username:       req.Username,
		PasswordDigest: digest,
		Role:           req.Role,
		Quota:          req.Quota,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Response{}, ErrDuplicateUsername
		}
		return Response{}, fmt.Errorf("creating user: %w", err)
	}
	return row.ToResponse(), nil
}

// Update applies a partial update of quota and/or password.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Response, error) {
	params := UpdateParams{Quota: req.Quota}

	if req.Password != nil {
		digest, err := hashDigest(*req.Password)
		if err != nil {
			return Response{}, fmt.Errorf("hashing password: %w", err)
		}
		params.PasswordDigest = &digest
	}

	row, err := s.store.Update(ctx, id, params)
	if err != nil {
		return Response{}, err
	}
	return row.ToResponse(), nil
}

// Delete removes a user. history_records cascade at the database level.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

// Login verifies the client's SHA-256 password digest against the stored
// bcrypt hash in constant time (bcrypt's comparison is already
// constant-time) and issues a bearer token on success.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	row, err := s.store.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResponse{}, ErrInvalidCredentials
		}
		return LoginResponse{}, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordDigest), []byte(req.Password)); err != nil {
		return LoginResponse{}, ErrInvalidCredentials
	}

	id := &auth.Identity{ID: row.ID, Username: row.Username, Role: row.Role}
	token, err := s.tokens.Issue(id)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("issuing token: %w", err)
	}

	return LoginResponse{Token: token, User: row.ToResponse()}, nil
}

// Quota returns the caller's quota, used, and remaining counts.
func (s *Service) Quota(ctx context.Context, id int64) (QuotaResponse, error) {
	row, err := s.store.Get(ctx, id)
	if err != nil {
		return QuotaResponse{}, err
	}
	return QuotaResponse{Quota: row.Quota, Used: row.Used, Remaining: row.Quota - row.Used}, nil
}

// ConsumeQuota atomically debits count from the user's remaining quota.
// count=0 is a no-op that still returns the current remaining balance.
func (s *Service) ConsumeQuota(ctx context.Context, id int64, count int64) (QuotaResponse, error) {
	if count == 0 {
		return s.Quota(ctx, id)
	}

	row, err := s.store.ConsumeQuota(ctx, id, count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QuotaResponse{}, ErrInsufficientQuota
		}
		return QuotaResponse{}, fmt.Errorf("consuming quota: %w", err)
	}
	return QuotaResponse{Quota: row.Quota, Used: row.Used, Remaining: row.Quota - row.Used}, nil
}

// hashDigest bcrypt-hashes the client-supplied SHA-256 hex digest. The
// stored password_digest column therefore holds a bcrypt hash of a SHA-256
// digest, not a bcrypt hash of the plaintext password directly.
func hashDigest(sha256Hex string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(sha256Hex), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
