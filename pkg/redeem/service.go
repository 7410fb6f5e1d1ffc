package redeem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidCode is returned by Redeem when the code does not exist or has
// already been used.
var ErrInvalidCode = errors.New("redemption code invalid or already used")

// Service encapsulates redemption-code business logic.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates a redeem Service.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{store: NewStore(pool), logger: logger}
}

// List returns all redemption codes for admin display.
func (s *Service) List(ctx context.Context) ([]Response, error) {
	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing redeem codes: %w", err)
	}
	items := make([]Response, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToResponse())
	}
	return items, nil
}

// Generate creates count new codes, each worth quota.
func (s *Service) Generate(ctx context.Context, count int, quota int64) ([]Response, error) {
	rows, err := s.store.Generate(ctx, count, quota)
	if err != nil {
		return nil, fmt.Errorf("generating redeem codes: %w", err)
	}
	items := make([]Response, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToResponse())
	}
	return items, nil
}

// Redeem atomically consumes code and credits the user's quota.
func (s *Service) Redeem(ctx context.Context, code string, userID int64, username string) (int64, error) {
	quota, err := s.store.Redeem(ctx, code, userID, username)
	if err != nil {
		if errors.Is(err, ErrCodeInvalid) {
			return 0, ErrInvalidCode
		}
		return 0, fmt.Errorf("redeeming code: %w", err)
	}
	return quota, nil
}
