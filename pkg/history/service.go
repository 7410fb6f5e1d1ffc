package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wisbric/pixelgate/internal/httpserver"
)

// Service encapsulates history business logic.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates a history Service.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{store: NewStore(pool), logger: logger}
}

// List returns a page of the caller's history, descending by created_at.
func (s *Service) List(ctx context.Context, userID int64, params httpserver.OffsetParams) (httpserver.OffsetPage[Response], error) {
	rows, total, err := s.store.List(ctx, ListParams{UserID: userID, Limit: params.Limit, Offset: params.Offset})
	if err != nil {
		return httpserver.OffsetPage[Response]{}, fmt.Errorf("listing history: %w", err)
	}

	items := make([]Response, 0, len(rows))
	for i := range rows {
		resp, err := rows[i].ToResponse()
		if err != nil {
			return httpserver.OffsetPage[Response]{}, fmt.Errorf("decoding history row: %w", err)
		}
		items = append(items, resp)
	}

	return httpserver.NewOffsetPage(items, params, total), nil
}

// Create appends a history record for userID.
func (s *Service) Create(ctx context.Context, userID int64, req CreateRequest) (Response, error) {
	options, err := json.Marshal(req.Options)
	if err != nil {
		return Response{}, fmt.Errorf("encoding options: %w", err)
	}

	refImages := req.RefImages
	if refImages == nil {
		refImages = []string{}
	}
	refImagesJSON, err := json.Marshal(refImages)
	if err != nil {
		return Response{}, fmt.Errorf("encoding ref_images: %w", err)
	}

	row, err := s.store.Create(ctx, CreateParams{
		UserID:    userID,
		Prompt:    req.Prompt,
		ImageURL:  req.ImageURL,
		Options:   options,
		RefImages: refImagesJSON,
	})
	if err != nil {
		return Response{}, fmt.Errorf("creating history record: %w", err)
	}

	return row.ToResponse()
}

// Delete removes a history record, scoped to its owner.
func (s *Service) Delete(ctx context.Context, id, ownerID int64) error {
	return s.store.Delete(ctx, id, ownerID)
}
