package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for history_records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a history Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Row represents a row returned from the history_records table. Options and
// RefImages are held as raw JSON as stored, deserialized by ToResponse.
type Row struct {
	ID        int64
	UserID    int64
	Prompt    string
	ImageURL  string
	Options   []byte
	RefImages []byte
	CreatedAt time.Time
}

// ToResponse deserializes the stored JSON columns into the structured
// Response DTO.
func (r *Row) ToResponse() (Response, error) {
	resp := Response{
		ID:        r.ID,
		UserID:    r.UserID,
		Prompt:    r.Prompt,
		ImageURL:  r.ImageURL,
		CreatedAt: r.CreatedAt,
	}

	if len(r.Options) > 0 {
		if err := json.Unmarshal(r.Options, &resp.Options); err != nil {
			return Response{}, fmt.Errorf("decoding options: %w", err)
		}
	}

	if len(r.RefImages) > 0 {
		if err := json.Unmarshal(r.RefImages, &resp.RefImages); err != nil {
			return Response{}, fmt.Errorf("decoding ref_images: %w", err)
		}
	}

	return resp, nil
}

const historyColumns = `id, user_id, prompt, image_url, options, ref_images, created_at`

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(&r.ID, &r.UserID, &r.Prompt, &r.ImageURL, &r.Options, &r.RefImages, &r.CreatedAt)
	return r, err
}

// ListParams holds the filter and pagination inputs for List.
type ListParams struct {
	UserID int64
	Limit  int
	Offset int
}

// List returns a page of history records for userID, newest first, plus the
// total count of matching rows (for the has-more calculation).
func (s *Store) List(ctx context.Context, p ListParams) ([]Row, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM history_records WHERE user_id = $1`, p.UserID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting history records: %w", err)
	}

	query := `SELECT ` + historyColumns + ` FROM history_records
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, query, p.UserID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing history records: %w", err)
	}
	defer rows.Close()

	var items []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning history row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating history rows: %w", err)
	}

	return items, total, nil
}

// CreateParams holds parameters for appending a history record.
type CreateParams struct {
	UserID    int64
	Prompt    string
	ImageURL  string
	Options   []byte
	RefImages []byte
}

// Create appends a new history record.
func (s *Store) Create(ctx context.Context, p CreateParams) (Row, error) {
	query := `INSERT INTO history_records (user_id, prompt, image_url, options, ref_images, created_at)
	VALUES ($1, $2, $3, $4, $5, now())
	RETURNING ` + historyColumns
	row := s.pool.QueryRow(ctx, query, p.UserID, p.Prompt, p.ImageURL, p.Options, p.RefImages)
	return scanRow(row)
}

// Delete removes a history record by id, scoped to ownerID so a user can
// only delete their own history. Returns pgx.ErrNoRows if no matching row
// was deleted (either it doesn't exist, or it belongs to someone else).
func (s *Store) Delete(ctx context.Context, id, ownerID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM history_records WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("deleting history record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
