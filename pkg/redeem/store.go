package redeem

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const codeColumns = `id, code, quota, used, used_by, used_at, created_at`

// Store provides database operations for redemption codes.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a redeem Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Row represents a row returned from the redeem_codes table.
type Row struct {
	ID        int64
	Code      string
	Quota     int64
	Used      bool
	UsedBy    *string
	UsedAt    *time.Time
	CreatedAt time.Time
}

// ToResponse converts a Row to the public Response DTO.
func (r *Row) ToResponse() Response {
	return Response{
		ID:        r.ID,
		Code:      r.Code,
		Quota:     r.Quota,
		Used:      r.Used,
		UsedBy:    r.UsedBy,
		UsedAt:    r.UsedAt,
		CreatedAt: r.CreatedAt,
	}
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(&r.ID, &r.Code, &r.Quota, &r.Used, &r.UsedBy, &r.UsedAt, &r.CreatedAt)
	return r, err
}

// List returns all redemption codes, most recent first.
func (s *Store) List(ctx context.Context) ([]Row, error) {
	query := `SELECT ` + codeColumns + ` FROM redeem_codes ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing redeem codes: %w", err)
	}
	defer rows.Close()

	var items []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning redeem code row: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// Generate creates count new codes of the given quota, retrying on a
// unique-index collision. It does not need to loop often: the alphabet has
// 32^16 possible codes.
func (s *Store) Generate(ctx context.Context, count int, quota int64) ([]Row, error) {
	created := make([]Row, 0, count)

	for len(created) < count {
		code := newCode()

		query := `INSERT INTO redeem_codes (code, quota, used, created_at)
		VALUES ($1, $2, false, now())
		ON CONFLICT (code) DO NOTHING
		RETURNING ` + codeColumns

		row, err := scanRow(s.pool.QueryRow(ctx, query, code, quota))
		if err != nil {
			if err == pgx.ErrNoRows {
				// Collision: ON CONFLICT DO NOTHING suppressed the insert. Retry.
				continue
			}
			return nil, fmt.Errorf("generating redeem code: %w", err)
		}
		created = append(created, row)
	}

	return created, nil
}

// ErrCodeInvalid indicates the code does not exist or has already been used.
var ErrCodeInvalid = fmt.Errorf("redemption code invalid or already used")

// Redeem atomically marks code as used by username and credits quota to the
// user's row, in a single transaction: SELECT ... FOR UPDATE the code row,
// verify it is unused, flip it, then credit the user. A concurrent second
// redemption of the same code blocks on the row lock and then sees used=true,
// so exactly one succeeds.
func (s *Store) Redeem(ctx context.Context, code string, userID int64, username string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id int64
	var quota int64
	var used bool
	err = tx.QueryRow(ctx,
		`SELECT id, quota, used FROM redeem_codes WHERE code = $1 FOR UPDATE`,
		code,
	).Scan(&id, &quota, &used)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrCodeInvalid
		}
		return 0, fmt.Errorf("locking redeem code: %w", err)
	}

	if used {
		return 0, ErrCodeInvalid
	}

	if _, err := tx.Exec(ctx,
		`UPDATE redeem_codes SET used = true, used_by = $2, used_at = now() WHERE id = $1`,
		id, username,
	); err != nil {
		return 0, fmt.Errorf("marking redeem code used: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users SET quota = quota + $2, updated_at = now() WHERE id = $1`,
		userID, quota,
	)
	if err != nil {
		return 0, fmt.Errorf("crediting quota: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("crediting quota: %w", pgx.ErrNoRows)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing redemption: %w", err)
	}

	return quota, nil
}

// newCode generates a 16-character code from codeAlphabet, grouped into
// blocks of 4 with "-" separators (e.g. "ABCD-EFGH-JKLM-NPQR").
func newCode() string {
	raw := make([]byte, codeLength)
	idx := make([]byte, codeLength)
	if _, err := rand.Read(idx); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	for i, b := range idx {
		raw[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	var sb strings.Builder
	for i, c := range raw {
		if i > 0 && i%4 == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
