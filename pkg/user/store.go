package user

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, password_digest, role, quota, used, created_at, updated_at`

// Store provides database operations for users against the global pool.
// pixelgate runs a single schema, so unlike a tenant-scoped store there is
// no per-request connection to thread through.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a user Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Row represents a row returned from the users table, including the
// password digest, which the service layer compares at login but never
// returns in a Response.
type Row struct {
	ID             int64
	Username       string
	PasswordDigest string
	Role           string
	Quota          int64
	Used           int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ToResponse converts a Row to the public Response DTO.
func (u *Row) ToResponse() Response {
	return Response{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Quota:     u.Quota,
		Used:      u.Used,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func scanRow(row pgx.Row) (Row, error) {
	var u Row
	err := row.Scan(&u.ID, &u.Username, &u.PasswordDigest, &u.Role, &u.Quota, &u.Used, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func scanRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()
	var items []Row
	for rows.Next() {
		var u Row
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordDigest, &u.Role, &u.Quota, &u.Used, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return items, nil
}

// List returns all users ordered by id.
func (s *Store) List(ctx context.Context) ([]Row, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return scanRows(rows)
}

// Get returns a single user by ID.
func (s *Store) Get(ctx context.Context, id int64) (Row, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanRow(s.pool.QueryRow(ctx, query, id))
}

// GetByUsername returns a single user by username.
func (s *Store) GetByUsername(ctx context.Context, username string) (Row, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanRow(s.pool.QueryRow(ctx, query, username))
}

// CreateParams holds parameters for creating a user.
type CreateParams struct {
	Username       string
	PasswordDigest string
	Role           string
	Quota          int64
}

// Create inserts a new user with used=0. A duplicate username surfaces as a
// unique-violation, which the service layer maps to 409.
func (s *Store) Create(ctx context.Context, p CreateParams) (Row, error) {
	query := `INSERT INTO users (username, password_digest, role, quota, used, created_at, updated_at)
	VALUES ($1, $2, $3, $4, 0, now(), now())
	RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, p.Username, p.PasswordDigest, p.Role, p.Quota)
	return scanRow(row)
}

// UpdateParams holds the optional fields of a partial user update.
type UpdateParams struct {
	Quota          *int64
	PasswordDigest *string
}

// Update applies a partial update (quota and/or password) and always bumps
// updated_at. Returns pgx.ErrNoRows if the user does not exist.
func (s *Store) Update(ctx context.Context, id int64, p UpdateParams) (Row, error) {
	query := `UPDATE users SET
		quota = COALESCE($2, quota),
		password_digest = COALESCE($3, password_digest),
		updated_at = now()
	WHERE id = $1
	RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, id, p.Quota, p.PasswordDigest)
	return scanRow(row)
}

// Delete hard-deletes a user by id. history_records carries ON DELETE
// CASCADE, so owned history rows are removed by the database.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ConsumeQuota atomically increments used by count, but only if doing so
// would not exceed quota. Returns pgx.ErrNoRows if the conditional update
// affected zero rows (insufficient remaining quota, or unknown user).
func (s *Store) ConsumeQuota(ctx context.Context, id int64, count int64) (Row, error) {
	query := `UPDATE users SET used = used + $2, updated_at = now()
	WHERE id = $1 AND quota - used >= $2
	RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, id, count)
	u, err := scanRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Row{}, pgx.ErrNoRows
		}
		return Row{}, fmt.Errorf("consuming quota: %w", err)
	}
	return u, nil
}

// CreditQuota increments a user's quota by delta within a caller-managed
// transaction (pass a pgx.Tx via tx).
func CreditQuota(ctx context.Context, tx pgx.Tx, userID int64, delta int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE users SET quota = quota + $2, updated_at = now() WHERE id = $1`,
		userID, delta,
	)
	if err != nil {
		return fmt.Errorf("crediting quota: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// BeginTx starts a transaction on the pool, for callers that need to
// coordinate a user update with another table write.
func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}
