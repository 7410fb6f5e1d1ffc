package user

import "time"

// CreateRequest is the JSON body for POST /api/users.
type CreateRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,len=64,hexadecimal"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
	Quota    int64  `json:"quota" validate:"gte=0"`
}

// UpdateRequest is the JSON body for PUT /api/users/:id. Both fields are
// optional; only the ones present are applied.
type UpdateRequest struct {
	Quota    *int64  `json:"quota" validate:"omitempty,gte=0"`
	Password *string `json:"password" validate:"omitempty,len=64,hexadecimal"`
}

// LoginRequest is the JSON body for POST /api/auth/login. Password is the
// client's SHA-256 hex digest of the plaintext password, not the plaintext
// itself.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,len=64,hexadecimal"`
}

// LoginResponse is the JSON response for a successful login.
type LoginResponse struct {
	Token string   `json:"token"`
	User  Response `json:"user"`
}

// Response is the public JSON representation of a user, never including the
// password digest.
type Response struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Quota     int64     `json:"quota"`
	Used      int64     `json:"used"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuotaResponse is the JSON response for GET /api/quota.
type QuotaResponse struct {
	Quota     int64 `json:"quota"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
}

// ConsumeRequest is the JSON body for PUT /api/quota/consume. Count is a
// pointer so an absent field (default 1) can be distinguished from an
// explicit 0 (accepted as a no-op).
type ConsumeRequest struct {
	Count *int64 `json:"count" validate:"omitempty,gte=0"`
}
