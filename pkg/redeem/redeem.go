package redeem

import "time"

// codeAlphabet excludes visually ambiguous characters (I, O, 0, 1), per
// spec.md §3.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// codeLength is the number of alphabet characters in a code, before the
// "-" group separators are inserted every 4 characters.
const codeLength = 16

// GenerateRequest is the JSON body for POST /api/codes.
type GenerateRequest struct {
	Count int   `json:"count" validate:"required,gte=1,lte=1000"`
	Quota int64 `json:"quota" validate:"required,gt=0"`
}

// RedeemRequest is the JSON body for POST /api/redeem.
type RedeemRequest struct {
	Code string `json:"code" validate:"required"`
}

// RedeemResponse is the JSON response for a successful redemption.
type RedeemResponse struct {
	Success bool  `json:"success"`
	Quota   int64 `json:"quota"`
}

// Response is the JSON representation of a redemption code for admin
// listing.
type Response struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Quota     int64      `json:"quota"`
	Used      bool       `json:"used"`
	UsedBy    *string    `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
