package history

import "time"

// Options is the JSON shape stored in history_records.options.
type Options struct {
	AspectRatio string `json:"aspectRatio"`
	ImageSize   string `json:"imageSize"`
}

// CreateRequest is the JSON body for POST /api/history.
type CreateRequest struct {
	Prompt    string   `json:"prompt" validate:"required"`
	ImageURL  string   `json:"image_url" validate:"required,url"`
	Options   Options  `json:"options"`
	RefImages []string `json:"ref_images"`
}

// Response is the JSON representation of a history record. Options and
// RefImages are stored as JSON strings in the database and re-parsed into
// their structured form on read.
type Response struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Prompt    string    `json:"prompt"`
	ImageURL  string    `json:"image_url"`
	Options   Options   `json:"options"`
	RefImages []string  `json:"ref_images"`
	CreatedAt time.Time `json:"created_at"`
}
