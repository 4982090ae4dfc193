package inventory

import (
	"context"
	"time"

	"github.com/MimeLyc/media-alt-enhancer/internal/config"
)

// MediaItem is one image in the media library
//
// ID: Opaque identifier, stable across scans
// URL: Public URL the vision model fetches the image from
// AltText: Current accessibility description, possibly empty
// MimeType: Image MIME type
// Path: Filesystem path the item was discovered at
type MediaItem struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	AltText   string    `json:"alt_text"`
	MimeType  string    `json:"mime_type"`
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Inventory is the media collection an enhancement pass reads and writes.
// ListCandidates returns items in their natural enumeration order; the
// policy decides whether items with existing alt text are included.
type Inventory interface {
	ListCandidates(ctx context.Context, policy config.ReplacePolicy, limit int) ([]MediaItem, error)
	SetAltText(ctx context.Context, id, text string) error
}

// RunRecord summarizes one completed enhancement pass.
type RunRecord struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Errors     []string  `json:"errors"`
}
