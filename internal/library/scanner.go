// Package library discovers images on disk and feeds them into the inventory.
package library

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/media-alt-enhancer/internal/inventory"
)

type SourceConfig struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	BaseURL string `json:"base_url"`
}

// Upserter is the slice of the inventory the scanner writes to.
type Upserter interface {
	UpsertItem(ctx context.Context, item inventory.MediaItem) error
}

type Scanner struct {
	sources []SourceConfig
}

func NewScanner(sources []SourceConfig) *Scanner {
	return &Scanner{sources: sources}
}

var imageMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".svg":  "image/svg+xml",
}

// Sync walks every configured source directory, maps each image file to its
// public URL, and upserts it into the inventory. Missing source directories
// are skipped. Returns the number of items synced.
func (s *Scanner) Sync(ctx context.Context, store Upserter) (int, error) {
	synced := 0
	now := time.Now().UTC()

	for _, source := range s.sources {
		if source.Path == "" {
			continue
		}
		if _, err := os.Stat(source.Path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return synced, err
		}

		err := filepath.WalkDir(source.Path, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if d.IsDir() {
				return nil
			}

			mimeType, ok := imageMimeTypes[strings.ToLower(filepath.Ext(path))]
			if !ok {
				return nil
			}

			rel, err := filepath.Rel(source.Path, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			item := inventory.MediaItem{
				ID:        source.ID + "|" + rel,
				URL:       publicURL(source.BaseURL, rel),
				MimeType:  mimeType,
				Path:      path,
				UpdatedAt: now,
			}
			if err := store.UpsertItem(ctx, item); err != nil {
				return err
			}
			synced++
			return nil
		})
		if err != nil {
			return synced, err
		}
	}
	return synced, nil
}

// publicURL joins the source's base URL with the slash-separated relative
// path, escaping each segment.
func publicURL(baseURL, rel string) string {
	segments := strings.Split(rel, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.Join(segments, "/")
}
