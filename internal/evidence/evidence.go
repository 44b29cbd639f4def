// Package evidence stores refund photos submitted through the intake
// workflow.
package evidence

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists one evidence object and returns where it landed.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// MediaType strips parameters from contentType and lowercases it. A value
// that does not parse is returned trimmed and lowercased.
func MediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// SupportedContentType reports whether contentType is an accepted image type.
func SupportedContentType(contentType string) bool {
	_, ok := extensions[MediaType(contentType)]
	return ok
}

// NewKey builds a unique object key grouped by order, e.g.
// 2026/10/19/<order>/<uuid>.jpg.
func NewKey(orderID string, contentType string, now time.Time) string {
	ext, ok := extensions[MediaType(contentType)]
	if !ok {
		ext = ".bin"
	}
	return path.Join(now.UTC().Format("2006/01/02"), orderID, uuid.NewString()+ext)
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("evidence key is required")
	}
	clean := path.Clean(key)
	if strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid evidence key %q", key)
	}
	return nil
}
