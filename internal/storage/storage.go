// Package storage keeps uploaded product images on local disk or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"storefront/internal/models"
)

// Image is an uploaded file waiting to be stored.
type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// ImageStore saves images and returns the public URL they are served from.
type ImageStore interface {
	Save(ctx context.Context, img Image) (string, error)
}

// contentType returns the image's MIME type, falling back to the extension of
// its filename, and rejects anything that is not an image.
func contentType(img Image) (string, error) {
	ct := img.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(img.Filename)))
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mediaType
	}
	if !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%q: %w", ct, models.ErrUnsupportedImage)
	}
	return ct, nil
}

// objectName builds "image-<unixmillis><ext>" the way uploaded files are named.
func objectName(img Image, ct string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(img.Filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(ct); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("image-%d%s", now.UnixMilli(), ext)
}
