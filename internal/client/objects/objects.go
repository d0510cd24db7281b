// Package objects defines the binary object storage contract (upload, public
// URL, delete) and the upload policy enforced before any bytes leave the
// process.
package objects

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agita-app/agita/internal/common"
	"github.com/gabriel-vasile/mimetype"
)

// UploadOptions tune a single upload.
type UploadOptions struct {
	ContentType  string
	CacheControl string // seconds, e.g. "3600"
	Overwrite    bool
}

// Store is a bucket-scoped object store.
type Store interface {
	// Upload stores data under bucket/key and returns its public URL.
	Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) (string, error)
	// PublicURL is the URL an uploaded object is served from.
	PublicURL(bucket, key string) string
	// Delete removes bucket/key. Deleting a missing object is not an error.
	Delete(ctx context.Context, bucket, key string) error
}

// Policy limits what may be uploaded.
type Policy struct {
	AllowedTypes []string // MIME types; empty allows any
	MaxBytes     int64    // zero disables the size check
}

// DefaultImagePolicy accepts common web image formats up to 5 MiB.
func DefaultImagePolicy() Policy {
	return Policy{
		AllowedTypes: []string{"image/jpeg", "image/png", "image/webp", "image/gif"},
		MaxBytes:     5 << 20,
	}
}

// Check sniffs data and returns its detected content type, or a
// *common.ValidationError when data breaks the policy.
func (p Policy) Check(data []byte) (string, error) {
	if len(data) == 0 {
		return "", common.NewValidationError("upload", "file", "empty")
	}
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return "", common.NewValidationError("upload", "file",
			fmt.Sprintf("size %d exceeds limit of %d bytes", len(data), p.MaxBytes))
	}

	mt := mimetype.Detect(data)
	ct, _, _ := strings.Cut(mt.String(), ";")
	if len(p.AllowedTypes) > 0 && !slices.ContainsFunc(p.AllowedTypes, mt.Is) {
		return "", common.NewValidationError("upload", "file", "content type "+ct+" not allowed")
	}
	return ct, nil
}

// Guarded enforces a Policy in front of another Store.
type Guarded struct {
	Store
	Policy Policy
}

// Upload rejects data that breaks the policy without calling the wrapped
// store. The sniffed content type replaces whatever the caller claimed.
func (g Guarded) Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) (string, error) {
	ct, err := g.Policy.Check(data)
	if err != nil {
		return "", err
	}
	opts.ContentType = ct
	return g.Store.Upload(ctx, bucket, key, data, opts)
}

// FileName builds a collision-free object key: <ownerID>-<epochMillis>.<ext>.
func FileName(ownerID string, now time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	return ownerID + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "." + ext
}

// Extension returns the canonical file extension (without dot) for data.
func Extension(data []byte) string {
	return strings.TrimPrefix(mimetype.Detect(data).Extension(), ".")
}

// KeyFromURL extracts the object key from a public URL produced for bucket.
func KeyFromURL(bucket, publicURL string) (string, bool) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", false
	}
	marker := "/" + bucket + "/"
	i := strings.LastIndex(u.Path, marker)
	if i < 0 {
		return "", false
	}
	key := u.Path[i+len(marker):]
	return key, key != ""
}
