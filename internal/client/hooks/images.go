package hooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/agita-app/agita/internal/client/objects"
	"github.com/agita-app/agita/internal/common"
)

// File is an image picked by the user.
type File struct {
	Name string
	Data []byte
}

// UploadImage stores f in bucket under a collision-free name derived from
// ownerID and returns its public URL. Files breaking the upload policy are
// rejected before any network call. Every failure is also reported through
// the notifier; the returned URL is nil then.
func (c *Client) UploadImage(ctx context.Context, bucket string, f File, ownerID string) (*string, error) {
	key := objects.FileName(ownerID, c.now(), objects.Extension(f.Data))
	url, err := c.uploads().Upload(ctx, bucket, key, f.Data, objects.UploadOptions{CacheControl: "3600"})
	if err != nil {
		title := "Upload failed"
		if errors.Is(err, common.ErrValidation) {
			title = "Invalid file"
		}
		c.notify.Notify(ctx, Notification{Level: LevelError, Title: title, Message: err.Error(), Err: err})
		return nil, fmt.Errorf("upload image to %s: %w", bucket, err)
	}
	c.log.Info(ctx, "image uploaded", "bucket", bucket, "key", key, "name", f.Name)
	return &url, nil
}

// DeleteImage removes the object behind publicURL. Failures are notified and
// returned.
func (c *Client) DeleteImage(ctx context.Context, bucket, publicURL string) error {
	key, ok := objects.KeyFromURL(bucket, publicURL)
	if !ok {
		err := common.NewValidationError("image", "url", "not an object of bucket "+bucket)
		c.notify.Notify(ctx, Notification{Level: LevelError, Title: "Delete failed", Message: err.Error(), Err: err})
		return err
	}
	if err := c.objects.Delete(ctx, bucket, key); err != nil {
		c.notify.Notify(ctx, Notification{Level: LevelError, Title: "Delete failed", Message: err.Error(), Err: err})
		return fmt.Errorf("delete image %s/%s: %w", bucket, key, err)
	}
	return nil
}
