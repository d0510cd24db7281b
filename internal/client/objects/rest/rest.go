// Package rest implements objects.Store on the hosted storage API
// (<base>/storage/v1/object/...).
package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/agita-app/agita/internal/client/metrics"
	"github.com/agita-app/agita/internal/client/objects"
	"github.com/agita-app/agita/internal/netx"
)

const storagePrefix = "/storage/v1/object/"

type Store struct {
	c       *netx.Client
	metrics *metrics.Metrics
}

func New(c *netx.Client, m *metrics.Metrics) *Store {
	return &Store{c: c, metrics: m}
}

var _ objects.Store = (*Store)(nil)

func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte, opts objects.UploadOptions) (_ string, err error) {
	defer func() { s.metrics.ObjectRequest("upload", bucket, err) }()

	h := http.Header{}
	ct := opts.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	if opts.CacheControl != "" {
		h.Set("Cache-Control", "max-age="+opts.CacheControl)
	}
	if opts.Overwrite {
		h.Set("x-upsert", "true")
	}

	_, err = s.c.Do(ctx, netx.Request{
		Method: http.MethodPost,
		Path:   storagePrefix + objectPath(bucket, key),
		Header: h,
		Body:   data,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	return s.PublicURL(bucket, key), nil
}

func (s *Store) PublicURL(bucket, key string) string {
	return s.c.BaseURL() + storagePrefix + "public/" + objectPath(bucket, key)
}

func (s *Store) Delete(ctx context.Context, bucket, key string) (err error) {
	defer func() { s.metrics.ObjectRequest("delete", bucket, err) }()

	_, err = s.c.Do(ctx, netx.Request{
		Method: http.MethodDelete,
		Path:   storagePrefix + objectPath(bucket, key),
	})
	if err != nil && !netx.IsNotFound(err) {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func objectPath(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(parts, "/")
}
