package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agita-app/agita/internal/client/metrics"
	"github.com/agita-app/agita/internal/client/objects"
	"github.com/agita-app/agita/internal/common"
	"github.com/agita-app/agita/internal/netx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, h http.HandlerFunc) *Store {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c, err := netx.NewClient(netx.Options{BaseURL: ts.URL, APIKey: "anon"})
	require.NoError(t, err)
	return New(c, metrics.New())
}

func TestUpload(t *testing.T) {
	var (
		method, path, ct, cache, upsert string
		body                            []byte
	)
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		ct, cache, upsert = r.Header.Get("Content-Type"), r.Header.Get("Cache-Control"), r.Header.Get("x-upsert")
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"Key":"avatars/u1-1.png"}`))
	})

	url, err := s.Upload(context.Background(), "avatars", "u1-1.png", []byte("png"),
		objects.UploadOptions{ContentType: "image/png", CacheControl: "3600", Overwrite: true})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/storage/v1/object/avatars/u1-1.png", path)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, "max-age=3600", cache)
	assert.Equal(t, "true", upsert)
	assert.Equal(t, []byte("png"), body)
	assert.Equal(t, s.c.BaseURL()+"/storage/v1/object/public/avatars/u1-1.png", url)
}

func TestUpload_DefaultsAndErrors(t *testing.T) {
	var ct, upsert string
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		ct, upsert = r.Header.Get("Content-Type"), r.Header.Get("x-upsert")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":"409","error":"Duplicate","message":"The resource already exists"}`))
	})

	_, err := s.Upload(context.Background(), "avatars", "x.png", []byte("x"), objects.UploadOptions{})
	require.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, "application/octet-stream", ct)
	assert.Empty(t, upsert)
}

func TestDelete(t *testing.T) {
	calls := 0
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/reward-images/a%20b.png", r.URL.EscapedPath())
		if calls > 1 {
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, s.Delete(context.Background(), "reward-images", "a b.png"))
	require.NoError(t, s.Delete(context.Background(), "reward-images", "a b.png"))
	assert.Equal(t, 2, calls)
}

func TestDelete_ServerError(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	require.ErrorIs(t, s.Delete(context.Background(), "b", "k"), common.ErrUnavailable)
}
