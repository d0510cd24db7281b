// Package memory is an in-process objects.Store for tests and offline runs.
package memory

import (
	"context"
	"sync"

	"github.com/agita-app/agita/internal/client/objects"
	"github.com/agita-app/agita/internal/common"
)

type Object struct {
	Data []byte
	Opts objects.UploadOptions
}

// Store keeps objects in a map keyed by bucket/key.
type Store struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]Object
	uploads int

	// FailUploads makes every upload fail with common.ErrUnavailable.
	FailUploads bool
}

func New(baseURL string) *Store {
	return &Store{baseURL: baseURL, objects: make(map[string]Object)}
}

var _ objects.Store = (*Store)(nil)

func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte, opts objects.UploadOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.FailUploads {
		return "", common.ErrUnavailable
	}
	k := bucket + "/" + key
	if _, exists := s.objects[k]; exists && !opts.Overwrite {
		return "", common.ErrConflict
	}
	s.objects[k] = Object{Data: append([]byte(nil), data...), Opts: opts}
	return s.PublicURL(bucket, key), nil
}

func (s *Store) PublicURL(bucket, key string) string {
	return s.baseURL + "/" + bucket + "/" + key
}

func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+key)
	return nil
}

// Get returns a stored object.
func (s *Store) Get(bucket, key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[bucket+"/"+key]
	return o, ok
}

// Uploads counts upload attempts, including failed ones.
func (s *Store) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// Len is the number of stored objects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
