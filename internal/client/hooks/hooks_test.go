package hooks

import (
	"context"
	"sync"
	"testing"
	"time"

	objmem "github.com/agita-app/agita/internal/client/objects/memory"
	"github.com/agita-app/agita/internal/client/querycache"
	"github.com/agita-app/agita/internal/client/session"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/client/store/memory"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

var ana = session.Identity{UserID: "u1", DisplayName: "Ana", Email: "ana@example.com"}

// spyStore counts calls per collection and can fail them.
type spyStore struct {
	store.Store

	mu        sync.Mutex
	reads     map[string]int
	writes    map[string]int
	readErr   error
	upsertErr error
}

func (s *spyStore) read(collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[collection]++
	return s.readErr
}

func (s *spyStore) write(collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[collection]++
	return s.upsertErr
}

func (s *spyStore) Reads(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[collection]
}

func (s *spyStore) Writes(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[collection]
}

func (s *spyStore) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

func (s *spyStore) FailUpserts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertErr = err
}

func (s *spyStore) Query(ctx context.Context, q store.Query) ([]store.Row, error) {
	if err := s.read(q.Collection); err != nil {
		return nil, err
	}
	return s.Store.Query(ctx, q)
}

func (s *spyStore) QuerySingle(ctx context.Context, q store.Query) (store.Row, error) {
	if err := s.read(q.Collection); err != nil {
		return nil, err
	}
	return s.Store.QuerySingle(ctx, q)
}

func (s *spyStore) Upsert(ctx context.Context, collection string, row store.Row) (store.Row, error) {
	if err := s.write(collection); err != nil {
		return nil, err
	}
	return s.Store.Upsert(ctx, collection, row)
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.got...)
}

type fixture struct {
	c       *Client
	mem     *memory.Store
	spy     *spyStore
	objects *objmem.Store
	notes   *recordingNotifier
	cache   *querycache.Cache
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }

	mem := memory.New(
		memory.WithClock(clock),
		memory.WithUnique("event_participants", "event_id", "user_id"),
	)
	seed(mem)

	f := &fixture{
		mem:     mem,
		spy:     &spyStore{Store: mem, reads: map[string]int{}, writes: map[string]int{}},
		objects: objmem.New("https://cdn.test"),
		notes:   &recordingNotifier{},
		cache:   querycache.New(querycache.WithClock(clock)),
	}
	t.Cleanup(f.cache.Close)

	opts = append([]Option{WithNotifier(f.notes), WithClock(clock)}, opts...)
	f.c = New(f.spy, f.objects, f.cache, opts...)
	return f
}

func seed(m *memory.Store) {
	m.Seed("profiles",
		store.Row{"id": "u1", "full_name": "Ana Souza", "city": "Recife", "total_suor": 900, "xp": 1200, "level": 4},
		store.Row{"id": "u2", "full_name": "Bruno Lima", "city": "Natal", "total_suor": 100, "xp": 50, "level": 1},
	)
	m.Seed("activity_types",
		store.Row{"id": "t-trail", "name": "Trail", "category": "running", "is_active": true, "suor_per_minute": 2, "xp_per_minute": 3},
		store.Row{"id": "t-sprint", "name": "Sprint", "category": "running", "is_active": false, "suor_per_minute": 3, "xp_per_minute": 3},
		store.Row{"id": "t-bike", "name": "Pedal", "category": "cycling", "is_active": true, "suor_per_minute": 1, "xp_per_minute": 1},
		store.Row{"id": "t-run", "name": "Corrida", "category": "running", "is_active": true, "suor_per_minute": 1.5, "xp_per_minute": 2},
	)
	m.Seed("activities",
		store.Row{"id": "a1", "user_id": "u1", "activity_type_id": "t-run", "duration_minutes": 30,
			"description": "Corrida no parque", "status": "pending", "created_at": "2024-06-01T08:00:00Z"},
		store.Row{"id": "a2", "user_id": "u2", "activity_type_id": "t-bike", "duration_minutes": 60,
			"description": "Pedal na orla", "status": "approved", "created_at": "2024-05-31T10:00:00Z"},
		store.Row{"id": "a3", "user_id": "u1", "activity_type_id": "t-trail", "duration_minutes": 45,
			"description": "Trilha", "status": "pending", "created_at": "2024-06-01T09:00:00Z"},
	)
	m.Seed("rewards",
		store.Row{"id": "r1", "title": "Garrafa", "category": "gear", "suor_cost": 300, "stock": 10,
			"is_available": true, "image_url": "https://cdn.test/reward-images/reward-1.png"},
		store.Row{"id": "r2", "title": "Camiseta", "category": "gear", "suor_cost": 500, "is_available": false},
		store.Row{"id": "r3", "title": "Tênis", "category": "gear", "suor_cost": 2000, "stock": 0, "is_available": true},
	)
	m.Seed("events",
		store.Row{"id": "e1", "title": "Corrida SP", "is_active": true, "suor_reward": 100,
			"starts_at": "2024-06-10T08:00:00Z", "ends_at": "2024-06-10T12:00:00Z"},
		store.Row{"id": "e2", "title": "Maratona de Maio", "is_active": true, "suor_reward": 300,
			"starts_at": "2024-05-01T08:00:00Z", "ends_at": "2024-05-01T14:00:00Z"},
		store.Row{"id": "e3", "title": "Cancelado", "is_active": false,
			"starts_at": "2024-06-20T08:00:00Z", "ends_at": "2024-06-20T12:00:00Z"},
	)
}

func pngFile(size int) File {
	data := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, size)...)
	return File{Name: "photo.png", Data: data}
}
