package memory

import (
	"context"
	"testing"
	"time"

	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedActivityTypes(s *Store) {
	s.Seed(models.TableActivityTypes,
		store.Row{"id": "t1", "name": "Trail", "category": "running", "is_active": true},
		store.Row{"id": "t2", "name": "Corrida", "category": "running", "is_active": true},
		store.Row{"id": "t3", "name": "Esteira", "category": "running", "is_active": false},
		store.Row{"id": "t4", "name": "Bike", "category": "cycling", "is_active": true},
	)
}

func TestQuery_FilterAndOrder_ActivityTypes(t *testing.T) {
	s := New()
	seedActivityTypes(s)

	q := store.From(models.TableActivityTypes).
		Where(store.Eq("category", "running"), store.Eq("is_active", true)).
		OrderBy("name", false)

	rows, err := s.Query(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Corrida", rows[0]["name"])
	assert.Equal(t, "Trail", rows[1]["name"])
}

func TestQuery_Limit(t *testing.T) {
	s := New()
	seedActivityTypes(s)

	rows, err := s.Query(context.Background(), store.Query{Collection: models.TableActivityTypes, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestQuery_ReturnsCopies(t *testing.T) {
	s := New()
	seedActivityTypes(s)

	rows, err := s.Query(context.Background(), store.From(models.TableActivityTypes).Where(store.Eq("id", "t1")))
	require.NoError(t, err)
	rows[0]["name"] = "mutated"

	again, err := s.QuerySingle(context.Background(), store.From(models.TableActivityTypes).Where(store.Eq("id", "t1")))
	require.NoError(t, err)
	assert.Equal(t, "Trail", again["name"])
}

func TestQuerySingle_NotFoundAndAmbiguous(t *testing.T) {
	s := New()
	seedActivityTypes(s)
	ctx := context.Background()

	_, err := s.QuerySingle(ctx, store.From(models.TableActivityTypes).Where(store.Eq("category", "swimming")))
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.QuerySingle(ctx, store.From(models.TableActivityTypes).Where(store.Eq("category", "running")))
	require.ErrorIs(t, err, common.ErrAmbiguous)

	row, err := s.QuerySingle(ctx, store.From(models.TableActivityTypes).Where(store.Eq("category", "cycling")))
	require.NoError(t, err)
	assert.Equal(t, "t4", row.ID())
}

func TestUpsert_InsertAssignsIDAndTimestamps(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))

	row, err := s.Upsert(context.Background(), models.TableRewards, store.Row{"title": "Garrafa", "suor_cost": 100})
	require.NoError(t, err)
	assert.NotEmpty(t, row.ID())
	assert.Equal(t, "2024-06-01T12:00:00Z", row["created_at"])
	assert.Equal(t, float64(100), row["suor_cost"])
	assert.Equal(t, 1, s.Len(models.TableRewards))
}

func TestUpsert_UpdateMergesInPlace(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Seed(models.TableProfiles, store.Row{"id": "u1", "full_name": "Ana", "total_suor": 300, "level": 2})

	row, err := s.Upsert(ctx, models.TableProfiles, store.Row{"id": "u1", "city": "Recife"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", row["full_name"])
	assert.Equal(t, "Recife", row["city"])
	assert.Equal(t, 1, s.Len(models.TableProfiles))
}

func TestUpsert_UniqueConflict(t *testing.T) {
	s := New(WithUnique(models.TableEventParticipants, "event_id", "user_id"))
	ctx := context.Background()

	_, err := s.Upsert(ctx, models.TableEventParticipants, store.Row{"event_id": "e1", "user_id": "u1"})
	require.NoError(t, err)

	_, err = s.Upsert(ctx, models.TableEventParticipants, store.Row{"event_id": "e1", "user_id": "u1"})
	require.ErrorIs(t, err, common.ErrConflict)

	_, err = s.Upsert(ctx, models.TableEventParticipants, store.Row{"event_id": "e2", "user_id": "u1"})
	require.NoError(t, err)
}

func TestUpsert_Validation(t *testing.T) {
	s := New()
	_, err := s.Upsert(context.Background(), "", store.Row{})
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = s.Upsert(context.Background(), "x", nil)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestRemove_Idempotent(t *testing.T) {
	s := New()
	seedActivityTypes(s)
	ctx := context.Background()

	require.NoError(t, s.Remove(ctx, models.TableActivityTypes, "t1"))
	require.NoError(t, s.Remove(ctx, models.TableActivityTypes, "t1"))
	require.NoError(t, s.Remove(ctx, "no_such_table", "x"))
	assert.Equal(t, 3, s.Len(models.TableActivityTypes))
}

func TestCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Query(ctx, store.From("x"))
	require.ErrorIs(t, err, common.ErrUnavailable)
}
