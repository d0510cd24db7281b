package store

import (
	"errors"
	"testing"
	"time"

	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOne(t *testing.T) {
	_, err := One(nil)
	require.ErrorIs(t, err, common.ErrNotFound)

	r, err := One([]Row{{"id": "a"}})
	require.NoError(t, err)
	assert.Equal(t, "a", r.ID())

	_, err = One([]Row{{"id": "a"}, {"id": "b"}})
	require.ErrorIs(t, err, common.ErrAmbiguous)
}

func TestDecode_ValidRow(t *testing.T) {
	row := Row{
		"id": "t1", "name": "Corrida", "category": "running",
		"suor_per_minute": 2.5, "xp_per_minute": 1, "is_active": true,
		"created_at": "2024-03-01T10:00:00Z", "unknown_column": "ignored",
	}
	at, err := Decode[models.ActivityType](models.TableActivityTypes, row)
	require.NoError(t, err)
	assert.Equal(t, "Corrida", at.Name)
	assert.Equal(t, 2.5, at.SUORPerMinute)
	assert.True(t, at.IsActive)
	assert.Equal(t, 2024, at.CreatedAt.Year())
}

func TestDecode_SchemaMismatch(t *testing.T) {
	_, err := Decode[models.ActivityType]("activity_types", Row{"id": "t1", "name": 42})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = Decode[models.ActivityType]("activity_types", Row{"id": "t1", "category": "running"})
	var ve *common.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "required", ve.Fields["name"])
}

func TestDecodeAll_FailsWholeBatch(t *testing.T) {
	rows := []Row{
		{"id": "p1", "level": 1},
		{"id": "p2", "level": 0},
	}
	_, err := DecodeAll[models.Profile]("profiles", rows)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "row 1")
}

func TestEncode(t *testing.T) {
	row, err := Encode(models.ActivityInput{UserID: "u1", ActivityTypeID: "t1", DurationMinutes: 30})
	require.NoError(t, err)
	assert.Equal(t, "u1", row["user_id"])
	assert.Equal(t, float64(30), row["duration_minutes"])
	assert.NotContains(t, row, "description")
}

func TestQuery_Builders(t *testing.T) {
	base := From("activities")
	q := base.Where(Eq("status", "pending")).OrderBy("created_at", true)

	assert.Empty(t, base.Filters)
	require.Len(t, q.Filters, 1)
	assert.Equal(t, &Order{Field: "created_at", Descending: true}, q.Order)
	require.NoError(t, q.Validate())

	assert.ErrorIs(t, Query{}.Validate(), common.ErrValidation)
	assert.ErrorIs(t, From("x").Where(Filter{Field: "a", Op: "like"}).Validate(), common.ErrValidation)
	assert.ErrorIs(t, From("x").Where(Filter{Field: "a", Op: OpIn, Value: "a"}).Validate(), common.ErrValidation)
}

func TestMatches(t *testing.T) {
	row := Row{
		"category": "running", "is_active": true, "name": "Corrida de Rua",
		"duration_minutes": float64(45), "starts_at": "2024-05-01T08:00:00Z",
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"eq string", Eq("category", "running"), true},
		{"eq bool", Eq("is_active", true), true},
		{"eq bool mismatch", Eq("is_active", false), false},
		{"eq int vs float", Eq("duration_minutes", 45), true},
		{"neq", Neq("category", "gym"), true},
		{"ilike case-insensitive substring", ILike("name", "DE RUA"), true},
		{"ilike miss", ILike("name", "bike"), false},
		{"gte number", Gte("duration_minutes", 30), true},
		{"lte number", Lte("duration_minutes", 30), false},
		{"gte time", Gte("starts_at", time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)), true},
		{"lte time with fraction", Lte("starts_at", "2024-05-01T08:00:00.5Z"), true},
		{"in", In("category", []string{"gym", "running"}), true},
		{"in miss", In("category", []string{"gym"}), false},
		{"missing field eq", Eq("city", "Recife"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(row, []Filter{tt.filter}))
		})
	}
}

func TestSortRows(t *testing.T) {
	rows := []Row{{"name": "Natação"}, {"name": "Corrida"}, {}, {"name": "Bike"}}

	SortRows(rows, &Order{Field: "name"})
	assert.Equal(t, "Bike", rows[0]["name"])
	assert.Equal(t, "Corrida", rows[1]["name"])
	assert.Equal(t, "Natação", rows[2]["name"])
	assert.Nil(t, rows[3]["name"])

	SortRows(rows, &Order{Field: "name", Descending: true})
	assert.Equal(t, "Natação", rows[0]["name"])
	assert.Nil(t, rows[3]["name"])
}
