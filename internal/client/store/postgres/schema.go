package postgres

import "github.com/agita-app/agita/internal/client/models"

// columns whitelists the identifiers that may appear in generated SQL.
var columns = map[string][]string{
	models.TableProfiles: {
		"id", "full_name", "avatar_url", "city", "total_suor", "xp", "level",
		"current_streak", "longest_streak", "is_admin", "created_at", "updated_at",
	},
	models.TableActivityTypes: {
		"id", "name", "category", "description", "icon", "suor_per_minute",
		"xp_per_minute", "is_active", "created_at", "updated_at",
	},
	models.TableActivities: {
		"id", "user_id", "activity_type_id", "duration_minutes", "description",
		"photo_url", "status", "suor_earned", "xp_earned", "reviewed_by",
		"reviewed_at", "created_at", "updated_at",
	},
	models.TableRewards: {
		"id", "title", "description", "category", "suor_cost", "stock",
		"image_url", "is_available", "created_at", "updated_at",
	},
	models.TableRewardRedemptions: {
		"id", "user_id", "reward_id", "suor_spent", "status", "created_at", "updated_at",
	},
	models.TableEvents: {
		"id", "title", "description", "location", "starts_at", "ends_at",
		"suor_reward", "max_participants", "image_url", "is_active",
		"created_at", "updated_at",
	},
	models.TableEventParticipants: {
		"id", "event_id", "user_id", "status", "created_at", "updated_at",
	},
}

type table struct {
	name string
	cols map[string]struct{}
}

func lookup(collection string) (table, bool) {
	cs, ok := columns[collection]
	if !ok {
		return table{}, false
	}
	t := table{name: collection, cols: make(map[string]struct{}, len(cs))}
	for _, c := range cs {
		t.cols[c] = struct{}{}
	}
	return t, true
}

func (t table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}
