package models

import "time"

// Table names in the hosted store.
const (
	TableProfiles          = "profiles"
	TableActivityTypes     = "activity_types"
	TableActivities        = "activities"
	TableRewards           = "rewards"
	TableRewardRedemptions = "reward_redemptions"
	TableEvents            = "events"
	TableEventParticipants = "event_participants"
)

// Storage buckets.
const (
	BucketAvatars        = "avatars"
	BucketActivityPhotos = "activity-photos"
	BucketRewardImages   = "reward-images"
)

// Profile is a user's public profile and SUOR/XP balance.
type Profile struct {
	ID            string    `json:"id" validate:"required"`
	FullName      string    `json:"full_name" validate:"max=120"`
	AvatarURL     *string   `json:"avatar_url,omitempty" validate:"omitempty,url"`
	City          string    `json:"city"`
	TotalSUOR     int       `json:"total_suor" validate:"gte=0"`
	XP            int       `json:"xp" validate:"gte=0"`
	Level         int       `json:"level" validate:"gte=1"`
	CurrentStreak int       `json:"current_streak" validate:"gte=0"`
	LongestStreak int       `json:"longest_streak" validate:"gte=0"`
	IsAdmin       bool      `json:"is_admin"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Fallback marks a client-synthesized placeholder. It is never serialized,
	// so a placeholder cannot travel back to the store.
	Fallback bool `json:"-"`
}

// ProfilePatch is the subset of profile fields a user may change.
// Nil fields are left untouched.
type ProfilePatch struct {
	FullName  *string `json:"full_name,omitempty" validate:"omitempty,min=2,max=120"`
	City      *string `json:"city,omitempty" validate:"omitempty,max=80"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// Apply merges the patch into p and returns the result.
func (pp ProfilePatch) Apply(p Profile) Profile {
	if pp.FullName != nil {
		p.FullName = *pp.FullName
	}
	if pp.City != nil {
		p.City = *pp.City
	}
	if pp.AvatarURL != nil {
		p.AvatarURL = pp.AvatarURL
	}
	return p
}

// Activity categories used by activity types and rewards.
const (
	CategoryRunning  = "running"
	CategoryCycling  = "cycling"
	CategoryWalking  = "walking"
	CategorySwimming = "swimming"
	CategoryGym      = "gym"
	CategorySports   = "sports"
	CategoryOther    = "other"
)

// ActivityType is an admin-managed kind of physical activity with its
// per-minute SUOR and XP rates.
type ActivityType struct {
	ID            string    `json:"id" validate:"required"`
	Name          string    `json:"name" validate:"required,max=80"`
	Category      string    `json:"category" validate:"required"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	SUORPerMinute float64   `json:"suor_per_minute" validate:"gte=0"`
	XPPerMinute   float64   `json:"xp_per_minute" validate:"gte=0"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Activity moderation states.
const (
	ActivityPending  = "pending"
	ActivityApproved = "approved"
	ActivityRejected = "rejected"
)

// Activity is one logged workout awaiting or past moderation.
type Activity struct {
	ID              string     `json:"id" validate:"required"`
	UserID          string     `json:"user_id" validate:"required"`
	ActivityTypeID  string     `json:"activity_type_id" validate:"required"`
	DurationMinutes int        `json:"duration_minutes" validate:"gte=1,lte=1440"`
	Description     string     `json:"description" validate:"max=500"`
	PhotoURL        *string    `json:"photo_url,omitempty"`
	Status          string     `json:"status" validate:"oneof=pending approved rejected"`
	SUOREarned      int        `json:"suor_earned" validate:"gte=0"`
	XPEarned        int        `json:"xp_earned" validate:"gte=0"`
	ReviewedBy      *string    `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ActivityInput is the form submitted when a user logs an activity.
type ActivityInput struct {
	UserID          string `json:"user_id" validate:"required"`
	ActivityTypeID  string `json:"activity_type_id" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=1,lte=1440"`
	Description     string `json:"description,omitempty" validate:"max=500"`
}

// AdminActivity is an activity joined with its submitter and type for the
// moderation list.
type AdminActivity struct {
	Activity
	SubmitterName    string  `json:"submitter_name"`
	SubmitterAvatar  *string `json:"submitter_avatar,omitempty"`
	ActivityTypeName string  `json:"activity_type_name"`
}

// Reward is a catalog item that can be redeemed with SUOR.
type Reward struct {
	ID          string    `json:"id" validate:"required"`
	Title       string    `json:"title" validate:"required,max=120"`
	Description string    `json:"description" validate:"max=1000"`
	Category    string    `json:"category"`
	SUORCost    int       `json:"suor_cost" validate:"gte=0"`
	Stock       *int      `json:"stock,omitempty" validate:"omitempty,gte=0"`
	ImageURL    *string   `json:"image_url,omitempty"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RewardInput is the admin form for creating or editing a reward.
// An empty ID creates a new reward.
type RewardInput struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title" validate:"required,min=3,max=120"`
	Description string  `json:"description" validate:"max=1000"`
	Category    string  `json:"category" validate:"required"`
	SUORCost    int     `json:"suor_cost" validate:"gte=1"`
	Stock       *int    `json:"stock,omitempty" validate:"omitempty,gte=0"`
	ImageURL    *string `json:"image_url,omitempty"`
	IsAvailable bool    `json:"is_available"`
}

// RewardRedemption records a user spending SUOR on a reward.
type RewardRedemption struct {
	ID        string    `json:"id" validate:"required"`
	UserID    string    `json:"user_id" validate:"required"`
	RewardID  string    `json:"reward_id" validate:"required"`
	SUORSpent int       `json:"suor_spent" validate:"gte=0"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is a time-boxed challenge users can join.
type Event struct {
	ID              string    `json:"id" validate:"required"`
	Title           string    `json:"title" validate:"required"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at" validate:"gtefield=StartsAt"`
	SUORReward      int       `json:"suor_reward" validate:"gte=0"`
	MaxParticipants *int      `json:"max_participants,omitempty" validate:"omitempty,gte=1"`
	ImageURL        *string   `json:"image_url,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Participation states.
const (
	ParticipantJoined    = "joined"
	ParticipantCompleted = "completed"
)

// EventParticipant links a user to an event.
type EventParticipant struct {
	ID        string    `json:"id" validate:"required"`
	EventID   string    `json:"event_id" validate:"required"`
	UserID    string    `json:"user_id" validate:"required"`
	Status    string    `json:"status" validate:"oneof=joined completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
