package hooks

import (
	"context"
	"errors"
	"time"

	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/common"
)

// EventFilter narrows the event list. UpcomingOnly hides events that have
// already ended.
type EventFilter struct {
	UpcomingOnly bool
}

var eventsQuery = declareQuery(&Query[EventFilter, []models.Event]{
	Name:       "events",
	Collection: models.TableEvents,
	Params:     func(f EventFilter) map[string]any { return map[string]any{"upcoming": f.UpcomingOnly} },
	Load: func(ctx context.Context, c *Client, f EventFilter) ([]models.Event, error) {
		q := store.From(models.TableEvents).
			Where(store.Eq("is_active", true)).
			OrderBy("starts_at", false)
		if f.UpcomingOnly {
			q = q.Where(store.Gte("ends_at", c.now().UTC().Format(time.RFC3339)))
		}
		rows, err := c.store.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return store.DecodeAll[models.Event]("event", rows)
	},
})

type participation struct {
	UserID  string
	EventID string
}

func participationParams(p participation) map[string]any {
	return map[string]any{"user_id": p.UserID, "event_id": p.EventID}
}

var participationQuery = declareQuery(&Query[participation, bool]{
	Name:       "participation",
	Collection: models.TableEventParticipants,
	Params:     participationParams,
	Load: func(ctx context.Context, c *Client, p participation) (bool, error) {
		_, err := findParticipant(ctx, c, p)
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	},
})

var participantsQuery = declareQuery(&Query[string, []models.EventParticipant]{
	Name:       "event participants",
	Collection: models.TableEventParticipants,
	Params:     func(eventID string) map[string]any { return map[string]any{"event_id": eventID} },
	Load: func(ctx context.Context, c *Client, eventID string) ([]models.EventParticipant, error) {
		rows, err := c.store.Query(ctx, store.From(models.TableEventParticipants).
			Where(store.Eq("event_id", eventID)).
			OrderBy("created_at", false))
		if err != nil {
			return nil, err
		}
		return store.DecodeAll[models.EventParticipant]("participant", rows)
	},
})

func findParticipant(ctx context.Context, c *Client, p participation) (models.EventParticipant, error) {
	row, err := c.store.QuerySingle(ctx, store.From(models.TableEventParticipants).
		Where(store.Eq("event_id", p.EventID), store.Eq("user_id", p.UserID)))
	if err != nil {
		return models.EventParticipant{}, err
	}
	return store.Decode[models.EventParticipant]("participant", row)
}

func participationDeps[Out any]() []Dependency[participation, Out] {
	return []Dependency[participation, Out]{
		{Collection: models.TableEventParticipants, Params: func(in participation, _ Out) map[string]any {
			return map[string]any{"event_id": in.EventID}
		}},
		{Collection: models.TableEventParticipants, Params: func(in participation, _ Out) map[string]any {
			return map[string]any{"user_id": in.UserID}
		}},
		{Collection: models.TableEvents},
	}
}

var joinEvent = declareMutation(&Mutation[participation, models.EventParticipant]{
	Name:        "join event",
	Writes:      []string{models.TableEventParticipants},
	Invalidates: participationDeps[models.EventParticipant](),
	Run: func(ctx context.Context, c *Client, in participation) (models.EventParticipant, error) {
		if in.UserID == "" || in.EventID == "" {
			return models.EventParticipant{}, common.NewValidationError("participant", "event_id", "user and event required")
		}
		saved, err := c.store.Upsert(ctx, models.TableEventParticipants, store.Row{
			"event_id": in.EventID,
			"user_id":  in.UserID,
			"status":   models.ParticipantJoined,
		})
		if err != nil {
			return models.EventParticipant{}, err
		}
		return store.Decode[models.EventParticipant]("participant", saved)
	},
})

var leaveEvent = declareMutation(&Mutation[participation, struct{}]{
	Name:        "leave event",
	Writes:      []string{models.TableEventParticipants},
	Invalidates: participationDeps[struct{}](),
	Run: func(ctx context.Context, c *Client, in participation) (struct{}, error) {
		p, err := findParticipant(ctx, c, in)
		if errors.Is(err, common.ErrNotFound) {
			return struct{}{}, nil
		}
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, c.store.Remove(ctx, models.TableEventParticipants, p.ID)
	},
})

// Events lists active events by start time.
func (c *Client) Events(ctx context.Context, f EventFilter) ([]models.Event, error) {
	return eventsQuery.Read(ctx, c, f)
}

// Participation reports whether userID has joined eventID.
func (c *Client) Participation(ctx context.Context, userID, eventID string) (bool, error) {
	return participationQuery.Read(ctx, c, participation{UserID: userID, EventID: eventID})
}

// EventParticipants lists who joined eventID.
func (c *Client) EventParticipants(ctx context.Context, eventID string) ([]models.EventParticipant, error) {
	return participantsQuery.Read(ctx, c, eventID)
}

// JoinEvent registers userID for eventID. Joining twice fails with
// common.ErrConflict.
func (c *Client) JoinEvent(ctx context.Context, userID, eventID string) (models.EventParticipant, error) {
	return joinEvent.Mutate(ctx, c, participation{UserID: userID, EventID: eventID})
}

// LeaveEvent removes userID from eventID. Leaving an event never joined is
// not an error.
func (c *Client) LeaveEvent(ctx context.Context, userID, eventID string) error {
	_, err := leaveEvent.Mutate(ctx, c, participation{UserID: userID, EventID: eventID})
	return err
}
