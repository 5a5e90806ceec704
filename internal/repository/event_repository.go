package repository

import (
	"context"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	eventsCollection    = "events"
	attendeesCollection = "event_attendees"
)

// EventRepository reads calendar events and their attendee links
type EventRepository struct {
	client *mongodb.MongoClient
}

// NewEventRepository creates a new event repository
func NewEventRepository(client *mongodb.MongoClient) *EventRepository {
	return &EventRepository{client: client}
}

// FindConfirmedStartingBetween lists confirmed events across all families
// whose start falls in [from, to], bounded by limit
func (r *EventRepository) FindConfirmedStartingBetween(ctx context.Context, from, to time.Time, limit int) ([]*domain.Event, error) {
	filter := bson.M{
		"status":    domain.EventStatusConfirmed,
		"starts_at": bson.M{"$gte": from, "$lte": to},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "starts_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.client.Collection(eventsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*domain.Event
	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// FindFamilyStartingBetween lists one family's events starting in
// [from, to], ordered by start time
func (r *EventRepository) FindFamilyStartingBetween(ctx context.Context, familyID string, from, to time.Time, limit int) ([]*domain.Event, error) {
	filter := bson.M{
		"family_id": familyID,
		"starts_at": bson.M{"$gte": from, "$lte": to},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "starts_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.client.Collection(eventsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*domain.Event
	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// FindAttendedInWindow lists a member's confirmed attended events that
// overlap [from, to], ordered by start time. Two queries: attendee links
// first, then the events themselves.
func (r *EventRepository) FindAttendedInWindow(ctx context.Context, familyID, memberID string, from, to time.Time) ([]*domain.Event, error) {
	linkFilter := bson.M{
		"family_id": familyID,
		"member_id": memberID,
	}
	cursor, err := r.client.Collection(attendeesCollection).Find(ctx, linkFilter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var links []*domain.EventAttendee
	if err = cursor.All(ctx, &links); err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}

	eventIDs := make([]string, 0, len(links))
	for _, l := range links {
		eventIDs = append(eventIDs, l.EventID)
	}

	eventFilter := bson.M{
		"_id":       bson.M{"$in": eventIDs},
		"family_id": familyID,
		"status":    domain.EventStatusConfirmed,
		"starts_at": bson.M{"$lt": to},
		"ends_at":   bson.M{"$gt": from},
	}
	opts := options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}})

	eventCursor, err := r.client.Collection(eventsCollection).Find(ctx, eventFilter, opts)
	if err != nil {
		return nil, err
	}
	defer eventCursor.Close(ctx)

	var events []*domain.Event
	if err = eventCursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
