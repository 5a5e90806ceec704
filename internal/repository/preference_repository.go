package repository

import (
	"context"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const preferencesCollection = "notification_preferences"

// PreferenceRepository handles per-member notification opt-outs
type PreferenceRepository struct {
	client *mongodb.MongoClient
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(client *mongodb.MongoClient) *PreferenceRepository {
	return &PreferenceRepository{client: client}
}

// EnsureIndexes creates the natural-key index for preference upserts
func (r *PreferenceRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "family_id", Value: 1},
				{Key: "member_id", Value: 1},
				{Key: "kind", Value: 1},
			},
			Options: options.Index().SetName("pref_natural_key_idx").SetUnique(true),
		},
	}
	return r.client.CreateIndexes(ctx, preferencesCollection, indexes)
}

// Upsert writes a preference keyed by (family_id, member_id, kind)
func (r *PreferenceRepository) Upsert(ctx context.Context, pref *domain.NotificationPreference) error {
	filter := bson.M{
		"family_id": pref.FamilyID,
		"member_id": pref.MemberID,
		"kind":      pref.Kind,
	}
	update := bson.M{
		"$set": bson.M{
			"enabled":    pref.Enabled,
			"updated_at": time.Now().UTC(),
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.client.Collection(preferencesCollection).UpdateOne(ctx, filter, update, opts)
	return err
}

// FindByMember lists a member's preferences
func (r *PreferenceRepository) FindByMember(ctx context.Context, familyID, memberID string) ([]*domain.NotificationPreference, error) {
	filter := bson.M{
		"family_id": familyID,
		"member_id": memberID,
	}
	cursor, err := r.client.Collection(preferencesCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var prefs []*domain.NotificationPreference
	if err = cursor.All(ctx, &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// FindOptedOut returns the member ids, among the given set, that have
// disabled the kind. Absence of a row means the member is opted in.
func (r *PreferenceRepository) FindOptedOut(ctx context.Context, familyID string, memberIDs []string, kind domain.PayloadKind) (map[string]bool, error) {
	filter := bson.M{
		"family_id": familyID,
		"member_id": bson.M{"$in": memberIDs},
		"kind":      kind,
		"enabled":   false,
	}
	cursor, err := r.client.Collection(preferencesCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var prefs []*domain.NotificationPreference
	if err = cursor.All(ctx, &prefs); err != nil {
		return nil, err
	}

	optedOut := make(map[string]bool, len(prefs))
	for _, p := range prefs {
		optedOut[p.MemberID] = true
	}
	return optedOut, nil
}
