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

const digestsCollection = "digests"

// DigestRepository persists digest documents by natural key
type DigestRepository struct {
	client *mongodb.MongoClient
}

// NewDigestRepository creates a new digest repository
func NewDigestRepository(client *mongodb.MongoClient) *DigestRepository {
	return &DigestRepository{client: client}
}

// EnsureIndexes creates the natural-key index digest upserts rely on
func (r *DigestRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "family_id", Value: 1},
				{Key: "member_id", Value: 1},
				{Key: "digest_type", Value: 1},
				{Key: "period_start", Value: 1},
				{Key: "period_end", Value: 1},
			},
			Options: options.Index().SetName("digest_natural_key_idx").SetUnique(true),
		},
	}
	return r.client.CreateIndexes(ctx, digestsCollection, indexes)
}

// Upsert writes a digest keyed by
// (family_id, member_id, digest_type, period_start, period_end).
// Rebuilding the same period replaces the stored content.
func (r *DigestRepository) Upsert(ctx context.Context, digest *domain.Digest) error {
	now := time.Now().UTC()
	filter := bson.M{
		"family_id":    digest.FamilyID,
		"member_id":    digest.MemberID,
		"digest_type":  digest.DigestType,
		"period_start": digest.PeriodStart,
		"period_end":   digest.PeriodEnd,
	}
	update := bson.M{
		"$set": bson.M{
			"content":    digest.Content,
			"status":     domain.DigestStatusReady,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.client.Collection(digestsCollection).UpdateOne(ctx, filter, update, opts)
	return err
}
