package repository

import (
	"context"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const conflictsCollection = "event_conflicts"

// ConflictRepository persists derived event-conflict records. The
// collection is a rebuildable cache: each run replaces a member's rows
// wholesale.
type ConflictRepository struct {
	client *mongodb.MongoClient
}

// NewConflictRepository creates a new conflict repository
func NewConflictRepository(client *mongodb.MongoClient) *ConflictRepository {
	return &ConflictRepository{client: client}
}

// ReplaceForMember wipes a member's conflict rows and inserts the fresh
// set, returning the number of rows inserted. Delete-then-insert is safe
// here: the data is derived and concurrent rebuilds converge on the same
// rows.
func (r *ConflictRepository) ReplaceForMember(ctx context.Context, familyID, memberID string, conflicts []*domain.EventConflict) (int, error) {
	filter := bson.M{
		"family_id": familyID,
		"member_id": memberID,
	}
	if _, err := r.client.Collection(conflictsCollection).DeleteMany(ctx, filter); err != nil {
		return 0, err
	}

	if len(conflicts) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(conflicts))
	for _, c := range conflicts {
		c.ID = primitive.NewObjectID()
		c.FamilyID = familyID
		c.MemberID = memberID
		c.CreatedAt = now
		docs = append(docs, c)
	}

	result, err := r.client.Collection(conflictsCollection).InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}
	return len(result.InsertedIDs), nil
}
