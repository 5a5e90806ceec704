package repository

import (
	"context"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const membersCollection = "family_members"

// MemberRepository reads family memberships. The pipeline never writes
// them; membership management belongs to the main application.
type MemberRepository struct {
	client *mongodb.MongoClient
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(client *mongodb.MongoClient) *MemberRepository {
	return &MemberRepository{client: client}
}

// FindActive lists active memberships across all families, bounded by limit
func (r *MemberRepository) FindActive(ctx context.Context, limit int) ([]*domain.FamilyMember, error) {
	opts := options.Find().SetLimit(int64(limit))
	cursor, err := r.client.Collection(membersCollection).
		Find(ctx, bson.M{"status": domain.MemberStatusActive}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []*domain.FamilyMember
	if err = cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// FindActiveByRoles lists active memberships across all families whose
// role is in roles, bounded by limit
func (r *MemberRepository) FindActiveByRoles(ctx context.Context, roles []domain.MemberRole, limit int) ([]*domain.FamilyMember, error) {
	filter := bson.M{
		"status": domain.MemberStatusActive,
		"role":   bson.M{"$in": roles},
	}
	opts := options.Find().SetLimit(int64(limit))
	cursor, err := r.client.Collection(membersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []*domain.FamilyMember
	if err = cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// FindFamilyMemberIDsByRoles returns the member ids of one family's
// active members whose role is in roles
func (r *MemberRepository) FindFamilyMemberIDsByRoles(ctx context.Context, familyID string, roles []domain.MemberRole) ([]string, error) {
	filter := bson.M{
		"family_id": familyID,
		"status":    domain.MemberStatusActive,
		"role":      bson.M{"$in": roles},
	}
	cursor, err := r.client.Collection(membersCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []*domain.FamilyMember
	if err = cursor.All(ctx, &members); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.MemberID != "" {
			ids = append(ids, m.MemberID)
		}
	}
	return ids, nil
}

// FindByAuthUser resolves the active membership of an authenticated user
// within a family. Returns mongo.ErrNoDocuments when the user is not an
// active member.
func (r *MemberRepository) FindByAuthUser(ctx context.Context, familyID, authUserID string) (*domain.FamilyMember, error) {
	filter := bson.M{
		"family_id":    familyID,
		"auth_user_id": authUserID,
		"status":       domain.MemberStatusActive,
	}

	var member domain.FamilyMember
	err := r.client.Collection(membersCollection).FindOne(ctx, filter).Decode(&member)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// ErrNoMembership is the sentinel returned by the driver when a
// membership lookup matches nothing
var ErrNoMembership = mongo.ErrNoDocuments
