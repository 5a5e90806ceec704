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

const devicesCollection = "devices"

// DeviceRepository handles push-capable device records
type DeviceRepository struct {
	client *mongodb.MongoClient
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(client *mongodb.MongoClient) *DeviceRepository {
	return &DeviceRepository{client: client}
}

// EnsureIndexes creates the natural-key index for device upserts
func (r *DeviceRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "family_id", Value: 1},
				{Key: "auth_user_id", Value: 1},
				{Key: "device_name", Value: 1},
			},
			Options: options.Index().SetName("family_user_device_idx").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "family_id", Value: 1},
				{Key: "member_id", Value: 1},
			},
			Options: options.Index().SetName("family_member_idx"),
		},
	}
	return r.client.CreateIndexes(ctx, devicesCollection, indexes)
}

// Upsert registers or refreshes a device keyed by
// (family_id, auth_user_id, device_name)
func (r *DeviceRepository) Upsert(ctx context.Context, device *domain.Device) error {
	filter := bson.M{
		"family_id":    device.FamilyID,
		"auth_user_id": device.AuthUserID,
		"device_name":  device.DeviceName,
	}
	update := bson.M{
		"$set": bson.M{
			"member_id":    device.MemberID,
			"platform":     device.Platform,
			"push_token":   device.PushToken,
			"last_seen_at": time.Now().UTC(),
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.client.Collection(devicesCollection).UpdateOne(ctx, filter, update, opts)
	return err
}

// FindPushTokens returns the stored push tokens of the given members'
// devices within a family. Devices without a token are skipped.
func (r *DeviceRepository) FindPushTokens(ctx context.Context, familyID string, memberIDs []string) ([]string, error) {
	filter := bson.M{
		"family_id":  familyID,
		"member_id":  bson.M{"$in": memberIDs},
		"push_token": bson.M{"$nin": bson.A{nil, ""}},
	}
	cursor, err := r.client.Collection(devicesCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var devices []*domain.Device
	if err = cursor.All(ctx, &devices); err != nil {
		return nil, err
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		if d.PushToken != "" {
			tokens = append(tokens, d.PushToken)
		}
	}
	return tokens, nil
}
