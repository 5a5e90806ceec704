package repository

import (
	"context"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const jobsCollection = "notification_jobs"

// JobRepository is the persisted notification job queue
type JobRepository struct {
	client *mongodb.MongoClient
}

// NewJobRepository creates a new job repository
func NewJobRepository(client *mongodb.MongoClient) *JobRepository {
	return &JobRepository{client: client}
}

// EnsureIndexes creates the indexes the claim and dedupe paths rely on.
// The partial unique index on (family_id, dedupe_key) is what makes
// Enqueue idempotent for keyed jobs.
func (r *JobRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "scheduled_at", Value: 1},
			},
			Options: options.Index().SetName("status_scheduled_idx"),
		},
		{
			Keys: bson.D{
				{Key: "family_id", Value: 1},
				{Key: "dedupe_key", Value: 1},
			},
			Options: options.Index().
				SetName("family_dedupe_idx").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"dedupe_key": bson.M{"$type": "string"}}),
		},
	}

	return r.client.CreateIndexes(ctx, jobsCollection, indexes)
}

// Enqueue inserts a job with status queued and attempts 0. When the job
// carries a dedupe key that already exists for the family, the insert is
// a silent no-op and (nil, nil) is returned: callers must not assume a
// fresh id.
func (r *JobRepository) Enqueue(ctx context.Context, job *domain.NotificationJob) (*primitive.ObjectID, error) {
	job.ID = primitive.NewObjectID()
	job.Status = domain.JobStatusQueued
	job.Attempts = 0
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = domain.DefaultMaxAttempts
	}
	now := time.Now().UTC()
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = now
	}
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := r.client.Collection(jobsCollection).InsertOne(ctx, job)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &job.ID, nil
}

// ClaimDue atomically claims up to limit due queued jobs, oldest first,
// transitioning each from queued to sending with lock fields stamped.
// Each claim is a single conditional findAndModify, so a job can be
// claimed by at most one concurrent dispatcher pass: a losing claimer's
// predicate no longer matches and it simply moves on to the next due job.
func (r *JobRepository) ClaimDue(ctx context.Context, limit int, now time.Time, claimedBy string) ([]*domain.NotificationJob, error) {
	filter := bson.M{
		"status":       domain.JobStatusQueued,
		"scheduled_at": bson.M{"$lte": now},
		"$or": []bson.M{
			{"next_attempt_at": nil},
			{"next_attempt_at": bson.M{"$lte": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     domain.JobStatusSending,
			"locked_at":  now,
			"locked_by":  claimedBy,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "scheduled_at", Value: 1}}).
		SetReturnDocument(options.After)

	var claimed []*domain.NotificationJob
	for len(claimed) < limit {
		var job domain.NotificationJob
		err := r.client.Collection(jobsCollection).
			FindOneAndUpdate(ctx, filter, update, opts).
			Decode(&job)
		if err == mongo.ErrNoDocuments {
			break
		}
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, &job)
	}

	return claimed, nil
}

// MarkSent transitions a job to sent
func (r *JobRepository) MarkSent(ctx context.Context, id primitive.ObjectID, sentAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"status":     domain.JobStatusSent,
			"sent_at":    sentAt,
			"updated_at": sentAt,
		},
	}
	_, err := r.client.Collection(jobsCollection).UpdateByID(ctx, id, update)
	return err
}

// MarkRetry increments attempts, records the error, clears the lock and
// returns the job to queued with a next-attempt time. The caller decides
// whether the retry budget is exhausted; this method only requeues.
func (r *JobRepository) MarkRetry(ctx context.Context, id primitive.ObjectID, attempts int, lastError string, nextAttemptAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"status":          domain.JobStatusQueued,
			"attempts":        attempts,
			"last_error":      lastError,
			"next_attempt_at": nextAttemptAt,
			"updated_at":      time.Now().UTC(),
		},
		"$unset": bson.M{
			"locked_at": "",
			"locked_by": "",
		},
	}
	_, err := r.client.Collection(jobsCollection).UpdateByID(ctx, id, update)
	return err
}

// MarkFailed terminally fails a job, preserving the last error
func (r *JobRepository) MarkFailed(ctx context.Context, id primitive.ObjectID, attempts int, lastError string) error {
	update := bson.M{
		"$set": bson.M{
			"status":     domain.JobStatusFailed,
			"attempts":   attempts,
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		},
		"$unset": bson.M{
			"locked_at": "",
			"locked_by": "",
		},
	}
	_, err := r.client.Collection(jobsCollection).UpdateByID(ctx, id, update)
	return err
}

// FindFailed lists terminally failed jobs, newest first
func (r *JobRepository) FindFailed(ctx context.Context, limit int) ([]*domain.NotificationJob, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.client.Collection(jobsCollection).
		Find(ctx, bson.M{"status": domain.JobStatusFailed}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []*domain.NotificationJob
	if err = cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Requeue resets a failed job back to queued with a fresh retry budget
func (r *JobRepository) Requeue(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"status":       domain.JobStatusQueued,
			"attempts":     0,
			"scheduled_at": now,
			"updated_at":   now,
		},
		"$unset": bson.M{
			"last_error":      "",
			"next_attempt_at": "",
			"locked_at":       "",
			"locked_by":       "",
		},
	}
	result, err := r.client.Collection(jobsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "status": domain.JobStatusFailed}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a failed job permanently
func (r *JobRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.client.Collection(jobsCollection).
		DeleteOne(ctx, bson.M{"_id": id, "status": domain.JobStatusFailed})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// CountByStatus returns the number of jobs in a given status
func (r *JobRepository) CountByStatus(ctx context.Context, status domain.JobStatus) (int64, error) {
	return r.client.Collection(jobsCollection).CountDocuments(ctx, bson.M{"status": status})
}
