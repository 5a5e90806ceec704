package dlq

import (
	"context"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FailedJobStore is the slice of the job store the DLQ needs
type FailedJobStore interface {
	FindFailed(ctx context.Context, limit int) ([]*domain.NotificationJob, error)
	Requeue(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// DeadLetterQueue is an operator facade over terminally failed jobs.
// Failed jobs stay in the jobs collection with their last_error; this
// just lists them and puts selected ones back in play.
type DeadLetterQueue struct {
	jobs FailedJobStore
	log  *logger.Logger
}

// NewDeadLetterQueue creates a new dead letter queue
func NewDeadLetterQueue(jobs FailedJobStore, log *logger.Logger) *DeadLetterQueue {
	return &DeadLetterQueue{
		jobs: jobs,
		log:  log,
	}
}

// GetAll lists failed jobs, newest first
func (dlq *DeadLetterQueue) GetAll(ctx context.Context, limit int) ([]*domain.NotificationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	return dlq.jobs.FindFailed(ctx, limit)
}

// Requeue resets a failed job to queued with a fresh retry budget
func (dlq *DeadLetterQueue) Requeue(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	dlq.log.Info("Requeueing failed job", "id", id)
	return dlq.jobs.Requeue(ctx, objectID)
}

// Purge removes a failed job permanently
func (dlq *DeadLetterQueue) Purge(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	dlq.log.Info("Purging failed job", "id", id)
	return dlq.jobs.Delete(ctx, objectID)
}
