package repository

import (
	"context"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const tasksCollection = "tasks"

// TaskRepository reads household tasks
type TaskRepository struct {
	client *mongodb.MongoClient
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(client *mongodb.MongoClient) *TaskRepository {
	return &TaskRepository{client: client}
}

// FindOverdue lists tasks across all families that are not done and whose
// due time has passed, bounded by limit
func (r *TaskRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error) {
	filter := bson.M{
		"status": bson.M{"$ne": domain.TaskStatusDone},
		"due_at": bson.M{"$ne": nil, "$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "due_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.client.Collection(tasksCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []*domain.Task
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindOpenByFamily lists one family's open tasks ordered by due time
func (r *TaskRepository) FindOpenByFamily(ctx context.Context, familyID string, limit int) ([]*domain.Task, error) {
	filter := bson.M{
		"family_id": familyID,
		"status":    bson.M{"$ne": domain.TaskStatusDone},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "due_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.client.Collection(tasksCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []*domain.Task
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindOpenByAssignee lists a member's open tasks ordered by due time
func (r *TaskRepository) FindOpenByAssignee(ctx context.Context, familyID, memberID string, limit int) ([]*domain.Task, error) {
	filter := bson.M{
		"family_id":          familyID,
		"assignee_member_id": memberID,
		"status":             bson.M{"$ne": domain.TaskStatusDone},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "due_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.client.Collection(tasksCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []*domain.Task
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
