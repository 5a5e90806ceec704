package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestJobForCalendarCreated(t *testing.T) {
	job, err := jobForEvent(&domain.AppEvent{
		Type:     domain.AppEventCalendarCreated,
		FamilyID: "fam-1",
		EventID:  "ev-1",
		Title:    "Swim practice",
	})
	require.NoError(t, err)

	assert.Equal(t, "fam-1", job.FamilyID)
	assert.Empty(t, job.MemberID)
	assert.Equal(t, domain.JobChannelPush, job.Channel)
	assert.Equal(t, domain.AudienceFamily, job.Audience)
	assert.Equal(t, "Swim practice", job.Body)
	assert.Equal(t, domain.PayloadKindEvent, job.Data.Kind)
	assert.Equal(t, "ev-1", job.Data.EventID)
	assert.Equal(t, "event:ev-1:created", job.DedupeKey)
}

func TestJobForTaskAssigned(t *testing.T) {
	job, err := jobForEvent(&domain.AppEvent{
		Type:     domain.AppEventTaskAssigned,
		FamilyID: "fam-1",
		MemberID: "mem-1",
		TaskID:   "tk-1",
		Title:    "Take out the trash",
	})
	require.NoError(t, err)

	assert.Equal(t, "mem-1", job.MemberID)
	assert.Equal(t, domain.AudienceMember, job.Audience)
	assert.Equal(t, domain.PayloadKindTask, job.Data.Kind)
	assert.Equal(t, "task:tk-1:assigned:mem-1", job.DedupeKey)
}

func TestJobForEventRejectsIncompleteEvents(t *testing.T) {
	tests := []struct {
		name  string
		event domain.AppEvent
	}{
		{"missing family", domain.AppEvent{Type: domain.AppEventCalendarCreated, EventID: "ev-1"}},
		{"missing event id", domain.AppEvent{Type: domain.AppEventCalendarCreated, FamilyID: "fam-1"}},
		{"missing assignee", domain.AppEvent{Type: domain.AppEventTaskAssigned, FamilyID: "fam-1", TaskID: "tk-1"}},
		{"unknown type", domain.AppEvent{Type: "family.renamed", FamilyID: "fam-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := jobForEvent(&tt.event)
			assert.Nil(t, job)
			assert.Error(t, err)
		})
	}
}

type recordingJobStore struct {
	enqueued []*domain.NotificationJob
}

func (s *recordingJobStore) Enqueue(_ context.Context, job *domain.NotificationJob) (*primitive.ObjectID, error) {
	s.enqueued = append(s.enqueued, job)
	id := primitive.NewObjectID()
	return &id, nil
}
func (s *recordingJobStore) ClaimDue(context.Context, int, time.Time, string) ([]*domain.NotificationJob, error) {
	return nil, nil
}
func (s *recordingJobStore) MarkSent(context.Context, primitive.ObjectID, time.Time) error {
	return nil
}
func (s *recordingJobStore) MarkRetry(context.Context, primitive.ObjectID, int, string, time.Time) error {
	return nil
}
func (s *recordingJobStore) MarkFailed(context.Context, primitive.ObjectID, int, string) error {
	return nil
}

func TestProcessEventIgnoresUnrecognizedTypes(t *testing.T) {
	jobs := &recordingJobStore{}
	c := NewEventConsumer(nil, jobs, logger.NewLogger())

	// Unrecognized events are acked, not retried: processEvent reports
	// success and enqueues nothing.
	err := c.processEvent(context.Background(), &domain.AppEvent{Type: "family.renamed", FamilyID: "fam-1"})
	assert.NoError(t, err)
	assert.Empty(t, jobs.enqueued)
}

func TestProcessEventEnqueuesRecognizedTypes(t *testing.T) {
	jobs := &recordingJobStore{}
	c := NewEventConsumer(nil, jobs, logger.NewLogger())

	err := c.processEvent(context.Background(), &domain.AppEvent{
		Type:     domain.AppEventCalendarCreated,
		FamilyID: "fam-1",
		EventID:  "ev-1",
		Title:    "Swim practice",
	})
	require.NoError(t, err)
	require.Len(t, jobs.enqueued, 1)
	assert.Equal(t, "event:ev-1:created", jobs.enqueued[0].DedupeKey)
}
