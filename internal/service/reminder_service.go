package service

import (
	"context"
	"fmt"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/metrics"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
)

const (
	reminderLookahead = 30 * time.Minute
	reminderScanLimit = 500
)

// ReminderService scans for events starting soon and tasks now overdue
// and enqueues deduplicated notification jobs for them. The store's
// dedupe-on-insert keeps repeated ticks from re-notifying while the
// condition stays true.
type ReminderService struct {
	events EventStore
	tasks  TaskStore
	jobs   JobStore
	log    *logger.Logger
}

// NewReminderService creates a new reminder service
func NewReminderService(events EventStore, tasks TaskStore, jobs JobStore, log *logger.Logger) *ReminderService {
	return &ReminderService{
		events: events,
		tasks:  tasks,
		jobs:   jobs,
		log:    log,
	}
}

// ReminderRunResult reports how many reminder candidates each scan saw
type ReminderRunResult struct {
	Events int `json:"events"`
	Tasks  int `json:"tasks"`
}

// Run performs both scans once
func (s *ReminderService) Run(ctx context.Context) (*ReminderRunResult, error) {
	now := time.Now().UTC()
	result := &ReminderRunResult{}

	events, err := s.events.FindConfirmedStartingBetween(ctx, now, now.Add(reminderLookahead), reminderScanLimit)
	if err != nil {
		return nil, err
	}
	result.Events = len(events)

	for _, e := range events {
		_, err := s.jobs.Enqueue(ctx, &domain.NotificationJob{
			FamilyID: e.FamilyID,
			Channel:  domain.JobChannelPush,
			Audience: domain.AudienceFamily,
			Title:    "Upcoming event",
			Body:     fmt.Sprintf("%s starts in less than 30 minutes", e.Title),
			Data: domain.Payload{
				Kind:    domain.PayloadKindEvent,
				EventID: e.ID,
			},
			ScheduledAt: now,
			DedupeKey:   "event:" + e.ID + ":t-30m",
		})
		if err != nil {
			return nil, err
		}
		metrics.JobsEnqueued.WithLabelValues("reminder").Inc()
	}

	tasks, err := s.tasks.FindOverdue(ctx, now, reminderScanLimit)
	if err != nil {
		return nil, err
	}
	result.Tasks = len(tasks)

	for _, t := range tasks {
		// Unassigned overdue tasks have nobody to nag.
		if t.AssigneeMemberID == "" {
			continue
		}
		_, err := s.jobs.Enqueue(ctx, &domain.NotificationJob{
			FamilyID: t.FamilyID,
			MemberID: t.AssigneeMemberID,
			Channel:  domain.JobChannelPush,
			Audience: domain.AudienceMember,
			Title:    "Overdue task",
			Body:     t.Title,
			Data: domain.Payload{
				Kind:   domain.PayloadKindTask,
				TaskID: t.ID,
			},
			ScheduledAt: now,
			DedupeKey:   "task:" + t.ID + ":overdue",
		})
		if err != nil {
			return nil, err
		}
		metrics.JobsEnqueued.WithLabelValues("reminder").Inc()
	}

	return result, nil
}
