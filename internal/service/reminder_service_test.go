package service

import (
	"context"
	"testing"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReminderFixture(events *fakeEventStore, tasks *fakeTaskStore) (*ReminderService, *fakeJobStore) {
	jobs := newFakeJobStore()
	return NewReminderService(events, tasks, jobs, logger.NewLogger()), jobs
}

func TestReminderRunEnqueuesEventAndTaskJobs(t *testing.T) {
	now := time.Now().UTC()
	events := &fakeEventStore{events: []*domain.Event{
		{ID: "ev-soon", FamilyID: "fam-1", Title: "Soccer", StartsAt: now.Add(10 * time.Minute), EndsAt: now.Add(70 * time.Minute), Status: domain.EventStatusConfirmed},
		{ID: "ev-later", FamilyID: "fam-1", Title: "Dinner", StartsAt: now.Add(3 * time.Hour), EndsAt: now.Add(4 * time.Hour), Status: domain.EventStatusConfirmed},
		{ID: "ev-tentative", FamilyID: "fam-1", Title: "Maybe", StartsAt: now.Add(10 * time.Minute), EndsAt: now.Add(30 * time.Minute), Status: domain.EventStatusTentative},
	}}
	overdue := now.Add(-2 * time.Hour)
	tasks := &fakeTaskStore{tasks: []*domain.Task{
		{ID: "tk-1", FamilyID: "fam-1", Title: "Trash", Status: domain.TaskStatusOpen, DueAt: &overdue, AssigneeMemberID: "mem-1"},
	}}
	svc, jobs := newReminderFixture(events, tasks)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Events)
	assert.Equal(t, 1, result.Tasks)

	all := jobs.all()
	require.Len(t, all, 2)

	byKey := make(map[string]*domain.NotificationJob)
	for _, j := range all {
		byKey[j.DedupeKey] = j
	}

	ev := byKey["event:ev-soon:t-30m"]
	require.NotNil(t, ev)
	assert.Equal(t, domain.AudienceFamily, ev.Audience)
	assert.Empty(t, ev.MemberID)
	assert.Equal(t, "Upcoming event", ev.Title)
	assert.Equal(t, "Soccer starts in less than 30 minutes", ev.Body)
	assert.Equal(t, domain.PayloadKindEvent, ev.Data.Kind)
	assert.Equal(t, "ev-soon", ev.Data.EventID)

	tk := byKey["task:tk-1:overdue"]
	require.NotNil(t, tk)
	assert.Equal(t, domain.AudienceMember, tk.Audience)
	assert.Equal(t, "mem-1", tk.MemberID)
	assert.Equal(t, "Overdue task", tk.Title)
	assert.Equal(t, domain.PayloadKindTask, tk.Data.Kind)
	assert.Equal(t, "tk-1", tk.Data.TaskID)
}

func TestReminderRunDedupesAcrossTicks(t *testing.T) {
	now := time.Now().UTC()
	events := &fakeEventStore{events: []*domain.Event{
		{ID: "ev-1", FamilyID: "fam-1", Title: "Soccer", StartsAt: now.Add(10 * time.Minute), EndsAt: now.Add(time.Hour), Status: domain.EventStatusConfirmed},
	}}
	overdue := now.Add(-time.Hour)
	tasks := &fakeTaskStore{tasks: []*domain.Task{
		{ID: "tk-1", FamilyID: "fam-1", Title: "Trash", Status: domain.TaskStatusOpen, DueAt: &overdue, AssigneeMemberID: "mem-1"},
	}}
	svc, jobs := newReminderFixture(events, tasks)

	for i := 0; i < 3; i++ {
		result, err := svc.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Events)
		assert.Equal(t, 1, result.Tasks)
	}

	assert.Len(t, jobs.all(), 2, "repeated ticks enqueue nothing new")
}

func TestReminderSkipsUnassignedOverdueTasks(t *testing.T) {
	now := time.Now().UTC()
	overdue := now.Add(-time.Hour)
	tasks := &fakeTaskStore{tasks: []*domain.Task{
		{ID: "tk-unassigned", FamilyID: "fam-1", Title: "Nobody's", Status: domain.TaskStatusOpen, DueAt: &overdue},
		{ID: "tk-assigned", FamilyID: "fam-1", Title: "Mine", Status: domain.TaskStatusOpen, DueAt: &overdue, AssigneeMemberID: "mem-1"},
	}}
	svc, jobs := newReminderFixture(&fakeEventStore{}, tasks)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Tasks, "both tasks are scanned")

	all := jobs.all()
	require.Len(t, all, 1, "only the assigned one produces a job")
	assert.Equal(t, "task:tk-assigned:overdue", all[0].DedupeKey)
}

func TestReminderSkipsDoneAndUndatedTasks(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	tasks := &fakeTaskStore{tasks: []*domain.Task{
		{ID: "tk-done", FamilyID: "fam-1", Title: "Finished", Status: domain.TaskStatusDone, DueAt: &past, AssigneeMemberID: "mem-1"},
		{ID: "tk-undated", FamilyID: "fam-1", Title: "Whenever", Status: domain.TaskStatusOpen, AssigneeMemberID: "mem-1"},
	}}
	svc, jobs := newReminderFixture(&fakeEventStore{}, tasks)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Tasks)
	assert.Empty(t, jobs.all())
}
