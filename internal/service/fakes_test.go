package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeJobStore implements JobStore in memory with the same dedupe and
// conditional-claim semantics the Mongo repository provides.
type fakeJobStore struct {
	mu     sync.Mutex
	jobs   map[primitive.ObjectID]*domain.NotificationJob
	dedupe map[string]primitive.ObjectID

	enqueueErr error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs:   make(map[primitive.ObjectID]*domain.NotificationJob),
		dedupe: make(map[string]primitive.ObjectID),
	}
}

func (s *fakeJobStore) Enqueue(_ context.Context, job *domain.NotificationJob) (*primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enqueueErr != nil {
		return nil, s.enqueueErr
	}

	if job.DedupeKey != "" {
		key := job.FamilyID + "|" + job.DedupeKey
		if _, exists := s.dedupe[key]; exists {
			return nil, nil
		}
		defer func() { s.dedupe[job.FamilyID+"|"+job.DedupeKey] = job.ID }()
	}

	stored := *job
	stored.ID = primitive.NewObjectID()
	stored.Status = domain.JobStatusQueued
	stored.Attempts = 0
	if stored.MaxAttempts <= 0 {
		stored.MaxAttempts = domain.DefaultMaxAttempts
	}
	if stored.ScheduledAt.IsZero() {
		stored.ScheduledAt = time.Now().UTC()
	}
	s.jobs[stored.ID] = &stored
	job.ID = stored.ID
	return &stored.ID, nil
}

func (s *fakeJobStore) ClaimDue(_ context.Context, limit int, now time.Time, claimedBy string) ([]*domain.NotificationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*domain.NotificationJob
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusQueued || job.ScheduledAt.After(now) {
			continue
		}
		if job.NextAttemptAt != nil && job.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, job)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })

	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.NotificationJob, 0, len(due))
	for _, job := range due {
		job.Status = domain.JobStatusSending
		at := now
		job.LockedAt = &at
		job.LockedBy = claimedBy
		snapshot := *job
		claimed = append(claimed, &snapshot)
	}
	return claimed, nil
}

func (s *fakeJobStore) MarkSent(_ context.Context, id primitive.ObjectID, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	job.Status = domain.JobStatusSent
	job.SentAt = &sentAt
	return nil
}

func (s *fakeJobStore) MarkRetry(_ context.Context, id primitive.ObjectID, attempts int, lastError string, nextAttemptAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	job.Status = domain.JobStatusQueued
	job.Attempts = attempts
	job.LastError = lastError
	job.NextAttemptAt = &nextAttemptAt
	job.LockedAt = nil
	job.LockedBy = ""
	return nil
}

func (s *fakeJobStore) MarkFailed(_ context.Context, id primitive.ObjectID, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	job.Status = domain.JobStatusFailed
	job.Attempts = attempts
	job.LastError = lastError
	job.LockedAt = nil
	job.LockedBy = ""
	return nil
}

func (s *fakeJobStore) get(id primitive.ObjectID) *domain.NotificationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// makeDue rewinds a job's scheduling fields so the next claim pass
// picks it up immediately
func (s *fakeJobStore) makeDue(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.NextAttemptAt = nil
		job.ScheduledAt = time.Now().UTC().Add(-time.Minute)
	}
}

func (s *fakeJobStore) all() []*domain.NotificationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.NotificationJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		snapshot := *job
		out = append(out, &snapshot)
	}
	return out
}

// fakeMembershipStore implements MembershipStore over a fixed slice
type fakeMembershipStore struct {
	members []*domain.FamilyMember
	err     error
}

func (s *fakeMembershipStore) FindActive(_ context.Context, limit int) ([]*domain.FamilyMember, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*domain.FamilyMember
	for _, m := range s.members {
		if m.Status == domain.MemberStatusActive && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMembershipStore) FindActiveByRoles(_ context.Context, roles []domain.MemberRole, limit int) ([]*domain.FamilyMember, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*domain.FamilyMember
	for _, m := range s.members {
		if m.Status != domain.MemberStatusActive || len(out) >= limit {
			continue
		}
		for _, r := range roles {
			if m.Role == r {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeMembershipStore) FindFamilyMemberIDsByRoles(_ context.Context, familyID string, roles []domain.MemberRole) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []string
	for _, m := range s.members {
		if m.FamilyID != familyID || m.Status != domain.MemberStatusActive {
			continue
		}
		for _, r := range roles {
			if m.Role == r {
				out = append(out, m.MemberID)
				break
			}
		}
	}
	return out, nil
}

// fakeDeviceStore implements DeviceStore over tokens per member
type fakeDeviceStore struct {
	tokens map[string][]string // member id -> stored push tokens
}

func (s *fakeDeviceStore) FindPushTokens(_ context.Context, _ string, memberIDs []string) ([]string, error) {
	var out []string
	for _, id := range memberIDs {
		out = append(out, s.tokens[id]...)
	}
	return out, nil
}

// fakePrefStore implements PreferenceStore over explicit opt-outs
type fakePrefStore struct {
	optedOut map[string]map[domain.PayloadKind]bool // member id -> kind -> disabled
}

func (s *fakePrefStore) FindOptedOut(_ context.Context, _ string, memberIDs []string, kind domain.PayloadKind) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range memberIDs {
		if s.optedOut[id][kind] {
			out[id] = true
		}
	}
	return out, nil
}

// fakeEventStore implements EventStore over fixed events and attendances
type fakeEventStore struct {
	events   []*domain.Event
	attended map[string][]string // member id -> event ids
	err      error
}

func (s *fakeEventStore) FindConfirmedStartingBetween(_ context.Context, from, to time.Time, limit int) ([]*domain.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*domain.Event
	for _, e := range s.events {
		if e.Status != domain.EventStatusConfirmed || len(out) >= limit {
			continue
		}
		if !e.StartsAt.Before(from) && !e.StartsAt.After(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (s *fakeEventStore) FindFamilyStartingBetween(_ context.Context, familyID string, from, to time.Time, limit int) ([]*domain.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*domain.Event
	for _, e := range s.events {
		if e.FamilyID != familyID || len(out) >= limit {
			continue
		}
		if !e.StartsAt.Before(from) && !e.StartsAt.After(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (s *fakeEventStore) FindAttendedInWindow(_ context.Context, familyID, memberID string, from, to time.Time) ([]*domain.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	attended := make(map[string]bool)
	for _, id := range s.attended[memberID] {
		attended[id] = true
	}
	var out []*domain.Event
	for _, e := range s.events {
		if e.FamilyID != familyID || e.Status != domain.EventStatusConfirmed || !attended[e.ID] {
			continue
		}
		if e.StartsAt.Before(to) && e.EndsAt.After(from) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

// fakeTaskStore implements TaskStore over a fixed slice
type fakeTaskStore struct {
	tasks []*domain.Task
}

func (s *fakeTaskStore) FindOverdue(_ context.Context, now time.Time, limit int) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range s.tasks {
		if t.Status == domain.TaskStatusDone || t.DueAt == nil || len(out) >= limit {
			continue
		}
		if !t.DueAt.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) FindOpenByFamily(_ context.Context, familyID string, limit int) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range s.tasks {
		if t.FamilyID == familyID && t.Status != domain.TaskStatusDone && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) FindOpenByAssignee(_ context.Context, familyID, memberID string, limit int) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range s.tasks {
		if t.FamilyID == familyID && t.AssigneeMemberID == memberID && t.Status != domain.TaskStatusDone && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

// fakeDigestStore implements DigestStore keyed by the natural tuple
type fakeDigestStore struct {
	mu      sync.Mutex
	digests map[string]*domain.Digest
	upserts int
	err     error
}

func newFakeDigestStore() *fakeDigestStore {
	return &fakeDigestStore{digests: make(map[string]*domain.Digest)}
}

func digestKey(d *domain.Digest) string {
	return d.FamilyID + "|" + d.MemberID + "|" + string(d.DigestType) + "|" + d.PeriodStart + "|" + d.PeriodEnd
}

func (s *fakeDigestStore) Upsert(_ context.Context, digest *domain.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	snapshot := *digest
	snapshot.Status = domain.DigestStatusReady
	s.digests[digestKey(digest)] = &snapshot
	s.upserts++
	return nil
}

// fakeConflictStore implements ConflictStore with optional per-member errors
type fakeConflictStore struct {
	rows   map[string][]*domain.EventConflict // family|member -> rows
	errFor map[string]error
}

func newFakeConflictStore() *fakeConflictStore {
	return &fakeConflictStore{
		rows:   make(map[string][]*domain.EventConflict),
		errFor: make(map[string]error),
	}
}

func (s *fakeConflictStore) ReplaceForMember(_ context.Context, familyID, memberID string, conflicts []*domain.EventConflict) (int, error) {
	key := familyID + "|" + memberID
	if err := s.errFor[key]; err != nil {
		return 0, err
	}
	s.rows[key] = conflicts
	return len(conflicts), nil
}

// fakeSender implements PushSender, recording sends and failing on demand
type fakeSender struct {
	mu        sync.Mutex
	sent      []map[string]interface{}
	err       error
	failAfter int // fail once this many sends have succeeded; -1 disables
}

func newFakeSender() *fakeSender {
	return &fakeSender{failAfter: -1}
}

func (s *fakeSender) Send(_ context.Context, _ domain.WebPushSubscription, payload map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && (s.failAfter < 0 || len(s.sent) >= s.failAfter) {
		return s.err
	}
	s.sent = append(s.sent, payload)
	return nil
}

func (s *fakeSender) sendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
