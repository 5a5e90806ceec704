package service

import (
	"context"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/metrics"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
)

const (
	digestMemberPage = 2000
	digestItemLimit  = 500
	dateLayout       = "2006-01-02"
)

// DigestService builds the daily and weekly digest documents and
// enqueues the jobs announcing them
type DigestService struct {
	members MembershipStore
	events  EventStore
	tasks   TaskStore
	digests DigestStore
	jobs    JobStore
	log     *logger.Logger
}

// NewDigestService creates a new digest service
func NewDigestService(members MembershipStore, events EventStore, tasks TaskStore, digests DigestStore, jobs JobStore, log *logger.Logger) *DigestService {
	return &DigestService{
		members: members,
		events:  events,
		tasks:   tasks,
		digests: digests,
		jobs:    jobs,
		log:     log,
	}
}

// DigestRunResult is the aggregate outcome of one builder run
type DigestRunResult struct {
	PeriodStart string              `json:"periodStart"`
	PeriodEnd   string              `json:"periodEnd"`
	Upserted    int                 `json:"digests_upserted"`
	Failures    []domain.RunFailure `json:"failed,omitempty"`
}

// BuildDaily builds one digest per active member (all roles but toddler)
// for today, UTC date granularity, and enqueues a member-audience job per
// digest. Per-member failures are recorded without aborting the run.
func (s *DigestService) BuildDaily(ctx context.Context) (*DigestRunResult, error) {
	now := time.Now().UTC()
	day := now.Format(dateLayout)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	result := &DigestRunResult{PeriodStart: day, PeriodEnd: day}

	roles := []domain.MemberRole{domain.RoleOwner, domain.RoleAdmin, domain.RoleAdult, domain.RoleChild}
	memberships, err := s.members.FindActiveByRoles(ctx, roles, digestMemberPage)
	if err != nil {
		return nil, err
	}

	for _, fm := range memberships {
		if err := s.buildDailyFor(ctx, fm, day, dayStart, dayEnd); err != nil {
			s.log.Error("Daily digest failed for member", "error", err,
				"family_id", fm.FamilyID, "member_id", fm.MemberID)
			metrics.RunFailures.WithLabelValues("digest_daily").Inc()
			result.Failures = append(result.Failures, domain.RunFailure{
				FamilyID: fm.FamilyID,
				MemberID: fm.MemberID,
				Error:    err.Error(),
			})
			continue
		}
		result.Upserted++
	}

	return result, nil
}

func (s *DigestService) buildDailyFor(ctx context.Context, fm *domain.FamilyMember, day string, dayStart, dayEnd time.Time) error {
	events, err := s.events.FindAttendedInWindow(ctx, fm.FamilyID, fm.MemberID, dayStart, dayEnd)
	if err != nil {
		return err
	}
	tasks, err := s.tasks.FindOpenByAssignee(ctx, fm.FamilyID, fm.MemberID, digestItemLimit)
	if err != nil {
		return err
	}

	digest := &domain.Digest{
		FamilyID:    fm.FamilyID,
		MemberID:    fm.MemberID,
		DigestType:  domain.DigestTypeDaily,
		PeriodStart: day,
		PeriodEnd:   day,
		Content: domain.DigestContent{
			Events:    derefEvents(events),
			TasksOpen: derefTasks(tasks),
		},
	}

	// The announcement still goes out when the upsert fails; yesterday's
	// digest being shown beats a silent gap.
	upsertErr := s.digests.Upsert(ctx, digest)
	if upsertErr != nil {
		s.log.Warn("Daily digest upsert failed, still notifying", "error", upsertErr,
			"family_id", fm.FamilyID, "member_id", fm.MemberID)
	}

	_, err = s.jobs.Enqueue(ctx, &domain.NotificationJob{
		FamilyID: fm.FamilyID,
		MemberID: fm.MemberID,
		Channel:  domain.JobChannelPush,
		Audience: domain.AudienceMember,
		Title:    "Today's plan",
		Body:     "Your daily digest is ready.",
		Data: domain.Payload{
			Kind:       domain.PayloadKindDigest,
			DigestType: domain.DigestTypeDaily,
			Day:        day,
		},
		DedupeKey: "digest:daily:" + fm.MemberID + ":" + day,
	})
	if err != nil {
		return err
	}
	metrics.JobsEnqueued.WithLabelValues("digest_daily").Inc()

	return upsertErr
}

// BuildWeekly builds one digest per active adult-or-above member for the
// Monday-start ISO week, aggregating the family's events and open tasks
// directly rather than per member.
func (s *DigestService) BuildWeekly(ctx context.Context) (*DigestRunResult, error) {
	now := time.Now().UTC()
	weekStart := startOfISOWeek(now)
	weekEnd := weekStart.AddDate(0, 0, 6)
	periodStart := weekStart.Format(dateLayout)
	periodEnd := weekEnd.Format(dateLayout)

	result := &DigestRunResult{PeriodStart: periodStart, PeriodEnd: periodEnd}

	roles := []domain.MemberRole{domain.RoleOwner, domain.RoleAdmin, domain.RoleAdult}
	memberships, err := s.members.FindActiveByRoles(ctx, roles, digestMemberPage)
	if err != nil {
		return nil, err
	}

	for _, fm := range memberships {
		if err := s.buildWeeklyFor(ctx, fm, periodStart, periodEnd, weekStart, weekEnd); err != nil {
			s.log.Error("Weekly digest failed for member", "error", err,
				"family_id", fm.FamilyID, "member_id", fm.MemberID)
			metrics.RunFailures.WithLabelValues("digest_weekly").Inc()
			result.Failures = append(result.Failures, domain.RunFailure{
				FamilyID: fm.FamilyID,
				MemberID: fm.MemberID,
				Error:    err.Error(),
			})
			continue
		}
		result.Upserted++
	}

	return result, nil
}

func (s *DigestService) buildWeeklyFor(ctx context.Context, fm *domain.FamilyMember, periodStart, periodEnd string, weekStart, weekEnd time.Time) error {
	windowEnd := weekEnd.Add(24*time.Hour - time.Second)
	events, err := s.events.FindFamilyStartingBetween(ctx, fm.FamilyID, weekStart, windowEnd, digestItemLimit)
	if err != nil {
		return err
	}
	tasks, err := s.tasks.FindOpenByFamily(ctx, fm.FamilyID, digestItemLimit)
	if err != nil {
		return err
	}

	digest := &domain.Digest{
		FamilyID:    fm.FamilyID,
		MemberID:    fm.MemberID,
		DigestType:  domain.DigestTypeWeekly,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Content: domain.DigestContent{
			WeekStart: periodStart,
			WeekEnd:   periodEnd,
			Events:    derefEvents(events),
			TasksOpen: derefTasks(tasks),
		},
	}

	upsertErr := s.digests.Upsert(ctx, digest)
	if upsertErr != nil {
		s.log.Warn("Weekly digest upsert failed, still notifying", "error", upsertErr,
			"family_id", fm.FamilyID, "member_id", fm.MemberID)
	}

	_, err = s.jobs.Enqueue(ctx, &domain.NotificationJob{
		FamilyID: fm.FamilyID,
		MemberID: fm.MemberID,
		Channel:  domain.JobChannelPush,
		Audience: domain.AudienceMember,
		Title:    "Weekly plan",
		Body:     "Your digest for the week is ready.",
		Data: domain.Payload{
			Kind:        domain.PayloadKindDigest,
			DigestType:  domain.DigestTypeWeekly,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		},
		DedupeKey: "digest:weekly:" + fm.MemberID + ":" + periodStart,
	})
	if err != nil {
		return err
	}
	metrics.JobsEnqueued.WithLabelValues("digest_weekly").Inc()

	return upsertErr
}

// startOfISOWeek returns 00:00 UTC of the Monday of t's week
func startOfISOWeek(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7
	}
	return day.AddDate(0, 0, 1-wd)
}

func derefEvents(in []*domain.Event) []domain.Event {
	out := make([]domain.Event, 0, len(in))
	for _, e := range in {
		out = append(out, *e)
	}
	return out
}

func derefTasks(in []*domain.Task) []domain.Task {
	out := make([]domain.Task, 0, len(in))
	for _, t := range in {
		out = append(out, *t)
	}
	return out
}
