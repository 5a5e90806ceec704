package service

import (
	"context"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/metrics"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
)

const (
	conflictWindow     = 14 * 24 * time.Hour
	conflictMemberPage = 5000
)

// ConflictService recomputes per-member event-overlap records over a
// rolling look-ahead window
type ConflictService struct {
	members   MembershipStore
	events    EventStore
	conflicts ConflictStore
	log       *logger.Logger
}

// NewConflictService creates a new conflict service
func NewConflictService(members MembershipStore, events EventStore, conflicts ConflictStore, log *logger.Logger) *ConflictService {
	return &ConflictService{
		members:   members,
		events:    events,
		conflicts: conflicts,
		log:       log,
	}
}

// ConflictRunResult is the aggregate outcome of one detector run
type ConflictRunResult struct {
	WindowStart time.Time           `json:"windowStart"`
	WindowEnd   time.Time           `json:"windowEnd"`
	Inserted    int                 `json:"conflicts_inserted"`
	Failures    []domain.RunFailure `json:"failed,omitempty"`
}

// Run rebuilds conflict rows for every active membership. One member's
// failure is recorded and the run continues; only the membership
// enumeration itself is fatal.
func (s *ConflictService) Run(ctx context.Context) (*ConflictRunResult, error) {
	now := time.Now().UTC()
	result := &ConflictRunResult{
		WindowStart: now,
		WindowEnd:   now.Add(conflictWindow),
	}

	memberships, err := s.members.FindActive(ctx, conflictMemberPage)
	if err != nil {
		return nil, err
	}

	for _, fm := range memberships {
		inserted, err := s.refreshMember(ctx, fm.FamilyID, fm.MemberID, result.WindowStart, result.WindowEnd)
		if err != nil {
			s.log.Error("Conflict refresh failed for member", "error", err,
				"family_id", fm.FamilyID, "member_id", fm.MemberID)
			metrics.RunFailures.WithLabelValues("conflicts").Inc()
			result.Failures = append(result.Failures, domain.RunFailure{
				FamilyID: fm.FamilyID,
				MemberID: fm.MemberID,
				Error:    err.Error(),
			})
			continue
		}
		result.Inserted += inserted
	}

	return result, nil
}

func (s *ConflictService) refreshMember(ctx context.Context, familyID, memberID string, from, to time.Time) (int, error) {
	events, err := s.events.FindAttendedInWindow(ctx, familyID, memberID, from, to)
	if err != nil {
		return 0, err
	}

	conflicts := overlappingPairs(events)
	return s.conflicts.ReplaceForMember(ctx, familyID, memberID, conflicts)
}

// overlappingPairs finds every pair of events that overlap in time.
// Events arrive sorted by start, so the inner scan stops at the first
// event starting after the current one ends.
func overlappingPairs(events []*domain.Event) []*domain.EventConflict {
	var conflicts []*domain.EventConflict
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if !events[j].StartsAt.Before(events[i].EndsAt) {
				break
			}
			end := events[i].EndsAt
			if events[j].EndsAt.Before(end) {
				end = events[j].EndsAt
			}
			conflicts = append(conflicts, &domain.EventConflict{
				Event1ID:     events[i].ID,
				Event2ID:     events[j].ID,
				OverlapStart: events[j].StartsAt,
				OverlapEnd:   end,
			})
		}
	}
	return conflicts
}
