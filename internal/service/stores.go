package service

import (
	"context"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobStore is the persisted notification job queue consumed and fed by
// the pipeline services
type JobStore interface {
	Enqueue(ctx context.Context, job *domain.NotificationJob) (*primitive.ObjectID, error)
	ClaimDue(ctx context.Context, limit int, now time.Time, claimedBy string) ([]*domain.NotificationJob, error)
	MarkSent(ctx context.Context, id primitive.ObjectID, sentAt time.Time) error
	MarkRetry(ctx context.Context, id primitive.ObjectID, attempts int, lastError string, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, id primitive.ObjectID, attempts int, lastError string) error
}

// MembershipStore reads family memberships
type MembershipStore interface {
	FindActive(ctx context.Context, limit int) ([]*domain.FamilyMember, error)
	FindActiveByRoles(ctx context.Context, roles []domain.MemberRole, limit int) ([]*domain.FamilyMember, error)
	FindFamilyMemberIDsByRoles(ctx context.Context, familyID string, roles []domain.MemberRole) ([]string, error)
}

// DeviceStore reads registered push devices
type DeviceStore interface {
	FindPushTokens(ctx context.Context, familyID string, memberIDs []string) ([]string, error)
}

// PreferenceStore reads notification opt-outs
type PreferenceStore interface {
	FindOptedOut(ctx context.Context, familyID string, memberIDs []string, kind domain.PayloadKind) (map[string]bool, error)
}

// EventStore reads calendar events
type EventStore interface {
	FindConfirmedStartingBetween(ctx context.Context, from, to time.Time, limit int) ([]*domain.Event, error)
	FindFamilyStartingBetween(ctx context.Context, familyID string, from, to time.Time, limit int) ([]*domain.Event, error)
	FindAttendedInWindow(ctx context.Context, familyID, memberID string, from, to time.Time) ([]*domain.Event, error)
}

// TaskStore reads household tasks
type TaskStore interface {
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error)
	FindOpenByFamily(ctx context.Context, familyID string, limit int) ([]*domain.Task, error)
	FindOpenByAssignee(ctx context.Context, familyID, memberID string, limit int) ([]*domain.Task, error)
}

// DigestStore persists digests by natural key
type DigestStore interface {
	Upsert(ctx context.Context, digest *domain.Digest) error
}

// ConflictStore persists derived conflict rows
type ConflictStore interface {
	ReplaceForMember(ctx context.Context, familyID, memberID string, conflicts []*domain.EventConflict) (int, error)
}

// PushSender delivers one payload to one subscription
type PushSender interface {
	Send(ctx context.Context, sub domain.WebPushSubscription, payload map[string]interface{}) error
}
