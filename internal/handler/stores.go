package handler

import (
	"context"

	"github.com/familyos/go-pipeline-service/internal/domain"
)

// MembershipReader resolves the caller's membership in a family
type MembershipReader interface {
	FindByAuthUser(ctx context.Context, familyID, authUserID string) (*domain.FamilyMember, error)
}

// DeviceStore persists device registrations
type DeviceStore interface {
	Upsert(ctx context.Context, device *domain.Device) error
}

// PreferenceStore persists notification opt-in/opt-out rows
type PreferenceStore interface {
	Upsert(ctx context.Context, pref *domain.NotificationPreference) error
	FindByMember(ctx context.Context, familyID, memberID string) ([]*domain.NotificationPreference, error)
}
