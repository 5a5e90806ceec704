package service

import (
	"context"
	"encoding/json"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
)

// AudienceService resolves a job's target into the set of push
// subscriptions to notify
type AudienceService struct {
	members MembershipStore
	devices DeviceStore
	prefs   PreferenceStore
	log     *logger.Logger
}

// NewAudienceService creates a new audience service
func NewAudienceService(members MembershipStore, devices DeviceStore, prefs PreferenceStore, log *logger.Logger) *AudienceService {
	return &AudienceService{
		members: members,
		devices: devices,
		prefs:   prefs,
		log:     log,
	}
}

// rolesFor maps an audience to the roles it fans out to. Anything
// unrecognized falls back to adults.
func rolesFor(audience domain.JobAudience) []domain.MemberRole {
	switch audience {
	case domain.AudienceAdmins:
		return []domain.MemberRole{domain.RoleOwner, domain.RoleAdmin}
	case domain.AudienceFamily:
		return []domain.MemberRole{domain.RoleOwner, domain.RoleAdmin, domain.RoleAdult, domain.RoleChild}
	default:
		return []domain.MemberRole{domain.RoleOwner, domain.RoleAdmin, domain.RoleAdult}
	}
}

// Resolve returns the push subscriptions for a job's target. A job with
// member_id set targets exactly that member and the audience field is
// ignored. No devices is not an error: the result is simply empty.
// Malformed stored tokens are dropped, not surfaced.
func (s *AudienceService) Resolve(ctx context.Context, job *domain.NotificationJob) ([]domain.WebPushSubscription, error) {
	var memberIDs []string

	if job.MemberID != "" {
		memberIDs = []string{job.MemberID}
	} else {
		ids, err := s.members.FindFamilyMemberIDsByRoles(ctx, job.FamilyID, rolesFor(job.Audience))
		if err != nil {
			return nil, err
		}
		memberIDs = ids
	}

	if len(memberIDs) == 0 {
		return nil, nil
	}

	if job.Data.Kind != "" {
		optedOut, err := s.prefs.FindOptedOut(ctx, job.FamilyID, memberIDs, job.Data.Kind)
		if err != nil {
			return nil, err
		}
		if len(optedOut) > 0 {
			kept := memberIDs[:0]
			for _, id := range memberIDs {
				if !optedOut[id] {
					kept = append(kept, id)
				}
			}
			memberIDs = kept
		}
	}

	if len(memberIDs) == 0 {
		return nil, nil
	}

	tokens, err := s.devices.FindPushTokens(ctx, job.FamilyID, memberIDs)
	if err != nil {
		return nil, err
	}

	subs := make([]domain.WebPushSubscription, 0, len(tokens))
	for _, token := range tokens {
		var sub domain.WebPushSubscription
		if err := json.Unmarshal([]byte(token), &sub); err != nil || sub.Endpoint == "" {
			s.log.Warn("Dropping malformed push token", "family_id", job.FamilyID)
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
