package handler

import (
	"errors"
	"net/http"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/middleware"
	"github.com/familyos/go-pipeline-service/internal/repository"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// PreferencesHandler lets members opt in or out of notification kinds
type PreferencesHandler struct {
	members MembershipReader
	prefs   PreferenceStore
	log     *logger.Logger
}

// NewPreferencesHandler creates a new preferences handler
func NewPreferencesHandler(members MembershipReader, prefs PreferenceStore, log *logger.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		members: members,
		prefs:   prefs,
		log:     log,
	}
}

func (h *PreferencesHandler) resolveMember(c *gin.Context, familyID string) (*domain.FamilyMember, bool) {
	authUserID := middleware.MustGetAuthUserID(c)

	member, err := h.members.FindByAuthUser(c.Request.Context(), familyID, authUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNoMembership) {
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "not an active member of this family"})
			return nil, false
		}
		h.log.Error("Membership lookup failed", "error", err, "family_id", familyID)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return nil, false
	}
	return member, true
}

// GetPreferences lists the caller's preferences in a family
func (h *PreferencesHandler) GetPreferences(c *gin.Context) {
	familyID := c.Query("family_id")
	if familyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "family_id required"})
		return
	}

	member, ok := h.resolveMember(c, familyID)
	if !ok {
		return
	}

	prefs, err := h.prefs.FindByMember(c.Request.Context(), familyID, member.MemberID)
	if err != nil {
		h.log.Error("Failed to list preferences", "error", err, "family_id", familyID)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "preferences": prefs})
}

// UpdatePreference toggles one notification kind for the caller
func (h *PreferencesHandler) UpdatePreference(c *gin.Context) {
	var req domain.UpdatePreferenceRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "family_id, kind and enabled required"})
		return
	}

	switch req.Kind {
	case domain.PayloadKindEvent, domain.PayloadKindTask, domain.PayloadKindDigest:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unknown notification kind"})
		return
	}

	member, ok := h.resolveMember(c, req.FamilyID)
	if !ok {
		return
	}

	pref := &domain.NotificationPreference{
		FamilyID: req.FamilyID,
		MemberID: member.MemberID,
		Kind:     req.Kind,
		Enabled:  *req.Enabled,
	}
	if err := h.prefs.Upsert(c.Request.Context(), pref); err != nil {
		h.log.Error("Failed to update preference", "error", err, "family_id", req.FamilyID)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
