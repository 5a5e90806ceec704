package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/middleware"
	"github.com/familyos/go-pipeline-service/internal/repository"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// DeviceHandler registers push-capable devices for authenticated members
type DeviceHandler struct {
	members MembershipReader
	devices DeviceStore
	log     *logger.Logger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(members MembershipReader, devices DeviceStore, log *logger.Logger) *DeviceHandler {
	return &DeviceHandler{
		members: members,
		devices: devices,
		log:     log,
	}
}

// Register upserts a device keyed by (family, auth user, device name).
// The caller must be an active member of the family; the stored member_id
// comes from that membership, never from the request.
func (h *DeviceHandler) Register(c *gin.Context) {
	authUserID := middleware.MustGetAuthUserID(c)

	var req domain.RegisterDeviceRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "family_id and subscription required"})
		return
	}

	var sub domain.WebPushSubscription
	if err := json.Unmarshal(req.Subscription, &sub); err != nil || sub.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "subscription is not a valid push subscription"})
		return
	}

	member, err := h.members.FindByAuthUser(c.Request.Context(), req.FamilyID, authUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNoMembership) {
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "not an active member of this family"})
			return
		}
		h.log.Error("Membership lookup failed", "error", err, "family_id", req.FamilyID)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	deviceName := req.DeviceName
	if deviceName == "" {
		deviceName = "browser"
	}
	platform := req.Platform
	if platform == "" {
		platform = "web"
	}

	device := &domain.Device{
		FamilyID:   req.FamilyID,
		MemberID:   member.MemberID,
		AuthUserID: authUserID,
		Platform:   platform,
		DeviceName: deviceName,
		PushToken:  string(req.Subscription),
	}
	if err := h.devices.Upsert(c.Request.Context(), device); err != nil {
		h.log.Error("Device upsert failed", "error", err, "family_id", req.FamilyID)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
