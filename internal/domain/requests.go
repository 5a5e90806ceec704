package domain

import "encoding/json"

// RegisterDeviceRequest registers or refreshes a push-capable device for
// the calling user's membership in a family
type RegisterDeviceRequest struct {
	FamilyID     string          `json:"family_id" binding:"required"`
	Subscription json.RawMessage `json:"subscription" binding:"required"`
	DeviceName   string          `json:"device_name"`
	Platform     string          `json:"platform"`
}

// UpdatePreferenceRequest toggles a notification kind for the caller
type UpdatePreferenceRequest struct {
	FamilyID string      `json:"family_id" binding:"required"`
	Kind     PayloadKind `json:"kind" binding:"required"`
	Enabled  *bool       `json:"enabled" binding:"required"`
}
