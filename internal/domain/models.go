package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobChannel represents the delivery channel of a notification job
type JobChannel string

const (
	JobChannelPush  JobChannel = "push"
	JobChannelEmail JobChannel = "email"
)

// JobAudience represents the role-based fan-out target of a job
type JobAudience string

const (
	AudienceMember JobAudience = "member"
	AudienceAdults JobAudience = "adults"
	AudienceAdmins JobAudience = "admins"
	AudienceFamily JobAudience = "family"
)

// JobStatus represents the lifecycle status of a notification job
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusSending JobStatus = "sending"
	JobStatusSent    JobStatus = "sent"
	JobStatusFailed  JobStatus = "failed"
)

// DefaultMaxAttempts is the retry budget for a job when none is set
const DefaultMaxAttempts = 5

// NotificationJob is a queued unit of notification work. Jobs are produced
// by the conflict, digest and reminder generators (and the event consumer)
// and drained by the push dispatcher; the collection is the only channel
// between them.
type NotificationJob struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FamilyID      string             `json:"family_id" bson:"family_id"`
	MemberID      string             `json:"member_id,omitempty" bson:"member_id,omitempty"`
	Channel       JobChannel         `json:"channel" bson:"channel"`
	Audience      JobAudience        `json:"audience" bson:"audience"`
	Title         string             `json:"title" bson:"title"`
	Body          string             `json:"body" bson:"body"`
	Data          Payload            `json:"data,omitempty" bson:"data,omitempty"`
	ScheduledAt   time.Time          `json:"scheduled_at" bson:"scheduled_at"`
	Status        JobStatus          `json:"status" bson:"status"`
	Attempts      int                `json:"attempts" bson:"attempts"`
	MaxAttempts   int                `json:"max_attempts" bson:"max_attempts"`
	DedupeKey     string             `json:"dedupe_key,omitempty" bson:"dedupe_key,omitempty"`
	NextAttemptAt *time.Time         `json:"next_attempt_at,omitempty" bson:"next_attempt_at,omitempty"`
	LockedAt      *time.Time         `json:"locked_at,omitempty" bson:"locked_at,omitempty"`
	LockedBy      string             `json:"locked_by,omitempty" bson:"locked_by,omitempty"`
	LastError     string             `json:"last_error,omitempty" bson:"last_error,omitempty"`
	SentAt        *time.Time         `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// EffectiveMaxAttempts returns the job's retry budget, defaulted
func (j *NotificationJob) EffectiveMaxAttempts() int {
	if j.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return j.MaxAttempts
}

// PayloadKind discriminates the job payload side-channel
type PayloadKind string

const (
	PayloadKindEvent  PayloadKind = "event"
	PayloadKindTask   PayloadKind = "task"
	PayloadKindDigest PayloadKind = "digest"
)

// Payload is the key/value payload forwarded opaquely to the client,
// tagged with a kind so clients can decode it defensively.
type Payload struct {
	Kind        PayloadKind `json:"kind" bson:"kind"`
	EventID     string      `json:"event_id,omitempty" bson:"event_id,omitempty"`
	TaskID      string      `json:"task_id,omitempty" bson:"task_id,omitempty"`
	DigestType  DigestType  `json:"digest_type,omitempty" bson:"digest_type,omitempty"`
	Day         string      `json:"day,omitempty" bson:"day,omitempty"`
	PeriodStart string      `json:"period_start,omitempty" bson:"period_start,omitempty"`
	PeriodEnd   string      `json:"period_end,omitempty" bson:"period_end,omitempty"`
}

// DigestType represents the period of a digest
type DigestType string

const (
	DigestTypeDaily  DigestType = "daily"
	DigestTypeWeekly DigestType = "weekly"
)

// DigestStatus represents the status of a digest document
type DigestStatus string

// DigestStatusReady means the digest has been built; no draft state is modeled
const DigestStatusReady DigestStatus = "ready"

// Digest is a precomputed summary of upcoming events/tasks for a member.
// Keyed by (family, member, type, period); rebuilding replaces, never
// duplicates.
type Digest struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FamilyID    string             `json:"family_id" bson:"family_id"`
	MemberID    string             `json:"member_id" bson:"member_id"`
	DigestType  DigestType         `json:"digest_type" bson:"digest_type"`
	PeriodStart string             `json:"period_start" bson:"period_start"`
	PeriodEnd   string             `json:"period_end" bson:"period_end"`
	Content     DigestContent      `json:"content" bson:"content"`
	Status      DigestStatus       `json:"status" bson:"status"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// DigestContent is the structured aggregation stored in a digest
type DigestContent struct {
	WeekStart string  `json:"week_start,omitempty" bson:"week_start,omitempty"`
	WeekEnd   string  `json:"week_end,omitempty" bson:"week_end,omitempty"`
	Events    []Event `json:"events" bson:"events"`
	TasksOpen []Task  `json:"tasks_open" bson:"tasks_open"`
}

// EventConflict is a derived record of two events overlapping in time for
// the same member. Treated as a cache: recomputed per member per run and
// safe to wipe and regenerate.
type EventConflict struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FamilyID     string             `json:"family_id" bson:"family_id"`
	MemberID     string             `json:"member_id" bson:"member_id"`
	Event1ID     string             `json:"event1_id" bson:"event1_id"`
	Event2ID     string             `json:"event2_id" bson:"event2_id"`
	OverlapStart time.Time          `json:"overlap_start" bson:"overlap_start"`
	OverlapEnd   time.Time          `json:"overlap_end" bson:"overlap_end"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
}

// MemberRole represents a member's role within a family
type MemberRole string

const (
	RoleOwner   MemberRole = "owner"
	RoleAdmin   MemberRole = "admin"
	RoleAdult   MemberRole = "adult"
	RoleChild   MemberRole = "child"
	RoleToddler MemberRole = "toddler"
)

// MemberStatus represents a membership status
type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInvited  MemberStatus = "invited"
	MemberStatusDisabled MemberStatus = "disabled"
)

// FamilyMember links an authenticated account to a family with a role.
// Consumed read-only by the pipeline; it governs audience resolution.
type FamilyMember struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FamilyID   string             `json:"family_id" bson:"family_id"`
	MemberID   string             `json:"member_id" bson:"member_id"`
	AuthUserID string             `json:"auth_user_id,omitempty" bson:"auth_user_id,omitempty"`
	Role       MemberRole         `json:"role" bson:"role"`
	Status     MemberStatus       `json:"status" bson:"status"`
}

// Device is a registered push target for a member. PushToken holds the
// serialized web-push subscription; unique per (family, auth user, device
// name).
type Device struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FamilyID   string             `json:"family_id" bson:"family_id"`
	MemberID   string             `json:"member_id" bson:"member_id"`
	AuthUserID string             `json:"auth_user_id" bson:"auth_user_id"`
	Platform   string             `json:"platform" bson:"platform"`
	DeviceName string             `json:"device_name" bson:"device_name"`
	PushToken  string             `json:"push_token,omitempty" bson:"push_token,omitempty"`
	LastSeenAt time.Time          `json:"last_seen_at" bson:"last_seen_at"`
}

// WebPushSubscription is the decoded form of Device.PushToken
type WebPushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// EventStatus represents a calendar event status
type EventStatus string

const (
	EventStatusTentative EventStatus = "tentative"
	EventStatusConfirmed EventStatus = "confirmed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Event is a calendar event, consumed read-only
type Event struct {
	ID       string      `json:"id" bson:"_id,omitempty"`
	FamilyID string      `json:"family_id" bson:"family_id"`
	Title    string      `json:"title" bson:"title"`
	Location string      `json:"location,omitempty" bson:"location,omitempty"`
	StartsAt time.Time   `json:"starts_at" bson:"starts_at"`
	EndsAt   time.Time   `json:"ends_at" bson:"ends_at"`
	Status   EventStatus `json:"status" bson:"status"`
}

// EventAttendee links a member to an event they attend
type EventAttendee struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FamilyID string             `json:"family_id" bson:"family_id"`
	EventID  string             `json:"event_id" bson:"event_id"`
	MemberID string             `json:"member_id" bson:"member_id"`
}

// TaskStatus represents a task status
type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "open"
	TaskStatusDone TaskStatus = "done"
)

// Task is a household task, consumed read-only
type Task struct {
	ID               string     `json:"id" bson:"_id,omitempty"`
	FamilyID         string     `json:"family_id" bson:"family_id"`
	Title            string     `json:"title" bson:"title"`
	Status           TaskStatus `json:"status" bson:"status"`
	Priority         string     `json:"priority,omitempty" bson:"priority,omitempty"`
	DueAt            *time.Time `json:"due_at,omitempty" bson:"due_at,omitempty"`
	AssigneeMemberID string     `json:"assignee_member_id,omitempty" bson:"assignee_member_id,omitempty"`
}

// NotificationPreference opts a member in or out of a payload kind
type NotificationPreference struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FamilyID  string             `json:"family_id" bson:"family_id"`
	MemberID  string             `json:"member_id" bson:"member_id"`
	Kind      PayloadKind        `json:"kind" bson:"kind"`
	Enabled   bool               `json:"enabled" bson:"enabled"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// AppEventType represents an application event consumed from the broker
type AppEventType string

const (
	AppEventCalendarCreated AppEventType = "event.created"
	AppEventTaskAssigned    AppEventType = "task.assigned"
)

// AppEvent is a message published by the FamilyOS application when
// something notification-worthy happens
type AppEvent struct {
	Type      AppEventType `json:"type"`
	FamilyID  string       `json:"family_id"`
	MemberID  string       `json:"member_id,omitempty"`
	EventID   string       `json:"event_id,omitempty"`
	TaskID    string       `json:"task_id,omitempty"`
	Title     string       `json:"title"`
	Timestamp time.Time    `json:"timestamp"`
}

// DispatchResult is the per-job outcome record returned by a dispatcher pass
type DispatchResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Sent  int    `json:"sent"`
	Error string `json:"error,omitempty"`
}

// RunFailure records a single unit's failure inside a batch run
type RunFailure struct {
	FamilyID string `json:"family_id"`
	MemberID string `json:"member_id"`
	Error    string `json:"error"`
}
