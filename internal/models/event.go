package models

import "time"

// Event types written to the outbox
const (
	EventFamilyCreated     = "family.created"
	EventFamilyUpdated     = "family.updated"
	EventFamilyDissolved   = "family.dissolved"
	EventInviteCodeRotated = "family.invite_code_rotated"
	EventMemberJoined      = "member.joined"
	EventMemberLeft        = "member.left"
	EventMemberRemoved     = "member.removed"
	EventMemberRoleChanged = "member.role_changed"
	EventTasksReassigned   = "tasks.reassigned"
)

// OutboxEvent is a domain event recorded in the same transaction as the change it describes
type OutboxEvent struct {
	ID          string
	Type        string
	FamilyID    string
	Payload     []byte // JSON
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// IsPublished reports whether the relay already delivered the event
func (e *OutboxEvent) IsPublished() bool {
	return e.PublishedAt != nil
}

// PendingReassignment records a forced removal whose task handoff has not finished yet
type PendingReassignment struct {
	FamilyID        string
	UserID          string
	FallbackOwnerID string
	RequestedBy     string
	CreatedAt       time.Time
}
