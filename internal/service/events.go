package service

import "time"

// Outbox payloads. Every payload names the acting user.

type familyCreatedPayload struct {
	FamilyID   string    `json:"family_id"`
	Name       string    `json:"name"`
	CreatedBy  string    `json:"created_by"`
	MaxMembers int       `json:"max_members"`
	IsPremium  bool      `json:"is_premium"`
	CreatedAt  time.Time `json:"created_at"`
}

type familyUpdatedPayload struct {
	FamilyID   string `json:"family_id"`
	ActorID    string `json:"actor_id"`
	Name       string `json:"name"`
	MaxMembers int    `json:"max_members"`
}

type familyActorPayload struct {
	FamilyID string `json:"family_id"`
	ActorID  string `json:"actor_id"`
}

type memberPayload struct {
	FamilyID string `json:"family_id"`
	ActorID  string `json:"actor_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role,omitempty"`
}

type memberRemovedPayload struct {
	FamilyID        string `json:"family_id"`
	ActorID         string `json:"actor_id"`
	UserID          string `json:"user_id"`
	FallbackOwnerID string `json:"fallback_owner_id"`
}

type roleChangedPayload struct {
	FamilyID string `json:"family_id"`
	ActorID  string `json:"actor_id"`
	UserID   string `json:"user_id"`
	OldRole  string `json:"old_role"`
	NewRole  string `json:"new_role"`
}

type tasksReassignedPayload struct {
	FamilyID        string   `json:"family_id"`
	RemovedUserID   string   `json:"removed_user_id"`
	FallbackOwnerID string   `json:"fallback_owner_id"`
	TaskIDs         []string `json:"task_ids"`
}
