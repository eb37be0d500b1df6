package handlers

import (
	"time"

	"familytasks/internal/models"
)

type familyView struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	InviteCode string       `json:"invite_code"`
	CreatedBy  string       `json:"created_by"`
	MaxMembers int          `json:"max_members"`
	IsPremium  bool         `json:"is_premium"`
	Members    []memberView `json:"members"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type memberView struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type taskView struct {
	ID          string     `json:"id"`
	FamilyID    string     `json:"family_id"`
	AssignedTo  string     `json:"assigned_to"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"created_by"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type removalView struct {
	FamilyID            string   `json:"family_id"`
	RemovedUserID       string   `json:"removed_user_id"`
	FallbackOwnerID     string   `json:"fallback_owner_id"`
	ReassignedTaskIDs   []string `json:"reassigned_task_ids"`
	ReassignmentPending bool     `json:"reassignment_pending"`
}

func newFamilyView(f *models.Family) familyView {
	return familyView{
		ID:         f.ID,
		Name:       f.Name,
		InviteCode: f.InviteCode,
		CreatedBy:  f.CreatedBy,
		MaxMembers: f.MaxMembers,
		IsPremium:  f.IsPremium,
		Members:    newMemberViews(f.Members),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

func newMemberViews(members []models.Member) []memberView {
	views := make([]memberView, 0, len(members))
	for _, m := range members {
		views = append(views, memberView{UserID: m.UserID, Role: string(m.Role), JoinedAt: m.JoinedAt})
	}
	return views
}

func newTaskView(t *models.Task) taskView {
	return taskView{
		ID:          t.ID,
		FamilyID:    t.FamilyID,
		AssignedTo:  t.AssignedTo,
		Title:       t.Title,
		Status:      string(t.Status),
		CreatedBy:   t.CreatedBy,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func newRemovalView(r *models.RemovalResult) removalView {
	ids := r.ReassignedTaskIDs
	if ids == nil {
		ids = []string{}
	}
	return removalView{
		FamilyID:            r.FamilyID,
		RemovedUserID:       r.RemovedUserID,
		FallbackOwnerID:     r.FallbackOwnerID,
		ReassignedTaskIDs:   ids,
		ReassignmentPending: r.ReassignmentPending,
	}
}
