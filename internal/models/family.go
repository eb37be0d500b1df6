package models

import (
	"sort"
	"time"
)

const (
	// DefaultMaxMembers is the member limit for a standard family
	DefaultMaxMembers = 4
	// PremiumMaxMembers is the member limit for a premium family
	PremiumMaxMembers = 10
)

// Family represents a group of users sharing tasks, administered by parents
type Family struct {
	ID          string
	Name        string
	InviteCode  string // Empty once the family is dissolved
	CreatedBy   string
	MaxMembers  int
	IsPremium   bool
	Members     []Member
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DissolvedAt *time.Time
}

// Member is a user's membership in a family
type Member struct {
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// FamilyPatch holds the optional fields of a family update
type FamilyPatch struct {
	Name       *string
	MaxMembers *int
}

// RemovalResult describes the outcome of a forced member removal
type RemovalResult struct {
	FamilyID          string
	RemovedUserID     string
	FallbackOwnerID   string
	ReassignedTaskIDs []string
	// ReassignmentPending is set when the membership change committed but the
	// task handoff has to be finished by the repair pass.
	ReassignmentPending bool
}

// IsDissolved reports whether the family has been emptied
func (f *Family) IsDissolved() bool {
	return f.DissolvedAt != nil
}

// MemberIDs returns the ids of all members, sorted
func (f *Family) MemberIDs() []string {
	return f.idsWhere(func(Member) bool { return true })
}

// ParentIDs returns the ids of members with the parent role, sorted
func (f *Family) ParentIDs() []string {
	return f.idsWhere(func(m Member) bool { return m.Role == RoleParent })
}

// ChildIDs returns the ids of members with the child role, sorted
func (f *Family) ChildIDs() []string {
	return f.idsWhere(func(m Member) bool { return m.Role == RoleChild })
}

// MemberCount returns the number of members
func (f *Family) MemberCount() int {
	return len(f.Members)
}

// IsFull reports whether another member would exceed MaxMembers
func (f *Family) IsFull() bool {
	return len(f.Members) >= f.MaxMembers
}

// Member looks up a member by user id
func (f *Family) Member(userID string) (Member, bool) {
	for _, m := range f.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// IsMember reports whether the user belongs to the family
func (f *Family) IsMember(userID string) bool {
	_, ok := f.Member(userID)
	return ok
}

// IsParent reports whether the user is a parent of the family
func (f *Family) IsParent(userID string) bool {
	m, ok := f.Member(userID)
	return ok && m.Role == RoleParent
}

// ParentCount returns the number of parents
func (f *Family) ParentCount() int {
	return len(f.ParentIDs())
}

func (f *Family) idsWhere(keep func(Member) bool) []string {
	ids := make([]string, 0, len(f.Members))
	for _, m := range f.Members {
		if keep(m) {
			ids = append(ids, m.UserID)
		}
	}
	sort.Strings(ids)
	return ids
}
