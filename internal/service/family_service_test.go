package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "familytasks/internal/errors"
	"familytasks/internal/models"
)

func TestCreateFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.codes.Push("SMITH1")

	family, err := env.families.CreateFamily(ctx, "p1", "  The Smiths  ", false)
	require.NoError(t, err)

	assert.Equal(t, "The Smiths", family.Name)
	assert.Equal(t, "SMITH1", family.InviteCode)
	assert.Equal(t, "p1", family.CreatedBy)
	assert.Equal(t, models.DefaultMaxMembers, family.MaxMembers)
	assert.Equal(t, []string{"p1"}, family.ParentIDs())

	stored := env.mustFamily(t, family.ID)
	assert.Equal(t, []string{"p1"}, stored.MemberIDs())
	assert.True(t, stored.IsParent("p1"))

	user := env.mustUser(t, "p1")
	assert.True(t, user.InFamily(family.ID))
	assert.Equal(t, models.RoleParent, user.Role)

	assert.Equal(t, []string{models.EventFamilyCreated}, env.eventTypes(t, family.ID))
}

func TestCreatePremiumFamily(t *testing.T) {
	env := newTestEnv(t)

	family, err := env.families.CreateFamily(context.Background(), "p1", "Big Family", true)
	require.NoError(t, err)
	assert.True(t, family.IsPremium)
	assert.Equal(t, models.PremiumMaxMembers, family.MaxMembers)
}

func TestCreateFamilyErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createFamily(t, "p1")

	tests := []struct {
		name     string
		callerID string
		family   string
		wantCode apperrors.Code
	}{
		{"unauthenticated", "", "Valid Name", apperrors.CodeUnauthenticated},
		{"empty name", "u1", "   ", apperrors.CodeEmpty},
		{"short name", "u1", "A", apperrors.CodeTooShort},
		{"invalid characters", "u1", "Smith<script>", apperrors.CodeInvalidChars},
		{"already in a family", "p1", "Second Family", apperrors.CodeAlreadyInFamily},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.families.CreateFamily(ctx, tt.callerID, tt.family, false)
			assertCode(t, err, tt.wantCode)
		})
	}

	families, err := env.store.Families.ListFamilies(ctx)
	require.NoError(t, err)
	assert.Len(t, families, 1, "failed creations must not write")
}

func TestCreateFamilyRetriesInviteCodeCollision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.codes.Push("AAAAAA")
	first := env.createFamily(t, "p1")
	require.Equal(t, "AAAAAA", first.InviteCode)

	env.codes.Push("AAAAAA", "AAAAAA", "BBBBBB")
	second, err := env.families.CreateFamily(ctx, "p2", "The Joneses", false)
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.InviteCode)
}

func TestCreateFamilyInviteCodeExhaustion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.codes.Push("AAAAAA")
	env.createFamily(t, "p1")

	always := func() (string, error) { return "AAAAAA", nil }
	families := NewFamilyService(env.store, DefaultLimits(), env.families.logger, WithCodeGenerator(always))

	_, err := families.CreateFamily(ctx, "p2", "The Joneses", false)
	assertCode(t, err, apperrors.CodeTransactionConflict)

	user, err := env.store.Users.GetUserByID(ctx, "p2")
	require.NoError(t, err)
	assert.Nil(t, user, "the failed transaction rolls back the caller record")
}

func TestGetFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	family := env.createFamily(t, "p1", child("c1"))
	other := env.createFamily(t, "p2")

	got, err := env.families.GetFamily(ctx, "c1", family.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "p1"}, got.MemberIDs())

	for name, tc := range map[string]struct{ caller, familyID string }{
		"unauthenticated": {"", family.ID},
		"outsider":        {"p2", family.ID},
		"unknown family":  {"p1", "does-not-exist"},
		"other family":    {"c1", other.ID},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.families.GetFamily(ctx, tc.caller, tc.familyID)
			assertCode(t, err, apperrors.CodeNotAuthorized)
		})
	}
}

func TestGetFamilyDissolved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	family := env.createFamily(t, "p1")

	require.NoError(t, env.membership.LeaveFamily(ctx, "p1"))

	_, err := env.families.GetFamily(ctx, "p1", family.ID)
	assertCode(t, err, apperrors.CodeNotAuthorized)
}

func TestGetMyFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	family := env.createFamily(t, "p1", child("c1"))

	got, err := env.families.GetMyFamily(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, family.ID, got.ID)

	_, err = env.families.GetMyFamily(ctx, "stranger")
	assertCode(t, err, apperrors.CodeNotAMember)

	_, err = env.families.GetMyFamily(ctx, "")
	assertCode(t, err, apperrors.CodeUnauthenticated)
}

func TestGetFamilyMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	family := env.createFamily(t, "p1", child("c1"), parent("p2"))

	members, err := env.families.GetFamilyMembers(ctx, "c1", family.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "p1", members[0].UserID, "earliest joined first")
	assert.Equal(t, "c1", members[1].UserID)
	assert.Equal(t, models.RoleParent, members[2].Role)

	_, err = env.families.GetFamilyMembers(ctx, "stranger", family.ID)
	assertCode(t, err, apperrors.CodeNotAuthorized)
}

func TestIsFamilyMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	family := env.createFamily(t, "p1", child("c1"))

	ok, err := env.families.IsFamilyMember(ctx, "c1", family.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.families.IsFamilyMember(ctx, "nobody", family.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	family := env.createFamily(t, "p1", child("c1"), child("c2"))

	name := "New Name"
	limit := 6
	updated, err := env.families.UpdateFamily(ctx, "p1", family.ID, models.FamilyPatch{Name: &name, MaxMembers: &limit})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, 6, updated.MaxMembers)

	stored := env.mustFamily(t, family.ID)
	assert.Equal(t, "New Name", stored.Name)
	assert.Equal(t, 6, stored.MaxMembers)
	assert.Equal(t, family.InviteCode, stored.InviteCode)
	assert.Contains(t, env.eventTypes(t, family.ID), models.EventFamilyUpdated)
}

func TestUpdateFamilyErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	family := env.createFamily(t, "p1", child("c1"), child("c2"))
	env.createFamily(t, "p2")

	ptr := func(n int) *int { return &n }
	str := func(s string) *string { return &s }

	tests := []struct {
		name     string
		caller   string
		patch    models.FamilyPatch
		wantCode apperrors.Code
	}{
		{"child", "c1", models.FamilyPatch{Name: str("Kids Rule")}, apperrors.CodeOnlyParentsCanUpdate},
		{"non-member parent", "p2", models.FamilyPatch{Name: str("Takeover")}, apperrors.CodeOnlyParentsCanUpdate},
		{"bad name", "p1", models.FamilyPatch{Name: str("X")}, apperrors.CodeTooShort},
		{"zero limit", "p1", models.FamilyPatch{MaxMembers: ptr(0)}, apperrors.CodeInvalidMaxMembers},
		{"limit below members", "p1", models.FamilyPatch{MaxMembers: ptr(2)}, apperrors.CodeMaxMembersBelowMemberCount},
		{"bad name before auth", "c1", models.FamilyPatch{Name: str("")}, apperrors.CodeEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.families.UpdateFamily(ctx, tt.caller, family.ID, tt.patch)
			assertCode(t, err, tt.wantCode)
		})
	}

	stored := env.mustFamily(t, family.ID)
	assert.Equal(t, "The Smiths", stored.Name)
	assert.Equal(t, models.DefaultMaxMembers, stored.MaxMembers)
}

func TestUpdateFamilyNoopWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	family := env.createFamily(t, "p1")

	same := family.Name
	_, err := env.families.UpdateFamily(ctx, "p1", family.ID, models.FamilyPatch{Name: &same})
	require.NoError(t, err)
	_, err = env.families.UpdateFamily(ctx, "p1", family.ID, models.FamilyPatch{})
	require.NoError(t, err)

	assert.Equal(t, []string{models.EventFamilyCreated}, env.eventTypes(t, family.ID))
	assert.True(t, env.mustFamily(t, family.ID).UpdatedAt.Equal(family.UpdatedAt))
}

func TestRegenerateInviteCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.codes.Push("OLD111")
	family := env.createFamily(t, "p1", child("c1"))

	env.codes.Push("NEW222")
	code, err := env.families.RegenerateInviteCode(ctx, "p1", family.ID)
	require.NoError(t, err)
	assert.Equal(t, "NEW222", code)

	_, err = env.membership.JoinFamily(ctx, "c2", "OLD111", models.RoleChild)
	assertCode(t, err, apperrors.CodeInvalidCode)

	joined, err := env.membership.JoinFamily(ctx, "c2", "new222", models.RoleChild)
	require.NoError(t, err)
	assert.Equal(t, family.ID, joined.ID)

	_, err = env.families.RegenerateInviteCode(ctx, "c1", family.ID)
	assertCode(t, err, apperrors.CodeOnlyParentsCanPerformAdminActions)

	assert.Contains(t, env.eventTypes(t, family.ID), models.EventInviteCodeRotated)
}
