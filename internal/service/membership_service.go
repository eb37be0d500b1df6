package service

import (
	"context"

	"github.com/rs/zerolog"

	apperrors "familytasks/internal/errors"
	"familytasks/internal/models"
	"familytasks/internal/repository"
	"familytasks/internal/telemetry"
	"familytasks/internal/validation"
)

// MembershipService handles joining, leaving, removal and role changes
type MembershipService struct {
	engine
	reassigner *ReassignmentService
}

// NewMembershipService creates a new membership service. Forced removals hand
// the removed member's tasks to reassigner.
func NewMembershipService(store *repository.Store, reassigner *ReassignmentService, logger zerolog.Logger, opts ...Option) *MembershipService {
	return &MembershipService{
		engine:     newEngine(store, logger, opts),
		reassigner: reassigner,
	}
}

// JoinFamily adds the caller to the family holding inviteCode. An empty role joins as child.
func (s *MembershipService) JoinFamily(ctx context.Context, callerID, inviteCode string, desiredRole models.Role) (joined *models.Family, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.JoinFamily")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if err := validation.ValidateInviteCodeFormat(inviteCode); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidFormat, "invite code format is invalid", err)
	}
	if desiredRole == models.RoleNone {
		desiredRole = models.RoleChild
	}
	if desiredRole, err = validation.ValidateRole(string(desiredRole)); err != nil {
		return nil, err
	}
	code := validation.NormalizeInviteCode(inviteCode)

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		now := s.now()

		caller, err := s.loadCaller(ctx, tx, callerID, now)
		if err != nil {
			return err
		}

		familyID, err := tx.Families.GetFamilyIDByInviteCode(ctx, code)
		if err != nil {
			return err
		}
		if familyID == "" {
			return apperrors.New(apperrors.CodeInvalidCode, "invite code does not match any family")
		}
		if caller.HasFamily() {
			return apperrors.New(apperrors.CodeAlreadyInFamily, "caller already belongs to a family")
		}

		family, err := activeFamily(ctx, tx, familyID)
		if err != nil {
			return err
		}
		// The code may have rotated between the lookup and the lock
		if family == nil || family.InviteCode != code {
			return apperrors.New(apperrors.CodeInvalidCode, "invite code does not match any family")
		}
		if family.IsFull() {
			return apperrors.WithMetadata(apperrors.CodeFamilyFull, "family has reached its member limit", map[string]string{"family_id": family.ID})
		}

		if err := tx.Users.SetMembership(ctx, callerID, family.ID, desiredRole, now); err != nil {
			return err
		}
		family.Members = append(family.Members, models.Member{UserID: callerID, Role: desiredRole, JoinedAt: now})

		joined = family
		return s.appendEvent(ctx, tx, models.EventMemberJoined, family.ID, memberPayload{
			FamilyID: family.ID,
			ActorID:  callerID,
			UserID:   callerID,
			Role:     string(desiredRole),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("family_id", joined.ID).
		Str("user_id", callerID).
		Str("role", string(desiredRole)).
		Msg("member joined family")
	return joined, nil
}

// LeaveFamily removes the caller from their family. It succeeds without
// changes when the caller has no family. The caller's tasks stay assigned to them.
func (s *MembershipService) LeaveFamily(ctx context.Context, callerID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.LeaveFamily")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return err
	}

	var (
		familyID  string
		dissolved bool
	)
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		familyID, dissolved = "", false

		caller, err := tx.Users.GetUserByIDForUpdate(ctx, callerID)
		if err != nil {
			return err
		}
		if caller == nil || !caller.HasFamily() {
			return nil
		}

		family, err := tx.Families.GetFamilyByIDForUpdate(ctx, *caller.FamilyID)
		if err != nil {
			return err
		}
		if family == nil {
			return apperrors.New(apperrors.CodeUnknown, "member references a missing family")
		}

		member, ok := family.Member(callerID)
		if !ok {
			return apperrors.New(apperrors.CodeUnknown, "family does not list its member")
		}
		if member.Role == models.RoleParent && family.ParentCount() == 1 && family.MemberCount() > 1 {
			return apperrors.WithMetadata(apperrors.CodeLastParentWithMembers, "the last parent cannot leave while other members remain", map[string]string{"family_id": family.ID})
		}

		now := s.now()
		if err := tx.Users.ClearMembership(ctx, callerID, now); err != nil {
			return err
		}
		familyID = family.ID

		if err := s.appendEvent(ctx, tx, models.EventMemberLeft, family.ID, memberPayload{
			FamilyID: family.ID,
			ActorID:  callerID,
			UserID:   callerID,
			Role:     string(member.Role),
		}); err != nil {
			return err
		}

		if family.MemberCount() > 1 {
			return nil
		}

		dissolved = true
		if err := tx.Families.DissolveFamily(ctx, family.ID, now); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, models.EventFamilyDissolved, family.ID, familyActorPayload{
			FamilyID: family.ID,
			ActorID:  callerID,
		})
	})
	if err != nil {
		return err
	}

	if familyID == "" {
		s.logger.Debug().Str("user_id", callerID).Msg("leave requested by user without a family")
		return nil
	}
	s.logger.Info().
		Str("family_id", familyID).
		Str("user_id", callerID).
		Bool("dissolved", dissolved).
		Msg("member left family")
	return nil
}

// RemoveFamilyMember removes another member and hands their tasks to the
// fallback owner. The removal commits first. If the handoff then fails the
// result reports it as pending and RepairPendingReassignments finishes it.
func (s *MembershipService) RemoveFamilyMember(ctx context.Context, callerID, familyID, targetUserID string) (result *models.RemovalResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.RemoveFamilyMember")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		if _, err := tx.Users.GetUserByIDForUpdate(ctx, targetUserID); err != nil {
			return err
		}

		family, err := activeFamily(ctx, tx, familyID)
		if err != nil {
			return err
		}
		if family == nil || !family.IsParent(callerID) {
			return apperrors.WithMetadata(apperrors.CodeOnlyParentsCanPerformAdminActions, "only parents can remove members", map[string]string{"family_id": familyID})
		}
		if callerID == targetUserID {
			return apperrors.New(apperrors.CodeCannotRemoveSelf, "use leave to remove yourself")
		}
		if !family.IsMember(targetUserID) {
			return apperrors.WithMetadata(apperrors.CodeNotAMember, "target is not a member of this family", map[string]string{"user_id": targetUserID})
		}

		fallback := fallbackOwner(family, targetUserID, callerID)
		now := s.now()

		if err := tx.Users.ClearMembership(ctx, targetUserID, now); err != nil {
			return err
		}
		if err := tx.Reassignments.SavePending(ctx, &models.PendingReassignment{
			FamilyID:        familyID,
			UserID:          targetUserID,
			FallbackOwnerID: fallback,
			RequestedBy:     callerID,
			CreatedAt:       now,
		}); err != nil {
			return err
		}

		result = &models.RemovalResult{
			FamilyID:        familyID,
			RemovedUserID:   targetUserID,
			FallbackOwnerID: fallback,
		}
		return s.appendEvent(ctx, tx, models.EventMemberRemoved, familyID, memberRemovedPayload{
			FamilyID:        familyID,
			ActorID:         callerID,
			UserID:          targetUserID,
			FallbackOwnerID: fallback,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("family_id", familyID).
		Str("user_id", targetUserID).
		Str("removed_by", callerID).
		Msg("member removed from family")

	taskIDs, err := s.reassigner.ReassignOnRemoval(ctx, familyID, targetUserID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("family_id", familyID).
			Str("user_id", targetUserID).
			Msg("task reassignment failed, left pending for repair")
		result.ReassignmentPending = true
		return result, nil
	}
	result.ReassignedTaskIDs = taskIDs
	return result, nil
}

// fallbackOwner picks who receives a removed member's tasks: the creator, or
// the removing parent when the creator is the one removed or already gone
func fallbackOwner(family *models.Family, removedUserID, removedBy string) string {
	if family.CreatedBy != removedUserID && family.IsMember(family.CreatedBy) {
		return family.CreatedBy
	}
	return removedBy
}

// ChangeMemberRole moves a member between parent and child. Parents only.
// Setting the role a member already has succeeds without changes.
func (s *MembershipService) ChangeMemberRole(ctx context.Context, callerID, familyID, targetUserID string, newRole models.Role) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.ChangeMemberRole")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return err
	}
	if newRole, err = validation.ValidateRole(string(newRole)); err != nil {
		return err
	}

	var oldRole models.Role
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		if _, err := tx.Users.GetUserByIDForUpdate(ctx, targetUserID); err != nil {
			return err
		}

		family, err := activeFamily(ctx, tx, familyID)
		if err != nil {
			return err
		}
		if family == nil || !family.IsParent(callerID) {
			return apperrors.WithMetadata(apperrors.CodeOnlyParentsCanPerformAdminActions, "only parents can change roles", map[string]string{"family_id": familyID})
		}

		member, ok := family.Member(targetUserID)
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeNotAMember, "target is not a member of this family", map[string]string{"user_id": targetUserID})
		}
		oldRole = member.Role
		if member.Role == newRole {
			return nil
		}
		if member.Role == models.RoleParent && family.ParentCount() == 1 {
			return apperrors.WithMetadata(apperrors.CodeCannotDemoteLastParent, "the last parent cannot be demoted", map[string]string{"family_id": familyID})
		}

		if err := tx.Users.UpdateRole(ctx, targetUserID, familyID, newRole, s.now()); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, models.EventMemberRoleChanged, familyID, roleChangedPayload{
			FamilyID: familyID,
			ActorID:  callerID,
			UserID:   targetUserID,
			OldRole:  string(member.Role),
			NewRole:  string(newRole),
		})
	})
	if err != nil {
		return err
	}

	if oldRole != newRole {
		s.logger.Info().
			Str("family_id", familyID).
			Str("user_id", targetUserID).
			Str("old_role", string(oldRole)).
			Str("new_role", string(newRole)).
			Msg("member role changed")
	}
	return nil
}
