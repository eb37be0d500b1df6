package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	apperrors "familytasks/internal/errors"
	"familytasks/internal/models"
	"familytasks/internal/repository"
	"familytasks/internal/telemetry"
	"familytasks/internal/validation"
)

// FamilyService handles the family lifecycle: creation, reads, updates and invite codes
type FamilyService struct {
	engine
	limits Limits
}

// NewFamilyService creates a new family service
func NewFamilyService(store *repository.Store, limits Limits, logger zerolog.Logger, opts ...Option) *FamilyService {
	return &FamilyService{
		engine: newEngine(store, logger, opts),
		limits: limits,
	}
}

// CreateFamily creates a new family with the caller as its only member and parent
func (s *FamilyService) CreateFamily(ctx context.Context, callerID, name string, isPremium bool) (created *models.Family, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.CreateFamily")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if err := validation.ValidateFamilyName(name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	maxMembers := s.limits.DefaultMaxMembers
	if isPremium {
		maxMembers = s.limits.PremiumMaxMembers
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		now := s.now()

		caller, err := s.loadCaller(ctx, tx, callerID, now)
		if err != nil {
			return err
		}
		if caller.HasFamily() {
			return apperrors.New(apperrors.CodeAlreadyInFamily, "caller already belongs to a family")
		}

		code, err := s.reserveInviteCode(ctx, tx)
		if err != nil {
			return err
		}

		family := &models.Family{
			ID:         s.newID(),
			Name:       name,
			InviteCode: code,
			CreatedBy:  callerID,
			MaxMembers: maxMembers,
			IsPremium:  isPremium,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Families.CreateFamily(ctx, family); err != nil {
			return err
		}
		if err := tx.Users.SetMembership(ctx, callerID, family.ID, models.RoleParent, now); err != nil {
			return err
		}
		family.Members = []models.Member{{UserID: callerID, Role: models.RoleParent, JoinedAt: now}}

		created = family
		return s.appendEvent(ctx, tx, models.EventFamilyCreated, family.ID, familyCreatedPayload{
			FamilyID:   family.ID,
			Name:       family.Name,
			CreatedBy:  callerID,
			MaxMembers: family.MaxMembers,
			IsPremium:  family.IsPremium,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("family_id", created.ID).
		Str("user_id", callerID).
		Bool("premium", isPremium).
		Msg("family created")
	return created, nil
}

// GetFamily returns a family to one of its members. Unknown, dissolved and
// foreign families all fail NOT_AUTHORIZED so the call reveals nothing.
func (s *FamilyService) GetFamily(ctx context.Context, callerID, familyID string) (family *models.Family, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.GetFamily")
	defer func() { telemetry.EndSpan(span, err) }()

	if strings.TrimSpace(callerID) == "" {
		return nil, apperrors.New(apperrors.CodeNotAuthorized, "caller is not a member of this family")
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		f, err := tx.Families.GetFamilyByID(ctx, familyID)
		if err != nil {
			return err
		}
		if f == nil || f.IsDissolved() || !f.IsMember(callerID) {
			return apperrors.WithMetadata(apperrors.CodeNotAuthorized, "caller is not a member of this family", map[string]string{"family_id": familyID})
		}
		family = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return family, nil
}

// GetMyFamily returns the caller's current family
func (s *FamilyService) GetMyFamily(ctx context.Context, callerID string) (family *models.Family, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.GetMyFamily")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		user, err := tx.Users.GetUserByID(ctx, callerID)
		if err != nil {
			return err
		}
		if user == nil || !user.HasFamily() {
			return apperrors.New(apperrors.CodeNotAMember, "caller does not belong to a family")
		}
		f, err := tx.Families.GetFamilyByID(ctx, *user.FamilyID)
		if err != nil {
			return err
		}
		if f == nil {
			return apperrors.New(apperrors.CodeNotAMember, "caller does not belong to a family")
		}
		family = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return family, nil
}

// UpdateFamily applies a name and/or member-limit change. Parents only.
func (s *FamilyService) UpdateFamily(ctx context.Context, callerID, familyID string, patch models.FamilyPatch) (updated *models.Family, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.UpdateFamily")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		if err := validation.ValidateFamilyName(*patch.Name); err != nil {
			return nil, err
		}
	}
	if patch.MaxMembers != nil {
		if err := validation.ValidateMaxMembers(*patch.MaxMembers); err != nil {
			return nil, err
		}
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		family, err := activeFamily(ctx, tx, familyID)
		if err != nil {
			return err
		}
		if family == nil || !family.IsParent(callerID) {
			return apperrors.WithMetadata(apperrors.CodeOnlyParentsCanUpdate, "only parents can update the family", map[string]string{"family_id": familyID})
		}

		changed := false
		if patch.Name != nil {
			if name := strings.TrimSpace(*patch.Name); name != family.Name {
				family.Name = name
				changed = true
			}
		}
		if patch.MaxMembers != nil && *patch.MaxMembers != family.MaxMembers {
			if *patch.MaxMembers < family.MemberCount() {
				return apperrors.WithMetadata(apperrors.CodeMaxMembersBelowMemberCount, "max members is below the current member count", map[string]string{"family_id": familyID})
			}
			family.MaxMembers = *patch.MaxMembers
			changed = true
		}

		updated = family
		if !changed {
			return nil
		}

		family.UpdatedAt = s.now()
		if err := tx.Families.UpdateFamily(ctx, family); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, models.EventFamilyUpdated, family.ID, familyUpdatedPayload{
			FamilyID:   family.ID,
			ActorID:    callerID,
			Name:       family.Name,
			MaxMembers: family.MaxMembers,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("family_id", familyID).
		Str("user_id", callerID).
		Msg("family updated")
	return updated, nil
}

// RegenerateInviteCode replaces the family's invite code. The old code stops
// working as soon as the transaction commits.
func (s *FamilyService) RegenerateInviteCode(ctx context.Context, callerID, familyID string) (code string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.RegenerateInviteCode")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return "", err
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		family, err := activeFamily(ctx, tx, familyID)
		if err != nil {
			return err
		}
		if family == nil || !family.IsParent(callerID) {
			return apperrors.WithMetadata(apperrors.CodeOnlyParentsCanPerformAdminActions, "only parents can regenerate the invite code", map[string]string{"family_id": familyID})
		}

		newCode, err := s.reserveInviteCode(ctx, tx)
		if err != nil {
			return err
		}
		family.InviteCode = newCode
		family.UpdatedAt = s.now()
		if err := tx.Families.UpdateFamily(ctx, family); err != nil {
			return err
		}

		code = newCode
		return s.appendEvent(ctx, tx, models.EventInviteCodeRotated, family.ID, familyActorPayload{
			FamilyID: family.ID,
			ActorID:  callerID,
		})
	})
	if err != nil {
		return "", err
	}

	s.logger.Info().
		Str("family_id", familyID).
		Str("user_id", callerID).
		Msg("invite code regenerated")
	return code, nil
}

// GetFamilyMembers lists the members of a family, earliest joined first. Members only.
func (s *FamilyService) GetFamilyMembers(ctx context.Context, callerID, familyID string) (members []models.Member, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.GetFamilyMembers")
	defer func() { telemetry.EndSpan(span, err) }()

	family, err := s.GetFamily(ctx, callerID, familyID)
	if err != nil {
		return nil, err
	}
	return family.Members, nil
}

// IsFamilyMember reports whether userID currently belongs to familyID
func (s *FamilyService) IsFamilyMember(ctx context.Context, userID, familyID string) (bool, error) {
	user, err := s.store.Users.GetUserByID(ctx, userID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to check membership", err)
	}
	return user != nil && user.InFamily(familyID), nil
}
