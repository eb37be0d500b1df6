package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "familytasks/internal/errors"
	"familytasks/internal/models"
)

const (
	MinFamilyNameLength = 2
	MaxFamilyNameLength = 50
	MaxTaskTitleLength  = 200
	InviteCodeLength    = 6
)

var inviteCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// Punctuation accepted in family names besides letters, digits and spaces
const familyNamePunctuation = ".,'-&!?():"

// ValidateFamilyName checks a family name after trimming surrounding whitespace
func ValidateFamilyName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.WithMetadata(apperrors.CodeEmpty, "family name is required", map[string]string{"field": "name"})
	}

	length := utf8.RuneCountInString(name)
	if length < MinFamilyNameLength {
		return apperrors.WithMetadata(apperrors.CodeTooShort, "family name must be at least 2 characters", map[string]string{"field": "name"})
	}
	if length > MaxFamilyNameLength {
		return apperrors.WithMetadata(apperrors.CodeTooLong, "family name must be at most 50 characters", map[string]string{"field": "name"})
	}

	for _, r := range name {
		if !allowedNameRune(r) {
			return apperrors.WithMetadata(apperrors.CodeInvalidChars, "family name contains invalid characters", map[string]string{"field": "name"})
		}
	}
	return nil
}

func allowedNameRune(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r):
		return true
	case r == ' ':
		return true
	default:
		return strings.ContainsRune(familyNamePunctuation, r)
	}
}

// NormalizeInviteCode trims and uppercases user-entered invite codes
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateInviteCodeFormat checks that a code is six characters from [A-Z0-9] once normalized
func ValidateInviteCodeFormat(code string) error {
	normalized := NormalizeInviteCode(code)
	if normalized == "" {
		return apperrors.WithMetadata(apperrors.CodeEmpty, "invite code is required", map[string]string{"field": "invite_code"})
	}
	if !inviteCodeRegex.MatchString(normalized) {
		return apperrors.WithMetadata(apperrors.CodeBadFormat, "invite code must be 6 letters or digits", map[string]string{"field": "invite_code"})
	}
	return nil
}

// ValidateRole parses a role name, rejecting anything other than parent or child
func ValidateRole(role string) (models.Role, error) {
	r := models.ParseRole(role)
	if !r.Valid() {
		return models.RoleNone, apperrors.WithMetadata(apperrors.CodeInvalidRole, "role must be parent or child", map[string]string{"role": role})
	}
	return r, nil
}

// ValidateMaxMembers checks a requested member limit
func ValidateMaxMembers(n int) error {
	if n < 1 {
		return apperrors.New(apperrors.CodeInvalidMaxMembers, "max members must be at least 1")
	}
	return nil
}

// ValidateTaskTitle checks a task title after trimming
func ValidateTaskTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > MaxTaskTitleLength {
		return apperrors.New(apperrors.CodeInvalidTitle, "task title must be between 1 and 200 characters")
	}
	return nil
}
