// Package errors provides the coded error taxonomy shared by every engine operation.
package errors

import "net/http"

// Code is a machine-readable error kind. UI layers map codes to localized text.
type Code string

const (
	// CodeUnknown represents an error that is not a domain error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeEmpty                      Code = "EMPTY"
	CodeTooShort                   Code = "TOO_SHORT"
	CodeTooLong                    Code = "TOO_LONG"
	CodeInvalidChars               Code = "INVALID_CHARS"
	CodeBadFormat                  Code = "BAD_FORMAT"
	CodeInvalidFormat              Code = "INVALID_FORMAT"
	CodeInvalidRole                Code = "INVALID_ROLE"
	CodeInvalidMaxMembers          Code = "INVALID_MAX_MEMBERS"
	CodeInvalidTitle               Code = "INVALID_TITLE"
	CodeMaxMembersBelowMemberCount Code = "MAX_MEMBERS_BELOW_MEMBER_COUNT"

	// Authorization errors
	CodeUnauthenticated                   Code = "UNAUTHENTICATED"
	CodeNotAuthorized                     Code = "NOT_AUTHORIZED"
	CodeOnlyParentsCanUpdate              Code = "ONLY_PARENTS_CAN_UPDATE"
	CodeOnlyParentsCanPerformAdminActions Code = "ONLY_PARENTS_CAN_PERFORM_ADMIN_ACTIONS"

	// State-conflict errors
	CodeAlreadyInFamily         Code = "ALREADY_IN_FAMILY"
	CodeFamilyFull              Code = "FAMILY_FULL"
	CodeInvalidCode             Code = "INVALID_CODE"
	CodeCannotRemoveSelf        Code = "CANNOT_REMOVE_SELF"
	CodeCannotDemoteLastParent  Code = "CANNOT_DEMOTE_LAST_PARENT"
	CodeLastParentWithMembers   Code = "LAST_PARENT_WITH_MEMBERS"
	CodeNotAMember              Code = "NOT_A_MEMBER"
	CodeCannotAssignToNonMember Code = "CANNOT_ASSIGN_TO_NON_MEMBER"

	// Lookup errors
	CodeTaskNotFound Code = "TASK_NOT_FOUND"

	// Transient/infra errors
	CodeTransactionConflict Code = "TRANSACTION_CONFLICT"
	CodeStoreUnavailable    Code = "STORE_UNAVAILABLE"
)

// Category groups codes by how callers are expected to react to them.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryAuthorization Category = "authorization"
	CategoryStateConflict Category = "state_conflict"
	CategoryNotFound      Category = "not_found"
	CategoryTransient     Category = "transient"
	CategoryInternal      Category = "internal"
)

// Category returns the taxonomy bucket of the code.
func (c Code) Category() Category {
	switch c {
	case CodeEmpty,
		CodeTooShort,
		CodeTooLong,
		CodeInvalidChars,
		CodeBadFormat,
		CodeInvalidFormat,
		CodeInvalidRole,
		CodeInvalidMaxMembers,
		CodeInvalidTitle,
		CodeMaxMembersBelowMemberCount:
		return CategoryValidation

	case CodeUnauthenticated,
		CodeNotAuthorized,
		CodeOnlyParentsCanUpdate,
		CodeOnlyParentsCanPerformAdminActions:
		return CategoryAuthorization

	case CodeAlreadyInFamily,
		CodeFamilyFull,
		CodeInvalidCode,
		CodeCannotRemoveSelf,
		CodeCannotDemoteLastParent,
		CodeLastParentWithMembers,
		CodeNotAMember,
		CodeCannotAssignToNonMember:
		return CategoryStateConflict

	case CodeTaskNotFound:
		return CategoryNotFound

	case CodeTransactionConflict,
		CodeStoreUnavailable:
		return CategoryTransient

	default:
		return CategoryInternal
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeInvalidCode, CodeTaskNotFound:
		return http.StatusNotFound
	case CodeTransactionConflict, CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	}

	switch c.Category() {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryAuthorization:
		return http.StatusForbidden
	case CategoryStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var defaultMessages = map[Code]string{
	CodeUnknown:                           "An unexpected error occurred.",
	CodeEmpty:                             "This field is required.",
	CodeTooShort:                          "Family name must be at least 2 characters.",
	CodeTooLong:                           "Family name must be at most 50 characters.",
	CodeInvalidChars:                      "Family name contains characters that are not allowed.",
	CodeBadFormat:                         "Invite code must be 6 letters or digits.",
	CodeInvalidFormat:                     "That invite code is not in a valid format.",
	CodeInvalidRole:                       "Role must be parent or child.",
	CodeInvalidMaxMembers:                 "Maximum members must be at least 1.",
	CodeInvalidTitle:                      "Task title must be between 1 and 200 characters.",
	CodeMaxMembersBelowMemberCount:        "Maximum members cannot be lower than the current number of members.",
	CodeUnauthenticated:                   "You must be signed in.",
	CodeNotAuthorized:                     "You are not allowed to access this family.",
	CodeOnlyParentsCanUpdate:              "Only parents can update the family.",
	CodeOnlyParentsCanPerformAdminActions: "Only parents can manage family members.",
	CodeAlreadyInFamily:                   "You are already a member of a family.",
	CodeFamilyFull:                        "This family has reached its member limit.",
	CodeInvalidCode:                       "No family matches that invite code.",
	CodeCannotRemoveSelf:                  "Use leave family to remove yourself.",
	CodeCannotDemoteLastParent:            "A family must keep at least one parent.",
	CodeLastParentWithMembers:             "Promote another parent or remove the other members before leaving.",
	CodeNotAMember:                        "That user is not a member of this family.",
	CodeCannotAssignToNonMember:           "Tasks can only be assigned to family members.",
	CodeTaskNotFound:                      "Task not found.",
	CodeTransactionConflict:               "The family changed while saving. Please try again.",
	CodeStoreUnavailable:                  "The service is temporarily unavailable.",
}

// DefaultMessage returns the English user-facing message for a code.
func DefaultMessage(code Code) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return defaultMessages[CodeUnknown]
}
