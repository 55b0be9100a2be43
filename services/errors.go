package services

import (
	"errors"
	"fmt"
)

// Shared errors used across services and the HTTP error mapping.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rule failures
	ErrValidationFailed   = errors.New("validation failed")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Authentication and authorization
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
	ErrNationalTeamOnly     = errors.New("only the national team club can manage international rosters")

	// Conflicts
	ErrAgentEmailConflict  = errors.New("email address is already in use")
	ErrClubNameConflict    = errors.New("club name is already in use")
	ErrTeamNameConflict    = errors.New("team name is already in use")
	ErrSeasonNameConflict  = errors.New("season name already exists")
	ErrBirthNumberConflict = errors.New("a member with this birth number already exists")

	// Entity specific lookups
	ErrClubNotFound        = errors.New("club not found")
	ErrTeamNotFound        = errors.New("team not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrSeasonNotFound      = errors.New("season not found")
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrRosterEntryNotFound = errors.New("roster entry not found")
	ErrTokenNotFound       = errors.New("confirmation token not found")

	// Workflow state violations. These signal a caller bug, not a user
	// recoverable condition.
	ErrTransferNotRequested    = errors.New("transfer is not in the requested state")
	ErrSeasonAlreadyInvoiced   = errors.New("season invoices have already been generated")
	ErrApplicationInvalidState = errors.New("application is not in a state that allows this action")

	// Integration failures (external invoicing service). Reconciliation jobs
	// retry these on the next tick.
	ErrInvoicingUnavailable = errors.New("invoicing service request failed")
	ErrClubNotInvoicable    = errors.New("club has no invoicing subject")
)

// ValidationError is a field-level failure surfaced to end users.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidationErrors collects several field failures into one error value.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Error()
}

// Fields flattens the collection into a field → message map for the JSON
// error response.
func (e ValidationErrors) Fields() map[string]string {
	fields := make(map[string]string, len(e))
	for _, err := range e {
		if _, ok := fields[err.Field]; !ok {
			fields[err.Field] = err.Message
		}
	}
	return fields
}
