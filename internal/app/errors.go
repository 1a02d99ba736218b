package app

import "fmt"

// DomainError is a client-facing failure with a stable machine code:
// validation problems (VALIDATION_ERROR, COMPANY_REQUIRED), lifecycle
// misuse (NO_DRAFT, NOT_PUBLISHED) and unavailable subsystems
// (MEDIA_DISABLED). Store sentinels and auth errors are translated into
// these by mapError; anything unmapped surfaces as SERVER_ERROR.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
