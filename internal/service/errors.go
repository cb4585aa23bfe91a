package service

// DomainError reports a business-rule violation. It is distinct from
// absence (repository lookups return nil for missing rows) and from
// infrastructure failures, which propagate unmodified; the API boundary
// maps domain errors to client-error responses.
type DomainError struct {
	Reason string
}

func (e *DomainError) Error() string {
	return e.Reason
}

var (
	ErrSessionNotFound = &DomainError{Reason: "session not found"}
	ErrBlankName       = &DomainError{Reason: "session name cannot be blank"}
	ErrNoMessages      = &DomainError{Reason: "no messages found for session"}
	ErrNotResumable    = &DomainError{Reason: "latest message is not in a resumable state"}
)
