package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStoreUnavailable marks infrastructure faults: the store could not be
// reached or timed out. It is the only failure kind callers should retry.
var ErrStoreUnavailable = errors.New("storage is unavailable")

// ErrIdentifierConflict is returned by stores when a freshly issued identifier
// lost a race against a concurrent writer. The pipeline retries it with a new
// sequence value; it never surfaces to callers.
var ErrIdentifierConflict = errors.New("identifier already in use")

// FieldError is a single schema violation attached to a named input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates every violation found in one input so callers can
// correct them all at once.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// FieldMessage returns the message attached to the named field, if any.
func (e *ValidationError) FieldMessage(field string) (string, bool) {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message, true
		}
	}
	return "", false
}

// NotFoundError reports a cross-entity reference to a row that does not exist.
type NotFoundError struct {
	Ref string
	ID  string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Ref)
	}
	return fmt.Sprintf("%s %s not found", e.Ref, e.ID)
}

// DuplicateError reports a uniqueness violation on a caller-supplied value.
// The only unique caller-supplied field today is the user email.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %s is already registered", e.Field, e.Value)
}

// AuditWriteError marks the partial-failure case where the primary entity was
// persisted but the audit entry was not. It is logged and counted, never
// returned to callers, since primary durability outranks trail completeness.
type AuditWriteError struct {
	Module     string
	Identifier string
	Err        error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit entry for %s %s was not recorded: %v", e.Module, e.Identifier, e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }
