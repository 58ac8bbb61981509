package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/bankstmt/internal/output"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/statement"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/transform"
)

// ErrInvalidStatement marks a statement that cannot produce a report.
var ErrInvalidStatement = errors.New("statement failed validation")

// ValidationResult contains all validation errors and warnings for a statement
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// ValidationError represents a problem that would make the report fail
type ValidationError struct {
	Key     string // store key of the movement
	Field   string
	Value   string
	Message string
}

// ValidationWarning represents a non-critical issue
type ValidationWarning struct {
	Key     string
	Field   string
	Value   string
	Message string
}

// OK reports whether the result has no errors.
func (r *ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Err summarizes the errors as one error wrapping ErrInvalidStatement, or
// returns nil when there are none.
func (r *ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	first := r.Errors[0]
	return fmt.Errorf("%w: %d errors, first %s [%s]: %s",
		ErrInvalidStatement, len(r.Errors), first.Key, first.Field, first.Message)
}

// ValidateStatement checks every stored movement of st.
// Errors mark movements the presenter cannot render; warnings mark gaps in
// the upstream data that still render.
func ValidateStatement(st *statement.Statement) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}
	if st == nil {
		return result
	}

	for _, e := range st.Entries() {
		m := e.Movement

		if _, err := output.ParseAccountableDate(m.AccountableDate); err != nil {
			value := ""
			if m.AccountableDate != nil {
				value = *m.AccountableDate
			}
			result.Errors = append(result.Errors, ValidationError{
				Key:     e.Key,
				Field:   "accountable_date",
				Value:   value,
				Message: fmt.Sprintf("cannot be rendered: %v", err),
			})
		}

		if m.Amount == nil {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Key:     e.Key,
				Field:   "amount",
				Message: "amount missing, rendered as 0",
			})
		}

		if m.Description == nil {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Key:     e.Key,
				Field:   "description",
				Message: "description missing",
			})
		}

		if m.ID != nil && *m.ID == "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Key:     e.Key,
				Field:   "id",
				Value:   "",
				Message: "upstream id is empty; all such movements share one entry",
			})
		}

		if m.ID == nil {
			if m.AccountableDate == nil && m.Date == nil {
				result.Warnings = append(result.Warnings, ValidationWarning{
					Key:     e.Key,
					Field:   "date",
					Message: "no id and no dates; synthetic key is weak",
				})
			}

			// Synthetic keys end in "null" or "}", so a trailing separator is a collision suffix.
			if suffix := len(e.Key) - len(strings.TrimRight(e.Key, transform.KeySeparator)); suffix > 0 {
				result.Warnings = append(result.Warnings, ValidationWarning{
					Key:     e.Key,
					Field:   "key",
					Value:   fmt.Sprintf("%d", suffix),
					Message: "identical movement appeared more than once in one snapshot",
				})
			}
		}
	}

	return result
}
