package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kbukum/recpipe/errors"
)

// identifierPattern matches node, parameter and component identifiers.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

// FieldError is one failed check on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is an ordered list of failed checks.
type FieldErrors []FieldError

func (fe FieldErrors) String() string {
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Field + ": " + e.Message
	}
	return strings.Join(parts, "; ")
}

// AppError folds the list into one AppError carrying the fields as detail,
// or returns nil when the list is empty.
func (fe FieldErrors) AppError(code errors.ErrorCode) *errors.AppError {
	if len(fe) == 0 {
		return nil
	}
	return errors.New(code, fe.String()).WithDetail("fields", []FieldError(fe))
}

// Validator collects field errors from chained checks.
type Validator struct {
	errs FieldErrors
}

// New creates an empty Validator.
func New() *Validator {
	return &Validator{}
}

// Check records message for field when ok is false.
func (v *Validator) Check(ok bool, field, format string, args ...any) *Validator {
	if !ok {
		v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	return v
}

// Required fails on blank values.
func (v *Validator) Required(field, value string) *Validator {
	return v.Check(strings.TrimSpace(value) != "", field, "is required")
}

// Identifier fails on non-empty values that are not usable names. Empty
// values are left to Required.
func (v *Validator) Identifier(field, value string) *Validator {
	return v.Check(value == "" || identifierPattern.MatchString(value),
		field, "%q is not a valid identifier", value)
}

// Unique records value in seen and fails if it was already there.
func (v *Validator) Unique(field, value string, seen map[string]bool) *Validator {
	if value == "" {
		return v
	}
	dup := seen[value]
	seen[value] = true
	return v.Check(!dup, field, "duplicate %q", value)
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// Errors returns the failed checks in the order they ran.
func (v *Validator) Errors() FieldErrors {
	return v.errs
}

// Validate returns an INVALID_INPUT AppError, or nil when every check passed.
func (v *Validator) Validate() *errors.AppError {
	return v.errs.AppError(errors.ErrCodeInvalidInput)
}

// ValidateAs is Validate with a caller-chosen code.
func (v *Validator) ValidateAs(code errors.ErrorCode) *errors.AppError {
	return v.errs.AppError(code)
}
