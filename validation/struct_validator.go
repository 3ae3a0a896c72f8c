package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/recpipe/errors"
)

var (
	structValidator *validator.Validate
	structOnce      sync.Once
)

func instance() *validator.Validate {
	structOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
		structValidator.RegisterTagNameFunc(configKey)
	})
	return structValidator
}

// configKey names a field by the key users write in config files, so errors
// read "pool.workers" rather than "Pool.Workers".
func configKey(fld reflect.StructField) string {
	for _, tag := range []string{"mapstructure", "yaml", "json"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return toSnakeCase(fld.Name)
}

// Validate checks s against its `validate` struct tags and reports every
// failure in one INVALID_INPUT AppError.
func Validate(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation(err.Error())
	}

	fe := make(FieldErrors, 0, len(verrs))
	for _, e := range verrs {
		fe = append(fe, FieldError{Field: fieldPath(e.Namespace()), Message: describe(e)})
	}
	return fe.AppError(errors.ErrCodeInvalidInput)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// tagMessages maps validator tags onto message prefixes; the tag parameter
// is appended.
var tagMessages = map[string]string{
	"min":         "must be at least ",
	"max":         "must be at most ",
	"gte":         "must be >= ",
	"gt":          "must be > ",
	"lte":         "must be <= ",
	"lt":          "must be < ",
	"oneof":       "must be one of: ",
	"required_if": "is required when ",
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "hostname_port":
		return "must be host:port"
	}
	if prefix, ok := tagMessages[e.Tag()]; ok {
		return prefix + e.Param()
	}
	return "failed " + e.Tag()
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
