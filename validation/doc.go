// Package validation provides struct-tag validation for configuration
// sections and a field-error collector for semantic checks.
//
// # Struct Tag Validation
//
//	type Config struct {
//	    Workers int `mapstructure:"workers" validate:"gte=1"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("name", def.Name).Identifier("name", def.Name)
//	if err := v.ValidateAs(errors.ErrCodeInvalidGraph); err != nil {
//	    return err
//	}
package validation
