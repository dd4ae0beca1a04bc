package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks request and response schemas against their `validate` tags.
type Validator struct {
	cli *validator.Validate
}

// ValidationError represents an error encountered during validation of a struct field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the error form of a failed validation.
type Errors []ValidationError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// unityPattern matches institutional unity ids such as "jdoe2".
var unityPattern = regexp.MustCompile(`^[a-z][a-z0-9]{1,15}$`)

func (v *Validator) formatError(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: fe.Error(),
		})
	}
	return out
}

// ValidateStruct validates the provided struct and returns a slice of validation errors.
func (v *Validator) ValidateStruct(s any) []ValidationError {
	if err := v.cli.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// Validate checks a single value against the given tag.
func (v *Validator) Validate(value any, tag string) []ValidationError {
	if err := v.cli.Var(value, tag); err != nil {
		return v.formatError(err)
	}
	return nil
}

// Check is ValidateStruct in error form. It returns nil or an Errors value.
func (v *Validator) Check(s any) error {
	if errs := v.ValidateStruct(s); len(errs) > 0 {
		return Errors(errs)
	}
	return nil
}

// New initializes a Validator. Field names in errors use the json tag name
// when one is present, and the "unityid" tag is registered.
func New() *Validator {
	cli := validator.New(validator.WithRequiredStructEnabled())
	cli.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = cli.RegisterValidation("unityid", func(fl validator.FieldLevel) bool {
		return unityPattern.MatchString(fl.Field().String())
	})
	return &Validator{cli: cli}
}
