// Package val validates request and config structs with go-playground/validator.
package val

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(tagName)
	return v
}

// tagName reports fields by their json or env name, falling back to the Go name.
func tagName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "env"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// FieldErrors maps a field name to a human readable description of what is wrong.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field, desc := range e {
		fields = append(fields, field+": "+desc)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, "; ")
}

// Struct validates s. Validation failures come back as FieldErrors.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validation: %w", err)
	}

	fields := make(FieldErrors, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields[fieldErr.Field()] = describe(fieldErr)
	}
	return fields
}

func describe(fieldErr validator.FieldError) string {
	param := fieldErr.Param()
	switch fieldErr.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Must be at least %s", param)
	case "max":
		return fmt.Sprintf("Must be at most %s", param)
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", param)
	case "gt":
		return fmt.Sprintf("Must be greater than %s", param)
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", param)
	case "url":
		return "Must be a valid URL"
	case "hostname_port":
		return "Must be host:port"
	case "required_if":
		return fmt.Sprintf("Required when %s", param)
	case "required_with":
		return fmt.Sprintf("Required when %s is set", param)
	case "numeric":
		return "Must be a number"
	}
	return fmt.Sprintf("Failed validation: %s", fieldErr.Tag())
}
