// Package util holds small input helpers shared by the auth and web layers.
package util

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields under their form names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Violation is one field that failed a validation rule.
type Violation struct {
	Field string
	Rule  string
}

// ValidateStruct checks v against its `validate` tags and returns the failed
// fields in declaration order. A nil slice means v is valid.
func ValidateStruct(v any) ([]Violation, error) {
	err := validate.Struct(v)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	out := make([]Violation, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Violation{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out, nil
}

// ValidateEmail reports whether email is a well-formed address.
func ValidateEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address so
// lookups and the unique index agree on one spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
