package domain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// mailtoPattern mirrors the address shape accepted by mailto: URIs.
var mailtoPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("mailto", func(fl validator.FieldLevel) bool {
			return mailtoPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidationErrors collects failed rules keyed by field name.
type ValidationErrors map[string][]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s %s", f, strings.Join(v[f], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field.
func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

// Err returns v as an error, or nil when nothing was recorded.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// AsValidationErrors unwraps err into ValidationErrors.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var verr ValidationErrors
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// Validate checks the attribute rules of a user. Uniqueness is checked by the store.
func (u *User) Validate() error {
	return validateStruct(u)
}

func validateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := ValidationErrors{}
	for _, fe := range fieldErrs {
		out.Add(snakeCase(fe.Field()), describeRule(fe))
	}
	return out
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "can't be blank"
	case "mailto", "url", "http_url":
		return "is invalid"
	case "min":
		return fmt.Sprintf("is too short (minimum is %s characters)", fe.Param())
	case "max":
		return fmt.Sprintf("is too long (maximum is %s characters)", fe.Param())
	case "oneof":
		return "is not included in the list"
	default:
		return "is invalid"
	}
}

func snakeCase(s string) string {
	var b strings.Builder
	var prev rune
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && prev >= 'a' && prev <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}

// ValidatePassword applies the password length rule.
func ValidatePassword(password string) error {
	errs := ValidationErrors{}
	switch n := len([]rune(password)); {
	case n == 0:
		errs.Add("password", "can't be blank")
	case n < 6:
		errs.Add("password", "is too short (minimum is 6 characters)")
	case n > 128:
		errs.Add("password", "is too long (maximum is 128 characters)")
	}
	return errs.Err()
}
