// Package validation provides custom validation rules for request DTOs.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/tokenvault/internal/errors"
)

var providerNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// ProviderName validates a lowercase provider identifier such as "linkedin".
var ProviderName = validation.NewStringRuleWithError(
	func(s string) bool {
		return providerNameRegex.MatchString(s)
	},
	validation.NewError(
		"validation_provider_name",
		"must start with a lowercase letter and contain only lowercase letters, digits, '_' or '-'",
	),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
