// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/base64"
	"encoding/pem"
	"regexp"
	"strings"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/secretvault/internal/errors"
)

var (
	// tagRegex allows lowercase identifiers with dashes, underscores, dots and colons.
	tagRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._:\-]{0,63}$`)

	// providerRegex allows short provider slugs such as "stripe" or "aws-iam".
	providerRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,63}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Base64 validates that a string is valid base64-encoded data.
var Base64 = validation.By(func(value interface{}) error {
	if validation.IsEmpty(value) {
		return nil // Let Required handle empty strings
	}
	v, _ := validation.Indirect(value)
	s, ok := v.(string)
	if !ok {
		return validation.NewError("validation_base64_type", "must be a string")
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return validation.NewError("validation_base64", "must be valid base64-encoded data")
	}
	return nil
})

// PEM validates that a byte slice or string contains at least one PEM block.
var PEM = validation.By(func(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return validation.NewError("validation_pem_type", "must be a string or bytes")
	}
	if len(data) == 0 {
		return nil
	}
	if block, _ := pem.Decode(data); block == nil {
		return validation.NewError("validation_pem", "must be PEM encoded")
	}
	return nil
})

// Tag validates a single secret tag.
var Tag = validation.NewStringRuleWithError(
	func(s string) bool {
		return tagRegex.MatchString(s)
	},
	validation.NewError("validation_tag", "must be 1-64 lowercase letters, digits or ._:- characters"),
)

// Provider validates a provider slug.
var Provider = validation.NewStringRuleWithError(
	func(s string) bool {
		return providerRegex.MatchString(s)
	},
	validation.NewError("validation_provider", "must be 1-64 lowercase letters, digits, - or _"),
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

// UUID validates that a string is a parseable UUID.
var UUID = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	},
	validation.NewError("validation_uuid", "must be a valid UUID"),
)
