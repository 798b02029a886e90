package validation

import (
	"fmt"
	"net/url"
)

// BaseValidator provides common validation logic for all config sections
type BaseValidator struct{}

// ValidateHTTPURL checks that raw is an absolute http(s) URL.
func (v *BaseValidator) ValidateHTTPURL(field, raw string) ValidationErrors {
	var errors ValidationErrors

	if raw == "" {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: "URL cannot be empty",
		})
		return errors
	}

	parsedURL, err := url.Parse(raw)
	if err != nil {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: "invalid URL",
		})
		return errors
	}

	// Validate scheme
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: "URL scheme must be either http or https",
		})
	}
	if parsedURL.Host == "" {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: "URL must include a host",
		})
	}

	return errors
}

// ValidateRange checks a [min, max] pair of seconds.
func (v *BaseValidator) ValidateRange(field string, min, max int) ValidationErrors {
	var errors ValidationErrors

	if min < 0 || max < 0 {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: "bounds cannot be negative",
		})
	}
	if min > max {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("min (%d) cannot exceed max (%d)", min, max),
		})
	}

	return errors
}
