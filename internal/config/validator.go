package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers mcpcore-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("allowed_origin", validateAllowedOrigin); err != nil {
		return fmt.Errorf("failed to register allowed_origin validator: %w", err)
	}
	return nil
}

// validateAllowedOrigin validates a single entry of server.allowed_origins.
// "*" (allow-all) is always valid; otherwise the entry must look like an
// origin: a scheme followed by "://" and a non-empty host.
func validateAllowedOrigin(fl validator.FieldLevel) bool {
	origin := fl.Field().String()
	if origin == "*" {
		return true
	}
	scheme, rest, ok := strings.Cut(origin, "://")
	return ok && scheme != "" && rest != ""
}

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	return c.validateTransportExclusivity()
}

// validateTransportExclusivity ensures stdio is never combined with an
// HTTP-based transport: a stdio process owns its stdin/stdout exclusively
// and has nothing to serve a listening socket with in the same invocation.
func (c *Config) validateTransportExclusivity() error {
	if c.Transports.Stdio && (c.Transports.SSE || c.Transports.Streamable) {
		return errors.New("transports: stdio cannot be combined with sse or streamable")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s items", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "allowed_origin":
		return fmt.Sprintf("%s must be \"*\" or a scheme://host origin", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
