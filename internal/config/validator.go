package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// upstreamNameRe is the allowed shape of upstream server names. The name
// becomes the tool prefix, so it shares the tool name alphabet.
var upstreamNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// RegisterCustomValidators registers proxy-specific validation rules.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("upstream_name", validateUpstreamName); err != nil {
		return fmt.Errorf("register upstream_name validator: %w", err)
	}
	return nil
}

func validateUpstreamName(fl validator.FieldLevel) bool {
	return upstreamNameRe.MatchString(fl.Field().String())
}

// Validate checks struct tags plus the rules tags cannot express: upstream
// name shape and the reserved "proxy" prefix.
func (c *ProxyConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	for name, spec := range c.MCPServers {
		if !upstreamNameRe.MatchString(name) {
			return fmt.Errorf("mcpServers[%s]: name must match [A-Za-z0-9_-]{1,100}", name)
		}
		if name == "proxy" {
			return fmt.Errorf("mcpServers[%s]: name is reserved for the proxy's own tools", name)
		}
		if strings.TrimSpace(spec.Command) == "" {
			return fmt.Errorf("mcpServers[%s]: command must not be empty", name)
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to actionable
// messages.
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

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "upstream_name":
		return fmt.Sprintf("%s must match [A-Za-z0-9_-]{1,100}", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
