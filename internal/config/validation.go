package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/digitorus/tsaclient"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors. An empty TSA URL is valid:
// the service then reports itself as not configured.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.TSA.URL != "" {
		u, err := url.Parse(c.TSA.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{"tsa.url", "must be an absolute http or https URL"})
		}
	}
	if c.TSA.VendorMode && c.TSA.Username != "" {
		if _, err := tsaclient.ParseCustomerID(c.TSA.Username); err != nil {
			errs = append(errs, ValidationError{"tsa.username", "must be a numeric customer id in vendor mode"})
		}
	}
	if c.TSA.TimeoutSec < 0 {
		errs = append(errs, ValidationError{"tsa.timeout_sec", "must not be negative"})
	}

	if c.Server.Listen == "" {
		errs = append(errs, ValidationError{"server.listen", "is required"})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{"server.rate_limit", "must not be negative"})
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, ValidationError{"server.rate_burst", "must be at least 1 when rate limiting"})
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, ValidationError{"server.max_upload_bytes", "must be positive"})
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, ValidationError{"logging.level", err.Error()})
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{"logging.format", `must be "text" or "json"`})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
