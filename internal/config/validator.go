package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError is a single invalid setting.
type ValidationError struct {
	Field   string // The config field path (e.g., "persist.backend")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the accepted log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the accepted log formats.
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// ValidBackends returns the accepted persistence backends.
func ValidBackends() []string {
	return []string{"none", "memory", "sqlite", "s3"}
}

// Validate checks c and returns every problem found.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Server.Addr == "" {
		errors = append(errors, ValidationError{"server.addr", c.Server.Addr, "must not be empty"})
	}
	if c.Server.ShutdownTimeout <= 0 {
		errors = append(errors, ValidationError{"server.shutdown_timeout", c.Server.ShutdownTimeout, "must be positive"})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Log.Level)) {
		errors = append(errors, ValidationError{"log.level", c.Log.Level, "must be one of " + strings.Join(ValidLogLevels(), ", ")})
	}
	if !slices.Contains(ValidLogFormats(), strings.ToLower(c.Log.Format)) {
		errors = append(errors, ValidationError{"log.format", c.Log.Format, "must be one of " + strings.Join(ValidLogFormats(), ", ")})
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errors = append(errors, ValidationError{"metrics.namespace", c.Metrics.Namespace, "must not be empty when metrics are enabled"})
	}

	errors = append(errors, c.validatePersist()...)
	return errors
}

func (c *Config) validatePersist() []ValidationError {
	var errors []ValidationError
	p := c.Persist

	if !slices.Contains(ValidBackends(), p.Backend) {
		return append(errors, ValidationError{"persist.backend", p.Backend, "must be one of " + strings.Join(ValidBackends(), ", ")})
	}
	if p.Backend == "none" {
		return nil
	}

	if p.Interval <= 0 {
		errors = append(errors, ValidationError{"persist.interval", p.Interval, "must be positive"})
	}
	if p.Concurrency < 1 {
		errors = append(errors, ValidationError{"persist.concurrency", p.Concurrency, "must be at least 1"})
	}
	for i, k := range p.Keys {
		if k == "" {
			errors = append(errors, ValidationError{fmt.Sprintf("persist.keys[%d]", i), k, "must not be empty"})
		}
	}

	switch p.Backend {
	case "sqlite":
		if p.SQLite.Path == "" {
			errors = append(errors, ValidationError{"persist.sqlite.path", p.SQLite.Path, "must not be empty"})
		}
		if p.SQLite.Table == "" {
			errors = append(errors, ValidationError{"persist.sqlite.table", p.SQLite.Table, "must not be empty"})
		}
	case "s3":
		if p.S3.Bucket == "" {
			errors = append(errors, ValidationError{"persist.s3.bucket", p.S3.Bucket, "must not be empty"})
		}
		if p.S3.Region == "" && p.S3.Endpoint == "" {
			errors = append(errors, ValidationError{"persist.s3.region", p.S3.Region, "region or endpoint is required"})
		}
		if (p.S3.AccessKeyID == "") != (p.S3.SecretAccessKey == "") {
			errors = append(errors, ValidationError{"persist.s3.access_key_id", "<redacted>", "access key id and secret must be set together"})
		}
	}
	return errors
}
