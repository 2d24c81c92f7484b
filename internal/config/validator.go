package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "stress.workers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
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

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Upper bounds that keep a stress run from exhausting the machine.
const (
	maxWorkers    = 10000
	maxIncrements = 50_000_000
	maxKeys       = 1_000_000
	maxHoldMS     = 60_000
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Locker config
	errors = append(errors, c.validateLocker()...)

	// Validate Stress config
	errors = append(errors, c.validateStress()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateLocker validates the LockerConfig
func (c *Config) validateLocker() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Locker.Name) == "" {
		errors = append(errors, ValidationError{
			Field:   "locker.name",
			Value:   c.Locker.Name,
			Message: "must not be empty",
		})
	}

	// Zero is allowed and means a single non-blocking attempt
	if c.Locker.DefaultTimeoutMS < 0 {
		errors = append(errors, ValidationError{
			Field:   "locker.default_timeout_ms",
			Value:   c.Locker.DefaultTimeoutMS,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateStress validates the StressConfig
func (c *Config) validateStress() []ValidationError {
	var errors []ValidationError

	positive := []struct {
		field string
		value int
		max   int
	}{
		{"stress.workers", c.Stress.Workers, maxWorkers},
		{"stress.increments", c.Stress.Increments, maxIncrements},
		{"stress.keys", c.Stress.Keys, maxKeys},
		{"stress.hold_ms", c.Stress.HoldMS, maxHoldMS},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: "must be positive",
			})
			continue
		}
		if p.value > p.max {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: fmt.Sprintf("exceeds maximum of %d", p.max),
			})
		}
	}

	if c.Stress.TimeoutMS < 0 {
		errors = append(errors, ValidationError{
			Field:   "stress.timeout_ms",
			Value:   c.Stress.TimeoutMS,
			Message: "must be non-negative",
		})
	} else if c.Stress.HoldMS > 0 {
		// The timed-wait scenario relies on the contender giving up first.
		// A zero stress timeout falls back to the locker default.
		field, timeout := "stress.timeout_ms", c.Stress.TimeoutMS
		if timeout == 0 {
			field, timeout = "locker.default_timeout_ms", c.Locker.DefaultTimeoutMS
		}
		if timeout >= c.Stress.HoldMS {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   timeout,
				Message: fmt.Sprintf("must be less than stress.hold_ms (%d)", c.Stress.HoldMS),
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
