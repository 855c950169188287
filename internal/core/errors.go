package core

import (
	"errors"
	"fmt"
)

var (
	ErrConfig      = errors.New("configuration error")
	ErrInvalidJSON = errors.New("invalid JSON response")
	ErrNotFound    = errors.New("resource not found")
	ErrStageFatal  = errors.New("stage failed")
)

// ConfigError reports a missing or conflicting setting. It is raised at setup and never retried.
type ConfigError struct {
	Key     string
	Message string
	Cause   error
}

func NewConfigError(key, message string) *ConfigError {
	return &ConfigError{Key: key, Message: message}
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Key != "" {
		msg = fmt.Sprintf("%s: %s", e.Key, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("config error: %s: %v", msg, e.Cause)
	}
	return "config error: " + msg
}

func (e *ConfigError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrConfig, e.Cause}
	}
	return []error{ErrConfig}
}
