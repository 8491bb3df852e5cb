package services

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError reports a missing or invalid setting. Components that
// require the setting treat it as fatal at startup; optional features skip.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	reason := strings.TrimSpace(e.Reason)
	if reason == "" {
		reason = "not configured"
	}
	return fmt.Sprintf("configuration error: %s %s", e.Setting, reason)
}

// ErrorKind implements the queue error classifier contract.
func (e *ConfigurationError) ErrorKind() string { return "configuration" }

// ProviderError wraps a failed third-party API call.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	detail := buildDetail(e.Provider, e.Op, "")
	if e.StatusCode > 0 {
		detail = fmt.Sprintf("%s: http %d", detail, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", detail, e.Err)
	}
	return detail
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrorKind implements the queue error classifier contract.
func (e *ProviderError) ErrorKind() string { return "provider" }

// Wrap annotates err as a ProviderError for the given provider and operation.
// Errors that already carry a ProviderError are returned with extra context but
// keep their original classification.
func Wrap(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *ProviderError
	if errors.As(err, &existing) {
		return fmt.Errorf("%s: %w", buildDetail(provider, op, ""), err)
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

func buildDetail(provider, op, message string) string {
	parts := make([]string, 0, 3)
	if provider = strings.TrimSpace(provider); provider != "" {
		parts = append(parts, provider)
	}
	if op = strings.TrimSpace(op); op != "" {
		parts = append(parts, op)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "provider failure"
	}
	return strings.Join(parts, ": ")
}
