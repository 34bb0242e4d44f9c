package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrInstanceNotFound     = errors.New("whatsapp instance not found")
	ErrInstanceNotConnected = errors.New("whatsapp instance is not connected")
	ErrMissingCredentials   = errors.New("whatsapp instance credentials are missing")
	ErrGatewayNotConfigured = errors.New("whatsapp gateway is not configured")
	ErrSessionDisconnected  = errors.New("whatsapp session is disconnected")
	ErrCircuitOpen          = errors.New("service unavailable: circuit breaker is open")
)

// ValidationError lists field-level problems of a request.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add records msg for field; the first message per field wins.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
