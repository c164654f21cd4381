// Package errors classifies failures raised at the edges of a flow (broker
// connections, payload decoding, node configuration) and retries the ones
// that are worth retrying.
//
// Errors inside the graph itself never leave the node that raised them; this
// package is for bridges and assembly code that talk to the outside world.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: broker unreachable, connection reset, timeouts.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: authorization failures, cancelled contexts.
	CategoryPermanent

	// CategoryInvalid indicates the input or configuration is wrong.
	// Examples: undecodable payloads, missing subjects.
	CategoryInvalid
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// Invalid creates an invalid-input error.
func Invalid(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryInvalid, context)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryPermanent
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return CategoryTransient
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return CategoryInvalid
	}

	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return CategoryInvalid
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsInvalid reports whether the error was caused by bad input or configuration.
func IsInvalid(err error) bool {
	return Categorize(err) == CategoryInvalid
}
