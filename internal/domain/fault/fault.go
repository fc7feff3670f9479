// Package fault maps infrastructure failures onto the small set of
// user-facing error categories the HTTP layer knows how to present.
package fault

import (
	"context"
	"errors"
	"fmt"
)

type Category string

const (
	Permission      Category = "permission"
	Unauthenticated Category = "unauthenticated"
	NotFound        Category = "not_found"
	Unavailable     Category = "unavailable"
	RateLimited     Category = "rate_limited"
	Precondition    Category = "precondition_failed"
	AlreadyExists   Category = "already_exists"
	Timeout         Category = "timeout"
	Cancelled       Category = "cancelled"
	Invalid         Category = "invalid_argument"
	Internal        Category = "internal"
)

type Error struct {
	Category Category
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(category Category, msg string) error {
	return &Error{Category: category, Msg: msg}
}

func Wrap(category Category, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: category, Msg: msg, Err: err}
}

// CategoryOf classifies an error. Context errors are recognized even when the
// failing layer did not wrap them itself; everything unclassified is Internal.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Category
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, context.Canceled):
		return Cancelled
	}
	return Internal
}

func Is(err error, category Category) bool {
	return CategoryOf(err) == category
}
