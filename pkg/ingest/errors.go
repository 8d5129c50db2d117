package ingest

import (
	"context"
	"errors"
	"fmt"
)

const (
	CategoryScan    = "scan"
	CategoryExtract = "extract"
	CategoryReply   = "reply"
	CategorySend    = "send"
	CategoryRecord  = "record"
	CategoryDriver  = "driver"
	CategoryUnknown = "unknown"
)

// Error is a categorized cycle or item failure.
type Error struct {
	Category string
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return e.Category
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Detail)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(category string, err error) error {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &Error{Category: category, Detail: detail, Err: err}
}

// CategoryFromError returns the stable category for an error when available.
func CategoryFromError(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryDriver
	}

	return CategoryUnknown
}
