package workspace

import (
	"errors"
	"fmt"
	"io/fs"
)

const (
	ErrorInvalidPath      = "invalid_path"
	ErrorOutsideStateDir  = "outside_state_dir"
	ErrorPathNotFound     = "path_not_found"
	ErrorPermissionDenied = "permission_denied"
	ErrorIO               = "io_error"
)

// Error is a categorized state directory failure. Err keeps the underlying
// filesystem error, when there is one, for errors.Is.
type Error struct {
	Category string
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Category, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %v", e.Category, e.Detail, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(category string, detail string) error {
	return &Error{Category: category, Detail: detail}
}

// wrapFS categorizes a filesystem error under detail.
func wrapFS(err error, detail string) error {
	if err == nil {
		return nil
	}

	category := ErrorIO
	switch {
	case errors.Is(err, fs.ErrNotExist):
		category = ErrorPathNotFound
	case errors.Is(err, fs.ErrPermission):
		category = ErrorPermissionDenied
	}
	return &Error{Category: category, Detail: detail, Err: err}
}

// CategoryFromError returns the category of a state directory error, or ""
// for anything else.
func CategoryFromError(err error) string {
	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}
	return ""
}
