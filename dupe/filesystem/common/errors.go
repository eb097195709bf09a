package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Common error types used across filesystem packages
var (
	ErrPathEmpty           = errors.New("path cannot be empty")
	ErrPathInvalid         = errors.New("path contains invalid characters")
	ErrRootNotExist        = errors.New("root directory does not exist")
	ErrRootNotDirectory    = errors.New("root is not a directory")
	ErrInvalidBufferPolicy = errors.New("invalid buffer policy")
	ErrInvalidSizeRange    = errors.New("invalid size range")
)

// HashError reports that a file could not be read while computing its digest.
// It is the per-file I/O failure class: batch callers drop the path and continue.
type HashError struct {
	Path string
	Op   string // "stat", "open", "read", "mmap"
	Err  error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("hash %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

// IsHashError reports whether err is (or wraps) a *HashError
func IsHashError(err error) bool {
	var he *HashError
	return errors.As(err, &he)
}

// ValidationUtils provides common validation utilities used across packages
type ValidationUtils struct{}

// NewValidationUtils creates a new ValidationUtils instance
func NewValidationUtils() *ValidationUtils {
	return &ValidationUtils{}
}

// ValidateContextCancellation checks if context is cancelled and returns appropriate error
func (vu *ValidationUtils) ValidateContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// ValidateRoot checks that path names an existing directory and returns its
// normalized absolute form. Callers run this before invoking the engine; the
// engine itself assumes a valid root.
func (vu *ValidationUtils) ValidateRoot(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrPathEmpty
	}
	if strings.Contains(path, "\x00") {
		return "", ErrPathInvalid
	}

	abs := NewPathUtils().NormalizePath(path)
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrRootNotExist, path)
		}
		return "", fmt.Errorf("failed to access directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrRootNotDirectory, path)
	}
	return abs, nil
}

// ValidateSizeRange rejects bounds that no file size can satisfy under the
// strict min < size < max filter.
func (vu *ValidationUtils) ValidateSizeRange(minSize, maxSize uint64) error {
	if maxSize <= minSize || maxSize-minSize < 2 {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidSizeRange, minSize, maxSize)
	}
	return nil
}

// ErrorUtils provides common error handling utilities
type ErrorUtils struct{}

// NewErrorUtils creates a new ErrorUtils instance
func NewErrorUtils() *ErrorUtils {
	return &ErrorUtils{}
}

// WrapError wraps an error with additional context
func (eu *ErrorUtils) WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", context, err)
}

// LogAndWrapError logs an error at error level and wraps it with context
func (eu *ErrorUtils) LogAndWrapError(logger Logger, err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(message, args...)
	logger.Error(context, "error", err)
	return fmt.Errorf("%s: %w", context, err)
}
