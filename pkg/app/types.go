package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

// DiskTarget is the disk image or device a command works on
type DiskTarget struct {
	Path string
}

// Validate ensures the target is usable
func (t *DiskTarget) Validate() error {
	if strings.TrimSpace(t.Path) == "" {
		return NewError(ErrCodeInvalidInput, "disk path is required", nil)
	}
	return nil
}

// ParseSize parses a human readable size such as "512MiB" or "2G".
func ParseSize(s string) (uint64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, NewError(ErrCodeInvalidInput, fmt.Sprintf("invalid size %q", s), err)
	}
	return n, nil
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeDiskAccess   = "DISK_ACCESS"
	ErrCodeCorrupt      = "TABLE_CORRUPT"
	ErrCodeNotWritable  = "NOT_WRITABLE"
	ErrCodeNotFound     = "NOT_FOUND"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapDiskError classifies a library error by its kind
func WrapDiskError(message string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CommonError
	if errors.As(err, &ce) {
		return err
	}
	code := ErrCodeDiskAccess
	switch {
	case errors.Is(err, gpt.ErrNotWritable):
		code = ErrCodeNotWritable
	case errors.Is(err, gpt.ErrInvalidSignature),
		errors.Is(err, gpt.ErrChecksumMismatch),
		errors.Is(err, gpt.ErrPartitionTableCorrupt):
		code = ErrCodeCorrupt
	}
	return NewError(code, message, err)
}
