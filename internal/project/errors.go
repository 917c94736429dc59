package project

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is against a *ConfigError.
var (
	// ErrDescriptor is returned for a malformed or incomplete descriptor.
	ErrDescriptor = errors.New("descriptor error")

	// ErrPathResolution is returned when a configured path cannot be
	// resolved to an existing location.
	ErrPathResolution = errors.New("path resolution error")
)

// ErrorKind classifies a configuration error.
type ErrorKind int

const (
	DescriptorError ErrorKind = iota + 1
	PathError
)

// ConfigError reports a configuration problem found while loading a
// descriptor or assembling the build configuration from it.
type ConfigError struct {
	Kind  ErrorKind
	Field string
	Err   error
}

// DescriptorErrorf builds a descriptor error for field.
func DescriptorErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Kind: DescriptorError, Field: field, Err: fmt.Errorf(format, args...)}
}

// PathErrorf builds a path resolution error for field.
func PathErrorf(field string, err error) *ConfigError {
	return &ConfigError{Kind: PathError, Field: field, Err: err}
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %v", e.sentinel(), e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", e.sentinel(), e.Field, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *ConfigError) sentinel() error {
	if e.Kind == PathError {
		return ErrPathResolution
	}
	return ErrDescriptor
}
