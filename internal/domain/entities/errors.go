package entities

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by a ConfigurationError when the source directory is missing
var ErrNotFound = errors.New("not found")

// ErrNoArtifacts is wrapped by a ConfigurationError when a scan finds nothing to analyze
var ErrNoArtifacts = errors.New("no shared libraries or executables found")

// ErrDuplicateBasename is wrapped by a MaterializationError when two closure
// members would be copied to the same destination name
var ErrDuplicateBasename = errors.New("duplicate basename in closure")

// UsageError reports a malformed command line
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Msg
}

// ConfigurationError reports unusable input configuration
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ToolInvocationError reports that the introspection command could not
// be started, exited non-zero, or timed out
type ToolInvocationError struct {
	Tool     string
	Target   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolInvocationError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Tool, e.Target)
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("%s (exit %d)", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s\nStderr: %s", msg, e.Stderr)
	}
	return msg
}

func (e *ToolInvocationError) Unwrap() error {
	return e.Err
}

// MaterializationOp names the step of materialization that failed
type MaterializationOp string

const (
	// OpCopy is the file copy step
	OpCopy MaterializationOp = "copy"
	// OpLink is the canonical symlink step
	OpLink MaterializationOp = "link"
)

// MaterializationError reports a failure for a single closure member
type MaterializationError struct {
	Path string
	Op   MaterializationOp
	Err  error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *MaterializationError) Unwrap() error {
	return e.Err
}
