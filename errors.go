package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Common errors returned by lifecycle operations
var (
	// ErrPathNotFound indicates the resolved serve path is not an existing directory
	ErrPathNotFound = errors.New("lifecycle: serve path is not an existing directory")

	// ErrInvalidPort indicates the serve port did not parse or is out of range
	ErrInvalidPort = errors.New("lifecycle: serve port out of range")

	// ErrInvalidMode indicates the serve mode is neither read nor write
	ErrInvalidMode = errors.New("lifecycle: mode must be read or write")

	// ErrConfigMissing indicates the config file does not exist
	ErrConfigMissing = errors.New("lifecycle: config file missing")

	// ErrAuthIncomplete indicates only one half of the username/password pair was set
	ErrAuthIncomplete = errors.New("lifecycle: auth username and password must be set together")

	// ErrIdentity indicates the invoking user could not be resolved
	ErrIdentity = errors.New("lifecycle: cannot resolve invoking user")

	// ErrUnsupportedPlatform indicates no supervisor client exists for this OS
	ErrUnsupportedPlatform = errors.New("lifecycle: unsupported platform")
)

// OpError represents an error from a lifecycle operation
type OpError struct {
	// Op is the operation that failed
	Op Operation
	// Path is the file path or service target involved in the operation
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("lifecycle %s %q: %v", e.Op.String(), e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// CleanupOutcome classifies the result of a single best-effort removal step.
type CleanupOutcome int

const (
	// CleanupRemoved means the artifact existed and was removed
	CleanupRemoved CleanupOutcome = iota
	// CleanupNotFound means the artifact was already absent; not an error
	CleanupNotFound
	// CleanupFailed means the artifact exists but could not be removed
	CleanupFailed
)

// String returns the string representation of CleanupOutcome
func (o CleanupOutcome) String() string {
	switch o {
	case CleanupRemoved:
		return "removed"
	case CleanupNotFound:
		return "not found"
	case CleanupFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CleanupStep records the outcome of one removal during uninstall.
type CleanupStep struct {
	// Name identifies the step (e.g. "descriptor", "logs directory")
	Name string
	// Path is the artifact path the step operated on
	Path string
	// Outcome classifies what happened
	Outcome CleanupOutcome
	// Err holds the underlying error when Outcome is CleanupFailed
	Err error
}

// CleanupSummary aggregates the per-step outcomes of an uninstall.
// A missing artifact is recorded, not treated as a failure.
type CleanupSummary struct {
	// Steps contains every attempted removal in order
	Steps []CleanupStep
}

// Record classifies err and appends a step to the summary.
func (s *CleanupSummary) Record(name, path string, err error) {
	step := CleanupStep{Name: name, Path: path}
	switch {
	case err == nil:
		step.Outcome = CleanupRemoved
	case errors.Is(err, fs.ErrNotExist), os.IsNotExist(err):
		step.Outcome = CleanupNotFound
	default:
		step.Outcome = CleanupFailed
		step.Err = err
	}
	s.Steps = append(s.Steps, step)
}

// Failed returns the steps that could not complete.
func (s *CleanupSummary) Failed() []CleanupStep {
	var failed []CleanupStep
	for _, step := range s.Steps {
		if step.Outcome == CleanupFailed {
			failed = append(failed, step)
		}
	}
	return failed
}

// Err returns nil if every step removed its artifact or found it already
// absent, otherwise an error naming the failed step count.
func (s *CleanupSummary) Err() error {
	failed := s.Failed()
	if len(failed) == 0 {
		return nil
	}
	if len(failed) == 1 {
		return fmt.Errorf("cleanup step %s: %w", failed[0].Name, failed[0].Err)
	}
	return fmt.Errorf("%d cleanup steps failed", len(failed))
}
