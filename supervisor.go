package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// ServiceState is the supervisor-visible lifecycle state.
type ServiceState int

const (
	// StateUnknown means the state query failed
	StateUnknown ServiceState = iota
	// StateAbsent means the service is not registered
	StateAbsent
	// StateStopped means the service is registered but not running
	StateStopped
	// StateRunning means the service is registered and running
	StateRunning
)

// String returns the string representation of ServiceState
func (s ServiceState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Supervisor is the capability set the orchestrator needs from a host
// service manager. It is implemented once per platform; the orchestrator
// never branches on the OS name.
type Supervisor interface {
	// Register writes the descriptor artifacts and makes them known to the
	// supervisor. Re-registering overwrites rather than erroring.
	Register(ctx context.Context, d *Descriptor) error
	// Enable turns on autostart at boot/login
	Enable(ctx context.Context) error
	// Start starts the service in the correct privilege/session context
	Start(ctx context.Context) error
	// Stop stops the service
	Stop(ctx context.Context) error
	// Deregister removes the service from the supervisor without touching
	// files on disk
	Deregister(ctx context.Context) error
	// PatchArgs rewrites the embedded argument list from the descriptor's
	// typed list, re-serializing only what the platform requires
	PatchArgs(ctx context.Context, d *Descriptor) error
	// State reports the current lifecycle state
	State(ctx context.Context) (ServiceState, error)
	// ArtifactPaths lists the on-disk files Register created, for cleanup
	ArtifactPaths() []string
}

// NewSupervisor creates the Supervisor for the given platform.
func NewSupervisor(p Platform, layout Layout, user UserContext) (Supervisor, error) {
	switch p {
	case PlatformLinux:
		return NewSupervisorSystemd(layout), nil
	case PlatformDarwin:
		return NewSupervisorLaunchd(layout, user), nil
	default:
		return nil, &OpError{Op: OpRegister, Path: p.String(), Err: ErrUnsupportedPlatform}
	}
}

// runner executes a control command and returns its stdout. Supervisor
// clients hold one so tests can intercept every invocation.
type runner func(ctx context.Context, name string, args ...string) (string, error)

// execRun is the production runner. Failures carry the command's stderr,
// which is where systemctl and launchctl explain themselves.
func execRun(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w (stderr: %s)", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.String(), nil
}
