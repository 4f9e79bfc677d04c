package lifecycle

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// SupervisorLaunchd drives a per-user launchd agent through launchctl. The
// agent lives in the invoking user's LaunchAgents directory and is loaded
// into that user's gui session, not the elevated session the installer runs
// in.
type SupervisorLaunchd struct {
	// Label is the agent label
	Label string

	// Layout locates the agent plist
	Layout Layout

	// User is the resolved invoking user; its UID addresses the gui domain
	User UserContext

	// LaunchctlPath is the path to the launchctl binary
	LaunchctlPath string

	// Timeout bounds each launchctl invocation
	Timeout time.Duration

	run   runner
	write func(path string, data []byte, mode os.FileMode) error
	chown func(path string, uid, gid int) error
}

// NewSupervisorLaunchd creates a launchd supervisor for the standard agent.
func NewSupervisorLaunchd(layout Layout, user UserContext) *SupervisorLaunchd {
	return &SupervisorLaunchd{
		Label:         AgentLabel,
		Layout:        layout,
		User:          user,
		LaunchctlPath: "launchctl",
		Timeout:       10 * time.Second,
		run:           execRun,
		write: func(path string, data []byte, mode os.FileMode) error {
			return renameio.WriteFile(path, data, mode)
		},
		chown:         os.Chown,
	}
}

// domainTarget addresses the user's gui session.
func (s *SupervisorLaunchd) domainTarget() string {
	return fmt.Sprintf("gui/%d", s.User.UID)
}

// serviceTarget addresses the agent inside the gui session.
func (s *SupervisorLaunchd) serviceTarget() string {
	return s.domainTarget() + "/" + s.Label
}

func (s *SupervisorLaunchd) launchctl(ctx context.Context, args ...string) (string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return s.run(ctx, s.LaunchctlPath, args...)
}

// Register writes the agent plist and bootstraps it into the user's gui
// session. An already-bootstrapped agent is booted out first, so re-running
// install overwrites rather than erroring.
func (s *SupervisorLaunchd) Register(ctx context.Context, d *Descriptor) error {
	path := s.Layout.AgentPath()
	if err := os.MkdirAll(s.Layout.AgentDir, 0o755); err != nil {
		return &OpError{Op: OpRegister, Path: s.Layout.AgentDir, Err: err}
	}
	if err := s.write(path, []byte(d.RenderAgentPlist()), 0o644); err != nil {
		return &OpError{Op: OpRegister, Path: path, Err: err}
	}
	// The installer usually runs elevated; the agent file must belong to
	// the user whose session loads it.
	_ = s.chown(path, s.User.UID, -1)

	// Best-effort bootout clears any stale registration.
	_, _ = s.launchctl(ctx, "bootout", s.serviceTarget())

	if _, err := s.launchctl(ctx, "bootstrap", s.domainTarget(), path); err != nil {
		return &OpError{Op: OpRegister, Path: s.serviceTarget(), Err: err}
	}
	return nil
}

// Enable marks the agent eligible to run in the gui domain.
func (s *SupervisorLaunchd) Enable(ctx context.Context) error {
	if _, err := s.launchctl(ctx, "enable", s.serviceTarget()); err != nil {
		return &OpError{Op: OpEnable, Path: s.serviceTarget(), Err: err}
	}
	return nil
}

// Start loads the agent if needed and kicks it off in the user's session.
func (s *SupervisorLaunchd) Start(ctx context.Context) error {
	// Bootstrap is a no-op failure when already loaded; kickstart does the
	// actual start either way.
	_, _ = s.launchctl(ctx, "bootstrap", s.domainTarget(), s.Layout.AgentPath())

	if _, err := s.launchctl(ctx, "kickstart", s.serviceTarget()); err != nil {
		return &OpError{Op: OpStart, Path: s.serviceTarget(), Err: err}
	}
	return nil
}

// Stop boots the agent out of the session. A plain SIGTERM is not enough:
// KeepAlive would immediately respawn the process.
func (s *SupervisorLaunchd) Stop(ctx context.Context) error {
	if _, err := s.launchctl(ctx, "bootout", s.serviceTarget()); err != nil {
		return &OpError{Op: OpStop, Path: s.serviceTarget(), Err: err}
	}
	return nil
}

// Deregister is a bootout; launchd has no enabled-but-removed state beyond
// the plist file itself, which the orchestrator removes via ArtifactPaths.
func (s *SupervisorLaunchd) Deregister(ctx context.Context) error {
	if _, err := s.launchctl(ctx, "bootout", s.serviceTarget()); err != nil {
		return &OpError{Op: OpDeregister, Path: s.serviceTarget(), Err: err}
	}
	return nil
}

// PatchArgs re-serializes the whole plist from the descriptor's typed
// argument list. The agent is expected to be booted out at this point in an
// update; Start reloads the rewritten file.
func (s *SupervisorLaunchd) PatchArgs(_ context.Context, d *Descriptor) error {
	path := s.Layout.AgentPath()
	if err := s.write(path, []byte(d.RenderAgentPlist()), 0o644); err != nil {
		return &OpError{Op: OpPatchArgs, Path: path, Err: err}
	}
	_ = s.chown(path, s.User.UID, -1)
	return nil
}

// State inspects launchctl print output for the agent.
func (s *SupervisorLaunchd) State(ctx context.Context) (ServiceState, error) {
	out, err := s.launchctl(ctx, "print", s.serviceTarget())
	if err != nil {
		// Not loaded. The plist may still exist on disk.
		if _, statErr := os.Stat(s.Layout.AgentPath()); statErr == nil {
			return StateStopped, nil
		}
		return StateAbsent, nil
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "state = ") {
			if strings.TrimPrefix(line, "state = ") == "running" {
				return StateRunning, nil
			}
			return StateStopped, nil
		}
	}
	return StateStopped, nil
}

// ArtifactPaths lists the files Register writes.
func (s *SupervisorLaunchd) ArtifactPaths() []string {
	return []string{s.Layout.AgentPath()}
}
