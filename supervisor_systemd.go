package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// SupervisorSystemd drives a systemd unit through systemctl. Commands run
// with sudo when the process is not already root, matching how the installer
// is normally invoked.
type SupervisorSystemd struct {
	// UnitName is the unit stem without the .service suffix
	UnitName string

	// Layout locates the unit and environment files
	Layout Layout

	// UseSudo indicates whether to prefix control commands with sudo
	UseSudo bool

	// SudoCommand is the sudo command to use (default: "sudo")
	SudoCommand string

	// SystemctlPath is the path to the systemctl binary
	SystemctlPath string

	// Timeout bounds each systemctl invocation
	Timeout time.Duration

	run   runner
	write func(path string, data []byte, mode os.FileMode) error
}

// NewSupervisorSystemd creates a systemd supervisor for the standard unit.
func NewSupervisorSystemd(layout Layout) *SupervisorSystemd {
	s := &SupervisorSystemd{
		UnitName:      ServiceName,
		Layout:        layout,
		UseSudo:       os.Geteuid() != 0,
		SudoCommand:   "sudo",
		SystemctlPath: "systemctl",
		Timeout:       10 * time.Second,
		run:           execRun,
	}
	s.write = s.writeFile
	return s
}

// execSystemctl executes a systemctl command with optional sudo.
func (s *SupervisorSystemd) execSystemctl(ctx context.Context, args ...string) (string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	if s.UseSudo {
		return s.run(ctx, s.SudoCommand, append([]string{s.SystemctlPath}, args...)...)
	}
	return s.run(ctx, s.SystemctlPath, args...)
}

func (s *SupervisorSystemd) unit() string {
	return s.UnitName + ".service"
}

// writeFile writes a root-owned file, via sudo tee when not running as root.
func (s *SupervisorSystemd) writeFile(path string, data []byte, mode os.FileMode) error {
	if !s.UseSudo {
		return renameio.WriteFile(path, data, mode)
	}

	cmd := exec.Command(s.SudoCommand, "tee", path)
	cmd.Stdin = bytes.NewReader(data)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return &OpError{Op: OpRegister, Path: path, Err: err}
	}
	return nil
}

// Register renders and writes the unit and environment files, then reloads
// the systemd manager configuration. An existing unit is overwritten.
func (s *SupervisorSystemd) Register(ctx context.Context, d *Descriptor) error {
	unitText, err := d.RenderUnit(s.Layout.EnvFilePath())
	if err != nil {
		return err
	}
	if err := s.write(s.Layout.EnvFilePath(), []byte(d.RenderEnvFile()), 0o644); err != nil {
		return &OpError{Op: OpRegister, Path: s.Layout.EnvFilePath(), Err: err}
	}
	if err := s.write(s.Layout.UnitPath(), []byte(unitText), 0o644); err != nil {
		return &OpError{Op: OpRegister, Path: s.Layout.UnitPath(), Err: err}
	}
	if _, err := s.execSystemctl(ctx, "daemon-reload"); err != nil {
		return &OpError{Op: OpRegister, Path: s.unit(), Err: err}
	}
	return nil
}

// Enable enables start at boot.
func (s *SupervisorSystemd) Enable(ctx context.Context) error {
	if _, err := s.execSystemctl(ctx, "enable", s.unit()); err != nil {
		return &OpError{Op: OpEnable, Path: s.unit(), Err: err}
	}
	return nil
}

// Start starts the unit.
func (s *SupervisorSystemd) Start(ctx context.Context) error {
	if _, err := s.execSystemctl(ctx, "start", s.unit()); err != nil {
		return &OpError{Op: OpStart, Path: s.unit(), Err: err}
	}
	return nil
}

// Stop stops the unit.
func (s *SupervisorSystemd) Stop(ctx context.Context) error {
	if _, err := s.execSystemctl(ctx, "stop", s.unit()); err != nil {
		return &OpError{Op: OpStop, Path: s.unit(), Err: err}
	}
	return nil
}

// Deregister disables the unit and reloads systemd. File removal is the
// orchestrator's job, via ArtifactPaths.
func (s *SupervisorSystemd) Deregister(ctx context.Context) error {
	if _, err := s.execSystemctl(ctx, "disable", s.unit()); err != nil {
		return &OpError{Op: OpDeregister, Path: s.unit(), Err: err}
	}
	if _, err := s.execSystemctl(ctx, "daemon-reload"); err != nil {
		return &OpError{Op: OpDeregister, Path: s.unit(), Err: err}
	}
	return nil
}

// PatchArgs rewrites only the environment file; the unit text indirects all
// arguments through it, so nothing else changes on disk.
func (s *SupervisorSystemd) PatchArgs(ctx context.Context, d *Descriptor) error {
	if err := s.write(s.Layout.EnvFilePath(), []byte(d.RenderEnvFile()), 0o644); err != nil {
		return &OpError{Op: OpPatchArgs, Path: s.Layout.EnvFilePath(), Err: err}
	}
	if _, err := s.execSystemctl(ctx, "daemon-reload"); err != nil {
		return &OpError{Op: OpPatchArgs, Path: s.unit(), Err: err}
	}
	return nil
}

// State maps systemctl show output onto the lifecycle states.
func (s *SupervisorSystemd) State(ctx context.Context) (ServiceState, error) {
	out, err := s.execSystemctl(ctx, "show", "--no-page",
		"--property=LoadState,ActiveState,SubState", s.unit())
	if err != nil {
		// show succeeds for unknown units, so a command failure means the
		// state is genuinely unknown.
		return StateUnknown, &OpError{Op: OpState, Path: s.unit(), Err: err}
	}

	props := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			props[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	if props["LoadState"] == "not-found" {
		// The unit file may still exist without being loaded yet.
		if _, statErr := os.Stat(s.Layout.UnitPath()); errors.Is(statErr, fs.ErrNotExist) {
			return StateAbsent, nil
		}
		return StateStopped, nil
	}
	if props["ActiveState"] == "active" && props["SubState"] == "running" {
		return StateRunning, nil
	}
	return StateStopped, nil
}

// ArtifactPaths lists the files Register writes.
func (s *SupervisorSystemd) ArtifactPaths() []string {
	return []string{s.Layout.UnitPath(), s.Layout.EnvFilePath()}
}
