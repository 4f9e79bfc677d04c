package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Orchestrator sequences install, update, and uninstall as transitions over
// the platform supervisor. It is written once against the Supervisor
// interface and never branches on the OS name.
//
// Operations converge on the desired end state rather than holding a strict
// transaction: a stop or deregister failure during update/uninstall is
// logged and the sequence continues, because the alternative is leaving the
// host stuck between states.
type Orchestrator struct {
	// Layout locates every artifact the orchestrator writes or removes
	Layout Layout

	// User is the resolved invoking user
	User UserContext

	// Sup is the platform supervisor client
	Sup Supervisor

	// Log receives progress and best-effort warnings
	Log *slog.Logger

	// ReclaimOptions tune the port reclamation run between stop and start
	ReclaimOptions []ReclaimOption

	stat      func(string) (os.FileInfo, error)
	remove    func(string) error
	removeAll func(string) error
	mkdirAll  func(string, os.FileMode) error
	chown     func(string, int, int) error
	run       runner
	reclaim   func(ctx context.Context, port int, pattern string, opts ...ReclaimOption) (ReclaimResult, error)
}

// NewOrchestrator creates an Orchestrator bound to one supervisor client.
func NewOrchestrator(sup Supervisor, layout Layout, user UserContext, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		Layout:    layout,
		User:      user,
		Sup:       sup,
		Log:       log,
		stat:      os.Stat,
		remove:    os.Remove,
		removeAll: os.RemoveAll,
		mkdirAll:  os.MkdirAll,
		chown:     os.Chown,
		run:       execRun,
	}
	o.reclaim = func(ctx context.Context, port int, pattern string, opts ...ReclaimOption) (ReclaimResult, error) {
		opts = append([]ReclaimOption{WithLogger(o.Log)}, opts...)
		return NewReclaimer(port, pattern, opts...).Reclaim(ctx)
	}
	return o
}

// Install transitions Absent to Registered-Running: install the server
// script, persist the resolved configuration as the new source of truth,
// render and register the descriptor, enable autostart, and start.
//
// Re-running install over an existing registration overwrites it.
func (o *Orchestrator) Install(ctx context.Context, cfg EffectiveConfig, scriptSource string, venv bool) error {
	interpreter, err := o.installScript(ctx, scriptSource, venv)
	if err != nil {
		return err
	}
	if err := o.ensureLogPaths(cfg); err != nil {
		return err
	}
	if err := cfg.Persist(o.Layout.ConfigPath); err != nil {
		return err
	}

	d := NewDescriptor(cfg, interpreter, o.Layout.ScriptPath())
	if err := o.Sup.Register(ctx, d); err != nil {
		return err
	}
	if err := o.Sup.Enable(ctx); err != nil {
		return err
	}
	if err := o.Sup.Start(ctx); err != nil {
		return err
	}
	o.Log.Info("installed", "port", cfg.ServePort, "path", cfg.ServePath, "mode", cfg.Mode)
	return nil
}

// Update transitions through stop, port reclamation, descriptor patch, and
// start. A reclamation timeout is surfaced through the returned result as a
// warning, not a failure: the old process has already been signaled and the
// supervisor will restart into the freed port on its own.
func (o *Orchestrator) Update(ctx context.Context, cfg EffectiveConfig) (ReclaimResult, error) {
	if err := o.Sup.Stop(ctx); err != nil {
		o.Log.Warn("stop failed, continuing", "error", err)
	}

	res, err := o.reclaim(ctx, cfg.ServePort, ScriptFileName, o.ReclaimOptions...)
	if err != nil {
		return res, err
	}
	if res.Outcome == ReclaimTimedOut {
		o.Log.Warn("port still held after escalation, starting anyway",
			"port", cfg.ServePort, "elapsed", res.Elapsed.Round(time.Second))
	}

	if err := o.ensureLogPaths(cfg); err != nil {
		return res, err
	}
	if err := cfg.Persist(o.Layout.ConfigPath); err != nil {
		return res, err
	}

	d := NewDescriptor(cfg, o.interpreter(), o.Layout.ScriptPath())
	if err := o.Sup.PatchArgs(ctx, d); err != nil {
		return res, err
	}
	if err := o.Sup.Start(ctx); err != nil {
		return res, err
	}
	o.Log.Info("updated", "port", cfg.ServePort, "path", cfg.ServePath, "mode", cfg.Mode)
	return res, nil
}

// Uninstall transitions to Absent. Stop, reclamation, and deregistration are
// best-effort; every artifact removal is recorded individually so callers
// can report exactly what happened. A missing artifact is not a failure.
func (o *Orchestrator) Uninstall(ctx context.Context, cfg EffectiveConfig) (CleanupSummary, error) {
	var summary CleanupSummary

	if err := o.Sup.Stop(ctx); err != nil {
		o.Log.Warn("stop failed, continuing", "error", err)
	}
	if _, err := o.reclaim(ctx, cfg.ServePort, ScriptFileName, o.ReclaimOptions...); err != nil {
		o.Log.Warn("port reclamation failed, continuing", "error", err)
	}
	if err := o.Sup.Deregister(ctx); err != nil {
		o.Log.Warn("deregister failed, continuing", "error", err)
	}

	for _, path := range o.Sup.ArtifactPaths() {
		o.removeStep(&summary, "descriptor", path, false)
	}
	o.removeStep(&summary, "install directory", o.Layout.InstallDir, true)
	o.removeStep(&summary, "config file", o.Layout.ConfigPath, false)
	o.removeStep(&summary, "logs directory", cfg.LogDir, true)

	for _, step := range summary.Steps {
		o.Log.Info("cleanup", "step", step.Name, "path", step.Path, "outcome", step.Outcome.String())
	}
	return summary, summary.Err()
}

// removeStep removes one artifact and records the outcome. The pre-check
// lets RemoveAll's nil-for-missing behavior still classify as not found.
func (o *Orchestrator) removeStep(s *CleanupSummary, name, path string, dir bool) {
	if _, err := o.stat(path); err != nil {
		s.Record(name, path, err)
		return
	}
	if dir {
		s.Record(name, path, o.removeAll(path))
		return
	}
	s.Record(name, path, o.remove(path))
}

// installScript copies the server script into the install directory and
// optionally creates a virtualenv for it. Returns the interpreter to embed
// in the descriptor. Venv creation is best-effort: on failure the system
// interpreter is used instead.
func (o *Orchestrator) installScript(ctx context.Context, scriptSource string, venv bool) (string, error) {
	if err := o.mkdirAll(o.Layout.InstallDir, 0o755); err != nil {
		return "", &OpError{Op: OpRegister, Path: o.Layout.InstallDir, Err: err}
	}
	if scriptSource != "" {
		if err := copyFile(scriptSource, o.Layout.ScriptPath(), 0o755); err != nil {
			return "", &OpError{Op: OpRegister, Path: o.Layout.ScriptPath(), Err: err}
		}
	}

	if !venv {
		return o.Layout.InterpreterPath(false), nil
	}
	venvDir := filepath.Join(o.Layout.InstallDir, "venv")
	if _, err := o.run(ctx, o.Layout.InterpreterPath(false), "-m", "venv", venvDir); err != nil {
		o.Log.Warn("virtualenv creation failed, using system interpreter", "dir", venvDir, "error", err)
		return o.Layout.InterpreterPath(false), nil
	}
	return o.Layout.InterpreterPath(true), nil
}

// interpreter picks the virtualenv interpreter when one was installed,
// otherwise the system one. Used by update, which has no -venv flag.
func (o *Orchestrator) interpreter() string {
	venvPy := o.Layout.InterpreterPath(true)
	if _, err := o.stat(venvPy); err == nil {
		return venvPy
	}
	return o.Layout.InterpreterPath(false)
}

// ensureLogPaths creates the log directory and hands it to the invoking
// user, so a server running unprivileged can append to it after an elevated
// install.
func (o *Orchestrator) ensureLogPaths(cfg EffectiveConfig) error {
	if err := o.mkdirAll(cfg.LogDir, 0o755); err != nil {
		return &OpError{Op: OpRegister, Path: cfg.LogDir, Err: err}
	}
	if o.User.Elevated {
		_ = o.chown(cfg.LogDir, o.User.UID, -1)
	}
	return nil
}

// copyFile copies src to dst with the given mode, truncating dst.
func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
