package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Reclamation defaults.
const (
	// DefaultMaxWait bounds the polite polling phase
	DefaultMaxWait = 30 * time.Second
	// DefaultPollInterval is the fixed time between occupancy polls
	DefaultPollInterval = time.Second
	// DefaultKillGrace is how long socket teardown gets after a forced kill
	DefaultKillGrace = 2 * time.Second
)

// PortInspector observes and signals the processes around a TCP port. The
// production implementation is SystemInspector; tests substitute fakes.
type PortInspector interface {
	// ListeningPIDs returns the PIDs holding port in listening state
	ListeningPIDs(ctx context.Context, port int) ([]int32, error)
	// MatchingPIDs returns PIDs whose command line contains pattern,
	// excluding the calling process
	MatchingPIDs(ctx context.Context, pattern string) ([]int32, error)
	// Terminate sends a graceful termination signal
	Terminate(ctx context.Context, pid int32) error
	// Kill sends a forced termination signal
	Kill(ctx context.Context, pid int32) error
}

// SystemInspector inspects live system state through gopsutil.
type SystemInspector struct{}

// ListeningPIDs scans TCP connections for listeners on port.
func (SystemInspector) ListeningPIDs(ctx context.Context, port int) ([]int32, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, err
	}
	seen := make(map[int32]struct{})
	var pids []int32
	for _, conn := range conns {
		if conn.Status != "LISTEN" || conn.Laddr.Port != uint32(port) || conn.Pid <= 0 {
			continue
		}
		if _, dup := seen[conn.Pid]; dup {
			continue
		}
		seen[conn.Pid] = struct{}{}
		pids = append(pids, conn.Pid)
	}
	return pids, nil
}

// MatchingPIDs scans process command lines for pattern.
func (SystemInspector) MatchingPIDs(ctx context.Context, pattern string) ([]int32, error) {
	if pattern == "" {
		return nil, nil
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	self := int32(os.Getpid())
	var pids []int32
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil {
			// Processes owned by others or already gone; skip.
			continue
		}
		if strings.Contains(cmdline, pattern) {
			pids = append(pids, p.Pid)
		}
	}
	return pids, nil
}

// Terminate sends SIGTERM.
func (SystemInspector) Terminate(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.TerminateWithContext(ctx)
}

// Kill sends SIGKILL.
func (SystemInspector) Kill(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.KillWithContext(ctx)
}

// ReclaimOutcome is the result classification of a reclamation attempt.
type ReclaimOutcome int

const (
	// Reclaimed means the port is believed free
	Reclaimed ReclaimOutcome = iota
	// ReclaimTimedOut means the port was still held after escalation and
	// the grace period
	ReclaimTimedOut
)

// String returns the string representation of ReclaimOutcome
func (o ReclaimOutcome) String() string {
	if o == Reclaimed {
		return "reclaimed"
	}
	return "timed out"
}

// ReclaimResult describes what a reclamation attempt did.
type ReclaimResult struct {
	// Outcome is the overall classification
	Outcome ReclaimOutcome
	// Elapsed is the total wall time spent
	Elapsed time.Duration
	// TerminatedPIDs were matched by command line and sent SIGTERM before
	// polling began
	TerminatedPIDs []int32
	// KilledPIDs were found holding the port at timeout and sent SIGKILL
	KilledPIDs []int32
	// Escalated reports whether the forced-kill tier ran
	Escalated bool
	// PortFree records the final verification poll taken after escalation
	// (always true when the polite phase succeeded)
	PortFree bool
}

// Reclaimer ensures a TCP port previously bound by a stopped server instance
// is free before a replacement starts.
//
// The protocol has two tiers. Before polling, any process whose command line
// matches Pattern is sent SIGTERM; this shortens the common graceful case.
// Occupancy is then polled once per PollInterval up to MaxWait. On timeout
// the holders are identified directly from the port, not by name, so
// orphaned or renamed descendants are still found, and each is force-killed.
// After KillGrace one final verification poll records whether the port
// actually came free; escalation is not retried.
type Reclaimer struct {
	// Port is the TCP port to free
	Port int
	// Pattern matches the known server command line for the proactive tier
	Pattern string
	// MaxWait bounds the polling phase
	MaxWait time.Duration
	// PollInterval is the fixed delay between polls
	PollInterval time.Duration
	// KillGrace is the socket-teardown allowance after escalation
	KillGrace time.Duration
	// Inspector observes and signals processes
	Inspector PortInspector
	// Log receives progress and warnings
	Log *slog.Logger
}

// ReclaimOption configures a Reclaimer
type ReclaimOption func(*Reclaimer)

// WithMaxWait sets the polling phase bound
func WithMaxWait(d time.Duration) ReclaimOption {
	return func(r *Reclaimer) {
		r.MaxWait = d
	}
}

// WithPollInterval sets the delay between occupancy polls
func WithPollInterval(d time.Duration) ReclaimOption {
	return func(r *Reclaimer) {
		r.PollInterval = d
	}
}

// WithKillGrace sets the post-escalation grace period
func WithKillGrace(d time.Duration) ReclaimOption {
	return func(r *Reclaimer) {
		r.KillGrace = d
	}
}

// WithInspector substitutes the port/process inspector
func WithInspector(i PortInspector) ReclaimOption {
	return func(r *Reclaimer) {
		r.Inspector = i
	}
}

// WithLogger sets the progress logger
func WithLogger(log *slog.Logger) ReclaimOption {
	return func(r *Reclaimer) {
		r.Log = log
	}
}

// NewReclaimer creates a Reclaimer with default timings and the live system
// inspector, then applies any options.
func NewReclaimer(port int, pattern string, opts ...ReclaimOption) *Reclaimer {
	r := &Reclaimer{
		Port:         port,
		Pattern:      pattern,
		MaxWait:      DefaultMaxWait,
		PollInterval: DefaultPollInterval,
		KillGrace:    DefaultKillGrace,
		Inspector:    SystemInspector{},
		Log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reclaim runs the reclamation protocol. The returned error is non-nil only
// for context cancellation or an inspector failure; a port that stays held
// is reported through the result, not an error, because the caller proceeds
// best-effort either way.
func (r *Reclaimer) Reclaim(ctx context.Context) (ReclaimResult, error) {
	start := time.Now()
	var res ReclaimResult

	// Tier one: terminate known server processes by command line.
	if r.Pattern != "" {
		matches, err := r.Inspector.MatchingPIDs(ctx, r.Pattern)
		if err != nil {
			r.Log.Warn("process pattern scan failed", "pattern", r.Pattern, "error", err)
		}
		for _, pid := range matches {
			if err := r.Inspector.Terminate(ctx, pid); err != nil {
				r.Log.Warn("terminate failed", "pid", pid, "error", err)
				continue
			}
			res.TerminatedPIDs = append(res.TerminatedPIDs, pid)
		}
		if len(res.TerminatedPIDs) > 0 {
			r.Log.Info("terminated server processes", "pids", res.TerminatedPIDs)
		}
	}

	// Polite phase: poll occupancy until the port frees or MaxWait passes.
	deadline := start.Add(r.MaxWait)
	var holders []int32
	for {
		pids, err := r.Inspector.ListeningPIDs(ctx, r.Port)
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, &OpError{Op: OpReclaim, Path: portString(r.Port), Err: err}
		}
		if len(pids) == 0 {
			res.Outcome = Reclaimed
			res.PortFree = true
			res.Elapsed = time.Since(start)
			return res, nil
		}
		holders = pids
		if !time.Now().Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			res.Elapsed = time.Since(start)
			return res, ctx.Err()
		case <-time.After(r.PollInterval):
		}
	}

	// Escalation: force-kill the holders found by port, exactly once.
	res.Escalated = true
	r.Log.Warn("port still held at deadline, escalating",
		"port", r.Port, "pids", holders, "waited", time.Since(start).Round(time.Second))
	for _, pid := range holders {
		if err := r.Inspector.Kill(ctx, pid); err != nil {
			r.Log.Warn("kill failed", "pid", pid, "error", err)
			continue
		}
		res.KilledPIDs = append(res.KilledPIDs, pid)
	}

	select {
	case <-ctx.Done():
		res.Elapsed = time.Since(start)
		return res, ctx.Err()
	case <-time.After(r.KillGrace):
	}

	// Single verification poll; escalation is not retried.
	remaining, err := r.Inspector.ListeningPIDs(ctx, r.Port)
	res.PortFree = err == nil && len(remaining) == 0
	if res.PortFree {
		res.Outcome = Reclaimed
	} else {
		res.Outcome = ReclaimTimedOut
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

func portString(port int) string {
	return "tcp:" + strconv.Itoa(port)
}
