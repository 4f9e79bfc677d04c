package lifecycle

import (
	"path/filepath"
	"runtime"
)

// Platform identifies the target service-management platform.
type Platform int

const (
	// PlatformUnknown represents an unsupported host OS
	PlatformUnknown Platform = iota
	// PlatformLinux targets systemd unit files
	PlatformLinux
	// PlatformDarwin targets per-user launchd agents
	PlatformDarwin
)

// String returns the string representation of Platform
func (p Platform) String() string {
	switch p {
	case PlatformLinux:
		return "linux"
	case PlatformDarwin:
		return "darwin"
	default:
		return "unknown"
	}
}

// CurrentPlatform detects the host platform from the runtime.
func CurrentPlatform() (Platform, error) {
	switch runtime.GOOS {
	case "linux":
		return PlatformLinux, nil
	case "darwin":
		return PlatformDarwin, nil
	default:
		return PlatformUnknown, &OpError{Op: OpResolve, Path: runtime.GOOS, Err: ErrUnsupportedPlatform}
	}
}

// Service naming shared by both descriptor variants.
const (
	// ServiceName is the systemd unit stem and installed artifact name
	ServiceName = "custom-https-server"
	// AgentLabel is the launchd agent label
	AgentLabel = "com.kumarmuthu.custom-https-server"
	// ScriptFileName is the served process script installed into InstallDir
	ScriptFileName = "custom_https_server.py"
)

// Layout holds every on-disk location the manager reads or writes. All
// paths are absolute. Tests substitute temporary directories.
type Layout struct {
	// ConfigPath is the persisted key=value config file
	ConfigPath string
	// UnitDir is where the systemd unit file is written
	UnitDir string
	// EnvDir is where the systemd environment file is written
	EnvDir string
	// AgentDir is where the launchd agent plist is written
	AgentDir string
	// InstallDir is where the server script (and optional venv) live
	InstallDir string
}

// DefaultLayout returns the standard locations for a platform. The agent
// directory is per-user and therefore derived from the resolved home, not
// from the process environment.
func DefaultLayout(p Platform, home string) Layout {
	switch p {
	case PlatformDarwin:
		return Layout{
			ConfigPath: "/usr/local/etc/custom-https-server.conf",
			AgentDir:   filepath.Join(home, "Library", "LaunchAgents"),
			InstallDir: "/usr/local/opt/custom-https-server",
		}
	default:
		return Layout{
			ConfigPath: "/etc/custom-https-server.conf",
			UnitDir:    "/etc/systemd/system",
			EnvDir:     "/etc",
			InstallDir: "/opt/custom-https-server",
		}
	}
}

// UnitPath returns the systemd unit file location.
func (l Layout) UnitPath() string {
	return filepath.Join(l.UnitDir, ServiceName+".service")
}

// EnvFilePath returns the systemd environment file location. The unit text
// references this path, so config changes only rewrite the environment file.
func (l Layout) EnvFilePath() string {
	return filepath.Join(l.EnvDir, ServiceName+".env")
}

// AgentPath returns the launchd agent plist location.
func (l Layout) AgentPath() string {
	return filepath.Join(l.AgentDir, AgentLabel+".plist")
}

// ScriptPath returns the installed server script location.
func (l Layout) ScriptPath() string {
	return filepath.Join(l.InstallDir, ScriptFileName)
}

// InterpreterPath returns the interpreter embedded in the descriptor. With
// venv enabled it points into the virtualenv created at install time.
func (l Layout) InterpreterPath(venv bool) string {
	if venv {
		return filepath.Join(l.InstallDir, "venv", "bin", "python3")
	}
	return "/usr/bin/python3"
}
