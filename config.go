package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/spf13/viper"
)

// Mode is the file server access mode.
type Mode string

const (
	// ModeRead serves a read-only UI
	ModeRead Mode = "read"
	// ModeWrite enables upload and delete
	ModeWrite Mode = "write"
)

// Recognized config file keys. Unknown keys are ignored.
const (
	KeyServePath    = "SERVE_PATH"
	KeyServePort    = "SERVE_PORT"
	KeyMode         = "MODE"
	KeyLinuxPath    = "LINUX_SERVE_PATH"
	KeyMacPath      = "MAC_SERVE_PATH"
	KeyAuthUsername = "AUTH_USERNAME"
	KeyAuthPassword = "AUTH_PASSWORD"
	KeyLogDir       = "CFG_LOG_DIR"
	KeyLogFile      = "CFG_LOG_FILE"
	KeyErrFile      = "CFG_ERR_FILE"
)

// EffectiveConfig is the single merged configuration for one lifecycle
// operation. It is constructed once by Resolver.Resolve and never mutated
// afterward; every field is guaranteed to hold a value.
type EffectiveConfig struct {
	// ServePath is the directory served to clients; must exist
	ServePath string
	// ServePort is the HTTPS listening port (1-65535)
	ServePort int
	// Mode is read or write
	Mode Mode
	// AuthUser and AuthPass are the HTTP basic-auth pair
	AuthUser string
	AuthPass string
	// LogDir, LogFile, and ErrFile are the server's log locations
	LogDir  string
	LogFile string
	ErrFile string
}

// DefaultConfig returns the built-in defaults, the lowest-priority
// configuration source. Log paths land under the resolved user home so an
// elevated install never writes logs into a privileged-only location.
func DefaultConfig(home string) EffectiveConfig {
	logDir := filepath.Join(home, "custom_https_server_log", "logs")
	return EffectiveConfig{
		ServePath: home,
		ServePort: 8443,
		Mode:      ModeRead,
		AuthUser:  "admin",
		AuthPass:  "password",
		LogDir:    logDir,
		LogFile:   filepath.Join(logDir, "custom_https_server.log"),
		ErrFile:   filepath.Join(logDir, "custom_https_server.err"),
	}
}

// CLIOverrides carries explicitly provided command-line values. A nil field
// means the flag was not given; absence never overrides a lower-priority
// source.
type CLIOverrides struct {
	Path *string
	Port *int
	Mode *string
	User *string
	Pass *string
}

// Resolver merges configuration sources into one EffectiveConfig. Precedence,
// highest first: CLI override, OS-specific path override, persisted file,
// built-in default.
type Resolver struct {
	// FilePath is the persisted config file; it must exist
	FilePath string
	// Platform selects which OS-specific path key applies
	Platform Platform
	// Home is the resolved user home used for defaults
	Home string
	// SkipPathCheck disables the serve-path existence check. Uninstall
	// sets it: cleanup only needs the port and log locations, and the
	// served directory may already be gone.
	SkipPathCheck bool
}

// Resolve merges all sources and validates the result. Validation failures
// abort before any side effect occurs.
func (r *Resolver) Resolve(cli CLIOverrides) (EffectiveConfig, error) {
	cfg := DefaultConfig(r.Home)

	if _, err := os.Stat(r.FilePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return EffectiveConfig{}, &OpError{Op: OpResolve, Path: r.FilePath, Err: ErrConfigMissing}
		}
		return EffectiveConfig{}, &OpError{Op: OpResolve, Path: r.FilePath, Err: err}
	}

	v := viper.New()
	v.SetConfigFile(r.FilePath)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return EffectiveConfig{}, &OpError{Op: OpResolve, Path: r.FilePath, Err: err}
	}

	get := func(key string) (string, bool) {
		if !v.IsSet(key) {
			return "", false
		}
		val := strings.TrimSpace(v.GetString(key))
		return val, val != ""
	}

	// Overlay the persisted file.
	if val, ok := get(KeyServePath); ok {
		cfg.ServePath = val
	}
	if val, ok := get(KeyServePort); ok {
		port, err := strconv.Atoi(val)
		if err != nil {
			return EffectiveConfig{}, &OpError{Op: OpResolve, Path: r.FilePath, Err: fmt.Errorf("%w: %q", ErrInvalidPort, val)}
		}
		cfg.ServePort = port
	}
	if val, ok := get(KeyMode); ok {
		cfg.Mode = Mode(val)
	}
	if val, ok := get(KeyAuthUsername); ok {
		cfg.AuthUser = val
	}
	if val, ok := get(KeyAuthPassword); ok {
		cfg.AuthPass = val
	}
	if val, ok := get(KeyLogDir); ok {
		cfg.LogDir = val
	}
	if val, ok := get(KeyLogFile); ok {
		cfg.LogFile = val
	}
	if val, ok := get(KeyErrFile); ok {
		cfg.ErrFile = val
	}

	// The OS-specific path override applies only when the generic path was
	// not supplied on the command line.
	if cli.Path == nil {
		osKey := KeyLinuxPath
		if r.Platform == PlatformDarwin {
			osKey = KeyMacPath
		}
		if val, ok := get(osKey); ok {
			cfg.ServePath = val
		}
	}

	// CLI overrides win, field by field.
	if cli.Path != nil {
		cfg.ServePath = *cli.Path
	}
	if cli.Port != nil {
		cfg.ServePort = *cli.Port
	}
	if cli.Mode != nil {
		cfg.Mode = Mode(*cli.Mode)
	}
	if cli.User != nil {
		cfg.AuthUser = *cli.User
	}
	if cli.Pass != nil {
		cfg.AuthPass = *cli.Pass
	}

	if err := cfg.validate(!r.SkipPathCheck); err != nil {
		return EffectiveConfig{}, err
	}
	return cfg, nil
}

func (c EffectiveConfig) validate(checkPath bool) error {
	if c.ServePort < 1 || c.ServePort > 65535 {
		return &OpError{Op: OpResolve, Path: strconv.Itoa(c.ServePort), Err: ErrInvalidPort}
	}
	if c.Mode != ModeRead && c.Mode != ModeWrite {
		return &OpError{Op: OpResolve, Path: string(c.Mode), Err: ErrInvalidMode}
	}
	if (c.AuthUser == "") != (c.AuthPass == "") {
		return &OpError{Op: OpResolve, Path: c.AuthUser, Err: ErrAuthIncomplete}
	}
	if checkPath {
		info, err := os.Stat(c.ServePath)
		if err != nil || !info.IsDir() {
			return &OpError{Op: OpResolve, Path: c.ServePath, Err: ErrPathNotFound}
		}
	}
	return nil
}

// Persist writes the configuration back to path in canonical key=value form,
// grouped and commented by section. The write is atomic. Resolving the
// persisted file again with no overrides yields an identical EffectiveConfig.
func (c EffectiveConfig) Persist(path string) error {
	var b strings.Builder
	b.WriteString("# custom-https-server configuration\n")
	b.WriteString("# Regenerated by install; edit and re-run install or update to apply.\n")
	b.WriteString("\n")
	b.WriteString("# Serving\n")
	fmt.Fprintf(&b, "%s=%s\n", KeyServePath, c.ServePath)
	fmt.Fprintf(&b, "%s=%d\n", KeyServePort, c.ServePort)
	fmt.Fprintf(&b, "%s=%s\n", KeyMode, c.Mode)
	b.WriteString("\n")
	b.WriteString("# Authentication\n")
	fmt.Fprintf(&b, "%s=%s\n", KeyAuthUsername, c.AuthUser)
	fmt.Fprintf(&b, "%s=%s\n", KeyAuthPassword, c.AuthPass)
	b.WriteString("\n")
	b.WriteString("# Logging\n")
	fmt.Fprintf(&b, "%s=%s\n", KeyLogDir, c.LogDir)
	fmt.Fprintf(&b, "%s=%s\n", KeyLogFile, c.LogFile)
	fmt.Fprintf(&b, "%s=%s\n", KeyErrFile, c.ErrFile)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &OpError{Op: OpPersist, Path: path, Err: err}
	}
	if err := renameio.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return &OpError{Op: OpPersist, Path: path, Err: err}
	}
	return nil
}
