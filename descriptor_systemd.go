package lifecycle

import (
	"fmt"
	"io"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
)

// Environment file variable names referenced by the unit's ExecStart. The
// unit text never changes when configuration does; only the environment file
// is rewritten.
const (
	envInterpreterVar = "SERVER_INTERPRETER"
	envArgsVar        = "SERVER_ARGS"
)

// RenderUnit serializes the systemd unit file. Arguments are indirected
// through the environment file at envPath: ${SERVER_INTERPRETER} expands to
// a single token and $SERVER_ARGS undergoes word splitting, giving the full
// argument list without embedding configuration in the unit text.
func (d *Descriptor) RenderUnit(envPath string) (string, error) {
	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", "custom-https-server file server"),
		unit.NewUnitOption("Unit", "After", "network.target"),

		unit.NewUnitOption("Service", "Type", "simple"),
		unit.NewUnitOption("Service", "EnvironmentFile", envPath),
		unit.NewUnitOption("Service", "ExecStart", fmt.Sprintf("${%s} $%s", envInterpreterVar, envArgsVar)),
		unit.NewUnitOption("Service", "WorkingDirectory", d.WorkingDir),
		unit.NewUnitOption("Service", "StandardOutput", "append:"+d.StdoutPath),
		unit.NewUnitOption("Service", "StandardError", "append:"+d.StderrPath),
		unit.NewUnitOption("Service", "KillSignal", "SIGTERM"),
		unit.NewUnitOption("Service", "TimeoutStopSec", "10"),
	}
	if d.RestartOnFailure {
		opts = append(opts,
			unit.NewUnitOption("Service", "Restart", "on-failure"),
			unit.NewUnitOption("Service", "RestartSec", "1"),
		)
	}
	if d.AutoStart {
		opts = append(opts, unit.NewUnitOption("Install", "WantedBy", "multi-user.target"))
	}

	text, err := io.ReadAll(unit.Serialize(opts))
	if err != nil {
		return "", &OpError{Op: OpRender, Path: d.Name, Err: err}
	}
	return string(text), nil
}

// RenderEnvFile serializes the environment file carrying the argument list.
// The script token and flags join SERVER_ARGS; the interpreter stays its own
// variable so ExecStart resolves it as the executable path.
func (d *Descriptor) RenderEnvFile() string {
	args := d.Args.Strings()
	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Arguments for %s.service. Regenerated on install and update.\n", d.Name)
	fmt.Fprintf(&b, "%s=%s\n", envInterpreterVar, d.Interpreter())
	fmt.Fprintf(&b, "%s=%s\n", envArgsVar, strings.Join(rest, " "))
	return b.String()
}
