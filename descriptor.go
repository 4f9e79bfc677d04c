package lifecycle

import (
	"strconv"
	"strings"
)

// Arg is one element of the served process's command line. Positional
// elements (interpreter, script) have an empty Flag.
type Arg struct {
	Flag  string
	Value string
}

// ArgList is the typed ordered argument list embedded in a descriptor. The
// order is fixed across versions: interpreter, script, --path, --port,
// --mode, --user, --pass. Keeping the list typed means updates patch values
// by flag name and re-serialize, never raw descriptor text by index.
type ArgList []Arg

// Strings flattens the list into exec-style tokens.
func (a ArgList) Strings() []string {
	out := make([]string, 0, len(a)*2)
	for _, arg := range a {
		if arg.Flag != "" {
			out = append(out, arg.Flag)
		}
		out = append(out, arg.Value)
	}
	return out
}

// Set replaces the value for flag, reporting whether it was present.
func (a ArgList) Set(flag, value string) bool {
	for i := range a {
		if a[i].Flag == flag {
			a[i].Value = value
			return true
		}
	}
	return false
}

// Lookup returns the value for flag.
func (a ArgList) Lookup(flag string) (string, bool) {
	for _, arg := range a {
		if arg.Flag == flag {
			return arg.Value, true
		}
	}
	return "", false
}

// String joins the flattened tokens with spaces.
func (a ArgList) String() string {
	return strings.Join(a.Strings(), " ")
}

// Descriptor is the platform-independent service definition. The systemd and
// launchd serializations encode identical semantics: restart on failure,
// fixed working directory, stdout/stderr redirected to the resolved log
// files, autostart at boot/login.
type Descriptor struct {
	// Name is the systemd unit stem
	Name string
	// Label is the launchd agent label
	Label string
	// Args is the full served-process command line in fixed order
	Args ArgList
	// WorkingDir is the directory the process starts in
	WorkingDir string
	// StdoutPath and StderrPath receive the process output
	StdoutPath string
	StderrPath string
	// RestartOnFailure requests supervisor restarts on abnormal exit
	RestartOnFailure bool
	// AutoStart requests start at boot (systemd) or login (launchd)
	AutoStart bool
}

// NewDescriptor builds the descriptor for one resolved configuration.
// Rendering the same EffectiveConfig twice yields byte-identical output.
func NewDescriptor(cfg EffectiveConfig, interpreter, script string) *Descriptor {
	return &Descriptor{
		Name:  ServiceName,
		Label: AgentLabel,
		Args: ArgList{
			{Flag: "", Value: interpreter},
			{Flag: "", Value: script},
			{Flag: "--path", Value: cfg.ServePath},
			{Flag: "--port", Value: strconv.Itoa(cfg.ServePort)},
			{Flag: "--mode", Value: string(cfg.Mode)},
			{Flag: "--user", Value: cfg.AuthUser},
			{Flag: "--pass", Value: cfg.AuthPass},
		},
		WorkingDir:       dirOf(script),
		StdoutPath:       cfg.LogFile,
		StderrPath:       cfg.ErrFile,
		RestartOnFailure: true,
		AutoStart:        true,
	}
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

// Interpreter returns the embedded interpreter token.
func (d *Descriptor) Interpreter() string {
	if len(d.Args) == 0 {
		return ""
	}
	return d.Args[0].Value
}

// Script returns the embedded script token.
func (d *Descriptor) Script() string {
	if len(d.Args) < 2 {
		return ""
	}
	return d.Args[1].Value
}
