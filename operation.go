package lifecycle

// Operation identifies a lifecycle or supervisor operation for error
// reporting and logging.
type Operation int

const (
	// OpUnknown is the zero value
	OpUnknown Operation = iota
	// OpResolve is configuration resolution
	OpResolve
	// OpPersist is writing the config file back
	OpPersist
	// OpRender is descriptor rendering
	OpRender
	// OpRegister is registering the descriptor with the supervisor
	OpRegister
	// OpEnable is enabling autostart
	OpEnable
	// OpStart is starting the service
	OpStart
	// OpStop is stopping the service
	OpStop
	// OpDeregister is removing the service from the supervisor
	OpDeregister
	// OpPatchArgs is rewriting the embedded argument list
	OpPatchArgs
	// OpState is querying supervisor state
	OpState
	// OpReclaim is port reclamation
	OpReclaim
	// OpWatch is artifact watching
	OpWatch
)

// String returns the string representation of Operation
func (op Operation) String() string {
	switch op {
	case OpResolve:
		return "resolve"
	case OpPersist:
		return "persist"
	case OpRender:
		return "render"
	case OpRegister:
		return "register"
	case OpEnable:
		return "enable"
	case OpStart:
		return "start"
	case OpStop:
		return "stop"
	case OpDeregister:
		return "deregister"
	case OpPatchArgs:
		return "patch-args"
	case OpState:
		return "state"
	case OpReclaim:
		return "reclaim"
	case OpWatch:
		return "watch"
	default:
		return "unknown"
	}
}
