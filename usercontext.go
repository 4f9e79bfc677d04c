package lifecycle

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// UserContext identifies the unprivileged "real" user a lifecycle operation
// acts for, resolved once at startup and read-only afterward. When the
// manager runs under sudo the real user is the pre-elevation identity; the
// launchd supervisor needs its numeric UID to address the user's own gui
// session.
type UserContext struct {
	// Username is the real (pre-elevation) user name
	Username string
	// UID is the numeric user id, used for the launchd gui/<uid> domain
	UID int
	// Home is the user's home directory from the system user database.
	// Never taken from $HOME, which is stale under sudo.
	Home string
	// Elevated reports whether the process was invoked via sudo
	Elevated bool
}

// Indirection points for tests.
var (
	userLookup  = user.Lookup
	userCurrent = user.Current
	geteuid     = os.Geteuid
)

// ResolveUserContext determines the invoking user. getenv abstracts the
// environment so callers normally pass os.Getenv.
//
// If the identity cannot be resolved and the process is root-equivalent, the
// home directory degrades to a neutral scratch location rather than the root
// home, so logs never land in a privileged-only path.
func ResolveUserContext(getenv func(string) string) (UserContext, error) {
	if sudoUser := getenv("SUDO_USER"); sudoUser != "" {
		if u, err := userLookup(sudoUser); err == nil {
			return contextFromUser(u, true)
		}
		// Unknown SUDO_USER entry; fall through to the process owner.
	}

	u, err := userCurrent()
	if err != nil {
		if geteuid() == 0 {
			return UserContext{
				Username: "root",
				UID:      0,
				Home:     filepath.Join(os.TempDir(), ServiceName),
				Elevated: true,
			}, nil
		}
		return UserContext{}, &OpError{Op: OpResolve, Path: "current user", Err: ErrIdentity}
	}
	return contextFromUser(u, getenv("SUDO_USER") != "")
}

func contextFromUser(u *user.User, elevated bool) (UserContext, error) {
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return UserContext{}, &OpError{Op: OpResolve, Path: u.Uid, Err: ErrIdentity}
	}
	return UserContext{
		Username: u.Username,
		UID:      uid,
		Home:     u.HomeDir,
		Elevated: elevated,
	}, nil
}
