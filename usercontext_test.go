package lifecycle

import (
	"errors"
	"os/user"
	"strings"
	"testing"
)

func stubUserLookups(t *testing.T, lookup func(string) (*user.User, error), current func() (*user.User, error), euid int) {
	t.Helper()
	origLookup, origCurrent, origEuid := userLookup, userCurrent, geteuid
	userLookup = lookup
	userCurrent = current
	geteuid = func() int { return euid }
	t.Cleanup(func() {
		userLookup, userCurrent, geteuid = origLookup, origCurrent, origEuid
	})
}

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestResolveUserContextSudo(t *testing.T) {
	stubUserLookups(t,
		func(name string) (*user.User, error) {
			if name != "alice" {
				t.Errorf("lookup name = %v, want alice", name)
			}
			return &user.User{Uid: "1000", Username: "alice", HomeDir: "/home/alice"}, nil
		},
		func() (*user.User, error) {
			return &user.User{Uid: "0", Username: "root", HomeDir: "/root"}, nil
		},
		0)

	uc, err := ResolveUserContext(envMap(map[string]string{"SUDO_USER": "alice"}))
	if err != nil {
		t.Fatal(err)
	}

	if uc.Username != "alice" {
		t.Errorf("Username = %v, want alice", uc.Username)
	}
	if uc.UID != 1000 {
		t.Errorf("UID = %v, want 1000", uc.UID)
	}
	if uc.Home != "/home/alice" {
		t.Errorf("Home = %v, want /home/alice", uc.Home)
	}
	if !uc.Elevated {
		t.Error("Elevated = false, want true")
	}
}

func TestResolveUserContextUnknownSudoUserFallsBack(t *testing.T) {
	stubUserLookups(t,
		func(string) (*user.User, error) { return nil, user.UnknownUserError("ghost") },
		func() (*user.User, error) {
			return &user.User{Uid: "0", Username: "root", HomeDir: "/root"}, nil
		},
		0)

	uc, err := ResolveUserContext(envMap(map[string]string{"SUDO_USER": "ghost"}))
	if err != nil {
		t.Fatal(err)
	}
	if uc.Username != "root" {
		t.Errorf("Username = %v, want root", uc.Username)
	}
}

func TestResolveUserContextNoSudo(t *testing.T) {
	stubUserLookups(t,
		func(string) (*user.User, error) {
			t.Error("lookup should not be called without SUDO_USER")
			return nil, errors.New("unexpected")
		},
		func() (*user.User, error) {
			return &user.User{Uid: "501", Username: "bob", HomeDir: "/Users/bob"}, nil
		},
		501)

	uc, err := ResolveUserContext(envMap(nil))
	if err != nil {
		t.Fatal(err)
	}
	if uc.UID != 501 {
		t.Errorf("UID = %v, want 501", uc.UID)
	}
	if uc.Elevated {
		t.Error("Elevated = true, want false")
	}
}

func TestResolveUserContextRootScratchHome(t *testing.T) {
	stubUserLookups(t,
		func(string) (*user.User, error) { return nil, errors.New("no user db") },
		func() (*user.User, error) { return nil, errors.New("no user db") },
		0)

	uc, err := ResolveUserContext(envMap(nil))
	if err != nil {
		t.Fatal(err)
	}
	if uc.Home == "/root" || uc.Home == "" {
		t.Errorf("Home = %q, want neutral scratch location", uc.Home)
	}
	if !strings.Contains(uc.Home, ServiceName) {
		t.Errorf("Home = %q, want path containing %q", uc.Home, ServiceName)
	}
}

func TestResolveUserContextUnresolvable(t *testing.T) {
	stubUserLookups(t,
		func(string) (*user.User, error) { return nil, errors.New("no user db") },
		func() (*user.User, error) { return nil, errors.New("no user db") },
		501)

	_, err := ResolveUserContext(envMap(nil))
	if !errors.Is(err, ErrIdentity) {
		t.Errorf("err = %v, want ErrIdentity", err)
	}
}
