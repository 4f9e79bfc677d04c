package lifecycle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "custom-https-server.conf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveFileOverDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	serveDir := filepath.Join(tmpDir, "serve")
	if err := os.Mkdir(serveDir, 0o755); err != nil {
		t.Fatal(err)
	}

	path := writeConfig(t, tmpDir, `
# comment line
SERVE_PATH=`+serveDir+`
SERVE_PORT=9000
MODE=write
`)

	r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir}
	cfg, err := r.Resolve(CLIOverrides{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ServePath != serveDir {
		t.Errorf("ServePath = %v, want %v", cfg.ServePath, serveDir)
	}
	if cfg.ServePort != 9000 {
		t.Errorf("ServePort = %v, want 9000", cfg.ServePort)
	}
	if cfg.Mode != ModeWrite {
		t.Errorf("Mode = %v, want write", cfg.Mode)
	}
	// Fields the file does not set fall through to defaults.
	if cfg.AuthUser != "admin" {
		t.Errorf("AuthUser = %v, want admin", cfg.AuthUser)
	}
	wantLogDir := filepath.Join(tmpDir, "custom_https_server_log", "logs")
	if cfg.LogDir != wantLogDir {
		t.Errorf("LogDir = %v, want %v", cfg.LogDir, wantLogDir)
	}
}

func TestResolveOSPathOverride(t *testing.T) {
	tmpDir := t.TempDir()
	genericDir := filepath.Join(tmpDir, "data")
	linuxDir := filepath.Join(tmpDir, "www")
	macDir := filepath.Join(tmpDir, "srv")
	for _, d := range []string{genericDir, linuxDir, macDir} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	content := `SERVE_PATH=` + genericDir + `
LINUX_SERVE_PATH=` + linuxDir + `
MAC_SERVE_PATH=` + macDir + `
`
	path := writeConfig(t, tmpDir, content)

	t.Run("linux picks linux path", func(t *testing.T) {
		r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir}
		cfg, err := r.Resolve(CLIOverrides{})
		if err != nil {
			t.Fatal(err)
		}
		if cfg.ServePath != linuxDir {
			t.Errorf("ServePath = %v, want %v", cfg.ServePath, linuxDir)
		}
	})

	t.Run("darwin picks mac path", func(t *testing.T) {
		r := &Resolver{FilePath: path, Platform: PlatformDarwin, Home: tmpDir}
		cfg, err := r.Resolve(CLIOverrides{})
		if err != nil {
			t.Fatal(err)
		}
		if cfg.ServePath != macDir {
			t.Errorf("ServePath = %v, want %v", cfg.ServePath, macDir)
		}
	})

	t.Run("cli path suppresses os override", func(t *testing.T) {
		r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir}
		cfg, err := r.Resolve(CLIOverrides{Path: &genericDir})
		if err != nil {
			t.Fatal(err)
		}
		if cfg.ServePath != genericDir {
			t.Errorf("ServePath = %v, want %v", cfg.ServePath, genericDir)
		}
	})
}

func TestResolveCLIWins(t *testing.T) {
	tmpDir := t.TempDir()
	cliDir := filepath.Join(tmpDir, "cli")
	if err := os.Mkdir(cliDir, 0o755); err != nil {
		t.Fatal(err)
	}

	path := writeConfig(t, tmpDir, "SERVE_PORT=8080\n")

	port := 9090
	r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir}
	cfg, err := r.Resolve(CLIOverrides{Path: &cliDir, Port: &port})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ServePort != 9090 {
		t.Errorf("ServePort = %v, want 9090", cfg.ServePort)
	}
	if cfg.ServePath != cliDir {
		t.Errorf("ServePath = %v, want %v", cfg.ServePath, cliDir)
	}
}

func TestResolveErrors(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		r := &Resolver{FilePath: filepath.Join(tmpDir, "nope.conf"), Platform: PlatformLinux, Home: tmpDir}
		_, err := r.Resolve(CLIOverrides{})
		if !errors.Is(err, ErrConfigMissing) {
			t.Errorf("err = %v, want ErrConfigMissing", err)
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		path := writeConfig(t, tmpDir, "SERVE_PORT=99999\n")
		r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir}
		_, err := r.Resolve(CLIOverrides{})
		if !errors.Is(err, ErrInvalidPort) {
			t.Errorf("err = %v, want ErrInvalidPort", err)
		}
	})

	t.Run("unparseable port", func(t *testing.T) {
		path := writeConfig(t, tmpDir, "SERVE_PORT=eighty\n")
		r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir}
		_, err := r.Resolve(CLIOverrides{})
		if !errors.Is(err, ErrInvalidPort) {
			t.Errorf("err = %v, want ErrInvalidPort", err)
		}
	})

	t.Run("invalid mode", func(t *testing.T) {
		path := writeConfig(t, tmpDir, "MODE=append\n")
		r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir}
		_, err := r.Resolve(CLIOverrides{})
		if !errors.Is(err, ErrInvalidMode) {
			t.Errorf("err = %v, want ErrInvalidMode", err)
		}
	})

	t.Run("serve path not a directory", func(t *testing.T) {
		missing := filepath.Join(tmpDir, "gone")
		path := writeConfig(t, tmpDir, "SERVE_PATH="+missing+"\n")
		r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir}
		_, err := r.Resolve(CLIOverrides{})
		if !errors.Is(err, ErrPathNotFound) {
			t.Errorf("err = %v, want ErrPathNotFound", err)
		}
	})

	t.Run("skip path check tolerates missing directory", func(t *testing.T) {
		missing := filepath.Join(tmpDir, "gone")
		path := writeConfig(t, tmpDir, "SERVE_PATH="+missing+"\n")
		r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir, SkipPathCheck: true}
		cfg, err := r.Resolve(CLIOverrides{})
		if err != nil {
			t.Fatal(err)
		}
		if cfg.ServePath != missing {
			t.Errorf("ServePath = %v, want %v", cfg.ServePath, missing)
		}
	})

	t.Run("incomplete auth pair", func(t *testing.T) {
		path := writeConfig(t, tmpDir, "")
		empty := ""
		r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir}
		_, err := r.Resolve(CLIOverrides{User: &empty})
		if !errors.Is(err, ErrAuthIncomplete) {
			t.Errorf("err = %v, want ErrAuthIncomplete", err)
		}
	})
}

func TestResolveUnknownKeysIgnored(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeConfig(t, tmpDir, `SOME_FUTURE_KEY=whatever
SERVE_PORT=8444
`)

	r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir}
	cfg, err := r.Resolve(CLIOverrides{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServePort != 8444 {
		t.Errorf("ServePort = %v, want 8444", cfg.ServePort)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	serveDir := filepath.Join(tmpDir, "serve")
	if err := os.Mkdir(serveDir, 0o755); err != nil {
		t.Fatal(err)
	}

	path := writeConfig(t, tmpDir, `SERVE_PATH=`+serveDir+`
SERVE_PORT=9000
MODE=write
AUTH_USERNAME=alice
AUTH_PASSWORD=secret
`)

	r := &Resolver{FilePath: path, Platform: PlatformLinux, Home: tmpDir}
	first, err := r.Resolve(CLIOverrides{})
	if err != nil {
		t.Fatal(err)
	}

	persisted := filepath.Join(tmpDir, "persisted.conf")
	if err := first.Persist(persisted); err != nil {
		t.Fatal(err)
	}

	r2 := &Resolver{FilePath: persisted, Platform: PlatformLinux, Home: tmpDir}
	second, err := r2.Resolve(CLIOverrides{})
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("round trip changed config:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}
