package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/fwdtodo/internal/config"
)

func TestPaths(t *testing.T) {
	base := t.TempDir()
	t.Setenv(HomeEnv, base)

	p, err := New("work")
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(base, "profiles", "work")
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"dir", p.Dir, dir},
		{"state", p.StatePath(), filepath.Join(dir, "state.json")},
		{"archive", p.ArchivePath(), filepath.Join(dir, "archive.db")},
		{"device", p.DevicePath(), filepath.Join(dir, "whatsapp.db")},
		{"media", p.MediaDir(), filepath.Join(dir, "media")},
		{"log", p.LogPath(), filepath.Join(dir, "logs", "fwdtodo.log")},
		{"socket", p.SocketPath(), filepath.Join(dir, "daemon.sock")},
		{"config", ConfigPath(), filepath.Join(base, "config.toml")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestNewRejectsInvalidName(t *testing.T) {
	for _, name := range []string{"", "Main", "../x", "a b"} {
		if _, err := New(name); err == nil {
			t.Errorf("New(%q) accepted an invalid name", name)
		}
	}
}

func TestResolvePath(t *testing.T) {
	p := Paths{Name: "main", Dir: "/data/main"}
	if got := p.Resolve("todo.org"); got != filepath.Join("/data/main", "todo.org") {
		t.Errorf("Resolve(relative) = %q", got)
	}
	if got := p.Resolve("/org/todo.org"); got != "/org/todo.org" {
		t.Errorf("Resolve(absolute) = %q", got)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	p, err := New("main")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{p.Dir, p.LogDir(), p.MediaDir()} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("%s not created: %v", d, err)
		}
		if perm := info.Mode().Perm(); perm != 0700 {
			t.Errorf("%s permission = %o, want 0700", d, perm)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		flag string
		cfg  *config.Config
		want string
	}{
		{"flag wins", "work", &config.Config{DefaultProfile: "home"}, "work"},
		{"config default", "", &config.Config{DefaultProfile: "home"}, "home"},
		{"fallback", "", &config.Config{}, DefaultName},
		{"no config", "", nil, DefaultName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.flag, tt.cfg); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}
