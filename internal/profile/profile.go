// Package profile lays out the per-profile state directory under
// ~/.fwdtodo/profiles/<name>.
package profile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matheus3301/fwdtodo/internal/config"
)

const (
	DefaultName = "main"
	// HomeEnv relocates the base directory, mostly for tests and containers.
	HomeEnv = "FWDTODO_HOME"
)

// BaseDir returns ~/.fwdtodo, or $FWDTODO_HOME when set.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".fwdtodo")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// Paths holds every file of one profile.
type Paths struct {
	Name string
	Dir  string
}

// New returns the paths of the named profile under BaseDir.
func New(name string) (Paths, error) {
	if err := ValidateName(name); err != nil {
		return Paths{}, err
	}
	return Paths{Name: name, Dir: filepath.Join(BaseDir(), "profiles", name)}, nil
}

func (p Paths) StatePath() string   { return filepath.Join(p.Dir, "state.json") }
func (p Paths) ArchivePath() string { return filepath.Join(p.Dir, "archive.db") }
func (p Paths) DevicePath() string  { return filepath.Join(p.Dir, "whatsapp.db") }
func (p Paths) MediaDir() string    { return filepath.Join(p.Dir, "media") }
func (p Paths) LogDir() string      { return filepath.Join(p.Dir, "logs") }
func (p Paths) LogPath() string     { return filepath.Join(p.LogDir(), "fwdtodo.log") }
func (p Paths) SocketPath() string  { return filepath.Join(p.Dir, "daemon.sock") }

// Resolve makes a relative path absolute against the profile directory.
func (p Paths) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir, path)
}

// EnsureDir creates the profile directory tree with proper permissions.
func (p Paths) EnsureDir() error {
	for _, d := range []string{p.Dir, p.LogDir(), p.MediaDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

// ValidateName checks that name conforms to profile naming rules.
func ValidateName(name string) error {
	if !config.ValidProfileName(name) {
		return fmt.Errorf("invalid profile name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// Resolve determines the active profile name using precedence:
// 1. flagOverride (--profile flag)
// 2. config.toml default_profile
// 3. "main"
func Resolve(flagOverride string, cfg *config.Config) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg != nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return DefaultName
}
