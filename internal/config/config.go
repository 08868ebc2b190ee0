// Package config loads and validates ~/.fwdtodo/config.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// TokenEnv overrides telegram.token when set.
const TokenEnv = "FWDTODO_TELEGRAM_TOKEN"

var profileName = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// Duration is a time.Duration written as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents the global ~/.fwdtodo/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile" validate:"omitempty,profile"`

	Source   Source            `toml:"source"`
	Telegram Telegram          `toml:"telegram"`
	WhatsApp WhatsApp          `toml:"whatsapp"`
	Format   Format            `toml:"format"`
	Tags     map[string]string `toml:"tags"`
	Sink     Sink              `toml:"sink"`
	Sync     Sync              `toml:"sync"`
	Log      Log               `toml:"log"`
	Daemon   Daemon            `toml:"daemon"`
}

// Source selects the chat backend and the dialogs read from it.
type Source struct {
	Backend       string   `toml:"backend"        validate:"oneof=telegram whatsapp"`
	Dialogs       []string `toml:"dialogs"        validate:"min=1,dive,required"`
	IncludePinned bool     `toml:"include_pinned"`
	MessageLimit  int      `toml:"message_limit"  validate:"min=1,max=10000"`
	PinnedLimit   int      `toml:"pinned_limit"   validate:"min=1,max=1000"`
}

type Telegram struct {
	Token      string   `toml:"token"`
	APIURL     string   `toml:"api_url"     validate:"omitempty,url"`
	PollWindow Duration `toml:"poll_window"`
}

type WhatsApp struct {
	DeviceName string   `toml:"device_name"`
	PollWindow Duration `toml:"poll_window"`
}

type Format struct {
	HeadingLimit  int    `toml:"heading_limit"  validate:"min=20,max=4000"`
	UnknownSender string `toml:"unknown_sender" validate:"required"`
	SenderURL     string `toml:"sender_url"     validate:"url"`
	LinkStyle     string `toml:"link_style"     validate:"omitempty,oneof=plain org markdown"`
	UnknownMedia  string `toml:"unknown_media"`
	DownloadMedia bool   `toml:"download_media"`
}

// Sink selects the task store.
type Sink struct {
	Kind string  `toml:"kind" validate:"oneof=org rtm local stdout"`
	Org  OrgSink `toml:"org"`
	RTM  RTMSink `toml:"rtm"`
}

type OrgSink struct {
	// Path is relative to the profile directory unless absolute.
	Path     string `toml:"path"     validate:"required"`
	FileTags string `toml:"filetags"`
	Timezone string `toml:"timezone" validate:"omitempty,timezone"`
}

type RTMSink struct {
	APIKey   string   `toml:"api_key"`
	Secret   string   `toml:"secret"`
	Token    string   `toml:"token"`
	Tag      string   `toml:"tag"`
	ListID   string   `toml:"list_id"`
	Endpoint string   `toml:"endpoint" validate:"omitempty,url"`
	Timeout  Duration `toml:"timeout"`
}

type Sync struct {
	Advance   string `toml:"advance"   validate:"oneof=record batch"`
	Watermark string `toml:"watermark" validate:"oneof=file db"`
	LogEmpty  bool   `toml:"log_empty"`
}

type Log struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
}

type Daemon struct {
	// Schedule is a five-field cron expression.
	Schedule   string `toml:"schedule"     validate:"required"`
	RunOnStart bool   `toml:"run_on_start"`
}

// Default returns the configuration used for every key the file leaves out.
func Default() *Config {
	return &Config{
		Source: Source{
			Backend:       "telegram",
			Dialogs:       []string{"todo"},
			IncludePinned: false,
			MessageLimit:  500,
			PinnedLimit:   50,
		},
		Telegram: Telegram{PollWindow: Duration{10 * time.Second}},
		WhatsApp: WhatsApp{DeviceName: "fwdtodo", PollWindow: Duration{20 * time.Second}},
		Format: Format{
			HeadingLimit:  400,
			UnknownSender: "ERROR UNKNOWN SENDER",
			SenderURL:     "https://t.me",
		},
		Sink: Sink{
			Kind: "org",
			Org:  OrgSink{Path: "todo.org", FileTags: "fwdtodo"},
			RTM:  RTMSink{Tag: "fwdtodo", Timeout: Duration{30 * time.Second}},
		},
		Sync:   Sync{Advance: "record", Watermark: "file"},
		Log:    Log{Level: "info"},
		Daemon: Daemon{Schedule: "*/15 * * * *"},
	}
}

// Load reads config from path on top of Default and validates it. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err == nil {
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	if token := os.Getenv(TokenEnv); token != "" {
		cfg.Telegram.Token = token
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints and the settings the chosen backend and
// sink require.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("profile", func(fl validator.FieldLevel) bool {
		return ValidProfileName(fl.Field().String())
	}); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return err
	}

	var errs []error
	if c.Source.Backend == "telegram" && c.Telegram.Token == "" {
		errs = append(errs, fmt.Errorf("telegram.token is required (or set %s)", TokenEnv))
	}
	if c.Sink.Kind == "rtm" && (c.Sink.RTM.APIKey == "" || c.Sink.RTM.Secret == "" || c.Sink.RTM.Token == "") {
		errs = append(errs, errors.New("sink.rtm needs api_key, secret and token"))
	}
	for name, d := range map[string]Duration{
		"telegram.poll_window": c.Telegram.PollWindow,
		"whatsapp.poll_window": c.WhatsApp.PollWindow,
		"sink.rtm.timeout":     c.Sink.RTM.Timeout,
	} {
		if d.Duration <= 0 || d.Duration > 10*time.Minute {
			errs = append(errs, fmt.Errorf("%s must be between 0s and 10m, got %s", name, d))
		}
	}
	return errors.Join(errs...)
}

// ValidProfileName reports whether name can be used as a profile directory.
func ValidProfileName(name string) bool {
	return profileName.MatchString(name)
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
