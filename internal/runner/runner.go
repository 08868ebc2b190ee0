// Package runner wires a profile's components into an fx application: the
// one-shot CLI and the daemon both start from Module.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matheus3301/fwdtodo/internal/archive"
	"github.com/matheus3301/fwdtodo/internal/bus"
	"github.com/matheus3301/fwdtodo/internal/chat"
	"github.com/matheus3301/fwdtodo/internal/config"
	"github.com/matheus3301/fwdtodo/internal/format"
	"github.com/matheus3301/fwdtodo/internal/lock"
	"github.com/matheus3301/fwdtodo/internal/logging"
	"github.com/matheus3301/fwdtodo/internal/profile"
	"github.com/matheus3301/fwdtodo/internal/status"
	"github.com/matheus3301/fwdtodo/internal/store"
	intsync "github.com/matheus3301/fwdtodo/internal/sync"
	"github.com/matheus3301/fwdtodo/internal/tasks"
	"github.com/matheus3301/fwdtodo/internal/telegram"
	"github.com/matheus3301/fwdtodo/internal/wa"
	"github.com/matheus3301/fwdtodo/internal/watermark"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds what the command line resolved before the app is built.
type Params struct {
	// ConfigPath defaults to ~/.fwdtodo/config.toml.
	ConfigPath string
	// Profile overrides config default_profile.
	Profile string
	Verbose bool
	// DryRun prints tasks to Out and leaves the watermark alone.
	DryRun bool
	// Offline formats from the archive without contacting the chat service.
	Offline bool
	// ReadOnly skips the profile lock, for commands that only inspect state.
	ReadOnly bool
	Out      io.Writer
}

// Module returns the fx module composing every component of a pass.
func Module(p Params) fx.Option {
	return fx.Module("runner",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideProfile,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideIngestor,
			provideBackend,
			provideFormatter,
			provideTaskStore,
			provideWatermark,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

// Run builds and starts the app, calls fn with the targets populated, then
// stops the app.
func Run(ctx context.Context, p Params, fn func(ctx context.Context) error, targets ...any) error {
	app := fx.New(Module(p), fx.NopLogger, fx.Populate(targets...))
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx)
	stopErr := app.Stop(context.WithoutCancel(ctx))
	return errors.Join(runErr, stopErr)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = profile.ConfigPath()
	}
	return config.Load(path)
}

func provideProfile(p Params, cfg *config.Config) (profile.Paths, error) {
	paths, err := profile.New(profile.Resolve(p.Profile, cfg))
	if err != nil {
		return profile.Paths{}, err
	}
	if err := paths.EnsureDir(); err != nil {
		return profile.Paths{}, fmt.Errorf("create profile dir: %w", err)
	}
	return paths, nil
}

func provideLogger(p Params, cfg *config.Config, paths profile.Paths) (*zap.Logger, error) {
	return logging.New(paths.LogPath(), paths.Name, cfg.Log.Level, p.Verbose)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, paths profile.Paths, logger *zap.Logger) (*lock.Lock, error) {
	if p.ReadOnly {
		return nil, nil
	}
	l, err := lock.Acquire(paths.Dir)
	if err != nil {
		return nil, err
	}
	logger.Debug("profile lock acquired", zap.String("path", l.Path()))
	return l, nil
}

func provideStore(paths profile.Paths, logger *zap.Logger) (*store.DB, error) {
	dbPath := paths.ArchivePath()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	}
	logger.Debug("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideIngestor(p Params, cfg *config.Config, paths profile.Paths, logger *zap.Logger) (archive.Ingestor, error) {
	if p.Offline {
		return nil, nil
	}
	switch chat.Source(cfg.Source.Backend) {
	case chat.SourceTelegram:
		return telegram.New(telegram.Options{
			Token:      cfg.Telegram.Token,
			APIURL:     cfg.Telegram.APIURL,
			PollWindow: cfg.Telegram.PollWindow.Duration,
		}, logger.Named("telegram"))
	case chat.SourceWhatsApp:
		return wa.NewIngestor(wa.Options{
			DeviceDB:   paths.DevicePath(),
			DeviceName: cfg.WhatsApp.DeviceName,
			PollWindow: cfg.WhatsApp.PollWindow.Duration,
		}, logger.Named("wa")), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Source.Backend)
}

func provideBackend(cfg *config.Config, db *store.DB, ingestor archive.Ingestor, paths profile.Paths, logger *zap.Logger) *archive.Backend {
	return archive.New(db, ingestor, chat.Source(cfg.Source.Backend), paths.MediaDir(), logger.Named("archive"))
}

func provideFormatter(cfg *config.Config, backend *archive.Backend, logger *zap.Logger) *format.Formatter {
	style := format.LinkStyle(cfg.Format.LinkStyle)
	if style == "" && cfg.Sink.Kind == "org" {
		style = format.LinkOrg
	}
	return format.New(backend, format.Options{
		HeadingLimit:  cfg.Format.HeadingLimit,
		UnknownSender: cfg.Format.UnknownSender,
		SenderURL:     cfg.Format.SenderURL,
		LinkStyle:     style,
		UnknownMedia:  cfg.Format.UnknownMedia,
		DownloadMedia: cfg.Format.DownloadMedia,
		Tags:          cfg.Tags,
	}, logger.Named("format"))
}

func provideTaskStore(p Params, cfg *config.Config, paths profile.Paths, db *store.DB, logger *zap.Logger) (tasks.Store, error) {
	loc := time.Local
	if tz := cfg.Sink.Org.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("sink timezone: %w", err)
		}
		loc = l
	}
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	if p.DryRun {
		return tasks.NewWriter(out, loc), nil
	}

	var next tasks.Store
	switch cfg.Sink.Kind {
	case "org":
		next = tasks.NewOrgFile(paths.Resolve(cfg.Sink.Org.Path), tasks.OrgOptions{
			FileTags: cfg.Sink.Org.FileTags,
			Location: loc,
		})
	case "rtm":
		rtm := cfg.Sink.RTM
		next = tasks.NewRTM(tasks.RTMOptions{
			APIKey:   rtm.APIKey,
			Secret:   rtm.Secret,
			Token:    rtm.Token,
			Tag:      rtm.Tag,
			ListID:   rtm.ListID,
			Endpoint: rtm.Endpoint,
			Timeout:  rtm.Timeout.Duration,
		}, logger.Named("rtm"))
	case "local":
		next = tasks.NewLocalList(db)
	case "stdout":
		next = tasks.NewWriter(out, loc)
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink.Kind)
	}
	return tasks.NewJournal(next, cfg.Sink.Kind, db, logger.Named("journal")), nil
}

func provideWatermark(cfg *config.Config, paths profile.Paths, db *store.DB) (watermark.Store, error) {
	switch cfg.Sync.Watermark {
	case "file":
		return watermark.NewFile(paths.StatePath()), nil
	case "db":
		return watermark.NewDB(db), nil
	}
	return nil, fmt.Errorf("unknown watermark store %q", cfg.Sync.Watermark)
}

func provideEngine(
	p Params,
	cfg *config.Config,
	backend *archive.Backend,
	formatter *format.Formatter,
	taskStore tasks.Store,
	mark watermark.Store,
	machine *status.Machine,
	b *bus.Bus,
	logger *zap.Logger,
) *intsync.Engine {
	return intsync.NewEngine(intsync.Deps{
		Backend:   backend,
		Formatter: formatter,
		Tasks:     taskStore,
		Watermark: mark,
		Machine:   machine,
		Bus:       b,
	}, intsync.Options{
		Dialogs:       cfg.Source.Dialogs,
		IncludePinned: cfg.Source.IncludePinned,
		MessageLimit:  cfg.Source.MessageLimit,
		PinnedLimit:   cfg.Source.PinnedLimit,
		Advance:       intsync.AdvanceMode(cfg.Sync.Advance),
		DryRun:        p.DryRun,
		LogEmpty:      cfg.Sync.LogEmpty,
	}, logger.Named("sync"))
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			_ = logger.Sync()
			return nil
		},
	})
}
