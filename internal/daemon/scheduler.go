package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/matheus3301/fwdtodo/internal/config"
	intsync "github.com/matheus3301/fwdtodo/internal/sync"
	"go.uber.org/zap"
)

// JobName names the scheduled pass in gocron logs.
const JobName = "sync"

// Passer runs one sync pass.
type Passer interface {
	RunOnce(ctx context.Context) (intsync.Result, error)
}

// Scheduler runs a pass on every tick of the configured cron schedule. A tick
// that fires while the previous pass is still running is rescheduled.
type Scheduler struct {
	cron       gocron.Scheduler
	engine     Passer
	schedule   string
	runOnStart bool
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler for engine from the [daemon] config section.
func NewScheduler(cfg *config.Config, engine *intsync.Engine, logger *zap.Logger) (*Scheduler, error) {
	return newScheduler(cfg, engine, logger)
}

func newScheduler(cfg *config.Config, engine Passer, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := time.Local
	if tz := cfg.Sink.Org.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("daemon timezone: %w", err)
		}
		loc = l
	}
	cron, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithLogger(NewGocronLogger(logger.Named("gocron"))),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron,
		engine:     engine,
		schedule:   cfg.Daemon.Schedule,
		runOnStart: cfg.Daemon.RunOnStart,
		logger:     logger.Named("scheduler"),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start registers the pass job and starts the scheduler.
func (s *Scheduler) Start() error {
	opts := []gocron.JobOption{
		gocron.WithName(JobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if s.runOnStart {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	if _, err := s.cron.NewJob(
		gocron.CronJob(s.schedule, false),
		gocron.NewTask(s.pass),
		opts...,
	); err != nil {
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("job scheduled", zap.String("cron", s.schedule), zap.Bool("run_on_start", s.runOnStart))
	return nil
}

// Stop cancels a running pass and waits for the scheduler to shut down.
func (s *Scheduler) Stop() error {
	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

func (s *Scheduler) pass() {
	res, err := s.engine.RunOnce(s.ctx)
	switch {
	case errors.Is(err, intsync.ErrPassInProgress):
		s.logger.Info("pass already running, tick skipped")
	case err != nil:
		// the engine logs the failure; the daemon keeps its schedule
	case res.Transient:
		s.logger.Info("backend unavailable, retrying next tick")
	}
}

type gocronLogger struct {
	sugar *zap.SugaredLogger
}

// NewGocronLogger adapts a zap logger to gocron.Logger.
func NewGocronLogger(logger *zap.Logger) gocron.Logger {
	return &gocronLogger{sugar: logger.Sugar()}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *gocronLogger) Info(msg string, args ...any) { l.sugar.Infow(msg, args...) }
func (l *gocronLogger) Warn(msg string, args ...any) { l.sugar.Warnw(msg, args...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
