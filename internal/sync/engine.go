// Package sync runs synchronization passes: it reads the forwarded messages
// from the chat backend, turns every event newer than the watermark into a
// task and advances the watermark as tasks are created.
package sync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/matheus3301/fwdtodo/internal/bus"
	"github.com/matheus3301/fwdtodo/internal/chat"
	"github.com/matheus3301/fwdtodo/internal/format"
	"github.com/matheus3301/fwdtodo/internal/group"
	"github.com/matheus3301/fwdtodo/internal/status"
	"github.com/matheus3301/fwdtodo/internal/tasks"
	"github.com/matheus3301/fwdtodo/internal/watermark"
	"go.uber.org/zap"
)

// AdvanceMode selects when the watermark is persisted.
type AdvanceMode string

const (
	// AdvancePerRecord persists after every created task; a failed pass
	// never repeats a task.
	AdvancePerRecord AdvanceMode = "record"
	// AdvancePerBatch persists once at the end of the pass; a failed pass
	// repeats every task it created, so the task store must tolerate that.
	AdvancePerBatch AdvanceMode = "batch"
)

// ErrPassInProgress is returned by RunOnce while another pass is running.
var ErrPassInProgress = errors.New("sync pass already in progress")

// InvariantError reports a record that does not come strictly after the
// previous one. It means grouping or ordering is broken; the pass stops.
type InvariantError struct {
	Timestamp int64
	Previous  int64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("record timestamp %d does not exceed %d", e.Timestamp, e.Previous)
}

// Formatter turns an event into a record.
type Formatter interface {
	Format(ctx context.Context, g group.Group) format.Record
}

// Options configures what a pass reads and how it commits.
type Options struct {
	// Dialogs are the names of the dialogs messages are forwarded to.
	Dialogs       []string
	IncludePinned bool
	MessageLimit  int
	PinnedLimit   int
	Advance       AdvanceMode
	// DryRun creates tasks but leaves the watermark alone.
	DryRun bool
	// LogEmpty reports passes that emitted nothing at info level instead of debug.
	LogEmpty bool
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Backend   chat.Backend
	Formatter Formatter
	Tasks     tasks.Store
	Watermark watermark.Store
	Machine   *status.Machine
	Bus       *bus.Bus
}

// Result summarizes a pass.
type Result struct {
	Fetched int
	Emitted int
	// Skipped counts events at or below the watermark.
	Skipped   int
	Watermark int64
	// Transient is set when the backend was unavailable and nothing was read.
	Transient bool
	// Capped is set when a message limit was reached; the next pass goes on
	// from the new watermark.
	Capped bool
}

// PassReport is the payload of bus.KindPassCompleted.
type PassReport struct {
	Result   Result
	Err      error
	Duration time.Duration
}

// RecordEmitted is the payload of bus.KindRecordEmitted.
type RecordEmitted struct {
	Timestamp int64
	Heading   string
	Handle    tasks.Handle
}

// Engine runs sync passes.
type Engine struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a new sync engine. A nil Machine or Bus is replaced by a
// private one.
func NewEngine(deps Deps, opts Options, logger *zap.Logger) *Engine {
	if deps.Bus == nil {
		deps.Bus = bus.New()
	}
	if deps.Machine == nil {
		deps.Machine = status.NewMachine(deps.Bus)
	}
	if opts.Advance == "" {
		opts.Advance = AdvancePerRecord
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{deps: deps, opts: opts, logger: logger, now: time.Now}
}

// RunOnce performs exactly one pass.
func (e *Engine) RunOnce(ctx context.Context) (Result, error) {
	if err := e.deps.Machine.Transition(status.Syncing); err != nil {
		if errors.Is(err, status.ErrInvalidTransition) {
			return Result{Watermark: watermark.None}, ErrPassInProgress
		}
		return Result{Watermark: watermark.None}, err
	}
	defer func() {
		if err := e.deps.Machine.Transition(status.Idle); err != nil {
			e.logger.Error("leave syncing state", zap.Error(err))
		}
	}()

	start := e.now()
	res, err := e.run(ctx)
	elapsed := time.Since(start)

	e.deps.Bus.Emit(bus.KindPassCompleted, PassReport{Result: res, Err: err, Duration: elapsed})
	if err != nil {
		e.logger.Error("sync pass failed", zap.Error(err),
			zap.Int("emitted", res.Emitted), zap.Int64("watermark", res.Watermark))
		return res, err
	}
	level := zap.InfoLevel
	if res.Emitted == 0 && !e.opts.LogEmpty {
		level = zap.DebugLevel
	}
	e.logger.Log(level, "sync pass completed",
		zap.Int("fetched", res.Fetched),
		zap.Int("emitted", res.Emitted),
		zap.Int("skipped", res.Skipped),
		zap.Int64("watermark", res.Watermark),
		zap.Bool("dry_run", e.opts.DryRun),
		zap.Duration("took", elapsed))
	return res, nil
}

func (e *Engine) run(ctx context.Context) (Result, error) {
	mark, err := e.deps.Watermark.Load(ctx)
	if err != nil {
		return Result{Watermark: watermark.None}, fmt.Errorf("load watermark: %w", err)
	}
	res := Result{Watermark: mark}

	msgs, horizon, err := e.fetch(ctx, mark)
	if err != nil {
		if chat.IsTransient(err) {
			e.logger.Info("chat backend temporarily unavailable, nothing to sync", zap.Error(err))
			res.Transient = true
			return res, nil
		}
		return res, fmt.Errorf("fetch messages: %w", err)
	}
	if horizon < noHorizon {
		// A capped dialog stopped at horizon; newer messages of other dialogs
		// wait so the watermark cannot pass what it has not read.
		kept := msgs[:0]
		for _, m := range msgs {
			if m.Timestamp <= horizon {
				kept = append(kept, m)
			}
		}
		msgs = kept
		res.Capped = true
		e.logger.Info("message limit reached, newer messages wait for the next pass", zap.Int64("horizon", horizon))
	}
	res.Fetched = len(msgs)

	// Old events are dropped before formatting so their media is never downloaded.
	groups, skipped := group.After(group.ByTimestamp(msgs), mark)
	res.Skipped = skipped

	records := make([]format.Record, 0, len(groups))
	for _, g := range groups {
		records = append(records, e.deps.Formatter.Format(ctx, g))
	}

	last := mark
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if rec.Timestamp <= last {
			ierr := &InvariantError{Timestamp: rec.Timestamp, Previous: last}
			e.logger.DPanic("record out of order", zap.Int64("timestamp", rec.Timestamp), zap.Int64("previous", last))
			return res, ierr
		}

		task := tasks.FromRecord(rec, e.now())
		handle, err := e.deps.Tasks.CreateTask(ctx, task)
		if err != nil {
			return res, fmt.Errorf("create task for %d: %w", rec.Timestamp, err)
		}
		res.Emitted++
		last = rec.Timestamp

		if e.opts.Advance == AdvancePerRecord && !e.opts.DryRun {
			if err := e.deps.Watermark.Advance(ctx, rec.Timestamp); err != nil {
				return res, fmt.Errorf("advance watermark: %w", err)
			}
			res.Watermark = rec.Timestamp
		}

		e.logger.Info("task created",
			zap.Int64("timestamp", rec.Timestamp),
			zap.String("handle", string(handle)),
			zap.String("heading", rec.Heading))
		e.deps.Bus.Emit(bus.KindRecordEmitted, RecordEmitted{Timestamp: rec.Timestamp, Heading: rec.Heading, Handle: handle})
	}

	if e.opts.Advance == AdvancePerBatch && !e.opts.DryRun && last > mark {
		if err := e.deps.Watermark.Advance(ctx, last); err != nil {
			return res, fmt.Errorf("advance watermark: %w", err)
		}
		res.Watermark = last
	}
	return res, nil
}

const noHorizon = math.MaxInt64

// fetch lists the messages newer than mark. When a dialog hits its limit the
// returned horizon is the newest timestamp it delivered; otherwise it is
// noHorizon.
func (e *Engine) fetch(ctx context.Context, mark int64) ([]chat.RawMessage, int64, error) {
	horizon := int64(noHorizon)
	if r, ok := e.deps.Backend.(chat.Refresher); ok {
		if err := r.Refresh(ctx); err != nil {
			return nil, horizon, fmt.Errorf("refresh: %w", err)
		}
	}

	dialogs, err := e.deps.Backend.ListDialogs(ctx)
	if err != nil {
		return nil, horizon, fmt.Errorf("list dialogs: %w", err)
	}

	wanted := make(map[string]bool, len(e.opts.Dialogs))
	for _, name := range e.opts.Dialogs {
		wanted[name] = true
	}

	var msgs []chat.RawMessage
	matched := 0
	for _, d := range dialogs {
		var opts chat.ListOptions
		switch {
		case wanted[d.Name]:
			// Every dialog with the name is read; a group upgraded to a
			// supergroup leaves the old one behind.
			matched++
			opts = chat.ListOptions{After: mark, Limit: e.opts.MessageLimit}
		case e.opts.IncludePinned && d.IsUser:
			opts = chat.ListOptions{After: mark, Limit: e.opts.PinnedLimit, PinnedOnly: true}
		default:
			continue
		}
		got, err := e.deps.Backend.ListMessages(ctx, d, opts)
		if err != nil {
			return nil, horizon, fmt.Errorf("list messages of %q: %w", d.Name, err)
		}
		if opts.Limit > 0 && len(got) >= opts.Limit {
			newest := got[0].Timestamp
			for _, m := range got {
				newest = max(newest, m.Timestamp)
			}
			horizon = min(horizon, newest)
		}
		if wanted[d.Name] {
			// Whatever was typed or pinned in a todo dialog is the owner's.
			for i := range got {
				if !got[i].Forwarded {
					got[i].FromSelf = true
				}
			}
		}
		msgs = append(msgs, got...)
	}
	if matched == 0 {
		e.logger.Warn("no dialog matches the configured names", zap.Strings("dialogs", e.opts.Dialogs))
	}
	return msgs, horizon, nil
}
