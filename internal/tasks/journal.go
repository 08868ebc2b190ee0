package tasks

import (
	"context"

	"github.com/matheus3301/fwdtodo/internal/store"
	"go.uber.org/zap"
)

// Journal records every task the wrapped store accepted in the emission
// ledger. A ledger write failure is logged; the task itself already exists.
type Journal struct {
	next   Store
	sink   string
	db     *store.DB
	logger *zap.Logger
}

// NewJournal wraps next, labelling ledger entries with sink.
func NewJournal(next Store, sink string, db *store.DB, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{next: next, sink: sink, db: db, logger: logger}
}

func (j *Journal) CreateTask(ctx context.Context, t Task) (Handle, error) {
	h, err := j.next.CreateTask(ctx, t)
	if err != nil {
		return "", err
	}
	e := &store.Emission{EventTS: t.Timestamp, Sink: j.sink, Handle: string(h), Heading: t.Heading}
	if err := j.db.RecordEmission(ctx, e); err != nil {
		j.logger.Warn("record emission failed", zap.Int64("timestamp", t.Timestamp), zap.Error(err))
	}
	return h, nil
}
