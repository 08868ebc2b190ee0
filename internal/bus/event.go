package bus

import "time"

// Event kinds published by the sync engine.
const (
	KindStatusChanged = "sync.status_changed"
	KindRecordEmitted = "sync.record_emitted"
	KindPassCompleted = "sync.pass_completed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
