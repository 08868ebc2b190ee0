// Package group partitions a flat message list into forwarding events.
//
// Forwarding several messages at once produces a burst that shares one
// timestamp, so the timestamp is the whole identity of an event. Unrelated
// messages that land in the same second end up in the same event.
package group

import (
	"cmp"
	"slices"

	"github.com/matheus3301/fwdtodo/internal/chat"
)

// Group is a non-empty run of messages sharing the same timestamp.
type Group struct {
	Timestamp int64
	Messages  []chat.RawMessage
}

// Pinned reports whether the group is a single pinned message.
func (g Group) Pinned() bool {
	return len(g.Messages) == 1 && g.Messages[0].Pinned
}

// ByTimestamp sorts msgs by timestamp (stable) and splits them into maximal
// runs of equal timestamp. The result is ordered by ascending timestamp.
func ByTimestamp(msgs []chat.RawMessage) []Group {
	if len(msgs) == 0 {
		return nil
	}

	sorted := make([]chat.RawMessage, len(msgs))
	copy(sorted, msgs)
	slices.SortStableFunc(sorted, func(a, b chat.RawMessage) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	var groups []Group
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].Timestamp == sorted[start].Timestamp {
			continue
		}
		groups = append(groups, Group{
			Timestamp: sorted[start].Timestamp,
			Messages:  sorted[start:i:i],
		})
		start = i
	}
	return groups
}

// After drops the groups whose timestamp is at or below watermark.
func After(groups []Group, watermark int64) (kept []Group, skipped int) {
	for _, g := range groups {
		if g.Timestamp <= watermark {
			skipped++
			continue
		}
		kept = append(kept, g)
	}
	return kept, skipped
}
