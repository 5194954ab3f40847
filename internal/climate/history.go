package climate

import (
	"context"
	"time"
)

// HistoryEntry is one recorded state change.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	State     State     `json:"state"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository stores and retrieves state change history.
//
// Implementations must be safe for concurrent use and store UTC timestamps.
type HistoryRepository interface {
	RecordStateChange(ctx context.Context, deviceID string, state State, source string) error

	// GetHistory returns the newest entries first. limit <= 0 uses the
	// default (50); values above 200 are capped.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]HistoryEntry, error)

	// PruneHistory deletes entries older than now-olderThan and reports how many.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
