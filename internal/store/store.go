package store

import (
	"context"
	"time"

	"github.com/nhle/bell/internal/model"
)

// Store defines the persistence interface for widget settings and the
// session-scoped notification cache. The two have different lifetimes:
// settings survive across sessions, the cache only within one session.
type Store interface {
	// === Durable settings ===

	// LoadSettings returns nil when nothing has been persisted yet.
	LoadSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, settings model.Settings) error

	// === Session cache ===

	LoadCachedNotifications(ctx context.Context) ([]model.Notification, error)
	SaveCachedNotifications(ctx context.Context, ns []model.Notification) error

	// LoadWatermark returns the zero time when no fetch has succeeded yet.
	LoadWatermark(ctx context.Context) (time.Time, error)
	SaveWatermark(ctx context.Context, at time.Time) error

	// ClearCache drops the session cache and watermark but keeps settings.
	ClearCache(ctx context.Context) error

	// ClearAll drops both the session cache and the durable settings.
	ClearAll(ctx context.Context) error
}
