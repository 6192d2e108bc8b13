package storage

import (
	"context"
	"time"

	"github.com/attributionops/attribution-engine/internal/models"
)

// SessionCounts summarizes click-ID capture across all sessions.
type SessionCounts struct {
	Total       int64 `json:"total"`
	WithClickID int64 `json:"with_click_id"`
}

// Freshness holds the newest timestamp seen per event stream. Zero values
// mean the stream is empty.
type Freshness struct {
	LastSessionTS    time.Time `json:"last_session_ts"`
	LastOrderTS      time.Time `json:"last_order_ts"`
	LastTouchpointTS time.Time `json:"last_touchpoint_ts"`
}

// EventReader is the read-only view of the high-volume event streams
// (orders, touchpoints, sessions). Backed by ClickHouse in production and
// by the in-memory store in demo mode and tests.
type EventReader interface {
	// OrdersInRange returns orders with a customer key whose conversion
	// date falls in [start, end] (civil dates, both inclusive).
	OrdersInRange(ctx context.Context, start, end time.Time) ([]models.Order, error)

	// AllOrders returns every order with a customer key, unbounded.
	AllOrders(ctx context.Context) ([]models.Order, error)

	// Touchpoints returns the full touchpoint history for customers with a
	// key, unbounded. Windowing happens in the engine, not the store.
	Touchpoints(ctx context.Context) ([]models.Touchpoint, error)

	// SessionCounts, OrderCount and Freshness feed tracking diagnostics.
	// OrderCount counts all orders including anonymous ones.
	SessionCounts(ctx context.Context) (SessionCounts, error)
	OrderCount(ctx context.Context) (int64, error)
	Freshness(ctx context.Context) (Freshness, error)
}

// LedgerReader is the read-only view of the synced ad ledgers (spend,
// platform-reported value, entity display names). Backed by Postgres.
type LedgerReader interface {
	// SpendDimensions returns the distinct (platform, account, campaign,
	// adset, ad) combinations present in the spend ledger.
	SpendDimensions(ctx context.Context) ([]models.SpendDimension, error)

	// SpendInRange returns spend-ledger rows with date in [start, end].
	// platform filters to one platform; "" or "all" means every platform.
	SpendInRange(ctx context.Context, start, end time.Time, platform string) ([]models.SpendRow, error)

	// ReportedValueInRange returns platform-reported conversion value rows
	// for the given conversion type with date in [start, end].
	ReportedValueInRange(ctx context.Context, start, end time.Time, platform, conversionType string) ([]models.ReportedValueRow, error)

	// Platforms lists the distinct platforms present in the spend ledger.
	Platforms(ctx context.Context) ([]string, error)

	// AdNames returns the synced entity display names.
	AdNames(ctx context.Context) ([]models.AdName, error)
}

// Warehouse is the combined read surface the attribution engine, reporting,
// and tracking diagnostics consume. Nothing in the engine writes through it.
type Warehouse interface {
	EventReader
	LedgerReader
}

type warehouse struct {
	EventReader
	LedgerReader
}

// NewWarehouse combines an event reader and a ledger reader into one
// warehouse view.
func NewWarehouse(events EventReader, ledger LedgerReader) Warehouse {
	return &warehouse{EventReader: events, LedgerReader: ledger}
}

const dateLayout = "2006-01-02"

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dateInRange(ts, start, end time.Time) bool {
	d := dateOnly(ts)
	return !d.Before(dateOnly(start)) && !d.After(dateOnly(end))
}
