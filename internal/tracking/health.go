package tracking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/attributionops/attribution-engine/internal/models"
	"github.com/attributionops/attribution-engine/internal/storage"
)

// defaultCoverageLookbackDays bounds how far back an order may look for a
// touchpoint before it counts as untracked.
const defaultCoverageLookbackDays = 30

// Alert thresholds, as loss percentages.
const (
	clickIDLossThreshold     = 25.0
	orderSourceLossThreshold = 20.0
)

// Health is the full tracking diagnostics snapshot.
type Health struct {
	GeneratedAt time.Time `json:"generated_at"`

	SessionsTotal       int64   `json:"sessions_total"`
	SessionsWithClickID int64   `json:"sessions_with_click_id"`
	ClickIDCoverage     float64 `json:"click_id_coverage"`

	OrdersTotal       int64   `json:"orders_total"`
	OrdersWithKey     int64   `json:"orders_with_key"`
	OrdersWithSource  int64   `json:"orders_with_source"`
	OrderSourceCoverage float64 `json:"order_source_coverage"`

	// TrackingPercentage blends session and order coverage into the single
	// headline number dashboards show.
	TrackingPercentage float64 `json:"tracking_percentage"`

	LastSessionTS    time.Time `json:"last_session_ts"`
	LastOrderTS      time.Time `json:"last_order_ts"`
	LastTouchpointTS time.Time `json:"last_touchpoint_ts"`

	Alerts []string `json:"alerts"`
}

// Service computes tracking health over the event warehouse.
type Service struct {
	store  storage.EventReader
	logger *zap.Logger
}

// NewService creates a tracking diagnostics service.
func NewService(store storage.EventReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Check measures click-ID capture on sessions, source coverage on orders,
// and stream freshness, and raises alerts when loss crosses a threshold.
func (s *Service) Check(ctx context.Context) (*Health, error) {
	sessions, err := s.store.SessionCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	totalOrders, err := s.store.OrderCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	orders, err := s.store.AllOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	tps, err := s.store.Touchpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load touchpoints: %w", err)
	}

	fresh, err := s.store.Freshness(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read freshness: %w", err)
	}

	h := &Health{
		GeneratedAt:         time.Now().UTC(),
		SessionsTotal:       sessions.Total,
		SessionsWithClickID: sessions.WithClickID,
		OrdersTotal:         totalOrders,
		OrdersWithKey:       int64(len(orders)),
		OrdersWithSource:    countOrdersWithSource(orders, tps, defaultCoverageLookbackDays),
		LastSessionTS:       fresh.LastSessionTS,
		LastOrderTS:         fresh.LastOrderTS,
		LastTouchpointTS:    fresh.LastTouchpointTS,
	}

	if h.SessionsTotal > 0 {
		h.ClickIDCoverage = roundPct(float64(h.SessionsWithClickID) / float64(h.SessionsTotal) * 100)
	}
	if h.OrdersTotal > 0 {
		h.OrderSourceCoverage = roundPct(float64(h.OrdersWithSource) / float64(h.OrdersTotal) * 100)
	}
	h.TrackingPercentage = roundPct((h.ClickIDCoverage + h.OrderSourceCoverage) / 2)

	if h.SessionsTotal > 0 && 100-h.ClickIDCoverage > clickIDLossThreshold {
		h.Alerts = append(h.Alerts, fmt.Sprintf(
			"click ID capture is low: %.1f%% of sessions carry no click ID", 100-h.ClickIDCoverage))
	}
	if h.OrdersTotal > 0 && 100-h.OrderSourceCoverage > orderSourceLossThreshold {
		h.Alerts = append(h.Alerts, fmt.Sprintf(
			"order source coverage is low: %.1f%% of orders have no touchpoint within %d days",
			100-h.OrderSourceCoverage, defaultCoverageLookbackDays))
	}

	s.logger.Info("tracking health computed",
		zap.Float64("click_id_coverage", h.ClickIDCoverage),
		zap.Float64("order_source_coverage", h.OrderSourceCoverage),
		zap.Float64("tracking_percentage", h.TrackingPercentage),
		zap.Int("alerts", len(h.Alerts)),
	)
	return h, nil
}

// countOrdersWithSource counts orders that have at least one touchpoint for
// the same customer within lookbackDays before the order.
func countOrdersWithSource(orders []models.Order, tps []models.Touchpoint, lookbackDays int) int64 {
	byCustomer := make(map[string][]time.Time)
	for _, tp := range tps {
		if tp.CustomerKey == "" {
			continue
		}
		byCustomer[tp.CustomerKey] = append(byCustomer[tp.CustomerKey], tp.Timestamp)
	}
	for _, stamps := range byCustomer {
		sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	}

	var n int64
	for _, o := range orders {
		stamps := byCustomer[o.CustomerKey]
		if len(stamps) == 0 {
			continue
		}
		cutoff := o.Timestamp.AddDate(0, 0, -lookbackDays)
		// First touchpoint at or after the cutoff; it must not be after the
		// order itself.
		i := sort.Search(len(stamps), func(i int) bool { return !stamps[i].Before(cutoff) })
		if i < len(stamps) && !stamps[i].After(o.Timestamp) {
			n++
		}
	}
	return n
}

func roundPct(v float64) float64 {
	return math.Round(v*100) / 100
}
