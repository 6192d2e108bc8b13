package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/attributionops/attribution-engine/internal/models"
)

// ClickHouseEventStore implements EventReader on the ClickHouse warehouse,
// where the high-volume event streams (touchpoints, orders, sessions) live.
type ClickHouseEventStore struct {
	conn driver.Conn
}

// NewClickHouseEventStore creates an event store over a ClickHouse connection.
func NewClickHouseEventStore(conn driver.Conn) *ClickHouseEventStore {
	return &ClickHouseEventStore{conn: conn}
}

func (s *ClickHouseEventStore) OrdersInRange(ctx context.Context, start, end time.Time) ([]models.Order, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT order_id, ts, gross, net, refunds, chargebacks, cogs, fees, customer_key
		FROM orders
		WHERE customer_key != ''
		  AND toDate(ts) >= toDate(?)
		  AND toDate(ts) <= toDate(?)
		ORDER BY ts
	`, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

func (s *ClickHouseEventStore) AllOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT order_id, ts, gross, net, refunds, chargebacks, cogs, fees, customer_key
		FROM orders
		WHERE customer_key != ''
		ORDER BY ts
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

func scanOrders(rows driver.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(
			&o.OrderID, &o.Timestamp, &o.Gross, &o.Net,
			&o.Refunds, &o.Chargebacks, &o.COGS, &o.Fees, &o.CustomerKey,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *ClickHouseEventStore) Touchpoints(ctx context.Context) ([]models.Touchpoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT ts, channel, platform, campaign_id, adset_id, ad_id, creative_id, customer_key, session_id
		FROM touchpoints
		WHERE customer_key != ''
		ORDER BY customer_key, ts
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query touchpoints: %w", err)
	}
	defer rows.Close()

	var tps []models.Touchpoint
	for rows.Next() {
		var tp models.Touchpoint
		if err := rows.Scan(
			&tp.Timestamp, &tp.Channel, &tp.Platform, &tp.CampaignID,
			&tp.AdsetID, &tp.AdID, &tp.CreativeID, &tp.CustomerKey, &tp.SessionID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan touchpoint: %w", err)
		}
		tps = append(tps, tp)
	}
	return tps, rows.Err()
}

func (s *ClickHouseEventStore) SessionCounts(ctx context.Context) (SessionCounts, error) {
	var total, withClickID uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(), countIf(gclid != '' OR fbclid != '' OR ttclid != '')
		FROM sessions
	`).Scan(&total, &withClickID)
	if err != nil {
		return SessionCounts{}, fmt.Errorf("failed to count sessions: %w", err)
	}
	return SessionCounts{Total: int64(total), WithClickID: int64(withClickID)}, nil
}

func (s *ClickHouseEventStore) OrderCount(ctx context.Context) (int64, error) {
	var n uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return int64(n), nil
}

func (s *ClickHouseEventStore) Freshness(ctx context.Context) (Freshness, error) {
	var f Freshness
	err := s.conn.QueryRow(ctx, `
		SELECT
			(SELECT max(ts) FROM sessions),
			(SELECT max(ts) FROM orders),
			(SELECT max(ts) FROM touchpoints)
	`).Scan(&f.LastSessionTS, &f.LastOrderTS, &f.LastTouchpointTS)
	if err != nil {
		return Freshness{}, fmt.Errorf("failed to query freshness: %w", err)
	}
	return f, nil
}
