package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/attributionops/attribution-engine/internal/models"
)

// InMemoryWarehouse provides in-memory storage for all event streams and
// ledgers. Used in demo mode when no databases are reachable, and in tests.
type InMemoryWarehouse struct {
	mu          sync.RWMutex
	touchpoints []models.Touchpoint
	orders      []models.Order
	sessions    []models.Session
	spend       []models.SpendRow
	reported    []models.ReportedValueRow
	adNames     []models.AdName
}

// NewInMemoryWarehouse creates an empty in-memory warehouse.
func NewInMemoryWarehouse() *InMemoryWarehouse {
	return &InMemoryWarehouse{}
}

// =============================================
// Writes (ingestion side, demo mode only)
// =============================================

func (s *InMemoryWarehouse) AddTouchpoint(tp models.Touchpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchpoints = append(s.touchpoints, tp)
}

func (s *InMemoryWarehouse) AddOrder(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
}

func (s *InMemoryWarehouse) AddSession(sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sess)
}

func (s *InMemoryWarehouse) AddSpend(row models.SpendRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spend = append(s.spend, row)
}

func (s *InMemoryWarehouse) AddReportedValue(row models.ReportedValueRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reported = append(s.reported, row)
}

func (s *InMemoryWarehouse) AddAdName(n models.AdName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adNames = append(s.adNames, n)
}

// =============================================
// EventReader
// =============================================

func (s *InMemoryWarehouse) OrdersInRange(ctx context.Context, start, end time.Time) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Order, 0)
	for _, o := range s.orders {
		if o.CustomerKey == "" {
			continue
		}
		if dateInRange(o.Timestamp, start, end) {
			result = append(result, o)
		}
	}
	return result, nil
}

func (s *InMemoryWarehouse) AllOrders(ctx context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if o.CustomerKey == "" {
			continue
		}
		result = append(result, o)
	}
	return result, nil
}

func (s *InMemoryWarehouse) Touchpoints(ctx context.Context) ([]models.Touchpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Touchpoint, 0, len(s.touchpoints))
	for _, tp := range s.touchpoints {
		if tp.CustomerKey == "" {
			continue
		}
		result = append(result, tp)
	}
	return result, nil
}

func (s *InMemoryWarehouse) SessionCounts(ctx context.Context) (SessionCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := SessionCounts{Total: int64(len(s.sessions))}
	for i := range s.sessions {
		if s.sessions[i].HasClickID() {
			counts.WithClickID++
		}
	}
	return counts, nil
}

func (s *InMemoryWarehouse) OrderCount(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.orders)), nil
}

func (s *InMemoryWarehouse) Freshness(ctx context.Context) (Freshness, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f Freshness
	for _, sess := range s.sessions {
		if sess.Timestamp.After(f.LastSessionTS) {
			f.LastSessionTS = sess.Timestamp
		}
	}
	for _, o := range s.orders {
		if o.Timestamp.After(f.LastOrderTS) {
			f.LastOrderTS = o.Timestamp
		}
	}
	for _, tp := range s.touchpoints {
		if tp.Timestamp.After(f.LastTouchpointTS) {
			f.LastTouchpointTS = tp.Timestamp
		}
	}
	return f, nil
}

// =============================================
// LedgerReader
// =============================================

func (s *InMemoryWarehouse) SpendDimensions(ctx context.Context) ([]models.SpendDimension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[models.SpendDimension]bool)
	result := make([]models.SpendDimension, 0)
	for _, row := range s.spend {
		dim := models.SpendDimension{
			Platform:   row.Platform,
			AccountID:  row.AccountID,
			CampaignID: row.CampaignID,
			AdsetID:    row.AdsetID,
			AdID:       row.AdID,
		}
		if !seen[dim] {
			seen[dim] = true
			result = append(result, dim)
		}
	}
	return result, nil
}

func (s *InMemoryWarehouse) SpendInRange(ctx context.Context, start, end time.Time, platform string) ([]models.SpendRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.SpendRow, 0)
	for _, row := range s.spend {
		if !platformMatches(row.Platform, platform) {
			continue
		}
		if !spendDateInRange(row.Date, start, end) {
			continue
		}
		result = append(result, row)
	}
	return result, nil
}

func (s *InMemoryWarehouse) ReportedValueInRange(ctx context.Context, start, end time.Time, platform, conversionType string) ([]models.ReportedValueRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ReportedValueRow, 0)
	for _, row := range s.reported {
		if !platformMatches(row.Platform, platform) {
			continue
		}
		if !strings.EqualFold(row.ConversionType, conversionType) {
			continue
		}
		if !spendDateInRange(row.Date, start, end) {
			continue
		}
		result = append(result, row)
	}
	return result, nil
}

func (s *InMemoryWarehouse) Platforms(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	result := make([]string, 0)
	for _, row := range s.spend {
		if row.Platform == "" || seen[row.Platform] {
			continue
		}
		seen[row.Platform] = true
		result = append(result, row.Platform)
	}
	sort.Strings(result)
	return result, nil
}

func (s *InMemoryWarehouse) AdNames(ctx context.Context) ([]models.AdName, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.AdName, len(s.adNames))
	copy(result, s.adNames)
	return result, nil
}

func platformMatches(rowPlatform, filter string) bool {
	if filter == "" || strings.EqualFold(filter, "all") {
		return true
	}
	return strings.EqualFold(rowPlatform, filter)
}

// spendDateInRange compares a ledger date string (YYYY-MM-DD) against the
// range. Malformed dates are skipped rather than failing the read.
func spendDateInRange(date string, start, end time.Time) bool {
	d, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return false
	}
	return dateInRange(d, start, end)
}
