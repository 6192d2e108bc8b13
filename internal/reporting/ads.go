package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/attributionops/attribution-engine/internal/attribution"
	"github.com/attributionops/attribution-engine/internal/storage"
)

// ErrInvalidBreakdown rejects unknown breakdown names; like the engine's
// configuration errors it aborts the whole request.
var ErrInvalidBreakdown = errors.New("breakdown must be one of: day, traffic_source, ad_account, campaign, ad_set, ad")

// Breakdown selects the dimension level rows are grouped by.
type Breakdown int

const (
	BreakdownDay Breakdown = iota
	BreakdownTrafficSource
	BreakdownAdAccount
	BreakdownCampaign
	BreakdownAdSet
	BreakdownAd
)

func (b Breakdown) String() string {
	switch b {
	case BreakdownDay:
		return "day"
	case BreakdownTrafficSource:
		return "traffic_source"
	case BreakdownAdAccount:
		return "ad_account"
	case BreakdownCampaign:
		return "campaign"
	case BreakdownAdSet:
		return "ad_set"
	case BreakdownAd:
		return "ad"
	default:
		return "unknown"
	}
}

// ParseBreakdown maps a breakdown name to its Breakdown.
func ParseBreakdown(s string) (Breakdown, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day":
		return BreakdownDay, nil
	case "traffic_source":
		return BreakdownTrafficSource, nil
	case "ad_account":
		return BreakdownAdAccount, nil
	case "campaign":
		return BreakdownCampaign, nil
	case "ad_set":
		return BreakdownAdSet, nil
	case "ad":
		return BreakdownAd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidBreakdown, s)
	}
}

// Service aggregates ledger data and builds merged spend/revenue reports.
type Service struct {
	store  storage.Warehouse
	engine *attribution.Engine
	logger *zap.Logger
}

// NewService creates a reporting service.
func NewService(store storage.Warehouse, engine *attribution.Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, engine: engine, logger: logger}
}

// ListPlatforms returns the distinct platforms in the spend ledger.
func (s *Service) ListPlatforms(ctx context.Context) ([]string, error) {
	return s.store.Platforms(ctx)
}

// SpendAggRow is one aggregated spend-ledger bucket at a breakdown level.
type SpendAggRow struct {
	Name       string `json:"name"`
	Platform   string `json:"platform"`
	AccountID  string `json:"account_id"`
	CampaignID string `json:"campaign_id"`
	AdsetID    string `json:"adset_id"`
	AdID       string `json:"ad_id"`
	CreativeID string `json:"creative_id"`

	Clicks      int64   `json:"clicks"`
	Cost        float64 `json:"cost"`
	Impressions int64   `json:"impressions"`
}

// AggregateSpend sums spend-ledger rows over [start, end] grouped by the
// breakdown. Display names come from the rows' platform metadata.
func (s *Service) AggregateSpend(ctx context.Context, start, end time.Time, platform string, breakdown Breakdown) ([]SpendAggRow, error) {
	rows, err := s.store.SpendInRange(ctx, start, end, platform)
	if err != nil {
		return nil, err
	}

	agg := make(map[string]*SpendAggRow)
	order := make([]string, 0)

	for _, r := range rows {
		md := parseMetadata(r.Metadata)

		var key, name string
		switch breakdown {
		case BreakdownDay:
			key, name = r.Date, r.Date
		case BreakdownTrafficSource:
			src, medium := trafficSourceForPlatform(r.Platform)
			key = src + " / " + medium
			name = key
		case BreakdownAdAccount:
			key = r.Platform + "|" + r.AccountID
			name = r.AccountID
			if name == "" {
				name = r.Platform + "_unknown_account"
			}
		case BreakdownCampaign:
			key = r.Platform + "|" + r.AccountID + "|" + r.CampaignID
			name = firstNonEmpty(md["campaign_name"], r.CampaignID)
		case BreakdownAdSet:
			key = r.Platform + "|" + r.AccountID + "|" + r.CampaignID + "|" + r.AdsetID
			name = firstNonEmpty(md["adset_name"], r.AdsetID)
		case BreakdownAd:
			key = r.Platform + "|" + r.AccountID + "|" + r.CampaignID + "|" + r.AdsetID + "|" + r.AdID
			name = firstNonEmpty(md["ad_name"], r.AdID)
		}

		bucket, ok := agg[key]
		if !ok {
			bucket = &SpendAggRow{
				Name:       name,
				Platform:   r.Platform,
				AccountID:  r.AccountID,
				CampaignID: r.CampaignID,
				AdsetID:    r.AdsetID,
				AdID:       r.AdID,
				CreativeID: r.CreativeID,
			}
			agg[key] = bucket
			order = append(order, key)
		}
		bucket.Clicks += r.Clicks
		bucket.Cost += r.Cost
		bucket.Impressions += r.Impressions
	}

	result := make([]SpendAggRow, 0, len(order))
	for _, key := range order {
		bucket := agg[key]
		bucket.Cost = roundMoney(bucket.Cost)
		result = append(result, *bucket)
	}
	return result, nil
}

// ReportedAggRow is one aggregated platform-reported-value bucket.
type ReportedAggRow struct {
	Name           string  `json:"name"`
	Platform       string  `json:"platform"`
	AccountID      string  `json:"account_id"`
	CampaignID     string  `json:"campaign_id"`
	AdsetID        string  `json:"adset_id"`
	AdID           string  `json:"ad_id"`
	ConversionType string  `json:"conversion_type"`
	ReportedValue  float64 `json:"reported_value"`
}

// AggregateReportedValue sums the platform-reported conversion value over
// [start, end] grouped by the breakdown.
func (s *Service) AggregateReportedValue(ctx context.Context, start, end time.Time, platform, conversionType string, breakdown Breakdown) ([]ReportedAggRow, error) {
	rows, err := s.store.ReportedValueInRange(ctx, start, end, platform, conversionType)
	if err != nil {
		return nil, err
	}

	agg := make(map[string]*ReportedAggRow)
	order := make([]string, 0)

	for _, r := range rows {
		var key, name string
		switch breakdown {
		case BreakdownDay:
			key, name = r.Date, r.Date
		case BreakdownTrafficSource:
			src, medium := trafficSourceForPlatform(r.Platform)
			key = src + " / " + medium
			name = key
		case BreakdownAdAccount:
			key = r.Platform + "|" + r.AccountID
			name = r.AccountID
			if name == "" {
				name = r.Platform + "_unknown_account"
			}
		case BreakdownCampaign:
			key = r.Platform + "|" + r.AccountID + "|" + r.CampaignID
			name = r.CampaignID
		case BreakdownAdSet:
			key = r.Platform + "|" + r.AccountID + "|" + r.CampaignID + "|" + r.AdsetID
			name = r.AdsetID
		case BreakdownAd:
			key = r.Platform + "|" + r.AccountID + "|" + r.CampaignID + "|" + r.AdsetID + "|" + r.AdID
			name = r.AdID
		}

		bucket, ok := agg[key]
		if !ok {
			bucket = &ReportedAggRow{
				Name:           name,
				Platform:       r.Platform,
				AccountID:      r.AccountID,
				CampaignID:     r.CampaignID,
				AdsetID:        r.AdsetID,
				AdID:           r.AdID,
				ConversionType: conversionType,
			}
			agg[key] = bucket
			order = append(order, key)
		}
		bucket.ReportedValue += r.ReportedValue
	}

	result := make([]ReportedAggRow, 0, len(order))
	for _, key := range order {
		bucket := agg[key]
		bucket.ReportedValue = roundMoney(bucket.ReportedValue)
		result = append(result, *bucket)
	}
	return result, nil
}

// trafficSourceForPlatform maps an ad platform to its UTM-style traffic
// source pair.
func trafficSourceForPlatform(platform string) (source, medium string) {
	switch strings.ToLower(platform) {
	case "meta":
		return "facebook", "paid_social"
	case "google":
		return "google", "cpc"
	case "tiktok":
		return "tiktok", "paid_social"
	case "":
		return "unknown", "paid"
	default:
		return strings.ToLower(platform), "paid"
	}
}

// parseMetadata decodes the spend row metadata JSON tolerantly: malformed
// or missing metadata yields an empty map, never an error.
func parseMetadata(raw string) map[string]string {
	out := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return out
	}
	for k, v := range decoded {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
