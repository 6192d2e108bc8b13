package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/attributionops/attribution-engine/internal/attribution"
	"github.com/attributionops/attribution-engine/internal/models"
)

// =============================================
// Report inputs and shapes
// =============================================

// Inputs describes one report build request. Zero values fall back to the
// engine defaults (last_click, 7-day lookback, Purchase).
type Inputs struct {
	ReportName     string
	StartDate      time.Time
	EndDate        time.Time
	Currency       string
	Model          attribution.Model
	LookbackDays   int
	ConversionType string
	DateBasis      attribution.DateBasis
	HalfLifeDays   float64
	Breakdown      Breakdown
	Platform       string
}

// Metrics is the full metric set for one report row. Ratio metrics stay 0
// when their denominator is 0. Reported and ReportedDelta are nil when the
// platform reported nothing for the row.
type Metrics struct {
	Clicks       int64    `json:"clicks"`
	Impressions  int64    `json:"impressions"`
	Cost         float64  `json:"cost"`
	Orders       float64  `json:"orders"`
	TotalRevenue float64  `json:"total_revenue"`
	Revenue      float64  `json:"revenue"`
	COGS         float64  `json:"cogs"`
	Fees         float64  `json:"fees"`
	CPC          float64  `json:"cpc"`
	CPA          float64  `json:"cpa"`
	CVR          float64  `json:"cvr"`
	AOV          float64  `json:"aov"`
	RPC          float64  `json:"rpc"`
	ROAS         float64  `json:"roas"`
	Profit       float64  `json:"profit"`
	Margin       float64  `json:"margin"`
	Reported     *float64 `json:"reported,omitempty"`
	ReportedDelta *float64 `json:"reported_delta,omitempty"`
}

// Row is one merged report row at the requested breakdown level.
type Row struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Metrics Metrics `json:"metrics"`
}

// Summary extends the metric totals with the account-level efficiency pair.
type Summary struct {
	Metrics Metrics `json:"metrics"`
	MER     float64 `json:"mer"`
	CAC     float64 `json:"cac"`
}

// TimeSeriesPoint joins one day of spend with that day's attributed totals.
type TimeSeriesPoint struct {
	Date         string  `json:"date"`
	Cost         float64 `json:"cost"`
	Clicks       int64   `json:"clicks"`
	Orders       float64 `json:"orders"`
	TotalRevenue float64 `json:"total_revenue"`
	Revenue      float64 `json:"revenue"`
	Profit       float64 `json:"profit"`
}

// Mover is a winners/losers entry ranked by profit.
type Mover struct {
	Name   string  `json:"name"`
	Profit float64 `json:"profit"`
}

// Report is the full built report.
type Report struct {
	ReportName         string            `json:"report_name"`
	RunID              string            `json:"run_id"`
	StartDate          string            `json:"start_date"`
	EndDate            string            `json:"end_date"`
	Currency           string            `json:"currency"`
	Model              string            `json:"model"`
	LookbackDays       int               `json:"lookback_days"`
	DateBasis          string            `json:"date_basis"`
	ConversionType     string            `json:"conversion_type"`
	Breakdown          string            `json:"breakdown"`
	Rows               []Row             `json:"rows"`
	Summary            Summary           `json:"summary"`
	TimeSeries         []TimeSeriesPoint `json:"time_series"`
	TopWinners         []Mover           `json:"top_winners"`
	TopLosers          []Mover           `json:"top_losers"`
	UnattributedOrders int               `json:"unattributed_orders"`
}

// =============================================
// Builder
// =============================================

// BuildReport runs attribution over the report range and merges the result
// with the spend and reported-value ledgers at the requested breakdown.
func (s *Service) BuildReport(ctx context.Context, in Inputs) (*Report, error) {
	params := attribution.Params{
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Model:          in.Model,
		LookbackDays:   in.LookbackDays,
		ConversionType: in.ConversionType,
		ValueType:      attribution.ValueRevenue,
		DateBasis:      in.DateBasis,
		HalfLifeDays:   in.HalfLifeDays,
	}

	attrResult, err := s.engine.Run(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to run attribution for report: %w", err)
	}

	spendRows, err := s.AggregateSpend(ctx, in.StartDate, in.EndDate, in.Platform, in.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate spend: %w", err)
	}

	reportedRows, err := s.AggregateReportedValue(ctx, in.StartDate, in.EndDate, in.Platform, in.ConversionType, in.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reported value: %w", err)
	}

	adNames, err := s.store.AdNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ad names: %w", err)
	}
	names := newNameIndex(adNames)

	merged := make(map[string]*Row)
	order := make([]string, 0)
	bucket := func(key, name string) *Row {
		row, ok := merged[key]
		if !ok {
			row = &Row{Key: key, Name: name}
			merged[key] = row
			order = append(order, key)
		}
		return row
	}

	// Spend side first so ledger names win over raw IDs.
	for _, sr := range spendRows {
		row := bucket(spendKey(sr, in.Breakdown), sr.Name)
		row.Metrics.Clicks += sr.Clicks
		row.Metrics.Impressions += sr.Impressions
		row.Metrics.Cost += sr.Cost
	}

	// Attributed revenue side. Rows whose dimensions never appear in the
	// spend ledger (pixel-only traffic) become their own report rows.
	for _, ar := range attrResult.Rows {
		key, name := attributionKey(ar, in.Breakdown)
		if key == "" {
			continue
		}
		row := bucket(key, name)
		row.Metrics.Orders += ar.Orders
		row.Metrics.TotalRevenue += ar.TotalRevenue
		row.Metrics.Revenue += ar.Revenue
		row.Metrics.COGS += ar.COGS
		row.Metrics.Fees += ar.Fees
	}

	// Platform-reported value side, for the reported vs attributed delta.
	for _, rr := range reportedRows {
		row := bucket(reportedKey(rr, in.Breakdown), rr.Name)
		v := rr.ReportedValue
		if row.Metrics.Reported == nil {
			row.Metrics.Reported = new(float64)
		}
		*row.Metrics.Reported += v
	}

	rows := make([]Row, 0, len(order))
	var totals Metrics
	for _, key := range order {
		row := merged[key]
		row.Name = names.resolve(in.Breakdown, key, row.Name)
		finalizeMetrics(&row.Metrics)
		accumulate(&totals, row.Metrics)
		rows = append(rows, *row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Metrics.Profit > rows[j].Metrics.Profit
	})

	finalizeMetrics(&totals)
	summary := Summary{Metrics: totals}
	if totals.Revenue > 0 {
		summary.MER = roundRatio(totals.Cost / totals.Revenue)
	}
	if totals.Orders > 0 {
		summary.CAC = roundMoney(totals.Cost / totals.Orders)
	}

	series, err := s.buildTimeSeries(ctx, in)
	if err != nil {
		return nil, err
	}

	winners, losers := pickMovers(rows)

	s.logger.Info("report built",
		zap.String("report", in.ReportName),
		zap.String("breakdown", in.Breakdown.String()),
		zap.String("model", in.Model.String()),
		zap.Int("rows", len(rows)),
		zap.Int("unattributed_orders", attrResult.UnattributedOrders),
	)

	return &Report{
		ReportName:         in.ReportName,
		RunID:              attrResult.RunID,
		StartDate:          attrResult.StartDate,
		EndDate:            attrResult.EndDate,
		Currency:           in.Currency,
		Model:              attrResult.Model,
		LookbackDays:       attrResult.LookbackDays,
		DateBasis:          attrResult.DateBasis,
		ConversionType:     attrResult.ConversionType,
		Breakdown:          in.Breakdown.String(),
		Rows:               rows,
		Summary:            summary,
		TimeSeries:         series,
		TopWinners:         winners,
		TopLosers:          losers,
		UnattributedOrders: attrResult.UnattributedOrders,
	}, nil
}

// buildTimeSeries joins spend-by-day with the attributed day totals over
// every day of the range, including days with no activity.
func (s *Service) buildTimeSeries(ctx context.Context, in Inputs) ([]TimeSeriesPoint, error) {
	spendByDay, err := s.AggregateSpend(ctx, in.StartDate, in.EndDate, in.Platform, BreakdownDay)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily spend: %w", err)
	}
	spendIdx := make(map[string]SpendAggRow, len(spendByDay))
	for _, row := range spendByDay {
		spendIdx[row.Name] = row
	}

	dayTotals, err := s.engine.DayTotals(ctx, attribution.Params{
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Model:          in.Model,
		LookbackDays:   in.LookbackDays,
		ConversionType: in.ConversionType,
		DateBasis:      in.DateBasis,
		HalfLifeDays:   in.HalfLifeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute day totals: %w", err)
	}
	dayIdx := make(map[string]attribution.DayRow, len(dayTotals.Rows))
	for _, row := range dayTotals.Rows {
		dayIdx[row.Date] = row
	}

	start := attribution.DateOnly(in.StartDate)
	end := attribution.DateOnly(in.EndDate)
	series := make([]TimeSeriesPoint, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		point := TimeSeriesPoint{Date: date}
		if sp, ok := spendIdx[date]; ok {
			point.Cost = sp.Cost
			point.Clicks = sp.Clicks
		}
		if dt, ok := dayIdx[date]; ok {
			point.Orders = dt.Orders
			point.TotalRevenue = dt.TotalRevenue
			point.Revenue = dt.Revenue
		}
		point.Profit = roundMoney(point.Revenue - point.Cost)
		series = append(series, point)
	}
	return series, nil
}

// pickMovers returns the top profitable and top unprofitable rows. Rows with
// zero profit appear in neither list.
func pickMovers(rows []Row) (winners, losers []Mover) {
	const limit = 5
	for _, row := range rows {
		if len(winners) >= limit {
			break
		}
		if row.Metrics.Profit > 0 {
			winners = append(winners, Mover{Name: row.Name, Profit: row.Metrics.Profit})
		}
	}
	for i := len(rows) - 1; i >= 0 && len(losers) < limit; i-- {
		if rows[i].Metrics.Profit < 0 {
			losers = append(losers, Mover{Name: rows[i].Name, Profit: rows[i].Metrics.Profit})
		}
	}
	return winners, losers
}

// =============================================
// Merge keys
// =============================================

func spendKey(r SpendAggRow, b Breakdown) string {
	switch b {
	case BreakdownDay, BreakdownTrafficSource:
		return r.Name
	case BreakdownAdAccount:
		return r.Platform + "|" + r.AccountID
	case BreakdownCampaign:
		return r.Platform + "|" + r.AccountID + "|" + r.CampaignID
	case BreakdownAdSet:
		return r.Platform + "|" + r.AccountID + "|" + r.CampaignID + "|" + r.AdsetID
	default:
		return r.Platform + "|" + r.AccountID + "|" + r.CampaignID + "|" + r.AdsetID + "|" + r.AdID
	}
}

func reportedKey(r ReportedAggRow, b Breakdown) string {
	switch b {
	case BreakdownDay, BreakdownTrafficSource:
		return r.Name
	case BreakdownAdAccount:
		return r.Platform + "|" + r.AccountID
	case BreakdownCampaign:
		return r.Platform + "|" + r.AccountID + "|" + r.CampaignID
	case BreakdownAdSet:
		return r.Platform + "|" + r.AccountID + "|" + r.CampaignID + "|" + r.AdsetID
	default:
		return r.Platform + "|" + r.AccountID + "|" + r.CampaignID + "|" + r.AdsetID + "|" + r.AdID
	}
}

// attributionKey maps an attribution row onto the same key space as the
// spend ledger. Rows that carry no value at the requested level (an organic
// touch under an ad breakdown, say) return "" and are skipped.
func attributionKey(r attribution.Row, b Breakdown) (key, name string) {
	switch b {
	case BreakdownDay:
		// Attribution rows carry no date; day joins go through DayTotals.
		return "", ""
	case BreakdownTrafficSource:
		label := trafficSourceForChannel(r.Channel, r.Platform)
		return label, label
	case BreakdownAdAccount:
		if r.Platform == "" {
			return "", ""
		}
		name = r.AccountID
		if name == "" {
			name = r.Platform + "_unknown_account"
		}
		return r.Platform + "|" + r.AccountID, name
	case BreakdownCampaign:
		if r.CampaignID == "" {
			return "", ""
		}
		return r.Platform + "|" + r.AccountID + "|" + r.CampaignID, r.CampaignID
	case BreakdownAdSet:
		if r.AdsetID == "" {
			return "", ""
		}
		return r.Platform + "|" + r.AccountID + "|" + r.CampaignID + "|" + r.AdsetID, r.AdsetID
	default:
		if r.AdID == "" {
			return "", ""
		}
		return r.Platform + "|" + r.AccountID + "|" + r.CampaignID + "|" + r.AdsetID + "|" + r.AdID, r.AdID
	}
}

// trafficSourceForChannel maps non-paid channels onto traffic source labels
// and defers to the platform mapping for paid touches.
func trafficSourceForChannel(channel, platform string) string {
	switch strings.ToLower(channel) {
	case "email":
		return "newsletter / email"
	case "organic":
		return "organic / organic"
	}
	if platform != "" {
		src, medium := trafficSourceForPlatform(platform)
		return src + " / " + medium
	}
	return "unknown / unknown"
}

// =============================================
// Display names
// =============================================

type nameIndex struct {
	byEntity map[string]string
}

func newNameIndex(rows []models.AdName) *nameIndex {
	idx := &nameIndex{byEntity: make(map[string]string, len(rows))}
	for _, r := range rows {
		if r.EntityID == "" || r.Name == "" {
			continue
		}
		idx.byEntity[strings.ToLower(r.Platform)+"|"+strings.ToLower(r.EntityType)+"|"+r.EntityID] = r.Name
	}
	return idx
}

// resolve upgrades a raw entity ID to its synced display name when the
// ad_names ledger has one. Names that are already human readable stay.
func (idx *nameIndex) resolve(b Breakdown, key, current string) string {
	var entityType, platform, entityID string
	parts := strings.Split(key, "|")
	switch b {
	case BreakdownCampaign:
		if len(parts) == 3 {
			entityType, platform, entityID = "campaign", parts[0], parts[2]
		}
	case BreakdownAdSet:
		if len(parts) == 4 {
			entityType, platform, entityID = "adset", parts[0], parts[3]
		}
	case BreakdownAd:
		if len(parts) == 5 {
			entityType, platform, entityID = "ad", parts[0], parts[4]
		}
	}
	if entityID == "" || current != entityID {
		return current
	}
	if name, ok := idx.byEntity[strings.ToLower(platform)+"|"+entityType+"|"+entityID]; ok {
		return name
	}
	return current
}

// =============================================
// Metric math
// =============================================

func accumulate(totals *Metrics, m Metrics) {
	totals.Clicks += m.Clicks
	totals.Impressions += m.Impressions
	totals.Cost += m.Cost
	totals.Orders += m.Orders
	totals.TotalRevenue += m.TotalRevenue
	totals.Revenue += m.Revenue
	totals.COGS += m.COGS
	totals.Fees += m.Fees
	if m.Reported != nil {
		if totals.Reported == nil {
			totals.Reported = new(float64)
		}
		*totals.Reported += *m.Reported
	}
}

// finalizeMetrics rounds the base measures and derives the ratio metrics.
// Ratios with a zero denominator stay 0 rather than going to +Inf.
func finalizeMetrics(m *Metrics) {
	m.Cost = roundMoney(m.Cost)
	m.TotalRevenue = roundMoney(m.TotalRevenue)
	m.Revenue = roundMoney(m.Revenue)
	m.COGS = roundMoney(m.COGS)
	m.Fees = roundMoney(m.Fees)
	m.Orders = roundRatio(m.Orders)

	m.Profit = roundMoney(m.Revenue - m.Cost - m.COGS - m.Fees)

	if m.Clicks > 0 {
		m.CPC = roundMoney(m.Cost / float64(m.Clicks))
		m.RPC = roundMoney(m.Revenue / float64(m.Clicks))
		m.CVR = roundRatio(m.Orders / float64(m.Clicks) * 100)
	}
	if m.Orders > 0 {
		m.CPA = roundMoney(m.Cost / m.Orders)
		m.AOV = roundMoney(m.Revenue / m.Orders)
	}
	if m.Cost > 0 {
		m.ROAS = roundRatio(m.Revenue / m.Cost)
	}
	if m.Revenue > 0 {
		m.Margin = roundRatio(m.Profit / m.Revenue * 100)
	}
	if m.Reported != nil {
		*m.Reported = roundMoney(*m.Reported)
		delta := roundMoney(m.Revenue - *m.Reported)
		m.ReportedDelta = &delta
	}
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundRatio(v float64) float64 {
	return math.Round(v*100) / 100
}
