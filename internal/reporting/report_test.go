package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attributionops/attribution-engine/internal/attribution"
	"github.com/attributionops/attribution-engine/internal/models"
	"github.com/attributionops/attribution-engine/internal/storage"
)

func TestParseBreakdown(t *testing.T) {
	for name, want := range map[string]Breakdown{
		"day":            BreakdownDay,
		"traffic_source": BreakdownTrafficSource,
		"ad_account":     BreakdownAdAccount,
		"Campaign":       BreakdownCampaign,
		"ad_set":         BreakdownAdSet,
		"ad":             BreakdownAd,
	} {
		got, err := ParseBreakdown(name)
		assert.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseBreakdown("creative")
	assert.ErrorIs(t, err, ErrInvalidBreakdown)
}

func TestTrafficSourceMapping(t *testing.T) {
	src, medium := trafficSourceForPlatform("meta")
	assert.Equal(t, "facebook / paid_social", src+" / "+medium)

	src, medium = trafficSourceForPlatform("google")
	assert.Equal(t, "google / cpc", src+" / "+medium)

	src, medium = trafficSourceForPlatform("tiktok")
	assert.Equal(t, "tiktok / paid_social", src+" / "+medium)

	assert.Equal(t, "newsletter / email", trafficSourceForChannel("email", ""))
	assert.Equal(t, "organic / organic", trafficSourceForChannel("organic", ""))
	assert.Equal(t, "facebook / paid_social", trafficSourceForChannel("paid", "meta"))
	assert.Equal(t, "unknown / unknown", trafficSourceForChannel("paid", ""))
}

func TestParseMetadataTolerant(t *testing.T) {
	md := parseMetadata(`{"campaign_name":"Spring Sale","budget":120}`)
	assert.Equal(t, "Spring Sale", md["campaign_name"])
	_, hasBudget := md["budget"] // non-string values are dropped
	assert.False(t, hasBudget)

	assert.Empty(t, parseMetadata(""))
	assert.Empty(t, parseMetadata("{broken"))
}

func TestAggregateSpendGroupsByCampaign(t *testing.T) {
	store := storage.NewInMemoryWarehouse()
	store.AddSpend(models.SpendRow{
		Platform: "meta", Date: "2024-03-01", AccountID: "acct1", CampaignID: "camp_a",
		Clicks: 40, Cost: 20.005, Impressions: 400,
		Metadata: `{"campaign_name":"Spring Sale"}`,
	})
	store.AddSpend(models.SpendRow{
		Platform: "meta", Date: "2024-03-02", AccountID: "acct1", CampaignID: "camp_a",
		Clicks: 60, Cost: 30, Impressions: 600,
	})
	store.AddSpend(models.SpendRow{
		Platform: "google", Date: "2024-03-02", AccountID: "acct2", CampaignID: "camp_b",
		Clicks: 10, Cost: 5, Impressions: 100,
	})

	svc := NewService(store, attribution.NewEngine(store, nil), nil)
	rows, err := svc.AggregateSpend(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), "", BreakdownCampaign)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Spring Sale", rows[0].Name)
	assert.Equal(t, int64(100), rows[0].Clicks)
	assert.Equal(t, 50.01, rows[0].Cost)
	assert.Equal(t, int64(1000), rows[0].Impressions)

	assert.Equal(t, "camp_b", rows[1].Name)
}

func TestAggregateReportedValue(t *testing.T) {
	store := storage.NewInMemoryWarehouse()
	store.AddReportedValue(models.ReportedValueRow{
		Platform: "meta", Date: "2024-03-01", AccountID: "acct1", CampaignID: "camp_a",
		ConversionType: "Purchase", ReportedValue: 40,
	})
	store.AddReportedValue(models.ReportedValueRow{
		Platform: "meta", Date: "2024-03-02", AccountID: "acct1", CampaignID: "camp_a",
		ConversionType: "Purchase", ReportedValue: 30,
	})

	svc := NewService(store, attribution.NewEngine(store, nil), nil)
	rows, err := svc.AggregateReportedValue(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), "", "Purchase", BreakdownCampaign)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 70.0, rows[0].ReportedValue)
}

func seedReportStore() *storage.InMemoryWarehouse {
	store := storage.NewInMemoryWarehouse()
	store.AddSpend(models.SpendRow{
		Platform: "meta", Date: "2024-03-02", AccountID: "acct1", CampaignID: "camp_a",
		Clicks: 100, Cost: 50, Impressions: 1000,
		Metadata: `{"campaign_name":"Spring Sale"}`,
	})
	store.AddTouchpoint(models.Touchpoint{
		Timestamp: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		Channel:   "paid", Platform: "meta", CampaignID: "camp_a", CustomerKey: "c1",
	})
	store.AddOrder(models.Order{
		OrderID: "o1", Timestamp: time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
		Gross: 100, Net: 80, COGS: 30, Fees: 5, CustomerKey: "c1",
	})
	store.AddReportedValue(models.ReportedValueRow{
		Platform: "meta", Date: "2024-03-02", AccountID: "acct1", CampaignID: "camp_a",
		ConversionType: "Purchase", ReportedValue: 70,
	})
	return store
}

func reportInputs() Inputs {
	return Inputs{
		ReportName:     "spring",
		StartDate:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
		Currency:       "USD",
		Model:          attribution.ModelLastClick,
		LookbackDays:   7,
		ConversionType: "Purchase",
		Breakdown:      BreakdownCampaign,
	}
}

func TestBuildReportMergesSpendAttributionAndReported(t *testing.T) {
	store := seedReportStore()
	svc := NewService(store, attribution.NewEngine(store, nil), nil)

	report, err := svc.BuildReport(context.Background(), reportInputs())
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, "Spring Sale", row.Name)
	assert.Equal(t, int64(100), row.Metrics.Clicks)
	assert.Equal(t, 50.0, row.Metrics.Cost)
	assert.Equal(t, 1.0, row.Metrics.Orders)
	assert.Equal(t, 100.0, row.Metrics.TotalRevenue)
	assert.Equal(t, 80.0, row.Metrics.Revenue)
	assert.Equal(t, 30.0, row.Metrics.COGS)
	assert.Equal(t, 5.0, row.Metrics.Fees)

	// Derived metrics
	assert.Equal(t, 0.5, row.Metrics.CPC)
	assert.Equal(t, 0.8, row.Metrics.RPC)
	assert.Equal(t, 1.0, row.Metrics.CVR)
	assert.Equal(t, 50.0, row.Metrics.CPA)
	assert.Equal(t, 80.0, row.Metrics.AOV)
	assert.Equal(t, 1.6, row.Metrics.ROAS)
	assert.Equal(t, -5.0, row.Metrics.Profit)
	assert.Equal(t, -6.25, row.Metrics.Margin)

	require.NotNil(t, row.Metrics.Reported)
	assert.Equal(t, 70.0, *row.Metrics.Reported)
	require.NotNil(t, row.Metrics.ReportedDelta)
	assert.Equal(t, 10.0, *row.Metrics.ReportedDelta)

	// Summary efficiency pair: MER = cost/revenue, CAC = cost/orders.
	assert.Equal(t, 0.63, report.Summary.MER)
	assert.Equal(t, 50.0, report.Summary.CAC)

	// Unprofitable row lands in losers, not winners.
	assert.Empty(t, report.TopWinners)
	require.Len(t, report.TopLosers, 1)
	assert.Equal(t, -5.0, report.TopLosers[0].Profit)

	assert.Equal(t, 0, report.UnattributedOrders)
	assert.Equal(t, "campaign", report.Breakdown)
	assert.NotEmpty(t, report.RunID)
}

func TestBuildReportTimeSeriesCoversEveryDay(t *testing.T) {
	store := seedReportStore()
	svc := NewService(store, attribution.NewEngine(store, nil), nil)

	report, err := svc.BuildReport(context.Background(), reportInputs())
	require.NoError(t, err)
	require.Len(t, report.TimeSeries, 3)

	// Quiet days stay in the series with zero values.
	assert.Equal(t, "2024-03-01", report.TimeSeries[0].Date)
	assert.Equal(t, 0.0, report.TimeSeries[0].Cost)

	active := report.TimeSeries[1]
	assert.Equal(t, "2024-03-02", active.Date)
	assert.Equal(t, 50.0, active.Cost)
	assert.Equal(t, int64(100), active.Clicks)
	assert.Equal(t, 1.0, active.Orders)
	assert.Equal(t, 80.0, active.Revenue)
	assert.Equal(t, 30.0, active.Profit)
}

func TestBuildReportResolvesAdNames(t *testing.T) {
	store := storage.NewInMemoryWarehouse()
	store.AddSpend(models.SpendRow{
		Platform: "meta", Date: "2024-03-02", AccountID: "acct1", CampaignID: "camp_a",
		AdsetID: "as1", AdID: "ad9", Clicks: 10, Cost: 5,
	})
	store.AddAdName(models.AdName{Platform: "meta", EntityType: "ad", EntityID: "ad9", Name: "Blue Hero Video"})

	svc := NewService(store, attribution.NewEngine(store, nil), nil)

	in := reportInputs()
	in.Breakdown = BreakdownAd
	report, err := svc.BuildReport(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "Blue Hero Video", report.Rows[0].Name)
}

func TestBuildReportPropagatesConversionTypeError(t *testing.T) {
	store := seedReportStore()
	svc := NewService(store, attribution.NewEngine(store, nil), nil)

	in := reportInputs()
	in.ConversionType = "Lead"
	_, err := svc.BuildReport(context.Background(), in)
	assert.ErrorIs(t, err, attribution.ErrUnsupportedConversionType)
}
