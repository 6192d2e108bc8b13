package attribution

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attributionops/attribution-engine/internal/models"
	"github.com/attributionops/attribution-engine/internal/storage"
)

// Engine computes multi-touch attribution over the event warehouse. It is
// read-only: one run loads its scope up front, aggregates in memory, and
// returns; nothing is cached across runs.
type Engine struct {
	store  storage.Warehouse
	logger *zap.Logger
}

// NewEngine creates an attribution engine on top of a warehouse.
func NewEngine(store storage.Warehouse, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

// Row is one aggregated attribution bucket, keyed by the full dimension
// tuple. Orders is fractional because weights split credit.
type Row struct {
	Channel    string `json:"channel"`
	Platform   string `json:"platform"`
	AccountID  string `json:"account_id"`
	CampaignID string `json:"campaign_id"`
	AdsetID    string `json:"adset_id"`
	AdID       string `json:"ad_id"`
	CreativeID string `json:"creative_id"`

	Orders       float64 `json:"orders"`
	TotalRevenue float64 `json:"total_revenue"`
	Revenue      float64 `json:"revenue"`
	COGS         float64 `json:"cogs"`
	Fees         float64 `json:"fees"`
	PrimaryValue float64 `json:"primary_value"`
}

// Result is the output of one attribution run.
type Result struct {
	RunID string `json:"run_id"`

	Model          string `json:"model"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	LookbackDays   int    `json:"lookback_days"`
	DateBasis      string `json:"date_basis"`
	ConversionType string `json:"conversion_type"`
	ValueType      string `json:"value_type"`

	Rows               []Row    `json:"rows"`
	OrdersProcessed    int      `json:"orders_processed"`
	UnattributedOrders int      `json:"unattributed_orders"`
	Notes              []string `json:"notes"`
}

type bucketKey struct {
	Channel    string
	Platform   string
	AccountID  string
	CampaignID string
	AdsetID    string
	AdID       string
	CreativeID string
}

// Run attributes order revenue to in-window touchpoints and aggregates the
// weighted components by the full dimension tuple.
func (e *Engine) Run(ctx context.Context, p Params) (*Result, error) {
	if err := p.validateConversionType(); err != nil {
		return nil, err
	}

	dims, err := e.store.SpendDimensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load spend dimensions: %w", err)
	}
	accounts := buildAccountMap(dims)

	orders, byCustomer, err := e.loadScope(ctx, p)
	if err != nil {
		return nil, err
	}

	lookback := time.Duration(p.LookbackDays) * 24 * time.Hour
	agg := make(map[bucketKey]*Row)
	unattributed := 0

	for _, o := range orders {
		window := windowFor(byCustomer[o.CustomerKey], o.Timestamp, lookback)
		if len(window) == 0 {
			unattributed++
			continue
		}
		weights := weightsFor(p.Model, window, o.Timestamp, p.halfLife())

		for i, tp := range window {
			w := weights[i]

			// Under click basis, fragments dated outside the reporting
			// range are dropped from the output but still consume their
			// weight; the order's remaining credit is not renormalized.
			if p.DateBasis == BasisClick {
				if !dateInRange(DateOnly(tp.Timestamp), p.StartDate, p.EndDate) {
					continue
				}
			}

			key := bucketKey{
				Channel:    tp.Channel,
				Platform:   tp.Platform,
				AccountID:  accounts.resolve(tp),
				CampaignID: tp.CampaignID,
				AdsetID:    tp.AdsetID,
				AdID:       tp.AdID,
				CreativeID: tp.CreativeID,
			}
			row, ok := agg[key]
			if !ok {
				row = &Row{
					Channel:    key.Channel,
					Platform:   key.Platform,
					AccountID:  key.AccountID,
					CampaignID: key.CampaignID,
					AdsetID:    key.AdsetID,
					AdID:       key.AdID,
					CreativeID: key.CreativeID,
				}
				agg[key] = row
			}
			row.Orders += w
			row.TotalRevenue += o.Gross * w
			row.Revenue += o.Net * w
			row.COGS += o.COGS * w
			row.Fees += o.Fees * w
		}
	}

	rows := make([]Row, 0, len(agg))
	for _, row := range agg {
		switch p.ValueType {
		case ValueTotalRevenue:
			row.PrimaryValue = row.TotalRevenue
		case ValueRevenue:
			row.PrimaryValue = row.Revenue
		case ValueCOGS:
			row.PrimaryValue = row.COGS
		case ValueFees:
			row.PrimaryValue = row.Fees
		case ValueOrders:
			row.PrimaryValue = row.Orders
		}
		row.TotalRevenue = roundMoney(row.TotalRevenue)
		row.Revenue = roundMoney(row.Revenue)
		row.COGS = roundMoney(row.COGS)
		row.Fees = roundMoney(row.Fees)
		row.PrimaryValue = roundMoney(row.PrimaryValue)
		row.Orders = roundOrders(row.Orders)
		rows = append(rows, *row)
	}
	sortRows(rows)

	res := &Result{
		RunID:              uuid.NewString(),
		Model:              p.Model.String(),
		StartDate:          p.StartDate.Format(dateLayout),
		EndDate:            p.EndDate.Format(dateLayout),
		LookbackDays:       p.LookbackDays,
		DateBasis:          p.DateBasis.String(),
		ConversionType:     p.ConversionType,
		ValueType:          p.ValueType.String(),
		Rows:               rows,
		OrdersProcessed:    len(orders),
		UnattributedOrders: unattributed,
		Notes: []string{
			"Attribution computed from touchpoints+orders joined on customer_key.",
			"Orders without any touchpoint in the lookback window are excluded from attributed rows.",
		},
	}

	e.logger.Info("attribution run complete",
		zap.String("run_id", res.RunID),
		zap.String("model", res.Model),
		zap.String("date_basis", res.DateBasis),
		zap.Int("orders", len(orders)),
		zap.Int("rows", len(rows)),
		zap.Int("unattributed_orders", unattributed),
	)
	return res, nil
}

// loadScope bulk-reads the orders and touchpoint history for one run.
func (e *Engine) loadScope(ctx context.Context, p Params) ([]models.Order, map[string][]models.Touchpoint, error) {
	orders, err := e.store.OrdersInRange(ctx, p.StartDate, p.ordersEnd())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load orders: %w", err)
	}
	tps, err := e.store.Touchpoints(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load touchpoints: %w", err)
	}
	return orders, groupByCustomer(tps), nil
}

func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		if a.AccountID != b.AccountID {
			return a.AccountID < b.AccountID
		}
		if a.CampaignID != b.CampaignID {
			return a.CampaignID < b.CampaignID
		}
		if a.AdsetID != b.AdsetID {
			return a.AdsetID < b.AdsetID
		}
		if a.AdID != b.AdID {
			return a.AdID < b.AdID
		}
		return a.CreativeID < b.CreativeID
	})
}

const dateLayout = "2006-01-02"

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundOrders(v float64) float64 {
	return math.Round(v*10000) / 10000
}
