package attribution

import (
	"fmt"
	"strings"
	"time"
)

// Model is the closed set of supported attribution weight models.
type Model int

const (
	ModelLastClick Model = iota
	ModelFirstClick
	ModelLinear
	ModelTimeDecay
	ModelDataDrivenProxy
)

// String returns the canonical model name.
func (m Model) String() string {
	switch m {
	case ModelLastClick:
		return "last_click"
	case ModelFirstClick:
		return "first_click"
	case ModelLinear:
		return "linear"
	case ModelTimeDecay:
		return "time_decay"
	case ModelDataDrivenProxy:
		return "data_driven_proxy"
	default:
		return "unknown"
	}
}

// ParseModel maps a model name to its Model. Accepted aliases match the
// upstream report API: case-insensitive, with "-" and spaces treated as "_".
func ParseModel(s string) (Model, error) {
	switch normalizeToken(s) {
	case "last_click", "last":
		return ModelLastClick, nil
	case "first_click", "first":
		return ModelFirstClick, nil
	case "linear":
		return ModelLinear, nil
	case "time_decay", "timedecay":
		return ModelTimeDecay, nil
	case "data_driven_proxy", "data_driven", "ddp":
		return ModelDataDrivenProxy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidModel, s)
	}
}

// ValueType selects which aggregated component becomes a row's primary value.
type ValueType int

const (
	ValueTotalRevenue ValueType = iota
	ValueRevenue
	ValueCOGS
	ValueFees
	ValueOrders
)

func (v ValueType) String() string {
	switch v {
	case ValueTotalRevenue:
		return "total_revenue"
	case ValueRevenue:
		return "revenue"
	case ValueCOGS:
		return "cogs"
	case ValueFees:
		return "fees"
	case ValueOrders:
		return "orders"
	default:
		return "unknown"
	}
}

// ParseValueType maps a value-type name (and its upstream aliases) to a ValueType.
func ParseValueType(s string) (ValueType, error) {
	switch normalizeToken(s) {
	case "total_revenue", "gross":
		return ValueTotalRevenue, nil
	case "revenue", "net_revenue", "net":
		return ValueRevenue, nil
	case "cogs":
		return ValueCOGS, nil
	case "fees", "processing_fees":
		return ValueFees, nil
	case "orders", "conversions":
		return ValueOrders, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidValueType, s)
	}
}

// DateBasis controls whether day-scoped output buckets by the order's
// conversion date or the touchpoint's click date.
type DateBasis int

const (
	BasisConversion DateBasis = iota
	BasisClick
)

func (b DateBasis) String() string {
	if b == BasisClick {
		return "click"
	}
	return "conversion"
}

// ParseDateBasis maps a date-basis name to a DateBasis. An empty string
// defaults to conversion.
func ParseDateBasis(s string) (DateBasis, error) {
	switch normalizeToken(s) {
	case "", "conversion":
		return BasisConversion, nil
	case "click":
		return BasisClick, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDateBasis, s)
	}
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

// Params are the inputs for one attribution run. StartDate and EndDate are
// civil dates (UTC midnight), both inclusive.
type Params struct {
	StartDate time.Time
	EndDate   time.Time

	Model        Model
	LookbackDays int

	// Only "Purchase" is supported; anything else aborts the run.
	ConversionType string

	ValueType ValueType
	DateBasis DateBasis

	// HalfLifeDays tunes the time_decay model; zero means the 7-day default.
	HalfLifeDays float64
}

func (p Params) halfLife() float64 {
	if p.HalfLifeDays == 0 {
		return defaultHalfLifeDays
	}
	return p.HalfLifeDays
}

func (p Params) validateConversionType() error {
	if !strings.EqualFold(strings.TrimSpace(p.ConversionType), "Purchase") {
		return fmt.Errorf("%w: %q", ErrUnsupportedConversionType, p.ConversionType)
	}
	return nil
}

// ordersEnd is the last conversion date loaded for the run. Under click
// basis the order window is widened by the lookback so orders converting
// just after the reporting range can still contribute click-dated
// fragments inside it.
func (p Params) ordersEnd() time.Time {
	if p.DateBasis == BasisClick {
		return p.EndDate.AddDate(0, 0, p.LookbackDays)
	}
	return p.EndDate
}

// DateOnly truncates a timestamp to its UTC civil date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dateInRange(d, start, end time.Time) bool {
	return !d.Before(start) && !d.After(end)
}
