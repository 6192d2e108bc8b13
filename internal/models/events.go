package models

import (
	"time"
)

// ===========================================
// TOUCHPOINT EVENT
// ===========================================

// Touchpoint is a recorded marketing exposure tied to a customer and a
// point in time. Touchpoints are written by ingestion and never mutated.
type Touchpoint struct {
	Timestamp time.Time `json:"ts"`

	// Where the visitor came from
	Channel  string `json:"channel"`  // e.g. "paid_social", "email", "organic"
	Platform string `json:"platform"` // "meta", "google", "tiktok" or ""

	// Ad hierarchy identifiers as reported by the pixel / UTM params
	CampaignID string `json:"campaign_id"`
	AdsetID    string `json:"adset_id"`
	AdID       string `json:"ad_id"`
	CreativeID string `json:"creative_id"`

	// Identity
	CustomerKey string `json:"customer_key"` // empty means anonymous
	SessionID   string `json:"session_id,omitempty"`
}

// ===========================================
// ORDER EVENT
// ===========================================

// Order is a revenue event. Refunds, chargebacks and net may be adjusted
// in place by refund processing after creation; readers always see the
// current values.
type Order struct {
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"ts"`

	// Monetary components
	Gross       float64 `json:"gross"` // pre-deduction revenue
	Net         float64 `json:"net"`   // gross minus refunds/chargebacks
	Refunds     float64 `json:"refunds"`
	Chargebacks float64 `json:"chargebacks"`
	COGS        float64 `json:"cogs"`
	Fees        float64 `json:"fees"`

	CustomerKey string `json:"customer_key"`
}

// ===========================================
// SESSION EVENT
// ===========================================

// Session is a site visit used for tracking coverage diagnostics.
type Session struct {
	SessionID   string    `json:"session_id"`
	Timestamp   time.Time `json:"ts"`
	CustomerKey string    `json:"customer_key,omitempty"`
	LandingPage string    `json:"landing_page,omitempty"`

	// Platform click IDs captured on landing
	GCLID  string `json:"gclid,omitempty"`
	FBCLID string `json:"fbclid,omitempty"`
	TTCLID string `json:"ttclid,omitempty"`

	UTMSource string `json:"utm_source,omitempty"`
	UTMMedium string `json:"utm_medium,omitempty"`
}

// HasClickID reports whether any platform click ID was captured.
func (s *Session) HasClickID() bool {
	return s.GCLID != "" || s.FBCLID != "" || s.TTCLID != ""
}
