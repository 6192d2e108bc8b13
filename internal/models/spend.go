package models

// SpendRow is one day of reported spend for an ad hierarchy node, synced
// from the ad platforms into the spend ledger.
type SpendRow struct {
	Platform   string `json:"platform"`
	Date       string `json:"date"` // YYYY-MM-DD
	AccountID  string `json:"account_id"`
	CampaignID string `json:"campaign_id"`
	AdsetID    string `json:"adset_id"`
	AdID       string `json:"ad_id"`
	CreativeID string `json:"creative_id,omitempty"`

	Clicks      int64   `json:"clicks"`
	Cost        float64 `json:"cost"`
	Impressions int64   `json:"impressions"`

	// Raw platform metadata (JSON text: campaign_name, adset_name, ad_name).
	Metadata string `json:"metadata,omitempty"`
}

// SpendDimension is a distinct (platform, account, campaign, adset, ad)
// combination observed in the spend ledger. Used to resolve the owning
// ad account for attributed touchpoints.
type SpendDimension struct {
	Platform   string `json:"platform"`
	AccountID  string `json:"account_id"`
	CampaignID string `json:"campaign_id"`
	AdsetID    string `json:"adset_id"`
	AdID       string `json:"ad_id"`
}

// ReportedValueRow is one day of platform-reported conversion value for an
// ad hierarchy node (what Meta/Google/TikTok claim they drove).
type ReportedValueRow struct {
	Platform       string  `json:"platform"`
	Date           string  `json:"date"`
	AccountID      string  `json:"account_id"`
	CampaignID     string  `json:"campaign_id"`
	AdsetID        string  `json:"adset_id"`
	AdID           string  `json:"ad_id"`
	ConversionType string  `json:"conversion_type"`
	ReportedValue  float64 `json:"reported_value"`
}

// AdName maps a platform entity ID to its human-readable name.
type AdName struct {
	Platform   string `json:"platform"`
	EntityType string `json:"entity_type"` // "campaign", "adset", "ad"
	EntityID   string `json:"entity_id"`
	Name       string `json:"name"`
}
