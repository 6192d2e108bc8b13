package attribution

import (
	"github.com/attributionops/attribution-engine/internal/models"
)

type dimensionKey struct {
	Platform   string
	CampaignID string
	AdsetID    string
	AdID       string
}

// accountMap resolves a touchpoint's ad hierarchy to the owning ad account.
// It is built once per run from distinct spend-ledger rows and discarded
// with the run, so every run sees current spend data.
type accountMap map[dimensionKey]string

func buildAccountMap(dims []models.SpendDimension) accountMap {
	m := make(accountMap, len(dims))
	for _, d := range dims {
		key := dimensionKey{
			Platform:   d.Platform,
			CampaignID: d.CampaignID,
			AdsetID:    d.AdsetID,
			AdID:       d.AdID,
		}
		if _, ok := m[key]; !ok && d.AccountID != "" {
			m[key] = d.AccountID
		}
	}
	return m
}

// resolve returns the account for a touchpoint's dimensions, or "" when the
// combination never appeared in the spend ledger. Pixel-only campaigns with
// no spend rows are legitimately unmapped; this is not an error.
func (m accountMap) resolve(tp models.Touchpoint) string {
	return m[dimensionKey{
		Platform:   tp.Platform,
		CampaignID: tp.CampaignID,
		AdsetID:    tp.AdsetID,
		AdID:       tp.AdID,
	}]
}
