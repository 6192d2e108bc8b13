package attribution

import (
	"sort"
	"time"

	"github.com/attributionops/attribution-engine/internal/models"
)

// groupByCustomer indexes touchpoints by customer key, each list sorted
// ascending by timestamp. The sort is stable so same-instant touchpoints
// keep their ingestion order. Anonymous touchpoints are dropped.
func groupByCustomer(tps []models.Touchpoint) map[string][]models.Touchpoint {
	byCustomer := make(map[string][]models.Touchpoint)
	for _, tp := range tps {
		if tp.CustomerKey == "" {
			continue
		}
		byCustomer[tp.CustomerKey] = append(byCustomer[tp.CustomerKey], tp)
	}
	for ck := range byCustomer {
		list := byCustomer[ck]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Timestamp.Before(list[j].Timestamp)
		})
	}
	return byCustomer
}

// windowFor selects the subsequence of a customer's (ascending) touchpoints
// inside the lookback window: orderTS-lookback <= ts <= orderTS, both ends
// inclusive. Touchpoints after the order are never included.
func windowFor(tps []models.Touchpoint, orderTS time.Time, lookback time.Duration) []models.Touchpoint {
	windowStart := orderTS.Add(-lookback)

	var window []models.Touchpoint
	for _, tp := range tps {
		if tp.Timestamp.Before(windowStart) {
			continue
		}
		if tp.Timestamp.After(orderTS) {
			break
		}
		window = append(window, tp)
	}
	return window
}
