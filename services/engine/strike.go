package engine

import (
	"math"
	"sort"

	"github.com/Helambe-vaibhav/BACKTest/services/marketdata"
)

// SelectStrike resolves a strike rule against a chain snapshot: one row per
// strike, same underlying/expiry/type, one instant. Rows are scanned in
// ascending-strike order regardless of the store's sort. A false return
// means no row qualified; the caller skips the cycle, it is not an error.
func SelectStrike(rule StrikeRule, chain *marketdata.Window) (marketdata.Bar, bool) {
	if chain.Empty() {
		return marketdata.Bar{}, false
	}
	strikes, ok := chain.Col(marketdata.ColStrike)
	if !ok {
		return marketdata.Bar{}, false
	}
	closes, ok := chain.Col(marketdata.ColClose)
	if !ok {
		return marketdata.Bar{}, false
	}

	order := make([]int, chain.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return strikes[order[a]] < strikes[order[b]] })

	switch {
	case rule.GreaterThan != nil:
		// lowest strike whose premium exceeds the threshold
		for _, i := range order {
			if closes[i] > *rule.GreaterThan {
				return chain.Bar(i), true
			}
		}
	case rule.LessThan != nil:
		// highest strike whose premium is below the threshold
		for k := len(order) - 1; k >= 0; k-- {
			i := order[k]
			if closes[i] < *rule.LessThan {
				return chain.Bar(i), true
			}
		}
	case rule.ClosestPremium != nil:
		best, bestDist := -1, math.Inf(1)
		for _, i := range order {
			if math.IsNaN(closes[i]) {
				continue
			}
			if d := math.Abs(closes[i] - *rule.ClosestPremium); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			return chain.Bar(best), true
		}
	}
	return marketdata.Bar{}, false
}
