package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ExitReason enumerates why a position closed, in priority order:
// Stoploss beats Target beats ExitCondition beats DayEnd on the same row.
type ExitReason int

const (
	ExitStoploss ExitReason = iota
	ExitTarget
	ExitCondition
	ExitDayEnd
)

func (r ExitReason) String() string {
	switch r {
	case ExitStoploss:
		return "Stoploss"
	case ExitTarget:
		return "Target"
	case ExitCondition:
		return "ExitCondition"
	case ExitDayEnd:
		return "DayEnd"
	}
	return "Unknown"
}

func (r ExitReason) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(r.String())), nil
}

// TradeRecord is one completed round trip. Profit, CumProfit and Drawdown
// are filled by the aggregator only.
type TradeRecord struct {
	LegName    string     `json:"leg_name"`
	Direction  string     `json:"direction"`
	Ticker     string     `json:"ticker"`
	EntryTime  time.Time  `json:"entry_time"`
	EntryPrice float64    `json:"entry_price"`
	Target     float64    `json:"target"`
	Stoploss   float64    `json:"stoploss"`
	ExitTime   time.Time  `json:"exit_time"`
	ExitPrice  float64    `json:"exit_price"`
	ExitReason ExitReason `json:"exit_reason"`
	Lots       int        `json:"lots"`

	Profit    decimal.Decimal `json:"profit"`
	CumProfit decimal.Decimal `json:"cum_profit"`
	Drawdown  decimal.Decimal `json:"drawdown"`
}

// LegError reports a leg that failed without aborting its siblings.
type LegError struct {
	Leg string `json:"leg"`
	Err string `json:"error"`
}

// TradeBook is the merged, exit-time-sorted result of a run.
type TradeBook struct {
	Trades    []TradeRecord `json:"trades"`
	Partial   bool          `json:"partial"`
	LegErrors []LegError    `json:"leg_errors,omitempty"`
	Events    []Event       `json:"events,omitempty"`
	Manifest  RunManifest   `json:"manifest"`
}

// aggregate concatenates per-leg books (intra-leg order preserved), sorts
// by exit time and computes profit, cumulative profit and drawdown. The
// sort is stable so equal exit times keep leg order, making the merge
// deterministic regardless of which leg finished first.
func aggregate(perLeg [][]TradeRecord) []TradeRecord {
	var merged []TradeRecord
	for _, trades := range perLeg {
		merged = append(merged, trades...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].ExitTime.Before(merged[j].ExitTime)
	})

	cum := decimal.Zero
	var peak decimal.Decimal
	for i := range merged {
		t := &merged[i]
		entry := decimal.NewFromFloat(t.EntryPrice)
		exit := decimal.NewFromFloat(t.ExitPrice)
		lots := decimal.NewFromInt(int64(t.Lots))
		if t.Direction == DirectionBuy {
			t.Profit = exit.Sub(entry).Mul(lots)
		} else {
			t.Profit = entry.Sub(exit).Mul(lots)
		}
		cum = cum.Add(t.Profit)
		t.CumProfit = cum
		// peak is the running max of cum itself, seeded from the first
		// trade: a book that opens losing is at its own high-water mark
		if i == 0 || cum.GreaterThan(peak) {
			peak = cum
		}
		t.Drawdown = cum.Sub(peak)
	}
	return merged
}

// TotalProfit is the final cumulative profit across all legs.
func (b *TradeBook) TotalProfit() decimal.Decimal {
	if len(b.Trades) == 0 {
		return decimal.Zero
	}
	return b.Trades[len(b.Trades)-1].CumProfit
}

// MaxDrawdown is the most negative drawdown in the book.
func (b *TradeBook) MaxDrawdown() decimal.Decimal {
	worst := decimal.Zero
	for _, t := range b.Trades {
		if t.Drawdown.LessThan(worst) {
			worst = t.Drawdown
		}
	}
	return worst
}

// WriteCSV exports the book in the trade-log column layout.
func (b *TradeBook) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"LegName", "Action", "Ticker", "EntryTime", "EntryPrice", "Target", "Stoploss",
		"ExitTime", "ExitPrice", "ExitReason", "TotalLot", "Profit", "CumulativeProfit", "Drawdown"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range b.Trades {
		row := []string{
			t.LegName,
			t.Direction,
			t.Ticker,
			t.EntryTime.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.Target),
			fmt.Sprintf("%.2f", t.Stoploss),
			t.ExitTime.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.2f", t.ExitPrice),
			t.ExitReason.String(),
			strconv.Itoa(t.Lots),
			t.Profit.StringFixed(2),
			t.CumProfit.StringFixed(2),
			t.Drawdown.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
