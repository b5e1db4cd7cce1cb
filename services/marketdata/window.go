// Package marketdata holds the columnar bar window shared between the
// data store and the strategy engine.
package marketdata

import (
	"fmt"
	"math"
	"time"
)

// Canonical column names. Indicator columns are added on top of these.
const (
	ColOpen    = "Open"
	ColHigh    = "High"
	ColLow     = "Low"
	ColClose   = "Close"
	ColVolume  = "Volume"
	ColOI      = "OI"
	ColStrike  = "Strike"
	ColWeekday = "Weekday"
)

// Bar is one OHLCV sample with its contract identity.
type Bar struct {
	Time   time.Time
	Ticker string
	Expiry time.Time
	Type   string

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	OI     float64
	Strike float64
}

// Window is a time-ordered columnar sequence of bars. Rows are appended,
// never mutated; indicator columns are attached with SetCol.
type Window struct {
	Times    []time.Time
	Tickers  []string
	Expiries []time.Time
	Types    []string

	cols  map[string][]float64
	names []string
}

func NewWindow() *Window {
	return &Window{cols: make(map[string][]float64)}
}

func (w *Window) Len() int { return len(w.Times) }

func (w *Window) Empty() bool { return len(w.Times) == 0 }

// Columns returns the numeric column names in attachment order.
func (w *Window) Columns() []string {
	out := make([]string, len(w.names))
	copy(out, w.names)
	return out
}

func (w *Window) HasCol(name string) bool {
	_, ok := w.cols[name]
	return ok
}

// Col returns the column series aligned to the window rows.
func (w *Window) Col(name string) ([]float64, bool) {
	s, ok := w.cols[name]
	return s, ok
}

// SetCol attaches a numeric column. The series must be row-aligned.
func (w *Window) SetCol(name string, series []float64) error {
	if len(series) != len(w.Times) {
		return fmt.Errorf("column %s: length %d does not match window length %d", name, len(series), len(w.Times))
	}
	if _, exists := w.cols[name]; !exists {
		w.names = append(w.names, name)
	}
	w.cols[name] = series
	return nil
}

// AppendBar adds one row, keeping every column aligned.
func (w *Window) AppendBar(b Bar) {
	if len(w.names) == 0 {
		for _, name := range []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume, ColOI, ColStrike, ColWeekday} {
			w.names = append(w.names, name)
			w.cols[name] = nil
		}
	}
	w.Times = append(w.Times, b.Time)
	w.Tickers = append(w.Tickers, b.Ticker)
	w.Expiries = append(w.Expiries, b.Expiry)
	w.Types = append(w.Types, b.Type)
	w.cols[ColOpen] = append(w.cols[ColOpen], b.Open)
	w.cols[ColHigh] = append(w.cols[ColHigh], b.High)
	w.cols[ColLow] = append(w.cols[ColLow], b.Low)
	w.cols[ColClose] = append(w.cols[ColClose], b.Close)
	w.cols[ColVolume] = append(w.cols[ColVolume], b.Volume)
	w.cols[ColOI] = append(w.cols[ColOI], b.OI)
	w.cols[ColStrike] = append(w.cols[ColStrike], b.Strike)
	w.cols[ColWeekday] = append(w.cols[ColWeekday], float64(b.Time.Weekday()))
	for _, name := range w.names {
		if len(w.cols[name]) < len(w.Times) {
			// indicator columns attached before further appends stay aligned
			w.cols[name] = append(w.cols[name], math.NaN())
		}
	}
}

// Bar materializes row i.
func (w *Window) Bar(i int) Bar {
	return Bar{
		Time:   w.Times[i],
		Ticker: w.Tickers[i],
		Expiry: w.Expiries[i],
		Type:   w.Types[i],
		Open:   w.at(ColOpen, i),
		High:   w.at(ColHigh, i),
		Low:    w.at(ColLow, i),
		Close:  w.at(ColClose, i),
		Volume: w.at(ColVolume, i),
		OI:     w.at(ColOI, i),
		Strike: w.at(ColStrike, i),
	}
}

func (w *Window) at(name string, i int) float64 {
	if s, ok := w.cols[name]; ok && i < len(s) {
		return s[i]
	}
	return math.NaN()
}

// Float returns column name at row i, NaN when absent.
func (w *Window) Float(name string, i int) float64 { return w.at(name, i) }

// slice returns a shared-backing view of rows [lo, hi).
func (w *Window) slice(lo, hi int) *Window {
	out := &Window{
		Times:    w.Times[lo:hi],
		Tickers:  w.Tickers[lo:hi],
		Expiries: w.Expiries[lo:hi],
		Types:    w.Types[lo:hi],
		cols:     make(map[string][]float64, len(w.cols)),
		names:    w.names,
	}
	for name, s := range w.cols {
		out.cols[name] = s[lo:hi]
	}
	return out
}

// SplitAt partitions the window into rows at or before t and rows after t.
// Rows are assumed time-ordered, the store's default sort.
func (w *Window) SplitAt(t time.Time) (pre, post *Window) {
	n := len(w.Times)
	cut := n
	for i, ts := range w.Times {
		if ts.After(t) {
			cut = i
			break
		}
	}
	return w.slice(0, cut), w.slice(cut, n)
}
