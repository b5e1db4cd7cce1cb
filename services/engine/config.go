package engine

import (
	"fmt"
	"time"

	"github.com/Helambe-vaibhav/BACKTest/services/indicators"
	"github.com/Helambe-vaibhav/BACKTest/services/marketdata"
)

// Directions and option types use the wire vocabulary of the strategy
// documents.
const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"

	OptionCall = "CE"
	OptionPut  = "PE"
)

// Session length of the reference market in trading minutes. History
// windows are sized against it.
const sessionMinutes = 375

// IndicatorSpec names one derived column to attach to every history window.
type IndicatorSpec struct {
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	Source string  `json:"source,omitempty"` // defaults to Close
	Window int     `json:"window"`
	Offset float64 `json:"offset,omitempty"`
	Sigma  float64 `json:"sigma,omitempty"`
}

// StrikeRule selects one contract from a chain snapshot. Exactly one field
// must be set.
type StrikeRule struct {
	GreaterThan    *float64 `json:"greater_than,omitempty"`
	LessThan       *float64 `json:"less_than,omitempty"`
	ClosestPremium *float64 `json:"closest_premium,omitempty"`
}

// LegConfig describes one independently simulated option position.
type LegConfig struct {
	Name            string     `json:"name"`
	Underlying      string     `json:"underlying"`
	OptionType      string     `json:"option_type"`
	Strike          StrikeRule `json:"strike"`
	Direction       string     `json:"direction"`
	Lots            int        `json:"lots"`
	TargetPoints    float64    `json:"target_points"`
	StoplossPoints  float64    `json:"stoploss_points"`
	EntryConditions []string   `json:"entry_conditions"`
	ExitConditions  []string   `json:"exit_conditions"`
}

// StrategyConfig is the immutable document the engine runs. The engine
// performs no I/O to load it; callers unmarshal it from JSON themselves.
type StrategyConfig struct {
	TimeFrame       int             `json:"time_frame"` // bar timeframe in minutes
	EntryTime       string          `json:"entry_time"` // "HH:MM:SS"
	ExitTime        string          `json:"exit_time"`  // "HH:MM:SS"
	FromDate        string          `json:"from_date"`  // "YYYY-MM-DD"
	ToDate          string          `json:"to_date"`
	ExpiryEntryDays int             `json:"expiry_entry_days"`
	ExpiryExitDays  int             `json:"expiry_exit_days"`
	Indicators      []IndicatorSpec `json:"indicators,omitempty"`
	Legs            []LegConfig     `json:"legs"`

	// LegTimeoutSeconds, when > 0, bounds each leg's wall-clock run time.
	// A leg that hits the deadline returns its trades so far and the run
	// is marked partial.
	LegTimeoutSeconds int `json:"leg_timeout_seconds,omitempty"`
}

// runParams is the resolved, typed view of a validated StrategyConfig.
type runParams struct {
	timeframe       int
	entrySec        int
	exitSec         int
	from            time.Time
	to              time.Time
	expiryEntryDays int
	expiryExitDays  int
	maxLookback     int
	legTimeout      time.Duration
}

func (c StrategyConfig) resolve() (runParams, error) {
	var p runParams
	if c.TimeFrame < 1 || c.TimeFrame > sessionMinutes {
		return p, configErrf("time_frame must be between 1 and %d minutes, got %d", sessionMinutes, c.TimeFrame)
	}
	entrySec, err := parseClock(c.EntryTime)
	if err != nil {
		return p, configErrf("entry_time: %v", err)
	}
	exitSec, err := parseClock(c.ExitTime)
	if err != nil {
		return p, configErrf("exit_time: %v", err)
	}
	if entrySec >= exitSec {
		return p, configErrf("entry_time %s must precede exit_time %s", c.EntryTime, c.ExitTime)
	}
	from, err := time.ParseInLocation("2006-01-02", c.FromDate, time.UTC)
	if err != nil {
		return p, configErrf("from_date: %v", err)
	}
	to, err := time.ParseInLocation("2006-01-02", c.ToDate, time.UTC)
	if err != nil {
		return p, configErrf("to_date: %v", err)
	}
	if to.Before(from) {
		return p, configErrf("to_date %s precedes from_date %s", c.ToDate, c.FromDate)
	}
	if c.ExpiryExitDays < 0 || c.ExpiryEntryDays < c.ExpiryExitDays {
		return p, configErrf("expiry window [%d, %d] is invalid", c.ExpiryEntryDays, c.ExpiryExitDays)
	}
	maxLookback := 0
	for _, spec := range c.Indicators {
		if spec.Window > maxLookback {
			maxLookback = spec.Window
		}
	}
	p = runParams{
		timeframe:       c.TimeFrame,
		entrySec:        entrySec,
		exitSec:         exitSec,
		from:            from,
		to:              to,
		expiryEntryDays: c.ExpiryEntryDays,
		expiryExitDays:  c.ExpiryExitDays,
		maxLookback:     maxLookback,
		legTimeout:      time.Duration(c.LegTimeoutSeconds) * time.Second,
	}
	return p, nil
}

// Validate checks the whole document. Any failure is a ConfigError and no
// simulation starts.
func (c StrategyConfig) Validate() error {
	if _, err := c.resolve(); err != nil {
		return err
	}
	for _, spec := range c.Indicators {
		if spec.Name == "" {
			return configErrf("indicator without a name")
		}
		if isBaseColumn(spec.Name) {
			return configErrf("indicator %s shadows a bar column", spec.Name)
		}
		if !indicators.Known(spec.Kind) {
			return configErrf("indicator %s: unknown kind %q", spec.Name, spec.Kind)
		}
		if spec.Window < 1 {
			return configErrf("indicator %s: window must be >= 1", spec.Name)
		}
	}
	if len(c.Legs) == 0 {
		return configErrf("at least one leg is required")
	}
	seen := make(map[string]bool, len(c.Legs))
	for _, leg := range c.Legs {
		if err := leg.validate(); err != nil {
			return err
		}
		if seen[leg.Name] {
			return configErrf("duplicate leg name %q", leg.Name)
		}
		seen[leg.Name] = true
	}
	return nil
}

func (l LegConfig) validate() error {
	if l.Name == "" {
		return configErrf("leg without a name")
	}
	if l.Underlying == "" {
		return configErrf("leg %s: underlying is required", l.Name)
	}
	if l.OptionType != OptionCall && l.OptionType != OptionPut {
		return configErrf("leg %s: option_type must be %s or %s, got %q", l.Name, OptionCall, OptionPut, l.OptionType)
	}
	if l.Direction != DirectionBuy && l.Direction != DirectionSell {
		return configErrf("leg %s: direction must be %s or %s, got %q", l.Name, DirectionBuy, DirectionSell, l.Direction)
	}
	if l.Lots < 1 {
		return configErrf("leg %s: lots must be >= 1", l.Name)
	}
	if l.TargetPoints <= 0 || l.StoplossPoints <= 0 {
		return configErrf("leg %s: target_points and stoploss_points must be > 0", l.Name)
	}
	if n := l.Strike.count(); n != 1 {
		return configErrf("leg %s: exactly one strike rule required, got %d", l.Name, n)
	}
	if len(l.EntryConditions) == 0 {
		return configErrf("leg %s: at least one entry condition is required", l.Name)
	}
	if len(l.ExitConditions) == 0 {
		return configErrf("leg %s: at least one exit condition is required", l.Name)
	}
	for _, src := range append(append([]string{}, l.EntryConditions...), l.ExitConditions...) {
		if _, err := Parse(src); err != nil {
			return configErrf("leg %s: condition %q: %v", l.Name, src, err)
		}
	}
	return nil
}

func (r StrikeRule) count() int {
	n := 0
	if r.GreaterThan != nil {
		n++
	}
	if r.LessThan != nil {
		n++
	}
	if r.ClosestPremium != nil {
		n++
	}
	return n
}

func isBaseColumn(name string) bool {
	switch name {
	case marketdata.ColOpen, marketdata.ColHigh, marketdata.ColLow, marketdata.ColClose,
		marketdata.ColVolume, marketdata.ColOI, marketdata.ColStrike, marketdata.ColWeekday:
		return true
	}
	return false
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0, fmt.Errorf("want HH:MM:SS, got %q", s)
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}
