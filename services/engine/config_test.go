package engine

import (
	"testing"
)

func validConfig() StrategyConfig {
	return StrategyConfig{
		TimeFrame:       5,
		EntryTime:       "09:15:00",
		ExitTime:        "15:15:00",
		FromDate:        "2024-01-02",
		ToDate:          "2024-01-31",
		ExpiryEntryDays: 7,
		ExpiryExitDays:  0,
		Indicators: []IndicatorSpec{
			{Name: "EMA_20", Kind: "ema", Window: 20},
		},
		Legs: []LegConfig{{
			Name:            "short_call",
			Underlying:      "NIFTY",
			OptionType:      OptionCall,
			Strike:          StrikeRule{ClosestPremium: fp(100)},
			Direction:       DirectionSell,
			Lots:            50,
			TargetPoints:    10,
			StoplossPoints:  10,
			EntryConditions: []string{"Close > EMA_20"},
			ExitConditions:  []string{"Close < EMA_20"},
		}},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]func(*StrategyConfig){
		"zero timeframe":       func(c *StrategyConfig) { c.TimeFrame = 0 },
		"bad entry time":       func(c *StrategyConfig) { c.EntryTime = "9am" },
		"entry after exit":     func(c *StrategyConfig) { c.EntryTime, c.ExitTime = c.ExitTime, c.EntryTime },
		"reversed dates":       func(c *StrategyConfig) { c.FromDate, c.ToDate = c.ToDate, c.FromDate },
		"inverted expiry":      func(c *StrategyConfig) { c.ExpiryEntryDays, c.ExpiryExitDays = 0, 7 },
		"no legs":              func(c *StrategyConfig) { c.Legs = nil },
		"unknown indicator":    func(c *StrategyConfig) { c.Indicators[0].Kind = "macd" },
		"indicator shadowing":  func(c *StrategyConfig) { c.Indicators[0].Name = "Close" },
		"bad option type":      func(c *StrategyConfig) { c.Legs[0].OptionType = "CALL" },
		"bad direction":        func(c *StrategyConfig) { c.Legs[0].Direction = "LONG" },
		"zero lots":            func(c *StrategyConfig) { c.Legs[0].Lots = 0 },
		"zero target":          func(c *StrategyConfig) { c.Legs[0].TargetPoints = 0 },
		"no strike rule":       func(c *StrategyConfig) { c.Legs[0].Strike = StrikeRule{} },
		"two strike rules":     func(c *StrategyConfig) { c.Legs[0].Strike.GreaterThan = fp(50) },
		"no entry conditions":  func(c *StrategyConfig) { c.Legs[0].EntryConditions = nil },
		"no exit conditions":   func(c *StrategyConfig) { c.Legs[0].ExitConditions = nil },
		"malformed condition":  func(c *StrategyConfig) { c.Legs[0].EntryConditions = []string{"Close >"} },
		"missing underlying":   func(c *StrategyConfig) { c.Legs[0].Underlying = "" },
		"duplicate leg names":  func(c *StrategyConfig) { c.Legs = append(c.Legs, c.Legs[0]) },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected ConfigError, got nil", name)
		}
		if !IsConfigError(err) {
			t.Fatalf("%s: expected ConfigError, got %T %v", name, err, err)
		}
	}
}

func TestResolveMaxLookback(t *testing.T) {
	cfg := validConfig()
	cfg.Indicators = append(cfg.Indicators, IndicatorSpec{Name: "SMA_50", Kind: "sma", Window: 50})
	p, err := cfg.resolve()
	if err != nil {
		t.Fatal(err)
	}
	if p.maxLookback != 50 {
		t.Fatalf("got maxLookback %d, want 50", p.maxLookback)
	}
}

func TestParseClock(t *testing.T) {
	sec, err := parseClock("15:15:00")
	if err != nil {
		t.Fatal(err)
	}
	if sec != 15*3600+15*60 {
		t.Fatalf("got %d", sec)
	}
	if _, err := parseClock("25:00:00"); err == nil {
		t.Fatal("expected error")
	}
}
