// Package indicators provides pure series-to-series technical indicators.
// Every function returns a series aligned to its input, with NaN for rows
// that lack enough history.
package indicators

import (
	"fmt"
	"math"
)

const (
	defaultALMAOffset = 0.85
	defaultALMASigma  = 6.0
)

// Params carries the per-indicator tuning knobs. Zero Offset/Sigma fall
// back to the ALMA defaults.
type Params struct {
	Window int
	Offset float64
	Sigma  float64
}

// Compute dispatches on kind. Supported kinds: alma, sma, ema, rsi.
func Compute(kind string, src []float64, p Params) ([]float64, error) {
	if p.Window < 1 {
		return nil, fmt.Errorf("indicator %s: window must be >= 1, got %d", kind, p.Window)
	}
	switch kind {
	case "alma":
		offset, sigma := p.Offset, p.Sigma
		if offset == 0 {
			offset = defaultALMAOffset
		}
		if sigma == 0 {
			sigma = defaultALMASigma
		}
		return ALMA(src, p.Window, offset, sigma), nil
	case "sma":
		return SMA(src, p.Window), nil
	case "ema":
		return EMA(src, p.Window), nil
	case "rsi":
		return RSI(src, p.Window), nil
	default:
		return nil, fmt.Errorf("unknown indicator kind %q", kind)
	}
}

// Known reports whether kind is a supported indicator.
func Known(kind string) bool {
	switch kind {
	case "alma", "sma", "ema", "rsi":
		return true
	}
	return false
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// ALMA is the Arnaud Legoux moving average: a Gaussian-weighted window
// whose center sits at offset*(window-1).
func ALMA(src []float64, window int, offset, sigma float64) []float64 {
	out := nanSeries(len(src))
	if window < 1 || len(src) < window {
		return out
	}
	m := float64(int(offset * float64(window-1)))
	s := float64(window) / sigma
	weights := make([]float64, window)
	var wsum float64
	for k := 0; k < window; k++ {
		weights[k] = math.Exp(-((float64(k) - m) * (float64(k) - m)) / (2 * s * s))
		wsum += weights[k]
	}
	for i := window - 1; i < len(src); i++ {
		var acc float64
		for k := 0; k < window; k++ {
			acc += weights[k] * src[i-window+1+k]
		}
		out[i] = round3(acc / wsum)
	}
	return out
}

// SMA is a simple rolling mean.
func SMA(src []float64, window int) []float64 {
	out := nanSeries(len(src))
	if window < 1 || len(src) < window {
		return out
	}
	var sum float64
	for i, v := range src {
		sum += v
		if i >= window {
			sum -= src[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// EMA seeds with SMA(period) and applies alpha = 2/(period+1) from there.
func EMA(src []float64, period int) []float64 {
	out := nanSeries(len(src))
	if period < 1 || len(src) < period {
		return out
	}
	var sma float64
	for i := 0; i < period; i++ {
		sma += src[i]
	}
	sma /= float64(period)
	out[period-1] = sma
	alpha := 2.0 / float64(period+1)
	for i := period; i < len(src); i++ {
		out[i] = src[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// RSI is Wilder's relative strength index.
func RSI(src []float64, period int) []float64 {
	out := nanSeries(len(src))
	if period < 1 || len(src) <= period {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := src[i] - src[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)
	for i := period + 1; i < len(src); i++ {
		d := src[i] - src[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
