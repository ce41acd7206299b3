package condition

import (
	"testing"

	"github.com/m37335/threegate/internal/indicators"
	"github.com/m37335/threegate/internal/patterns"
)

func ptr(f float64) *float64 { return &f }
func iptr(i int) *int        { return &i }

func TestEvaluateSimpleComparison(t *testing.T) {
	snap := Snapshot{
		"1h_EMA_21": indicators.Series{100, 101, 105},
		"1h_EMA_55": indicators.Series{100, 100, 100},
	}
	c := patterns.Condition{
		Name: "ema_above", Indicator: "EMA_21", Operator: ">",
		Reference: "EMA_55", Timeframe: "1h",
	}
	if got := Evaluate(snap, c); got != 1.0 {
		t.Errorf("expected pass (1.0), got %v", got)
	}
}

func TestEvaluateMissingIndicatorScoresZero(t *testing.T) {
	snap := Snapshot{}
	c := patterns.Condition{Name: "x", Indicator: "RSI_14", Operator: ">", Value: 50.0}
	if got := Evaluate(snap, c); got != 0.0 {
		t.Errorf("expected 0.0 for missing indicator, got %v", got)
	}
}

func TestEvaluateBetween(t *testing.T) {
	snap := Snapshot{"1d_RSI_14": indicators.Series{55}}
	c := patterns.Condition{
		Indicator: "RSI_14", Operator: "between",
		Value: []interface{}{40.0, 60.0},
	}
	if got := Evaluate(snap, c); got != 1.0 {
		t.Errorf("expected in-range pass, got %v", got)
	}
}

func TestEvaluateOscillatesAround(t *testing.T) {
	snap := Snapshot{"1h_RSI_14": indicators.Series{45, 55, 48, 52}}
	c := patterns.Condition{
		Indicator: "RSI_14", Operator: "oscillates_around", Value: 50.0,
		Timeframe: "1h", LookbackPeriods: iptr(4),
	}
	if got := Evaluate(snap, c); got != 1.0 {
		t.Errorf("expected oscillation detected, got %v", got)
	}
}

func TestEvaluateAllAboveWindow(t *testing.T) {
	snap := Snapshot{"1h_RSI_14": indicators.Series{60, 61, 62}}
	c := patterns.Condition{
		Indicator: "RSI_14", Operator: "all_above", Value: 50.0,
		Timeframe: "1h", Periods: iptr(3),
	}
	if got := Evaluate(snap, c); got != 1.0 {
		t.Errorf("expected all_above pass, got %v", got)
	}

	snap["1h_RSI_14"] = indicators.Series{60, 40, 62}
	if got := Evaluate(snap, c); got != 0.0 {
		t.Errorf("expected all_above fail when one value dips below, got %v", got)
	}
}

func TestEvaluateNearTolerance(t *testing.T) {
	snap := Snapshot{"1d_close": indicators.Series{150.0}}
	c := patterns.Condition{
		Indicator: "close", Operator: "near", Value: 150.1,
		Tolerance: ptr(0.01),
	}
	if got := Evaluate(snap, c); got != 1.0 {
		t.Errorf("expected near match within tolerance, got %v", got)
	}
}

func TestEvaluateMultiplierAppliesToReference(t *testing.T) {
	snap := Snapshot{
		"1h_ATR_14":  indicators.Series{0.10},
		"1h_distance": indicators.Series{0.25},
	}
	c := patterns.Condition{
		Indicator: "distance", Operator: ">", Reference: "ATR_14",
		Multiplier: ptr(2.0), Timeframe: "1h",
	}
	// 0.25 > 0.10*2.0=0.20 -> pass
	if got := Evaluate(snap, c); got != 1.0 {
		t.Errorf("expected multiplier-adjusted pass, got %v", got)
	}
}

func TestEvaluateUnsatisfiedComparisonYieldsZero(t *testing.T) {
	snap := Snapshot{"1d_x": indicators.Series{0}}
	c := patterns.Condition{Indicator: "x", Operator: ">", Value: 1.0}
	if got := Evaluate(snap, c); got != 0.0 {
		t.Errorf("expected fail for 0 > 1, got %v", got)
	}
}
