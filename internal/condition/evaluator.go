// Package condition evaluates a single declarative condition (spec §4.2)
// against a flattened Indicator Snapshot, producing a score in [0,1].
package condition

import (
	"math"

	"github.com/m37335/threegate/internal/indicators"
	"github.com/m37335/threegate/internal/patterns"
)

// Snapshot is the flattened, multi-timeframe indicator map the analysis
// service builds (spec §4.6 step 2): keys are "{timeframe}_{indicator}",
// values are indicator Series (scalar indicators are 1-element).
type Snapshot map[string]indicators.Series

var defaultTimeframeOrder = []string{"1d", "4h", "1h", "5m"}

// lookup implements the three-tier indicator resolution policy of spec
// §4.2, tried in order: "{timeframe}_{indicator}", "{indicator}" verbatim,
// then each of 1d,4h,1h,5m with a "tf_" style prefix via timeframe-qualified
// keys already present in the flattened snapshot.
func lookup(snap Snapshot, indicator, timeframe string) (indicators.Series, bool) {
	if timeframe == "" {
		timeframe = "1d"
	}
	if s, ok := snap[timeframe+"_"+indicator]; ok {
		return s, true
	}
	if s, ok := snap[indicator]; ok {
		return s, true
	}
	for _, tf := range defaultTimeframeOrder {
		if s, ok := snap[tf+"_"+indicator]; ok {
			return s, true
		}
	}
	return nil, false
}

// Evaluate scores one condition against snap, returning a value in [0,1]
// (spec §4.2). Any arithmetic failure — missing indicator, NaN, division
// edge case — yields 0.0 rather than propagating (spec §9 "NaN arithmetic").
// The three-gate engine treats a condition as passed iff the returned score
// is >= 0.5 (spec §4.3.1); Evaluate itself only ever returns 0.0 or 1.0 since
// intermediate scores are reserved but currently unused (spec §4.2).
func Evaluate(snap Snapshot, c patterns.Condition) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			score = 0.0
		}
	}()

	series, found := lookup(snap, c.Indicator, c.Timeframe)
	if !found || len(series) == 0 {
		return 0.0
	}
	value := series.Last()
	if math.IsNaN(value) {
		return 0.0
	}

	switch c.Operator {
	case ">", "<", ">=", "<=", "==", "!=":
		ref, ok := resolveReference(snap, c)
		if !ok || math.IsNaN(ref) {
			return 0.0
		}
		return boolScore(compare(c.Operator, value, ref))
	case "between", "not_between":
		lo, hi, ok := resolveRange(c)
		if !ok {
			return 0.0
		}
		inRange := value >= lo && value <= hi
		if c.Operator == "not_between" {
			inRange = !inRange
		}
		return boolScore(inRange)
	case "near":
		ref, ok := resolveReference(snap, c)
		if !ok || ref == 0 {
			return 0.0
		}
		tol := toleranceOf(c, 0.01)
		return boolScore(math.Abs(value-ref) <= tol*math.Abs(ref))
	case "engulfs":
		ref, ok := resolveReference(snap, c)
		if !ok {
			return 0.0
		}
		return boolScore(math.Abs(value) > math.Abs(ref)*1.1)
	case "breaks":
		ref, ok := resolveReference(snap, c)
		if !ok {
			return 0.0
		}
		return boolScore(value > ref)
	case "oscillates_around":
		ref, ok := resolveReference(snap, c)
		if !ok {
			return 0.0
		}
		window := windowOf(series, periodsOf(c.LookbackPeriods, 14))
		above, below := false, false
		for _, v := range window {
			if v > ref {
				above = true
			}
			if v < ref {
				below = true
			}
		}
		return boolScore(above && below)
	case "all_above", "all_below", "any_above", "any_below":
		ref, ok := resolveReference(snap, c)
		if !ok {
			return 0.0
		}
		window := windowOf(series, periodsOf(c.Periods, 1))
		return boolScore(evalWindowedComparison(c.Operator, window, ref))
	case "was_consistently_above":
		ref, ok := resolveReference(snap, c)
		if !ok {
			return 0.0
		}
		return boolScore(value > ref)
	case "was_consistently_below":
		ref, ok := resolveReference(snap, c)
		if !ok {
			return 0.0
		}
		return boolScore(value < ref)
	default:
		return 0.0
	}
}

// Value resolves a single indicator's latest value from snap using the same
// three-tier lookup policy Evaluate uses internally, for callers outside
// this package that need a raw reading (e.g. entry price, ATR) rather than a
// condition score.
func Value(snap Snapshot, indicator, timeframe string) (float64, bool) {
	series, ok := lookup(snap, indicator, timeframe)
	if !ok || len(series) == 0 {
		return 0, false
	}
	v := series.Last()
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func boolScore(ok bool) float64 {
	if ok {
		return 1.0
	}
	return 0.0
}

func compare(op string, value, ref float64) bool {
	const tolerance = 1e-3
	switch op {
	case ">":
		return value > ref
	case "<":
		return value < ref
	case ">=":
		return value >= ref
	case "<=":
		return value <= ref
	case "==":
		return math.Abs(value-ref) <= tolerance
	case "!=":
		return math.Abs(value-ref) > tolerance
	}
	return false
}

func evalWindowedComparison(op string, window []float64, ref float64) bool {
	if len(window) == 0 {
		return false
	}
	switch op {
	case "all_above":
		for _, v := range window {
			if !(v > ref) {
				return false
			}
		}
		return true
	case "all_below":
		for _, v := range window {
			if !(v < ref) {
				return false
			}
		}
		return true
	case "any_above":
		for _, v := range window {
			if v > ref {
				return true
			}
		}
		return false
	case "any_below":
		for _, v := range window {
			if v < ref {
				return true
			}
		}
		return false
	}
	return false
}

func windowOf(series indicators.Series, n int) []float64 {
	tail := series.Tail(n)
	return []float64(tail)
}

func periodsOf(p *int, fallback int) int {
	if p != nil && *p > 0 {
		return *p
	}
	return fallback
}

func toleranceOf(c patterns.Condition, fallback float64) float64 {
	if c.Tolerance != nil {
		return *c.Tolerance
	}
	return fallback
}

// resolveReference resolves the `reference` field (another indicator,
// looked up the same way) or falls back to the literal `value`; applies
// `multiplier` when the resolved reference is numeric (spec §4.2).
func resolveReference(snap Snapshot, c patterns.Condition) (float64, bool) {
	var ref float64
	var ok bool

	if c.Reference != "" {
		series, found := lookup(snap, c.Reference, c.Timeframe)
		if !found || len(series) == 0 {
			return 0, false
		}
		ref, ok = series.Last(), true
	} else if c.Value != nil {
		ref, ok = toFloat(c.Value)
	}
	if !ok {
		return 0, false
	}
	if math.IsNaN(ref) {
		return 0, false
	}
	if c.Multiplier != nil {
		ref *= *c.Multiplier
	}
	return ref, true
}

// resolveRange resolves a two-element [min,max] literal for between/not_between.
func resolveRange(c patterns.Condition) (lo, hi float64, ok bool) {
	list, isList := c.Value.([]interface{})
	if !isList || len(list) != 2 {
		return 0, 0, false
	}
	a, okA := toFloat(list[0])
	b, okB := toFloat(list[1])
	if !okA || !okB {
		return 0, 0, false
	}
	if a > b {
		a, b = b, a
	}
	return a, b, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
