package threegate

import (
	"math"
	"strings"
	"time"

	"github.com/m37335/threegate/internal/condition"
	"github.com/m37335/threegate/internal/domain"
)

// entryPriceOrder and atrOrder are the explicit timeframe-preference lists
// spec §4.3.6 requires for entry/ATR resolution. The generic three-tier
// condition.Value lookup defaults to 1d when no timeframe is given, which is
// the wrong tier for either of these (entry wants the freshest close, ATR
// wants the 1h series the position-sizing formulas were calibrated against),
// so both are resolved here against the raw snapshot instead.
var entryPriceOrder = []string{"5m", "1h", "4h", "1d"}
var atrOrder = []string{"1h", "4h", "5m", "1d"}

// assembleSignal combines the three gate results into a tradeable (or
// NEUTRAL) signal (spec §4.3.5) and computes entry/stop-loss/take-profit
// when the direction is BUY or SELL (spec §4.3.6).
func (e *Engine) assembleSignal(symbol string, snap condition.Snapshot, gate1, gate2, gate3 domain.GateResult) domain.ThreeGateResult {
	result := domain.ThreeGateResult{
		Symbol:            symbol,
		Gate1:             gate1,
		Gate2:             gate2,
		Gate3:             gate3,
		OverallConfidence: (gate1.Confidence + gate2.Confidence + gate3.Confidence) / 3.0,
		SignalType:        resolveSignalType(gate1, gate3),
		Timestamp:         time.Now().UTC(),
	}

	if result.SignalType == domain.SignalNeutral {
		return result
	}

	entry, ok := resolveEntryPrice(snap)
	if !ok {
		result.SignalType = domain.SignalNeutral
		return result
	}
	result.EntryPrice = entry

	atr := resolveATR(snap)

	levels := supportResistanceLevels(snap)
	result.StopLoss = computeStopLoss(entry, atr, result.SignalType, levels)
	result.TakeProfit = computeTakeProfit(entry, atr, result.SignalType, levels)

	return result
}

// resolveEntryPrice reads "close" preferring 5m, then 1h, 4h, 1d (spec
// §4.3.6), the priority order three_gate_engine.py:_calculate_entry_price
// uses so the signal trades off the freshest bar available.
func resolveEntryPrice(snap condition.Snapshot) (float64, bool) {
	for _, tf := range entryPriceOrder {
		series, ok := snap[tf+"_close"]
		if !ok || len(series) == 0 {
			continue
		}
		v := series.Last()
		if math.IsNaN(v) {
			continue
		}
		return v, true
	}
	return 0, false
}

// resolveATR reads "ATR_14" preferring 1h, then 4h, 5m, 1d (spec §4.3.6),
// requiring a strictly positive reading at each tier, and falls back to
// defaultATR only if no timeframe qualifies (three_gate_engine.py's
// _calculate_stop_loss does the same positivity check before trusting ATR).
func resolveATR(snap condition.Snapshot) float64 {
	for _, tf := range atrOrder {
		series, ok := snap[tf+"_ATR_14"]
		if !ok || len(series) == 0 {
			continue
		}
		v := series.Last()
		if math.IsNaN(v) || v <= 0 {
			continue
		}
		return v
	}
	return defaultATR
}

// resolveSignalType derives BUY/SELL/NEUTRAL from the Gate 1 environment
// name first (bullish/bearish suffix), falling back to substring rules on
// the Gate 3 trigger name when Gate 1 is direction-neutral (spec §4.3.5).
func resolveSignalType(gate1, gate3 domain.GateResult) domain.SignalType {
	lower1 := strings.ToLower(gate1.Pattern)
	switch {
	case strings.Contains(lower1, "bullish"):
		return domain.SignalBuy
	case strings.Contains(lower1, "bearish"):
		return domain.SignalSell
	}

	lower3 := strings.ToLower(gate3.Pattern)
	switch {
	case strings.Contains(lower3, "breakout_up"), strings.Contains(lower3, "_long"), strings.Contains(lower3, "buy"):
		return domain.SignalBuy
	case strings.Contains(lower3, "breakout_down"), strings.Contains(lower3, "_short"), strings.Contains(lower3, "sell"):
		return domain.SignalSell
	}
	return domain.SignalNeutral
}

// srLevels collects the snapped-reference price levels (spec §4.3.6):
// Bollinger Bands, the trend EMAs, and the Fibonacci retracement/extension
// levels. Each name contributes at most one value, resolved by
// condition.Value with no timeframe hint (the 1d entry first, then the
// unprefixed name, then 4h, 1h, 5m); the same name on other timeframes is
// not collected.
type srLevels struct {
	values []float64
}

func supportResistanceLevels(snap condition.Snapshot) srLevels {
	var levels srLevels
	candidates := []string{
		"BB_Upper", "BB_Middle", "BB_Lower",
		"EMA_21", "EMA_55", "EMA_200",
		"Fib_0.236", "Fib_0.382", "Fib_0.5", "Fib_0.618", "Fib_0.786",
		"Fib_1.272", "Fib_1.414", "Fib_1.618", "Fib_2.0",
	}
	for _, name := range candidates {
		if v, ok := condition.Value(snap, name, ""); ok && !math.IsNaN(v) {
			levels.values = append(levels.values, v)
		}
	}
	return levels
}

// nearestBelow returns the closest level strictly below price, if any.
func (l srLevels) nearestBelow(price float64) (float64, bool) {
	best, found := 0.0, false
	for _, v := range l.values {
		if v < price && (!found || v > best) {
			best, found = v, true
		}
	}
	return best, found
}

// nearestAbove returns the closest level strictly above price, if any.
func (l srLevels) nearestAbove(price float64) (float64, bool) {
	best, found := 0.0, false
	for _, v := range l.values {
		if v > price && (!found || v < best) {
			best, found = v, true
		}
	}
	return best, found
}

// nearestBelowBuffered returns the closest level at least buffer below
// price, if any — the search _calculate_stop_loss runs for the support
// candidate (three_gate_engine.py:1441), distinct from the unbuffered
// search computeTakeProfit uses.
func (l srLevels) nearestBelowBuffered(price, buffer float64) (float64, bool) {
	return l.nearestBelow(price - buffer)
}

// nearestAboveBuffered is nearestBelowBuffered's mirror for the resistance
// candidate on a SELL stop-loss.
func (l srLevels) nearestAboveBuffered(price, buffer float64) (float64, bool) {
	return l.nearestAbove(price + buffer)
}

// computeStopLoss floors the stop at an ATR-derived distance, then tightens
// it toward entry if a support/resistance level sits inside that distance
// (spec §4.3.6; three_gate_engine.py:_calculate_stop_loss:1441-1462).
// atr_multiplier_max is intentionally unused here — the original only ever
// applies atr_multiplier_min to the floor and never clamps a ceiling.
func computeStopLoss(entry, atr float64, signal domain.SignalType, levels srLevels) float64 {
	atrFloor := math.Max(atr*atrMultiplierMin, minRiskPips*pip)

	if signal == domain.SignalBuy {
		slATR := entry - atrFloor
		if level, ok := levels.nearestBelowBuffered(entry, bufferPips*pip); ok {
			slSR := level - bufferPips*pip
			return math.Max(slSR, slATR)
		}
		return slATR
	}

	slATR := entry + atrFloor
	if level, ok := levels.nearestAboveBuffered(entry, bufferPips*pip); ok {
		slSR := level + bufferPips*pip
		return math.Min(slSR, slATR)
	}
	return slATR
}

// computeTakeProfit derives the three ATR-multiple targets (entry ±
// atr*ratio), snapping each to the nearest unbuffered level on the profit
// side when one falls within atr*0.5 of the raw target, else keeping the
// ATR target as-is (three_gate_engine.py:_calculate_take_profit:1480-1507).
// Monotonicity (spec P6) is then enforced by reverting any snapped target
// that would violate strict ordering back to its own ATR target, rather
// than nudging it by a fixed pip amount.
func computeTakeProfit(entry, atr float64, signal domain.SignalType, levels srLevels) [3]float64 {
	var targets [3]float64
	const snapTolerance = 0.5

	for i, ratio := range takeProfitRatios {
		if signal == domain.SignalBuy {
			atrTP := entry + atr*ratio
			target := atrTP
			if level, ok := levels.nearestAbove(entry); ok && math.Abs(level-atrTP) < atr*snapTolerance {
				target = level
			}
			targets[i] = target
		} else {
			atrTP := entry - atr*ratio
			target := atrTP
			if level, ok := levels.nearestBelow(entry); ok && math.Abs(level-atrTP) < atr*snapTolerance {
				target = level
			}
			targets[i] = target
		}
	}

	enforceMonotonic(&targets, entry, atr, signal)
	return targets
}

// enforceMonotonic reverts any target that does not strictly extend further
// from entry than the previous one back to its own ATR multiple, undoing a
// level-snap that collapsed two targets together rather than nudging by a
// fixed pip amount (spec P6).
func enforceMonotonic(targets *[3]float64, entry, atr float64, signal domain.SignalType) {
	for i := 1; i < len(targets); i++ {
		ratio := takeProfitRatios[i]
		if signal == domain.SignalBuy {
			if targets[i] <= targets[i-1] {
				targets[i] = entry + atr*ratio
			}
		} else {
			if targets[i] >= targets[i-1] {
				targets[i] = entry - atr*ratio
			}
		}
	}
}
