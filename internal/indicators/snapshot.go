package indicators

// Snapshot is one timeframe's slice of the Indicator Snapshot (spec §3.3):
// every numeric indicator as a Series (scalar indicators are a 1-element
// Series) plus the derived categorical labels.
type Snapshot struct {
	Values          map[string]Series
	TrendDirection  string
	MomentumState   string
	VolatilityState string
	VolumeState     string
}

// minBarsForSnapshot is the minimum history Compute accepts. The longest
// lookback in Compute is 200 bars (EMA_200, SMA_200); the floor is set above
// that, at 250.
const minBarsForSnapshot = 250

// Compute builds the full indicator set for one timeframe's bar history.
// bars must be chronological, oldest first. Returns ok=false if there are
// fewer than minBarsForSnapshot bars (the caller should skip this timeframe
// rather than emit a snapshot of all-zero indicators).
func Compute(bars []PriceBar) (Snapshot, bool) {
	if len(bars) < minBarsForSnapshot {
		return Snapshot{}, false
	}
	c := closes(bars)
	values := map[string]Series{}

	values["EMA_21"] = ema(c, 21)
	values["EMA_55"] = ema(c, 55)
	values["EMA_200"] = ema(c, 200)
	values["SMA_20"] = sma(c, 20)
	values["SMA_50"] = sma(c, 50)
	values["SMA_200"] = sma(c, 200)

	macdLine, macdSignal, macdHist := MACD(bars)
	values["MACD"] = macdLine
	values["MACD_Signal"] = macdSignal
	values["MACD_Histogram"] = macdHist

	_, _, adx, adxr := directionalMovement(bars, 14)
	values["ADX"] = adx
	values["ADXR"] = adxr

	values["RSI_7"] = RSI(bars, 7)
	values["RSI_14"] = RSI(bars, 14)
	values["RSI_21"] = RSI(bars, 21)

	stochK, stochD := Stochastic(bars, 14)
	values["Stochastic_K"] = stochK
	values["Stochastic_D"] = stochD
	values["Williams_R"] = WilliamsR(bars, 14)

	values["ATR_14"] = ATR(bars, 14)
	values["ATR_21"] = ATR(bars, 21)

	bbUpper, bbMiddle, bbLower, bbPos, bbWidth := BollingerBands(bars, 20, 2.0)
	values["BB_Upper"] = bbUpper
	values["BB_Middle"] = bbMiddle
	values["BB_Lower"] = bbLower
	values["BB_Position"] = bbPos
	values["bollinger_width"] = bbWidth

	values["Volume_SMA_20"] = sma(volumes(bars), 20)
	values["Volume_SMA_50"] = sma(volumes(bars), 50)
	values["Volume_Ratio"] = VolumeRatio(bars, 20)
	values["OBV"] = OBV(bars)

	fib := ComputeFibonacci(bars, 100)
	for k, v := range fib.Retracement {
		values[k] = Series{v}
	}
	for k, v := range fib.Extension {
		values[k] = Series{v}
	}

	candle := ComputeCandleShape(bars)
	values["candle_body"] = candle.Body
	values["candle_upper_shadow"] = candle.UpperShadow
	values["candle_lower_shadow"] = candle.LowerShadow
	values["candle_bullish"] = candle.Bullish
	values["candle_bearish"] = candle.Bearish

	snap := Snapshot{
		Values:          values,
		TrendDirection:  TrendDirection(values["EMA_21"], values["EMA_55"], values["ADX"]),
		MomentumState:   MomentumState(values["RSI_14"]),
		VolatilityState: VolatilityState(values["bollinger_width"]),
		VolumeState:     VolumeState(values["Volume_Ratio"]),
	}
	return snap, true
}
