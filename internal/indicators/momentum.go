package indicators

// RSI computes the Relative Strength Index via Wilder's smoothing.
func RSI(bars []PriceBar, period int) Series {
	c := closes(bars)
	if len(c) < period+1 {
		return Series{}
	}
	gains := make([]float64, 0, len(c)-1)
	losses := make([]float64, 0, len(c)-1)
	for i := 1; i < len(c); i++ {
		delta := c[i] - c[i-1]
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}
	avgGain := wilderSmooth(gains, period)
	avgLoss := wilderSmooth(losses, period)
	n := min3(len(avgGain), len(avgLoss), len(avgGain))
	out := make(Series, 0, n)
	for i := 0; i < n; i++ {
		if avgLoss[i] == 0 {
			out = append(out, 100)
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out = append(out, 100-(100/(1+rs)))
	}
	return out
}

// Stochastic computes %K (fast) and %D (the 3-period SMA of %K).
func Stochastic(bars []PriceBar, period int) (k, d Series) {
	if len(bars) < period {
		return Series{}, Series{}
	}
	k = make(Series, 0, len(bars)-period+1)
	for i := period - 1; i < len(bars); i++ {
		window := bars[i-period+1 : i+1]
		hi, lo := window[0].High, window[0].Low
		for _, b := range window {
			if b.High > hi {
				hi = b.High
			}
			if b.Low < lo {
				lo = b.Low
			}
		}
		if hi == lo {
			k = append(k, 50)
			continue
		}
		k = append(k, 100*(bars[i].Close-lo)/(hi-lo))
	}
	d = sma(k, 3)
	return k, d
}

// WilliamsR computes the Williams %R oscillator.
func WilliamsR(bars []PriceBar, period int) Series {
	if len(bars) < period {
		return Series{}
	}
	out := make(Series, 0, len(bars)-period+1)
	for i := period - 1; i < len(bars); i++ {
		window := bars[i-period+1 : i+1]
		hi, lo := window[0].High, window[0].Low
		for _, b := range window {
			if b.High > hi {
				hi = b.High
			}
			if b.Low < lo {
				lo = b.Low
			}
		}
		if hi == lo {
			out = append(out, -50)
			continue
		}
		out = append(out, -100*(hi-bars[i].Close)/(hi-lo))
	}
	return out
}

// MomentumState classifies the latest RSI_14 reading into an overbought /
// oversold / neutral label.
func MomentumState(rsi14 Series) string {
	if len(rsi14) == 0 {
		return "NEUTRAL"
	}
	v := rsi14.Last()
	switch {
	case v >= 70:
		return "OVERBOUGHT"
	case v <= 30:
		return "OVERSOLD"
	default:
		return "NEUTRAL"
	}
}
