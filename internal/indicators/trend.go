package indicators

// MACD computes the MACD line, signal line, and histogram from the
// standard 12/26/9 EMA periods.
func MACD(bars []PriceBar) (line, signal, histogram Series) {
	c := closes(bars)
	fast := ema(c, 12)
	slow := ema(c, 26)
	if len(fast) == 0 || len(slow) == 0 {
		return Series{}, Series{}, Series{}
	}
	// Align fast/slow to the same trailing window (slow starts later).
	offset := len(fast) - len(slow)
	line = make(Series, len(slow))
	for i := range slow {
		line[i] = fast[i+offset] - slow[i]
	}
	signal = ema(line, 9)
	if len(signal) == 0 {
		return line, Series{}, Series{}
	}
	histOffset := len(line) - len(signal)
	histogram = make(Series, len(signal))
	for i := range signal {
		histogram[i] = line[i+histOffset] - signal[i]
	}
	return line, signal, histogram
}

// directionalMovement computes Wilder's +DI/-DI/ADX/ADXR family.
func directionalMovement(bars []PriceBar, period int) (plusDI, minusDI, adx, adxr Series) {
	if len(bars) < period+1 {
		return Series{}, Series{}, Series{}, Series{}
	}
	trs := make([]float64, 0, len(bars)-1)
	plusDM := make([]float64, 0, len(bars)-1)
	minusDM := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		cur, prev := bars[i], bars[i-1]
		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low

		tr := cur.High - cur.Low
		if v := abs(cur.High - prev.Close); v > tr {
			tr = v
		}
		if v := abs(cur.Low - prev.Close); v > tr {
			tr = v
		}
		trs = append(trs, tr)

		pdm, mdm := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			pdm = upMove
		}
		if downMove > upMove && downMove > 0 {
			mdm = downMove
		}
		plusDM = append(plusDM, pdm)
		minusDM = append(minusDM, mdm)
	}

	smoothedTR := wilderSmooth(trs, period)
	smoothedPlusDM := wilderSmooth(plusDM, period)
	smoothedMinusDM := wilderSmooth(minusDM, period)
	n := min3(len(smoothedTR), len(smoothedPlusDM), len(smoothedMinusDM))

	dx := make([]float64, 0, n)
	plusDI = make(Series, 0, n)
	minusDI = make(Series, 0, n)
	for i := 0; i < n; i++ {
		tr := smoothedTR[i]
		if tr == 0 {
			plusDI = append(plusDI, 0)
			minusDI = append(minusDI, 0)
			dx = append(dx, 0)
			continue
		}
		pdi := 100.0 * smoothedPlusDM[i] / tr
		mdi := 100.0 * smoothedMinusDM[i] / tr
		plusDI = append(plusDI, pdi)
		minusDI = append(minusDI, mdi)

		sum := pdi + mdi
		if sum == 0 {
			dx = append(dx, 0)
			continue
		}
		dx = append(dx, 100.0*abs(pdi-mdi)/sum)
	}

	adx = wilderSmooth(dx, period)
	// ADXR is the average of the current ADX and the ADX from `period` bars
	// earlier, per Wilder's original definition.
	if len(adx) > period {
		adxr = make(Series, len(adx)-period)
		for i := period; i < len(adx); i++ {
			adxr[i-period] = (adx[i] + adx[i-period]) / 2.0
		}
	}
	return plusDI, minusDI, adx, adxr
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// TrendDirection classifies the latest EMA/ADX readings into a coarse
// regime label used by the Indicator Snapshot (spec §3.3).
func TrendDirection(ema21, ema55 Series, adx Series) string {
	if len(ema21) == 0 || len(ema55) == 0 {
		return "SIDEWAYS"
	}
	fast, slow := ema21.Last(), ema55.Last()
	strength := 0.0
	if len(adx) > 0 {
		strength = adx.Last()
	}
	if strength < 20 {
		return "SIDEWAYS"
	}
	if fast > slow {
		return "BULLISH"
	}
	if fast < slow {
		return "BEARISH"
	}
	return "SIDEWAYS"
}
