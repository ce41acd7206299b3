package indicators

// OBV computes the On-Balance Volume running total.
func OBV(bars []PriceBar) Series {
	if len(bars) == 0 {
		return Series{}
	}
	out := make(Series, len(bars))
	out[0] = float64(bars[0].Volume)
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			out[i] = out[i-1] + float64(bars[i].Volume)
		case bars[i].Close < bars[i-1].Close:
			out[i] = out[i-1] - float64(bars[i].Volume)
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// VolumeRatio divides the latest bar's volume by its SMA.
func VolumeRatio(bars []PriceBar, smaPeriod int) Series {
	vols := volumes(bars)
	avg := sma(vols, smaPeriod)
	if len(avg) == 0 {
		return Series{}
	}
	offset := len(vols) - len(avg)
	out := make(Series, len(avg))
	for i := range avg {
		if avg[i] == 0 {
			out[i] = 1
			continue
		}
		out[i] = vols[i+offset] / avg[i]
	}
	return out
}

// VolumeState classifies the latest volume ratio into a label.
func VolumeState(ratio Series) string {
	if len(ratio) == 0 {
		return "NORMAL"
	}
	v := ratio.Last()
	switch {
	case v >= 1.5:
		return "HIGH"
	case v <= 0.5:
		return "LOW"
	default:
		return "NORMAL"
	}
}
