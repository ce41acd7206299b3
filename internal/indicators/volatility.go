package indicators

import "math"

// ATR computes the Average True Range via Wilder's smoothing.
func ATR(bars []PriceBar, period int) Series {
	if len(bars) < period+1 {
		return Series{}
	}
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		cur, prev := bars[i], bars[i-1]
		tr := cur.High - cur.Low
		if v := abs(cur.High - prev.Close); v > tr {
			tr = v
		}
		if v := abs(cur.Low - prev.Close); v > tr {
			tr = v
		}
		trs = append(trs, tr)
	}
	return wilderSmooth(trs, period)
}

// BollingerBands computes the upper/middle/lower bands (SMA ± k*stddev),
// the position of the latest close within the band (0=lower, 1=upper), and
// the normalized band width.
func BollingerBands(bars []PriceBar, period int, k float64) (upper, middle, lower, position, width Series) {
	c := closes(bars)
	middle = sma(c, period)
	if len(middle) == 0 {
		return Series{}, Series{}, Series{}, Series{}, Series{}
	}
	upper = make(Series, len(middle))
	lower = make(Series, len(middle))
	width = make(Series, len(middle))
	position = make(Series, len(middle))
	for i := range middle {
		window := c[i : i+period]
		mean := middle[i]
		sumSq := 0.0
		for _, v := range window {
			d := v - mean
			sumSq += d * d
		}
		std := math.Sqrt(sumSq / float64(period))
		upper[i] = mean + k*std
		lower[i] = mean - k*std
		if upper[i] == lower[i] {
			width[i] = 0
			position[i] = 0.5
		} else {
			width[i] = (upper[i] - lower[i]) / mean
			last := window[len(window)-1]
			position[i] = (last - lower[i]) / (upper[i] - lower[i])
		}
	}
	return upper, middle, lower, position, width
}

// VolatilityState classifies the latest Bollinger band width into a
// high/normal/low label relative to its own recent history.
func VolatilityState(width Series) string {
	if len(width) < 20 {
		return "NORMAL"
	}
	recent := width.Tail(20)
	avg := 0.0
	for _, v := range recent {
		avg += v
	}
	avg /= float64(len(recent))
	cur := width.Last()
	switch {
	case cur > avg*1.3:
		return "HIGH"
	case cur < avg*0.7:
		return "LOW"
	default:
		return "NORMAL"
	}
}
