package indicators

// CandleShape carries the per-bar body/shadow measurements and the
// one-bar-lag counterparts referenced by spec §3.3.
type CandleShape struct {
	Body        Series
	UpperShadow Series
	LowerShadow Series
	Bullish     Series // 1.0/0.0 flag per bar
	Bearish     Series // 1.0/0.0 flag per bar
}

// ComputeCandleShape derives body/shadow series for every bar in the window.
func ComputeCandleShape(bars []PriceBar) CandleShape {
	n := len(bars)
	shape := CandleShape{
		Body:        make(Series, n),
		UpperShadow: make(Series, n),
		LowerShadow: make(Series, n),
		Bullish:     make(Series, n),
		Bearish:     make(Series, n),
	}
	for i, b := range bars {
		shape.Body[i] = abs(b.Close - b.Open)
		top := b.Close
		bottom := b.Open
		if b.Open > b.Close {
			top, bottom = b.Open, b.Close
		}
		shape.UpperShadow[i] = b.High - top
		shape.LowerShadow[i] = bottom - b.Low
		if b.Close > b.Open {
			shape.Bullish[i] = 1
		} else {
			shape.Bearish[i] = 1
		}
	}
	return shape
}
