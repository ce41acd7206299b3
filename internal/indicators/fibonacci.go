package indicators

// FibonacciLevels computes retracement and extension levels from the
// highest high and lowest low in the lookback window (spec §4.3.6 names
// Fib_0.236 ... Fib_0.786 as retracements and Fib_1.272 ... Fib_2.0 as
// extensions).
type FibonacciLevels struct {
	Retracement map[string]float64
	Extension   map[string]float64
}

var retracementRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}
var extensionRatios = []float64{1.272, 1.414, 1.618, 2.0}

// ComputeFibonacci derives levels from the swing high/low over the given
// lookback window, always treating the swing as running low-to-high:
// retracements are high - span*ratio (below the high) and extensions are
// low + span*ratio (above the high). There is no direction parameter.
func ComputeFibonacci(bars []PriceBar, lookback int) FibonacciLevels {
	levels := FibonacciLevels{
		Retracement: make(map[string]float64, len(retracementRatios)),
		Extension:   make(map[string]float64, len(extensionRatios)),
	}
	if len(bars) == 0 {
		return levels
	}
	if lookback <= 0 || lookback > len(bars) {
		lookback = len(bars)
	}
	window := bars[len(bars)-lookback:]
	hi, lo := window[0].High, window[0].Low
	for _, b := range window {
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}
	span := hi - lo
	for _, r := range retracementRatios {
		levels.Retracement[fibKey(r)] = hi - span*r
	}
	for _, r := range extensionRatios {
		levels.Extension[fibKey(r)] = lo + span*r
	}
	return levels
}

func fibKey(ratio float64) string {
	switch ratio {
	case 0.236:
		return "Fib_0.236"
	case 0.382:
		return "Fib_0.382"
	case 0.5:
		return "Fib_0.5"
	case 0.618:
		return "Fib_0.618"
	case 0.786:
		return "Fib_0.786"
	case 1.272:
		return "Fib_1.272"
	case 1.414:
		return "Fib_1.414"
	case 1.618:
		return "Fib_1.618"
	case 2.0:
		return "Fib_2.0"
	default:
		return "Fib_unknown"
	}
}
