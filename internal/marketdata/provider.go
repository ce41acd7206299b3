// Package marketdata defines the pull-based price feed the collector polls
// on its fixed schedule, and an HTTP client implementation grounded on the
// teacher's exchange providers (src/infrastructure/providers/kraken.go):
// a plain net/http.Client with a context-scoped request and a JSON decode,
// no streaming transport.
package marketdata

import (
	"context"
	"time"

	"github.com/m37335/threegate/internal/domain"
)

// Provider fetches historical OHLCV bars for one symbol/timeframe pair
// within [from, to]. Implementations must return bars in ascending
// timestamp order.
type Provider interface {
	Name() string
	FetchBars(ctx context.Context, symbol string, timeframe domain.Timeframe, from, to time.Time) ([]domain.Bar, error)
}
