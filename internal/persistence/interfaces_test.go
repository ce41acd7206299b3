package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m37335/threegate/internal/domain"
)

func TestTimeRange_Validation(t *testing.T) {
	tests := []struct {
		name  string
		tr    TimeRange
		valid bool
	}{
		{
			name: "valid_range",
			tr: TimeRange{
				From: time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 9, 7, 11, 0, 0, 0, time.UTC),
			},
			valid: true,
		},
		{
			name: "same_time",
			tr: TimeRange{
				From: time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
			},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.tr)
			if tt.valid {
				assert.True(t, tt.tr.To.After(tt.tr.From) || tt.tr.To.Equal(tt.tr.From))
			}
		})
	}
}

func TestBar_WellFormed(t *testing.T) {
	valid := domain.Bar{
		Symbol: "USDJPY", Timeframe: domain.TF1h,
		Timestamp: time.Now(), Open: 150.0, High: 150.5, Low: 149.8, Close: 150.2,
		Volume: 1000,
	}
	assert.True(t, valid.WellFormed())

	malformed := valid
	malformed.High = 149.0 // below close
	assert.False(t, malformed.WellFormed())

	negativeVolume := valid
	negativeVolume.Volume = -1
	assert.False(t, negativeVolume.WellFormed())
}

func TestHealthCheck_Structure(t *testing.T) {
	healthCheck := HealthCheck{
		Healthy: true,
		Errors:  []string{},
		ConnectionPool: map[string]int{
			"active": 5,
			"idle":   10,
			"max":    20,
		},
		LastCheck:      time.Now(),
		ResponseTimeMS: 45,
	}

	t.Run("valid_health_check", func(t *testing.T) {
		assert.True(t, healthCheck.Healthy)
		assert.Empty(t, healthCheck.Errors)
		assert.Contains(t, healthCheck.ConnectionPool, "active")
		require.Greater(t, healthCheck.ResponseTimeMS, int64(0))
	})
}
