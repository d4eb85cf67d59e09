package monitor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatRate(t *testing.T) {
	tests := []struct {
		name      string
		perMinute float64
		want      string
	}{
		{"idle", 0, "0.0 q/min"},
		{"busy", 45.67, "45.7 q/min"},
		{"counter reset", -3, "n/a"},
		{"nan", math.NaN(), "n/a"},
		{"inf", math.Inf(1), "n/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRate(tt.perMinute))
		})
	}
}

func TestFormatQueryTime(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"hash embedder", 0.00042, "420µs"},
		{"zero", 0, "0µs"},
		{"local model", 0.0123, "12.3ms"},
		{"remote model", 1.234, "1.23s"},
		{"negative", -0.5, "n/a"},
		{"nan", math.NaN(), "n/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatQueryTime(tt.seconds))
		})
	}
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "0.312 / 0.40", FormatDistance(0.3123, 0.40))
	assert.Equal(t, "0.550 / 0.35", FormatDistance(0.55, 0.35))
	assert.Equal(t, "n/a / 0.40", FormatDistance(0, 0.40), "no queries yet")
	assert.Equal(t, "n/a / 0.40", FormatDistance(math.NaN(), 0.40))
}

func TestFormatRatio(t *testing.T) {
	assert.Equal(t, "25.0% (1 of 4)", FormatRatio(1, 4))
	assert.Equal(t, "100.0% (7 of 7)", FormatRatio(7, 7))
	assert.Equal(t, "0.0% (0 of 0)", FormatRatio(0, 0))
}

func TestFormatMemoryMB(t *testing.T) {
	tests := []struct {
		name string
		mb   float64
		want string
	}{
		{"typical", 24.5, "24.5 MB"},
		{"large", 1536, "1.50 GB"},
		{"tiny", 0.5, "512 KB"},
		{"negative", -1, "n/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMemoryMB(tt.mb))
		})
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{40, "40s"},
		{900, "15m"},
		{8100, "2h 15m"},
		{7200, "2h 0m"},
		{3*86400 + 4*3600 + 59, "3d 4h"},
		{-5, "0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUptime(tt.seconds), "%d seconds", tt.seconds)
	}
}
