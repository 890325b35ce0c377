package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidforge/internal/domain"
)

func TestComputeBaseline(t *testing.T) {
	m := NewModel(Config{BaseCredits: 10, CreditUnitPriceUSD: 0.05})

	cost := m.Compute(domain.GenerationSettings{
		Resolution:      "720p",
		DurationSeconds: 10,
		Quality:         "balanced",
	})

	require.Equal(t, 10, cost.TotalCredits)
	assert.Equal(t, 10, cost.BaseCredits)
	assert.Equal(t, 1.0, cost.ResolutionMultiplier)
	assert.Equal(t, 1.0, cost.DurationMultiplier)
	assert.Equal(t, 1.0, cost.QualityMultiplier)
	assert.InDelta(t, 0.50, cost.USDCost, 1e-9)
}

func TestComputeMultipliers(t *testing.T) {
	m := NewModel(Config{BaseCredits: 10, CreditUnitPriceUSD: 0.05})

	tests := []struct {
		name     string
		settings domain.GenerationSettings
		want     int
	}{
		{
			name:     "cheapest combination",
			settings: domain.GenerationSettings{Resolution: "480p", DurationSeconds: 5, Quality: "draft"},
			want:     2, // 10 * 0.5 * 0.5 * 0.5 = 1.25, ceil
		},
		{
			name:     "4k thirty seconds high",
			settings: domain.GenerationSettings{Resolution: "4k", DurationSeconds: 30, Quality: "high"},
			want:     113, // 10 * 3 * 2.5 * 1.5 = 112.5, ceil
		},
		{
			name:     "1080p balanced",
			settings: domain.GenerationSettings{Resolution: "1080p", DurationSeconds: 10, Quality: "balanced"},
			want:     15,
		},
		{
			name: "upscaling surcharge",
			settings: domain.GenerationSettings{
				Resolution: "720p", DurationSeconds: 10, Quality: "balanced",
				EnableUpscaling: true,
			},
			want: 15, // 10 * 1.5
		},
		{
			name: "surcharge rounds up",
			settings: domain.GenerationSettings{
				Resolution: "480p", DurationSeconds: 5, Quality: "draft",
				EnableUpscaling: true,
			},
			want: 2, // 1.25 * 1.5 = 1.875, ceil
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Compute(tt.settings).TotalCredits)
		})
	}
}

func TestComputeDeterministic(t *testing.T) {
	m := NewModel(Config{BaseCredits: 10, CreditUnitPriceUSD: 0.05})
	settings := domain.GenerationSettings{Resolution: "1080p", DurationSeconds: 30, Quality: "high"}

	first := m.Compute(settings)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Compute(settings))
	}
}

func TestNewModelDefaults(t *testing.T) {
	m := NewModel(Config{})

	cost := m.Compute(domain.GenerationSettings{
		Resolution: "720p", DurationSeconds: 10, Quality: "balanced",
	})
	assert.Equal(t, 10, cost.TotalCredits)
	assert.InDelta(t, 0.50, cost.USDCost, 1e-9)
}
