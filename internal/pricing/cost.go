// Package pricing computes the deterministic credit cost of a generation.
// Compute has no side effects; the same settings always yield the same
// cost. The authoritative call happens once at admission, speculative
// calls from the cost endpoint share the exact same code path.
package pricing

import (
	"math"

	"vidforge/internal/domain"
)

// upscalingSurcharge is the flat multiplier applied when upscaling is on.
const upscalingSurcharge = 1.5

// Cost is the immutable breakdown of one quote.
type Cost struct {
	BaseCredits          int     `json:"base_credits"`
	ResolutionMultiplier float64 `json:"resolution_multiplier"`
	DurationMultiplier   float64 `json:"duration_multiplier"`
	QualityMultiplier    float64 `json:"quality_multiplier"`
	TotalCredits         int     `json:"total_credits"`
	USDCost              float64 `json:"usd_cost"`
}

// Config holds the externally configured pricing knobs.
type Config struct {
	BaseCredits        int
	CreditUnitPriceUSD float64
}

// Model quotes generation costs from a fixed configuration.
type Model struct {
	cfg Config
}

func NewModel(cfg Config) *Model {
	if cfg.BaseCredits <= 0 {
		cfg.BaseCredits = 10
	}
	if cfg.CreditUnitPriceUSD <= 0 {
		cfg.CreditUnitPriceUSD = 0.05
	}
	return &Model{cfg: cfg}
}

// Compute quotes the cost for the given settings.
//
// total = base x resolution x duration x quality, +50% when upscaling is
// enabled, rounded up to a whole credit.
func (m *Model) Compute(settings domain.GenerationSettings) Cost {
	rm := resolutionMultiplier(settings.Resolution)
	dm := durationMultiplier(settings.DurationSeconds)
	qm := qualityMultiplier(settings.Quality)

	raw := float64(m.cfg.BaseCredits) * rm * dm * qm
	if settings.EnableUpscaling {
		raw *= upscalingSurcharge
	}
	total := int(math.Ceil(raw))

	return Cost{
		BaseCredits:          m.cfg.BaseCredits,
		ResolutionMultiplier: rm,
		DurationMultiplier:   dm,
		QualityMultiplier:    qm,
		TotalCredits:         total,
		USDCost:              float64(total) * m.cfg.CreditUnitPriceUSD,
	}
}

func resolutionMultiplier(resolution string) float64 {
	switch resolution {
	case "480p":
		return 0.5
	case "1080p":
		return 1.5
	case "4k":
		return 3.0
	default: // 720p
		return 1.0
	}
}

func durationMultiplier(seconds int) float64 {
	switch seconds {
	case 5:
		return 0.5
	case 30:
		return 2.5
	default: // 10
		return 1.0
	}
}

func qualityMultiplier(quality string) float64 {
	switch quality {
	case "draft":
		return 0.5
	case "high":
		return 1.5
	default: // balanced
		return 1.0
	}
}
