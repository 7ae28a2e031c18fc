package cloud

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is a voice pricing tier.
type Tier string

const (
	TierStandard Tier = "standard"
	TierWaveNet  Tier = "wavenet"
	TierNeural2  Tier = "neural2"
	TierStudio   Tier = "studio"
)

// Price per million characters in USD.
var pricePerMillion = map[Tier]decimal.Decimal{
	TierStandard: decimal.NewFromInt(4),
	TierWaveNet:  decimal.NewFromInt(16),
	TierNeural2:  decimal.NewFromInt(16),
	TierStudio:   decimal.NewFromInt(160),
}

// TierOf classifies a voice by name.
func TierOf(voiceName string) Tier {
	name := strings.ToLower(voiceName)
	switch {
	case strings.Contains(name, "studio"):
		return TierStudio
	case strings.Contains(name, "neural2"):
		return TierNeural2
	case strings.Contains(name, "wavenet"):
		return TierWaveNet
	default:
		return TierStandard
	}
}

// EstimateCost returns the USD cost of synthesizing chars characters with
// the named voice, rounded to cents.
func EstimateCost(voiceName string, chars int) decimal.Decimal {
	if chars <= 0 {
		return decimal.Zero
	}
	price := pricePerMillion[TierOf(voiceName)]
	return price.Mul(decimal.NewFromInt(int64(chars))).
		Div(decimal.NewFromInt(1_000_000)).
		Round(2)
}
