package scoring

// PriceNormalizer min-max scales a price series into [0,1] against the
// window it was built from, so price_norm is comparable across both
// training and planning windows without baking a global constant into the
// formulas.
type PriceNormalizer struct {
	min, max float64
}

// NewPriceNormalizer computes the min/max of prices. A degenerate window
// (all prices equal) normalizes everything to 0.
func NewPriceNormalizer(prices []float64) PriceNormalizer {
	if len(prices) == 0 {
		return PriceNormalizer{}
	}
	min, max := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	return PriceNormalizer{min: min, max: max}
}

// Normalize returns price scaled into [0,1] relative to the window
// NewPriceNormalizer was built from.
func (n PriceNormalizer) Normalize(price float64) float64 {
	if n.max <= n.min {
		return 0
	}
	v := (price - n.min) / (n.max - n.min)
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
