package classify

// HopTierColor returns the fill color for an indirect coverage tier key
// ("hop_2", "hop_3", "hop_4_plus").
func HopTierColor(tier string) string {
	switch tier {
	case "hop_2":
		return "#3b82f6"
	case "hop_3":
		return "#a855f7"
	case "hop_4_plus":
		return "#f97316"
	default:
		return tierColors[TierUnknown]
	}
}

// CircleColor colors a signal-range circle by how much the estimate can be trusted.
func CircleColor(c Confidence) string {
	switch c {
	case ConfidenceHigh:
		return tierColors[TierGood]
	case ConfidenceMedium:
		return tierColors[TierFair]
	default:
		return tierColors[TierUnknown]
	}
}
