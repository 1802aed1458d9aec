package geo

// rangeStep maps a minimum average SNR to an estimated coverage radius.
type rangeStep struct {
	minSnrDb float64
	meters   float64
}

// Approximate field calibration for LoRa mesh links, not a propagation model.
// Higher SNR means the peers are close, so the estimated radius shrinks.
var rangeSteps = []rangeStep{
	{minSnrDb: 10, meters: 500},
	{minSnrDb: 5, meters: 1000},
	{minSnrDb: 0, meters: 2000},
	{minSnrDb: -5, meters: 3000},
	{minSnrDb: -10, meters: 5000},
}

const maxEstimatedRangeMeters = 7000

// EstimateRangeMeters returns an approximate coverage radius for an average SNR.
// The result is non-increasing as SNR rises.
func EstimateRangeMeters(avgSnrDb float64) float64 {
	for _, step := range rangeSteps {
		if avgSnrDb >= step.minSnrDb {
			return step.meters
		}
	}
	return maxEstimatedRangeMeters
}
