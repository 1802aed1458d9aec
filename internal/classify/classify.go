// Package classify maps link telemetry to presentation tiers and line styles.
package classify

import (
	"math"
	"strings"
)

type ColorTier string

const (
	TierUnknown ColorTier = "unknown"
	TierGood    ColorTier = "good"
	TierFair    ColorTier = "fair"
	TierPoor    ColorTier = "poor"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

const (
	goodRSSI = -110.0
	goodSNR  = 0.0
	fairRSSI = -120.0
	fairSNR  = -5.0

	highObservations   = 20
	mediumObservations = 5
)

var tierColors = map[ColorTier]string{
	TierGood:    "#22c55e",
	TierFair:    "#eab308",
	TierPoor:    "#ef4444",
	TierUnknown: "#9ca3af",
}

// ConnectionColorTier classifies a link by RSSI and optional SNR. The good
// check runs before fair; a missing RSSI is always unknown.
func ConnectionColorTier(rssi, snr *float64) ColorTier {
	if rssi == nil {
		return TierUnknown
	}
	if *rssi > goodRSSI && (snr == nil || *snr > goodSNR) {
		return TierGood
	}
	if *rssi > fairRSSI && (snr == nil || *snr > fairSNR) {
		return TierFair
	}
	return TierPoor
}

// Color returns the hex color for a tier.
func (t ColorTier) Color() string {
	if c, ok := tierColors[t]; ok {
		return c
	}
	return tierColors[TierUnknown]
}

// LineStyle is the stroke used for a direct connection.
type LineStyle struct {
	Weight    int    `json:"weight"`
	Dashed    bool   `json:"dashed"`
	DashArray string `json:"dash_array,omitempty"`
}

// LineStyleForConfidence maps upstream link confidence to a stroke. Anything
// unrecognised is drawn as low confidence.
func LineStyleForConfidence(c Confidence) LineStyle {
	switch NormalizeConfidence(string(c)) {
	case ConfidenceHigh:
		return LineStyle{Weight: 6}
	case ConfidenceMedium:
		return LineStyle{Weight: 4, Dashed: true, DashArray: "8, 8"}
	default:
		return LineStyle{Weight: 2, Dashed: true, DashArray: "4, 12"}
	}
}

// ObservationConfidence grades an aggregated signal estimate by packet volume.
// It is independent of the confidence attached to a direct connection.
func ObservationConfidence(packetCount int) Confidence {
	switch {
	case packetCount >= highObservations:
		return ConfidenceHigh
	case packetCount >= mediumObservations:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// NormalizeConfidence canonicalizes a confidence label; unknown labels become low.
func NormalizeConfidence(raw string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(raw))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// LinkQualityScore returns a 0-100 display score: 40% SNR, 40% RSSI and 20%
// packet reliability. Missing readings contribute nothing.
func LinkQualityScore(snr, rssi *float64, packetCount int) float64 {
	score := 0.0
	if snr != nil {
		// SNR typically spans -20..+20 dB.
		score += clamp((*snr+20)*2.5, 0, 100) * 0.4
	}
	if rssi != nil {
		// RSSI typically spans -120..-30 dBm.
		score += clamp((*rssi+120)*1.11, 0, 100) * 0.4
	}
	score += math.Min(100, float64(packetCount)*2) * 0.2
	return math.Round(score*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
