package classify

import "testing"

func f(v float64) *float64 { return &v }

func TestConnectionColorTier(t *testing.T) {
	cases := []struct {
		name string
		rssi *float64
		snr  *float64
		want ColorTier
	}{
		{name: "good", rssi: f(-105), snr: f(2), want: TierGood},
		{name: "fair", rssi: f(-115), snr: f(-3), want: TierFair},
		{name: "poor", rssi: f(-125), snr: f(-20), want: TierPoor},
		{name: "missing rssi", rssi: nil, snr: f(10), want: TierUnknown},
		{name: "good without snr", rssi: f(-90), snr: nil, want: TierGood},
		{name: "strong rssi weak snr falls to fair", rssi: f(-100), snr: f(-2), want: TierFair},
		{name: "strong rssi very weak snr is poor", rssi: f(-100), snr: f(-8), want: TierPoor},
		{name: "rssi boundary is exclusive", rssi: f(-110), snr: f(5), want: TierFair},
		{name: "fair boundary is exclusive", rssi: f(-120), snr: nil, want: TierPoor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ConnectionColorTier(tc.rssi, tc.snr); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestColorTier_Color(t *testing.T) {
	if TierGood.Color() == TierPoor.Color() {
		t.Fatalf("expected distinct colors for good and poor")
	}
	if ColorTier("bogus").Color() != TierUnknown.Color() {
		t.Fatalf("expected unknown color for unrecognised tier")
	}
}

func TestLineStyleForConfidence(t *testing.T) {
	high := LineStyleForConfidence(ConfidenceHigh)
	if high.Weight != 6 || high.Dashed {
		t.Fatalf("expected solid weight 6, got %+v", high)
	}
	medium := LineStyleForConfidence(ConfidenceMedium)
	if medium.Weight != 4 || !medium.Dashed {
		t.Fatalf("expected dashed weight 4, got %+v", medium)
	}
	low := LineStyleForConfidence(ConfidenceLow)
	if low.Weight != 2 || !low.Dashed {
		t.Fatalf("expected dashed weight 2, got %+v", low)
	}
	if low.DashArray == medium.DashArray {
		t.Fatalf("expected low confidence to use a sparser dash than medium")
	}
	if got := LineStyleForConfidence("mystery"); got != low {
		t.Fatalf("expected unknown confidence to use low style, got %+v", got)
	}
	if got := LineStyleForConfidence(" HIGH "); got != high {
		t.Fatalf("expected case-insensitive confidence, got %+v", got)
	}
}

func TestObservationConfidence(t *testing.T) {
	cases := map[int]Confidence{
		0:  ConfidenceLow,
		4:  ConfidenceLow,
		5:  ConfidenceMedium,
		19: ConfidenceMedium,
		20: ConfidenceHigh,
		25: ConfidenceHigh,
	}
	for packets, want := range cases {
		if got := ObservationConfidence(packets); got != want {
			t.Fatalf("ObservationConfidence(%d): expected %q, got %q", packets, want, got)
		}
	}
}

func TestLinkQualityScore(t *testing.T) {
	if got := LinkQualityScore(nil, nil, 0); got != 0 {
		t.Fatalf("expected 0 with no readings, got %v", got)
	}
	// snr 0 -> 50*0.4=20, rssi -75 -> 49.95*0.4=19.98, 10 packets -> 20*0.2=4
	if got := LinkQualityScore(f(0), f(-75), 10); got != 43.98 {
		t.Fatalf("expected 43.98, got %v", got)
	}
	if got := LinkQualityScore(f(40), f(0), 500); got != 100 {
		t.Fatalf("expected clamped score of 100, got %v", got)
	}
}

func TestHopTierColor(t *testing.T) {
	seen := map[string]struct{}{}
	for _, tier := range []string{"hop_2", "hop_3", "hop_4_plus"} {
		c := HopTierColor(tier)
		if _, dup := seen[c]; dup {
			t.Fatalf("expected distinct color per tier, %s repeats %s", tier, c)
		}
		seen[c] = struct{}{}
	}
}
