package mesh

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize_LegacySendingNodesBecomeHop2(t *testing.T) {
	rec := IndirectCoverageRecord{RelayNodeID: "!r", SendingNodeIDs: []string{"!a", "!b"}}
	got, violations := rec.Normalize()
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
	want := IndirectCoverageRecord{RelayNodeID: "!r", Hop2: []string{"!a", "!b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_LegacyIgnoredWhenTiersPresent(t *testing.T) {
	rec := IndirectCoverageRecord{
		RelayNodeID:    "!r",
		Hop3:           []string{"!c"},
		SendingNodeIDs: []string{"!a", "!b"},
	}
	got, _ := rec.Normalize()
	want := IndirectCoverageRecord{RelayNodeID: "!r", Hop3: []string{"!c"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_FirstTierWins(t *testing.T) {
	rec := IndirectCoverageRecord{
		RelayNodeID: "!r",
		Hop2:        []string{"!a", "!a"},
		Hop3:        []string{"!a", "!b", "!r"},
		Hop4Plus:    []string{"!b", "!c"},
	}
	got, violations := rec.Normalize()
	want := IndirectCoverageRecord{
		RelayNodeID: "!r",
		Hop2:        []string{"!a"},
		Hop3:        []string{"!b"},
		Hop4Plus:    []string{"!c"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if len(violations) != 2 {
		t.Fatalf("expected 2 cross-tier violations, got %d: %+v", len(violations), violations)
	}
}

func TestTierForHopsAway(t *testing.T) {
	cases := []struct {
		hops int
		want Tier
		ok   bool
	}{
		{hops: 0, ok: false},
		{hops: 1, want: TierHop2, ok: true},
		{hops: 2, want: TierHop3, ok: true},
		{hops: 3, want: TierHop4Plus, ok: true},
		{hops: 7, want: TierHop4Plus, ok: true},
	}
	for _, tc := range cases {
		got, ok := TierForHopsAway(tc.hops)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("TierForHopsAway(%d): expected (%q,%v), got (%q,%v)", tc.hops, tc.want, tc.ok, got, ok)
		}
	}
}
