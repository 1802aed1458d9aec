package selection

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"meshmap/core-go/internal/mesh"
)

// ErrUnknownLayer is returned for layer keys outside the fixed set.
var ErrUnknownLayer = errors.New("unknown layer")

type LayerKey string

const (
	LayerDirectLinks      LayerKey = "directLinks"
	LayerHop2Coverage     LayerKey = "hop2Coverage"
	LayerHop3Coverage     LayerKey = "hop3Coverage"
	LayerHop4PlusCoverage LayerKey = "hop4PlusCoverage"
	LayerSignalCircles    LayerKey = "signalCircles"
)

var allLayers = []LayerKey{
	LayerDirectLinks,
	LayerHop2Coverage,
	LayerHop3Coverage,
	LayerHop4PlusCoverage,
	LayerSignalCircles,
}

// AllLayers returns the layer keys in display order.
func AllLayers() []LayerKey {
	out := make([]LayerKey, len(allLayers))
	copy(out, allLayers)
	return out
}

// NormalizeLayerKey resolves case and separator variants ("hop_2_coverage",
// " SignalCircles ") to the canonical key.
func NormalizeLayerKey(raw string) (LayerKey, bool) {
	k := strings.ToLower(strings.TrimSpace(raw))
	k = strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
	for _, l := range allLayers {
		if strings.ToLower(string(l)) == k {
			return l, true
		}
	}
	return "", false
}

// LayerForTier is the layer that toggles shapes of a hop tier.
func LayerForTier(t mesh.Tier) LayerKey {
	switch t {
	case mesh.TierHop2:
		return LayerHop2Coverage
	case mesh.TierHop3:
		return LayerHop3Coverage
	default:
		return LayerHop4PlusCoverage
	}
}

// LayerVisibility maps every layer key to whether it is shown. It is
// independent of the selection and lives only as long as the session.
type LayerVisibility map[LayerKey]bool

// DefaultLayerVisibility shows every layer.
func DefaultLayerVisibility() LayerVisibility {
	v := make(LayerVisibility, len(allLayers))
	for _, l := range allLayers {
		v[l] = true
	}
	return v
}

// Set changes the visibility of one layer. Unknown keys leave v untouched.
func (v LayerVisibility) Set(key string, visible bool) error {
	k, ok := NormalizeLayerKey(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLayer, key)
	}
	v[k] = visible
	return nil
}

// Visible reports whether key is shown. Missing keys count as visible.
func (v LayerVisibility) Visible(key LayerKey) bool {
	visible, ok := v[key]
	return !ok || visible
}

func (v LayerVisibility) Clone() LayerVisibility {
	out := make(LayerVisibility, len(allLayers))
	for _, l := range allLayers {
		out[l] = v.Visible(l)
	}
	return out
}

// Hidden lists the hidden layer keys, sorted.
func (v LayerVisibility) Hidden() []string {
	var out []string
	for _, l := range allLayers {
		if !v.Visible(l) {
			out = append(out, string(l))
		}
	}
	sort.Strings(out)
	return out
}
