package selector

import (
	"cmp"
	"slices"
	"strings"

	"github.com/anisan-cli/aniplay/source"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Settings is the selection policy snapshot.
type Settings struct {
	PreferredKind        mo.Option[source.Kind]
	PreferredSources     []string
	PreferredResolutions []string
	// RememberedSource is the source last chosen for this subject; it ranks above PreferredSources.
	RememberedSource string
}

// Comparator orders two candidates; negative means a ranks before b.
type Comparator func(a, b *source.Media) int

// ComparatorFactory builds the comparator for a settings snapshot.
type ComparatorFactory func(Settings) Comparator

var kindTiers = map[source.Kind]int{
	source.KindLocal:      0,
	source.KindWeb:        1,
	source.KindBitTorrent: 2,
}

// DefaultComparator ranks by kind tier, source tier, resolution tier, then seeds.
func DefaultComparator(settings Settings) Comparator {
	sources := lo.Compact(append([]string{settings.RememberedSource}, settings.PreferredSources...))
	heights := lo.Map(settings.PreferredResolutions, func(label string, _ int) int {
		return source.ResolutionHeight(label)
	})

	kindTier := func(m *source.Media) int {
		if preferred, ok := settings.PreferredKind.Get(); ok && m.Kind == preferred {
			return -1
		}
		if tier, ok := kindTiers[m.Kind]; ok {
			return tier
		}
		return len(kindTiers)
	}

	sourceTier := func(m *source.Media) int {
		if i := slices.IndexFunc(sources, func(s string) bool { return strings.EqualFold(s, m.SourceID) }); i >= 0 {
			return i
		}
		return len(sources)
	}

	resolutionTier := func(m *source.Media) int {
		if i := slices.Index(heights, source.ResolutionHeight(m.Resolution)); i >= 0 {
			return i
		}
		return len(heights)
	}

	return func(a, b *source.Media) int {
		return cmp.Or(
			cmp.Compare(kindTier(a), kindTier(b)),
			cmp.Compare(sourceTier(a), sourceTier(b)),
			cmp.Compare(resolutionTier(a), resolutionTier(b)),
			// unlisted resolutions: higher first
			cmp.Compare(source.ResolutionHeight(b.Resolution), source.ResolutionHeight(a.Resolution)),
			seeds(a, b),
		)
	}
}

func seeds(a, b *source.Media) int {
	if a.Kind != source.KindBitTorrent || b.Kind != source.KindBitTorrent {
		return 0
	}
	return cmp.Compare(b.Seeds, a.Seeds)
}

// Rank returns the eligible items best first. Items of the preferred kind are
// kept alone unless none exist.
func Rank(items []*source.Media, excluded func(*source.Media) bool, settings Settings, factory ComparatorFactory) []*source.Media {
	eligible := lo.Reject(items, func(m *source.Media, _ int) bool {
		return excluded(m)
	})

	if kind, ok := settings.PreferredKind.Get(); ok {
		if preferred := lo.Filter(eligible, func(m *source.Media, _ int) bool { return m.Kind == kind }); len(preferred) > 0 {
			eligible = preferred
		}
	}

	slices.SortStableFunc(eligible, factory(settings))
	return eligible
}
