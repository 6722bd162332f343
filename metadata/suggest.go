package metadata

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/metafates/gache"
	"github.com/samber/lo"
)

type queryRecord struct {
	Rank  int    `json:"rank"`
	Query string `json:"query"`
}

// queryHistory ranks past searches by how often they were made.
type queryHistory struct {
	mu    sync.Mutex
	cache *gache.Cache[map[string]*queryRecord]
}

func newQueryHistory(dir string) *queryHistory {
	return &queryHistory{
		cache: gache.New[map[string]*queryRecord](&gache.Options{
			Path:       filepath.Join(dir, "queries.json"),
			FileSystem: &filesystem.GacheFs{},
		}),
	}
}

func (h *queryHistory) Remember(q string, weight int) error {
	q = normalizedName(q)
	if q == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cached, expired, err := h.cache.Get()
	if expired || err != nil || cached == nil {
		cached = make(map[string]*queryRecord)
	}

	if record, ok := cached[q]; ok {
		record.Rank += weight
	} else {
		cached[q] = &queryRecord{Rank: weight, Query: q}
	}

	return h.cache.Set(cached)
}

func (h *queryHistory) Suggest(q string) []string {
	q = normalizedName(q)

	h.mu.Lock()
	cached, expired, err := h.cache.Get()
	h.mu.Unlock()

	if err != nil || expired || cached == nil {
		return nil
	}

	records := lo.Filter(lo.Values(cached), func(r *queryRecord, _ int) bool {
		return fuzzy.Match(q, r.Query)
	})

	slices.SortFunc(records, func(a, b *queryRecord) int {
		if a.Rank != b.Rank {
			return b.Rank - a.Rank
		}
		return strings.Compare(a.Query, b.Query)
	})

	return lo.Map(records, func(r *queryRecord, _ int) string {
		return r.Query
	})
}
