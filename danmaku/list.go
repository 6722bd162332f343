package danmaku

import (
	"cmp"
	"context"
	"slices"

	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ListItem is one row of the comment list.
type ListItem struct {
	ID string
	// RandomID keys the row even when providers repeat comment ids.
	RandomID   uuid.UUID
	Content    string
	TimeMillis int64
	ServiceID  string
	IsSelf     bool
}

// SourceItem is one provider row of the source picker.
type SourceItem struct {
	ServiceID    string
	Enabled      bool
	IsFuzzyMatch bool
}

type ListState struct {
	Items   []ListItem
	Sources []SourceItem
	Loading bool
	Empty   bool
}

// ListStateLoading is the state before anything was fetched.
var ListStateLoading = ListState{Loading: true}

// Equal compares states ignoring the random row ids.
func (s ListState) Equal(other ListState) bool {
	return s.Loading == other.Loading &&
		s.Empty == other.Empty &&
		slices.Equal(s.Sources, other.Sources) &&
		slices.EqualFunc(s.Items, other.Items, func(a, b ListItem) bool {
			return a.ID == b.ID &&
				a.Content == b.Content &&
				a.TimeMillis == b.TimeMillis &&
				a.ServiceID == b.ServiceID &&
				a.IsSelf == b.IsSelf
		})
}

// ListStateProducer combines the merged comments, the provider results and the
// enabled set into the state of the comment list.
type ListStateProducer struct {
	state  *stream.State[ListState]
	cancel context.CancelFunc
}

// NewListStateProducer follows the inputs until Close. An empty enabled set means
// every provider with a result is enabled.
func NewListStateProducer(
	all *stream.State[[]Presentation],
	results *stream.State[[]ProviderResult],
	enabled *stream.State[map[string]bool],
) *ListStateProducer {
	ctx, cancel := context.WithCancel(context.Background())
	p := &ListStateProducer{
		state:  stream.NewState(ListStateLoading, stream.WithEqual(ListState.Equal)),
		cancel: cancel,
	}

	allCh := all.Subscribe(ctx)
	resultsCh := results.Subscribe(ctx)
	enabledCh := enabled.Subscribe(ctx)

	go func() {
		defer p.state.Close()

		var (
			danmaku  []Presentation
			fetched  []ProviderResult
			selected map[string]bool
			seen     int
		)

		for {
			select {
			case v, ok := <-allCh:
				if !ok {
					return
				}
				if danmaku == nil {
					seen++
				}
				danmaku = lo.Ternary(v == nil, []Presentation{}, v)
			case v, ok := <-resultsCh:
				if !ok {
					return
				}
				if fetched == nil {
					seen++
				}
				fetched = lo.Ternary(v == nil, []ProviderResult{}, v)
			case v, ok := <-enabledCh:
				if !ok {
					return
				}
				if selected == nil {
					seen++
				}
				selected = lo.Ternary(v == nil, map[string]bool{}, v)
			}

			// nothing is published until every input has a value
			if seen < 3 {
				continue
			}

			p.state.Set(ProduceListState(danmaku, fetched, selected))
		}
	}()

	return p
}

func (p *ListStateProducer) State() *stream.State[ListState] {
	return p.state
}

func (p *ListStateProducer) Close() {
	p.cancel()
}

// ProduceListState is one recombination of the latest inputs.
func ProduceListState(all []Presentation, results []ProviderResult, enabled map[string]bool) ListState {
	fetched := lo.Filter(results, func(r ProviderResult, _ int) bool {
		return r.State == source.StateSucceeded || r.State == source.StateDisabled && r.Match.Method != ""
	})

	sources := lo.Map(fetched, func(r ProviderResult, _ int) SourceItem {
		on, chosen := enabled[r.InstanceID]
		return SourceItem{
			ServiceID:    r.InstanceID,
			Enabled:      on || !chosen && len(enabled) == 0,
			IsFuzzyMatch: !r.Match.Method.IsExact(),
		}
	})

	items := lo.Map(all, func(p Presentation, _ int) ListItem {
		return ListItem{
			ID:         p.ID,
			RandomID:   uuid.New(),
			Content:    p.Text,
			TimeMillis: p.PlayTimeMillis,
			ServiceID:  p.ServiceID,
			IsSelf:     p.IsSelf,
		}
	})
	slices.SortStableFunc(items, func(a, b ListItem) int {
		return cmp.Compare(a.TimeMillis, b.TimeMillis)
	})

	return ListState{
		Items:   items,
		Sources: sources,
		Loading: len(fetched) == 0,
		Empty:   len(items) == 0 && len(fetched) > 0,
	}
}
