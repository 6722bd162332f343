// Package selector picks the single media to play out of a fetch session's live results.
package selector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/metrics"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

var (
	// ErrSelectionNotFound is returned when selecting something that is not a current candidate.
	ErrSelectionNotFound = errors.New("selection not found")
	ErrItemNotFound      = errors.New("item is not in the current results")
	ErrItemExcluded      = errors.New("item is excluded")
)

// DefaultSettleWindow is used when Options.SettleWindow is zero.
const DefaultSettleWindow = 2 * time.Second

type Options struct {
	SettleWindow time.Duration
	// Settings is followed live; nil means default settings.
	Settings   *stream.State[Settings]
	Comparator ComparatorFactory
	// Estimate tells how long results may still take to arrive.
	Estimate func() time.Duration
}

// Change is one selection transition, in order.
type Change struct {
	Item     mo.Option[*source.Media]
	Explicit bool
}

type Phase int

const (
	// PhaseManual means nothing is selected and automatic selection is off.
	PhaseManual Phase = iota
	PhaseAutoSelecting
	PhaseSelected
)

// Summary is the transient state shown next to the results.
type Summary struct {
	Phase    Phase
	Item     mo.Option[*source.Media]
	Explicit bool
	Estimate time.Duration
}

func (s Summary) String() string {
	switch s.Phase {
	case PhaseSelected:
		return "selected " + s.Item.MustGet().String()
	case PhaseAutoSelecting:
		seconds := int(math.Ceil(s.Estimate.Seconds()))
		return "auto-selecting, estimate " + strconv.Itoa(seconds) + "s"
	default:
		return "waiting for a selection"
	}
}

// Selector holds the explicit selection, exclusions and automatic ranking of one session.
type Selector struct {
	mu         sync.Mutex
	list       *stream.State[[]*source.Media]
	items      []*source.Media
	selected   *source.Media
	explicit   bool
	excluded   map[string]struct{}
	auto       bool
	settings   Settings
	comparator ComparatorFactory
	estimate   func() time.Duration

	settle *stream.Debouncer
	ctx    context.Context
	cancel context.CancelFunc

	selection *stream.State[mo.Option[*source.Media]]
	summary   *stream.State[Summary]
	changes   *stream.Events[Change]
}

// New follows list until Close.
func New(list *stream.State[[]*source.Media], options Options) *Selector {
	if options.SettleWindow <= 0 {
		options.SettleWindow = DefaultSettleWindow
	}
	if options.Comparator == nil {
		options.Comparator = DefaultComparator
	}
	if options.Settings == nil {
		options.Settings = stream.NewState(Settings{})
	}
	if options.Estimate == nil {
		options.Estimate = func() time.Duration { return 0 }
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Selector{
		list:       list,
		excluded:   make(map[string]struct{}),
		comparator: options.Comparator,
		estimate:   options.Estimate,
		settings:   options.Settings.Get(),
		ctx:        ctx,
		cancel:     cancel,
		selection:  stream.NewState(mo.None[*source.Media]()),
		summary:    stream.NewState(Summary{}),
		changes:    stream.NewEvents[Change](),
	}
	s.settle = stream.NewDebouncer(options.SettleWindow, s.settled)

	items := list.Subscribe(ctx)
	settings := options.Settings.Subscribe(ctx)

	go func() {
		for {
			select {
			case value, ok := <-items:
				if !ok {
					return
				}
				s.onItems(value)
			case value, ok := <-settings:
				if !ok {
					settings = nil
					continue
				}
				s.onSettings(value)
			}
		}
	}()

	return s
}

// Selected streams the current selection.
func (s *Selector) Selected() *stream.State[mo.Option[*source.Media]] {
	return s.selection
}

func (s *Selector) Summary() *stream.State[Summary] {
	return s.summary
}

// Changes streams every selection transition in order.
func (s *Selector) Changes() *stream.Events[Change] {
	return s.changes
}

// Select makes item the explicit selection. It wins over automatic selection
// until Unselect or Reset.
func (s *Selector) Select(item *source.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.find(item)
	if !found {
		return fmt.Errorf("%w: %w: %s", ErrSelectionNotFound, ErrItemNotFound, item.Key())
	}

	if s.isExcluded(current) {
		return fmt.Errorf("%w: %w: %s", ErrSelectionNotFound, ErrItemExcluded, item.Key())
	}

	s.settle.Cancel()
	s.set(current, true)
	return nil
}

// FastSelect selects item right away without waiting for the settle window.
// It is not an explicit selection and does nothing when something is selected.
func (s *Selector) FastSelect(item *source.Media) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != nil {
		return false
	}

	current, found := s.find(item)
	if !found || s.isExcluded(current) {
		return false
	}

	s.settle.Cancel()
	s.set(current, false)
	return true
}

// Unselect drops the selection and lets automatic selection decide again.
func (s *Selector) Unselect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != nil {
		s.set(nil, false)
	}
	s.reevaluate()
}

// Reset drops the selection and every exclusion.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.excluded)
	if s.selected != nil {
		s.set(nil, false)
	}
	s.reevaluate()
}

// Exclude makes item ineligible while keeping it in the results.
// Excluding the selected item reverts to automatic selection among the rest.
func (s *Selector) Exclude(item *source.Media) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.excluded[item.Key()] = struct{}{}
	log.Infof("excluded %s", item.Key())

	if s.selected.Same(item) {
		s.set(nil, false)
		s.reevaluate()
	}
}

func (s *Selector) IsExcluded(item *source.Media) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isExcluded(item)
}

// SetAutoSelect turns automatic ranking on or off.
func (s *Selector) SetAutoSelect(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auto == enabled {
		return
	}

	s.auto = enabled
	if !enabled {
		s.settle.Cancel()
	}
	s.reevaluate()
}

// Candidates lists the eligible items, best first.
func (s *Selector) Candidates() []*source.Media {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rank()
}

// Close stops following the results and cancels a pending automatic selection.
func (s *Selector) Close() {
	s.cancel()
	s.settle.Stop()
	s.selection.Close()
	s.summary.Close()
	s.changes.Close()
}

func (s *Selector) onItems(items []*source.Media) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = items
	if s.selected != nil {
		current, found := lo.Find(items, func(m *source.Media) bool { return m.Same(s.selected) })
		if !found {
			log.Infof("selection %s left the results", s.selected.Key())
			s.set(nil, false)
		} else {
			s.selected = current
		}
	}

	s.reevaluate()
}

// find looks item up in the latest results. The subscription may not have
// delivered them yet, so the list is read directly. Must hold s.mu.
func (s *Selector) find(item *source.Media) (*source.Media, bool) {
	s.items = s.list.Get()
	return lo.Find(s.items, func(m *source.Media) bool { return m.Same(item) })
}

func (s *Selector) onSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings
	s.reevaluate()
}

// reevaluate restarts the settle window when automatic selection has something to decide.
func (s *Selector) reevaluate() {
	if s.auto && s.selected == nil {
		s.settle.Trigger()
	}
	s.publishSummary()
}

// settled runs once the results stopped changing for the whole window.
func (s *Selector) settled() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil || !s.auto || s.selected != nil {
		return
	}

	if ranked := s.rank(); len(ranked) > 0 {
		log.Infof("auto-selected %s out of %d candidates", ranked[0].Key(), len(ranked))
		s.set(ranked[0], false)
		return
	}

	s.publishSummary()
}

func (s *Selector) rank() []*source.Media {
	return Rank(s.items, s.isExcluded, s.settings, s.comparator)
}

func (s *Selector) isExcluded(item *source.Media) bool {
	_, excluded := s.excluded[item.Key()]
	return excluded
}

func (s *Selector) set(item *source.Media, explicit bool) {
	s.selected = item
	s.explicit = explicit && item != nil

	option := mo.EmptyableToOption(item)
	s.selection.Set(option)
	s.changes.Publish(Change{Item: option, Explicit: s.explicit})

	if item != nil {
		metrics.Selections.WithLabelValues(string(item.Kind), strconv.FormatBool(s.explicit)).Inc()
	}

	s.publishSummary()
}

func (s *Selector) publishSummary() {
	summary := Summary{Phase: PhaseManual}

	switch {
	case s.selected != nil:
		summary = Summary{Phase: PhaseSelected, Item: mo.Some(s.selected), Explicit: s.explicit}
	case s.auto:
		estimate := s.estimate()
		if remaining, pending := s.settle.Remaining(); pending {
			estimate = max(estimate, remaining)
		}
		summary = Summary{Phase: PhaseAutoSelecting, Estimate: estimate}
	}

	s.summary.Set(summary)
}
