package danmaku

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/metrics"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownProvider        = errors.New("unknown danmaku provider")
	ErrDuplicateProvider      = errors.New("duplicate danmaku provider")
	ErrInteractiveUnsupported = errors.New("danmaku provider does not support interactive matching")
	ErrClosed                 = errors.New("danmaku loader closed")
	ErrPostUnsupported        = errors.New("danmaku provider does not accept comments")
	ErrNotLoaded              = errors.New("no episode loaded")
	ErrBlank                  = errors.New("comment is blank")
)

const DefaultTimeout = 15 * time.Second

var lastLoaderID atomic.Uint64

type LoaderOptions struct {
	Timeout time.Duration
	// SelfID marks comments posted by the local user.
	SelfID string
	// Position reads the player's clock for Repopulate anchors.
	Position func() int64
	// Enabled overrides the initial enabled state per provider; missing providers are enabled.
	Enabled map[string]bool
}

// Status is the aggregate loading state of the enabled providers.
type Status struct {
	Loading bool
	Empty   bool
}

// Loader owns one slot per provider. Slots are only touched by the loader's own goroutine.
type Loader struct {
	id       uint64
	timeout  time.Duration
	selfID   string
	position func() int64
	index    map[string]int

	ctx      context.Context
	cancel   context.CancelFunc
	stopped  chan struct{}
	once     sync.Once
	commands chan func()
	reports  chan providerReport

	slots   []*providerSlot
	episode *EpisodeContext
	live    []Danmaku

	results *stream.State[[]ProviderResult]
	all     *stream.State[[]Presentation]
	enabled *stream.State[map[string]bool]
	status  *stream.State[Status]
	events  *stream.Events[Event]
}

type providerSlot struct {
	provider Provider
	enabled  bool
	result   ProviderResult
	// cached is the last successful result for the current episode.
	cached  mo.Option[ProviderResult]
	token   uint64
	cancel  context.CancelFunc
	started time.Time
}

type providerReport struct {
	index  int
	token  uint64
	result ProviderResult
}

func NewLoader(providers []Provider, options LoaderOptions) (*Loader, error) {
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.Position == nil {
		options.Position = func() int64 { return 0 }
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		id:       lastLoaderID.Add(1),
		timeout:  options.Timeout,
		selfID:   options.SelfID,
		position: options.Position,
		index:    make(map[string]int, len(providers)),
		ctx:      ctx,
		cancel:   cancel,
		stopped:  make(chan struct{}),
		commands: make(chan func()),
		reports:  make(chan providerReport),
		events:   stream.NewEvents[Event](),
	}

	for i, provider := range providers {
		id := provider.ID()
		if _, exists := l.index[id]; exists {
			cancel()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, id)
		}

		enabled, ok := options.Enabled[id]
		if !ok {
			enabled = true
		}

		l.index[id] = i
		slot := &providerSlot{provider: provider, enabled: enabled, result: idle(id)}
		if !enabled {
			slot.result.Result = slot.result.Disabled()
		}
		l.slots = append(l.slots, slot)
	}

	l.results = stream.NewState(l.snapshot())
	l.all = stream.NewState[[]Presentation](nil)
	l.enabled = stream.NewState(l.enabledSet())
	l.status = stream.NewState(Status{})

	go l.loop()
	return l, nil
}

func idle(id string) ProviderResult {
	return ProviderResult{
		Result: source.Idle[Danmaku](id, source.KindDanmaku),
		Match:  MatchInfo{ServiceID: id},
	}
}

// FetchResults streams every provider's snapshot in registration order.
func (l *Loader) FetchResults() *stream.State[[]ProviderResult] {
	return l.results
}

// All streams the merged comments of the enabled providers plus live comments.
func (l *Loader) All() *stream.State[[]Presentation] {
	return l.all
}

// Enabled streams which providers take part in the merge.
func (l *Loader) Enabled() *stream.State[map[string]bool] {
	return l.enabled
}

func (l *Loader) Status() *stream.State[Status] {
	return l.status
}

// Events is the live feed. Subscribers see every event after subscribing, in order.
func (l *Loader) Events() *stream.Events[Event] {
	return l.events
}

// Load queries every enabled provider about episode, dropping whatever the previous episode loaded.
func (l *Loader) Load(episode *EpisodeContext) error {
	return l.do(func() {
		l.episode = episode
		l.live = nil

		for i, slot := range l.slots {
			slot.cached = mo.None[ProviderResult]()
			if slot.enabled {
				l.launch(i)
			} else {
				l.stop(slot)
				slot.result = idle(slot.provider.ID())
				slot.result.Result = slot.result.Disabled()
			}
		}

		l.logger().Infof("loading danmaku for episode %s", episode.EpisodeID)
		l.publish(true)
	})
}

// Add feeds a live comment. Blank comments are dropped.
func (l *Loader) Add(item Danmaku) error {
	if item.IsBlank() {
		return nil
	}

	return l.do(func() {
		l.live = append(l.live, item)
		l.publish(false)
		l.events.Publish(Add{Item: l.present(item)})
	})
}

// Post sends text to a provider at the current position and shows the stored comment live.
func (l *Loader) Post(ctx context.Context, providerID, text string) (Danmaku, error) {
	i, ok := l.index[providerID]
	if !ok {
		return Danmaku{}, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}

	poster, ok := l.slots[i].provider.(Poster)
	if !ok {
		return Danmaku{}, fmt.Errorf("%w: %s", ErrPostUnsupported, providerID)
	}

	item := Danmaku{
		ServiceID:      providerID,
		SenderID:       l.selfID,
		Text:           strings.TrimSpace(text),
		PlayTimeMillis: l.position(),
		Location:       LocationNormal,
	}
	if item.IsBlank() {
		return Danmaku{}, ErrBlank
	}

	var episode *EpisodeContext
	if err := l.do(func() { episode = l.episode }); err != nil {
		return Danmaku{}, err
	}
	if episode == nil {
		return Danmaku{}, ErrNotLoaded
	}

	posted, err := poster.Post(ctx, episode, item)
	if err != nil {
		return Danmaku{}, fmt.Errorf("post to %s: %w", providerID, err)
	}

	posted.ServiceID = providerID
	if posted.SenderID == "" {
		posted.SenderID = l.selfID
	}
	if posted.IsBlank() {
		posted.Text = item.Text
	}
	if posted.PlayTimeMillis == 0 {
		posted.PlayTimeMillis = item.PlayTimeMillis
	}

	l.logger().Infof("posted a comment to %s at %dms", providerID, posted.PlayTimeMillis)
	return posted, l.Add(posted)
}

// SetEnabled toggles a provider in or out of the merge. Re-enabling restores the
// cached result of the current episode when there is one, otherwise queries again.
func (l *Loader) SetEnabled(providerID string, enabled bool) error {
	var err error
	doErr := l.do(func() {
		i, ok := l.index[providerID]
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
			return
		}

		slot := l.slots[i]
		if slot.enabled == enabled {
			return
		}

		slot.enabled = enabled
		logger := l.logger().With(logrus.Fields{"provider": providerID})

		switch {
		case !enabled:
			l.stop(slot)
			slot.result.Result = slot.result.Disabled()
			logger.Infof("disabled")
		case slot.cached.IsPresent():
			slot.result = slot.cached.MustGet()
			logger.Infof("enabled, restored %d cached items", len(slot.result.Items))
		case l.episode != nil:
			l.launch(i)
			logger.Infof("enabled, querying")
		default:
			slot.result = idle(providerID)
		}

		l.publish(true)
	})

	return errors.Join(doErr, err)
}

// Restart queries a provider again, ignoring its cached result.
func (l *Loader) Restart(providerID string) error {
	var err error
	doErr := l.do(func() {
		i, ok := l.index[providerID]
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
			return
		}

		if l.episode == nil || !l.slots[i].enabled {
			return
		}

		l.launch(i)
		l.publish(true)
	})

	return errors.Join(doErr, err)
}

// OverrideResults replaces a provider's result, enabling it if needed.
func (l *Loader) OverrideResults(providerID string, result MatchResult) error {
	var err error
	doErr := l.do(func() {
		i, ok := l.index[providerID]
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
			return
		}

		slot := l.slots[i]
		l.stop(slot)

		result.Info.ServiceID = providerID
		slot.enabled = true
		slot.result = ProviderResult{
			Result: idle(providerID).Succeeded(own(providerID, result.Items)),
			Match:  result.Info,
		}
		slot.cached = mo.Some(slot.result)

		l.logger().With(logrus.Fields{"provider": providerID}).Infof("results overridden with %d items", len(slot.result.Items))
		l.publish(true)
	})

	return errors.Join(doErr, err)
}

// StartInteractiveMatch opens a matching session for a provider that supports it.
func (l *Loader) StartInteractiveMatch(providerID string) (*MatchSession, error) {
	i, ok := l.index[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}

	interactive, ok := l.slots[i].provider.(InteractiveProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInteractiveUnsupported, providerID)
	}

	return newMatchSession(l, interactive), nil
}

// Providers lists the registered provider ids in order.
func (l *Loader) Providers() []string {
	return lo.Map(l.slots, func(slot *providerSlot, _ int) string {
		return slot.provider.ID()
	})
}

// Close cancels every query. No update is published afterwards.
func (l *Loader) Close() {
	l.once.Do(l.cancel)
	<-l.stopped
}

func (l *Loader) loop() {
	defer close(l.stopped)

	for {
		select {
		case <-l.ctx.Done():
			for _, slot := range l.slots {
				l.stop(slot)
			}
			l.results.Close()
			l.all.Close()
			l.enabled.Close()
			l.status.Close()
			l.events.Close()
			return
		case fn := <-l.commands:
			fn()
		case r := <-l.reports:
			l.apply(r)
		}
	}
}

func (l *Loader) do(fn func()) error {
	done := make(chan struct{})

	select {
	case l.commands <- func() { fn(); close(done) }:
	case <-l.ctx.Done():
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-l.ctx.Done():
		return ErrClosed
	}
}

func (l *Loader) stop(slot *providerSlot) {
	slot.token++
	if slot.cancel != nil {
		slot.cancel()
		slot.cancel = nil
	}
}

func (l *Loader) launch(i int) {
	slot := l.slots[i]
	l.stop(slot)

	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	slot.cancel = cancel
	slot.started = time.Now()
	slot.cached = mo.None[ProviderResult]()
	slot.result = ProviderResult{
		Result: slot.result.Working(),
		Match:  MatchInfo{ServiceID: slot.provider.ID()},
	}

	go l.work(ctx, i, slot.token, slot.provider, slot.result, l.episode)
}

func (l *Loader) work(ctx context.Context, i int, token uint64, provider Provider, working ProviderResult, episode *EpisodeContext) {
	match, err := query(ctx, provider, episode)

	result := working
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Result = working.Failed(source.Timeout(fmt.Errorf("no danmaku within %s", l.timeout)))
	case err != nil:
		result.Result = working.Failed(source.Classify(err))
	default:
		match.Info.ServiceID = provider.ID()
		result.Result = working.Succeeded(own(provider.ID(), match.Items))
		result.Match = match.Info
	}

	select {
	case l.reports <- providerReport{index: i, token: token, result: result}:
	case <-l.ctx.Done():
	}
}

func query(ctx context.Context, provider Provider, episode *EpisodeContext) (MatchResult, error) {
	type outcome struct {
		match MatchResult
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("danmaku provider %s panicked: %v", provider.ID(), r)}
			}
		}()

		match, err := provider.Match(ctx, episode)
		done <- outcome{match, err}
	}()

	select {
	case o := <-done:
		return o.match, o.err
	case <-ctx.Done():
		return MatchResult{}, ctx.Err()
	}
}

// own drops blank comments and stamps the provider on the rest.
func own(providerID string, items []Danmaku) []Danmaku {
	return lo.FilterMap(items, func(item Danmaku, _ int) (Danmaku, bool) {
		if item.IsBlank() {
			return item, false
		}

		if item.ServiceID == "" {
			item.ServiceID = providerID
		}
		return item, true
	})
}

func (l *Loader) apply(r providerReport) {
	slot := l.slots[r.index]
	logger := l.logger().With(logrus.Fields{"provider": slot.provider.ID()})

	if r.token != slot.token {
		logger.Debugf("discarding superseded result")
		return
	}

	if slot.cancel != nil {
		slot.cancel()
		slot.cancel = nil
	}

	slot.result = r.result
	metrics.DanmakuQueries.WithLabelValues(slot.provider.ID(), r.result.State.String()).Inc()

	if r.result.State == source.StateSucceeded {
		slot.cached = mo.Some(r.result)
		logger.Infof("matched %s with %d items", r.result.Match.Method, len(r.result.Items))
	} else {
		logger.Warnf("query failed: %s", r.result.Err)
	}

	l.publish(true)
}

func (l *Loader) snapshot() []ProviderResult {
	return lo.Map(l.slots, func(slot *providerSlot, _ int) ProviderResult {
		return slot.result
	})
}

func (l *Loader) enabledSet() map[string]bool {
	set := make(map[string]bool, len(l.slots))
	for _, slot := range l.slots {
		set[slot.provider.ID()] = slot.enabled
	}
	return set
}

func (l *Loader) present(item Danmaku) Presentation {
	return Presentation{
		Danmaku: item,
		IsSelf:  l.selfID != "" && item.SenderID == l.selfID,
	}
}

// merged is every comment of the enabled, succeeded providers and the live ones, by time.
func (l *Loader) merged() []Presentation {
	var items []Danmaku
	for _, slot := range l.slots {
		if slot.enabled && slot.result.State == source.StateSucceeded {
			items = append(items, slot.result.Items...)
		}
	}
	items = append(items, l.live...)

	presentations := lo.Map(items, func(item Danmaku, _ int) Presentation {
		return l.present(item)
	})
	slices.SortStableFunc(presentations, func(a, b Presentation) int {
		return cmp.Compare(a.PlayTimeMillis, b.PlayTimeMillis)
	})

	return presentations
}

func (l *Loader) aggregate() Status {
	if l.episode == nil {
		return Status{}
	}

	enabled := lo.Filter(l.slots, func(slot *providerSlot, _ int) bool { return slot.enabled })
	loading := lo.SomeBy(enabled, func(slot *providerSlot) bool { return !slot.result.IsTerminal() })
	count := lo.SumBy(enabled, func(slot *providerSlot) int { return len(slot.result.Items) })

	return Status{Loading: loading, Empty: !loading && count == 0}
}

// publish pushes every stream. With repopulate, consumers are told to reset.
func (l *Loader) publish(repopulate bool) {
	all := l.merged()

	l.results.Set(l.snapshot())
	l.all.Set(all)
	l.status.Set(l.aggregate())

	if enabled := l.enabledSet(); !maps.Equal(enabled, l.enabled.Get()) {
		l.enabled.Set(enabled)
	}

	if repopulate {
		l.events.Publish(Repopulate{List: all, AnchorMillis: l.position()})
	}
}

func (l *Loader) logger() *log.Entry {
	return log.With(logrus.Fields{"danmaku_loader": l.id})
}
