// Package fetch runs one generation of concurrent queries against every registered media source.
package fetch

import (
	"context"
	"errors"
	"fmt"
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
	ErrUnknownSource   = errors.New("unknown media source")
	ErrDuplicateSource = errors.New("duplicate media source")
	ErrClosed          = errors.New("fetch session closed")
)

// DefaultTimeout bounds a worker when Options.Timeout is zero.
const DefaultTimeout = 20 * time.Second

var lastSessionID atomic.Uint64

type Options struct {
	// Timeout after which a working source fails with a timeout error.
	Timeout time.Duration
}

// Session owns one result slot per registered source.
//
// Slots are only touched by the session's own goroutine. Workers report their
// outcome to it over a channel, and the public methods hand it closures to run.
type Session struct {
	id      uint64
	timeout time.Duration
	index   map[string]int

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once

	commands chan func()
	reports  chan report

	slots   []*slot
	started bool

	request    atomic.Pointer[source.FetchRequest]
	generation atomic.Uint64

	results    *stream.State[[]source.Result[*source.Media]]
	cumulative *stream.State[[]*source.Media]
}

type slot struct {
	source   source.MediaSource
	result   source.Result[*source.Media]
	token    uint64
	cancel   context.CancelFunc
	started  time.Time
	deadline time.Time
}

type report struct {
	index  int
	token  uint64
	result source.Result[*source.Media]
}

// NewSession registers sources in the given order. Nothing is queried until Start.
func NewSession(request *source.FetchRequest, sources []source.MediaSource, options Options) (*Session, error) {
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       lastSessionID.Add(1),
		timeout:  options.Timeout,
		index:    make(map[string]int, len(sources)),
		ctx:      ctx,
		cancel:   cancel,
		stopped:  make(chan struct{}),
		commands: make(chan func()),
		reports:  make(chan report),
	}

	for i, src := range sources {
		id := src.InstanceID()
		if _, exists := s.index[id]; exists {
			cancel()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, id)
		}

		s.index[id] = i
		s.slots = append(s.slots, &slot{
			source: src,
			result: source.Idle[*source.Media](id, src.Kind()),
		})
	}

	s.request.Store(request)
	s.results = stream.NewState(s.snapshot())
	s.cumulative = stream.NewState[[]*source.Media](nil, stream.WithEqual(sameMedia))

	go s.loop()
	return s, nil
}

func (s *Session) ID() uint64 {
	return s.id
}

// Generation increases with every RestartAll.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}

// Request is the request of the current generation.
func (s *Session) Request() *source.FetchRequest {
	return s.request.Load()
}

// Results streams the per-source snapshots in registration order.
func (s *Session) Results() *stream.State[[]source.Result[*source.Media]] {
	return s.results
}

// Cumulative streams every succeeded source's items, grouped in registration order.
func (s *Session) Cumulative() *stream.State[[]*source.Media] {
	return s.cumulative
}

// Start queries every enabled source. Calling it again does nothing.
func (s *Session) Start() error {
	return s.do(func() {
		if s.started {
			return
		}

		s.started = true
		for i, sl := range s.slots {
			if sl.result.State != source.StateDisabled {
				s.launch(i)
			}
		}
		s.publish()
	})
}

// Restart cancels the source's running query, if any, and queries it again.
// Only the latest restart's outcome is kept.
func (s *Session) Restart(instanceID string) error {
	var err error
	doErr := s.do(func() {
		i, ok := s.index[instanceID]
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownSource, instanceID)
			return
		}

		s.started = true
		s.launch(i)
		s.publish()
	})

	return errors.Join(doErr, err)
}

// RestartAll starts a new generation, optionally with a new request, and
// re-queries every source that is not disabled.
func (s *Session) RestartAll(request mo.Option[*source.FetchRequest]) error {
	return s.do(func() {
		if r, ok := request.Get(); ok {
			s.request.Store(r)
		}

		generation := s.generation.Add(1)
		s.logger().With(logrus.Fields{"generation": generation}).Infof("restarting all sources")

		s.started = true
		for i, sl := range s.slots {
			if sl.result.State != source.StateDisabled {
				s.launch(i)
			}
		}
		s.publish()
	})
}

// SetFetchRequest restarts every source with request when it differs from the current one.
func (s *Session) SetFetchRequest(request *source.FetchRequest) error {
	if request.Equal(s.Request()) {
		return nil
	}

	return s.RestartAll(mo.Some(request))
}

// SetEnabled disables a source, cancelling its query, or enables it and queries it again.
func (s *Session) SetEnabled(instanceID string, enabled bool) error {
	var err error
	doErr := s.do(func() {
		i, ok := s.index[instanceID]
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownSource, instanceID)
			return
		}

		sl := s.slots[i]
		disabled := sl.result.State == source.StateDisabled

		switch {
		case !enabled && !disabled:
			s.stop(sl)
			sl.result = sl.result.Disabled()
		case enabled && disabled:
			sl.result = source.Idle[*source.Media](instanceID, sl.source.Kind())
			if s.started {
				s.launch(i)
			}
		default:
			return
		}

		s.publish()
	})

	return errors.Join(doErr, err)
}

// Completed reports whether every source reached a terminal state.
func (s *Session) Completed() bool {
	return lo.EveryBy(s.results.Get(), func(r source.Result[*source.Media]) bool {
		return r.IsTerminal()
	})
}

// Remaining is the longest time a working source may still take before it times out.
func (s *Session) Remaining() time.Duration {
	var remaining time.Duration
	_ = s.do(func() {
		now := time.Now()
		for _, sl := range s.slots {
			if sl.result.State == source.StateWorking {
				remaining = max(remaining, sl.deadline.Sub(now))
			}
		}
	})

	return remaining
}

// Close cancels every query. No update is published afterwards.
func (s *Session) Close() {
	s.once.Do(s.cancel)
	<-s.stopped
}

func (s *Session) loop() {
	defer close(s.stopped)

	for {
		select {
		case <-s.ctx.Done():
			for _, sl := range s.slots {
				s.stop(sl)
			}
			s.results.Close()
			s.cumulative.Close()
			s.logger().Debugf("fetch session closed")
			return
		case fn := <-s.commands:
			fn()
		case r := <-s.reports:
			s.apply(r)
		}
	}
}

func (s *Session) do(fn func()) error {
	done := make(chan struct{})

	select {
	case s.commands <- func() { fn(); close(done) }:
	case <-s.ctx.Done():
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-s.ctx.Done():
		return ErrClosed
	}
}

func (s *Session) stop(sl *slot) {
	sl.token++
	if sl.cancel != nil {
		sl.cancel()
		sl.cancel = nil
	}
}

func (s *Session) launch(i int) {
	sl := s.slots[i]
	s.stop(sl)

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	sl.cancel = cancel
	sl.started = time.Now()
	sl.deadline = sl.started.Add(s.timeout)
	sl.result = sl.result.Working()

	go s.work(ctx, i, sl.token, sl.source, sl.result, s.Request())
}

func (s *Session) work(ctx context.Context, i int, token uint64, src source.MediaSource, working source.Result[*source.Media], request *source.FetchRequest) {
	items, err := query(ctx, src, request)

	var result source.Result[*source.Media]
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result = working.Failed(source.Timeout(fmt.Errorf("no result within %s", s.timeout)))
	case err != nil:
		result = working.Failed(source.Classify(err))
	default:
		result = working.Succeeded(own(src, items))
	}

	select {
	case s.reports <- report{index: i, token: token, result: result}:
	case <-s.ctx.Done():
	}
}

// query runs the source's query without trusting it to honor ctx or to never panic.
func query(ctx context.Context, src source.MediaSource, request *source.FetchRequest) (items []*source.Media, err error) {
	type outcome struct {
		items []*source.Media
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("source %s panicked: %v", src.InstanceID(), r)}
			}
		}()

		items, err := src.Query(ctx, request)
		done <- outcome{items, err}
	}()

	select {
	case o := <-done:
		return o.items, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// own copies the items so the session never shares them with the source.
func own(src source.MediaSource, items []*source.Media) []*source.Media {
	return lo.FilterMap(items, func(item *source.Media, _ int) (*source.Media, bool) {
		if item == nil {
			return nil, false
		}

		clone := *item
		clone.SourceID = src.InstanceID()
		if clone.Kind == "" {
			clone.Kind = src.Kind()
		}
		return &clone, true
	})
}

func (s *Session) apply(r report) {
	sl := s.slots[r.index]
	logger := s.logger().With(logrus.Fields{"source": sl.result.InstanceID})

	if r.token != sl.token {
		logger.Debugf("discarding superseded result")
		return
	}

	if sl.cancel != nil {
		sl.cancel()
		sl.cancel = nil
	}

	sl.result = r.result
	metrics.ObserveQuery(sl.result.InstanceID, sl.result.State.String(), sl.started)

	if r.result.Err != nil {
		logger.Warnf("query failed: %s", r.result.Err)
	} else {
		logger.Infof("query returned %d items", len(r.result.Items))
	}

	s.publish()
}

func (s *Session) snapshot() []source.Result[*source.Media] {
	return lo.Map(s.slots, func(sl *slot, _ int) source.Result[*source.Media] {
		return sl.result
	})
}

func (s *Session) publish() {
	results := s.snapshot()
	s.results.Set(results)
	s.cumulative.Set(lo.FlatMap(results, func(r source.Result[*source.Media], _ int) []*source.Media {
		return r.Items
	}))
}

func (s *Session) logger() *log.Entry {
	return log.With(logrus.Fields{"fetch_session": s.id})
}

func sameMedia(a, b []*source.Media) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !a[i].Same(b[i]) || a[i].URL != b[i].URL {
			return false
		}
	}

	return true
}
