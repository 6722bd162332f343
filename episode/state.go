// Package episode orchestrates fetching, selecting and playing the episodes of one subject.
//
// FetchSelectPlayState owns at most one Session at a time. Switching episodes
// tears the previous session down before the next one starts fetching, so no
// result of an old episode ever reaches the selector or the player.
package episode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anisan-cli/aniplay/danmaku"
	"github.com/anisan-cli/aniplay/fetch"
	"github.com/anisan-cli/aniplay/key"
	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/metadata"
	"github.com/anisan-cli/aniplay/player"
	"github.com/anisan-cli/aniplay/preference"
	"github.com/anisan-cli/aniplay/selector"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var ErrMissingDependency = errors.New("missing dependency")

// MetadataLoader resolves the subject (critical) and its series context (secondary).
type MetadataLoader interface {
	LoadSubject(ctx context.Context, subjectID string) (*metadata.Subject, error)
	LoadSeries(ctx context.Context, subjectID string) (*metadata.Series, error)
}

// Preferences is the part of the preference store sessions follow.
type Preferences interface {
	Get() preference.Preferences
	SelectorSettings(ctx context.Context, subjectID string) *stream.State[selector.Settings]
	SetDanmakuEnabled(providerID string, enabled bool) error
}

type Options struct {
	FetchTimeout   time.Duration
	SettleWindow   time.Duration
	DanmakuTimeout time.Duration
	// SelfID marks the danmaku the local user posted.
	SelfID     string
	Comparator selector.ComparatorFactory
}

// OptionsFromConfig reads the options from viper.
func OptionsFromConfig() Options {
	return Options{
		FetchTimeout:   viper.GetDuration(key.FetchTimeout),
		SettleWindow:   viper.GetDuration(key.FetchSettleWindow),
		DanmakuTimeout: viper.GetDuration(key.DanmakuTimeout),
		SelfID:         viper.GetString(key.DanmakuSelfID),
	}
}

type Dependencies struct {
	Metadata         MetadataLoader
	Sources          []source.MediaSource
	DanmakuProviders []danmaku.Provider
	Player           player.Engine
	Preferences      Preferences
	Extensions       []Extension
	Options          Options
}

type Phase int

const (
	PhaseNoEpisode Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return "no episode"
	}
}

// PageState is what the episode page shows.
type PageState struct {
	Phase     Phase
	EpisodeID string
	// Session is set once Ready.
	Session *Session
	// LoadError blocks the episode until RestartLoad succeeds.
	LoadError *LoadError
	// SeriesError is informative only.
	SeriesError *LoadError
}

// FetchSelectPlayState drives the episodes of one subject.
type FetchSelectPlayState struct {
	subjectID string
	deps      Dependencies
	state     *stream.State[PageState]

	// switching serializes switches; only the latest claimed one may proceed.
	switching sync.Mutex

	mu         sync.Mutex
	latest     uint64
	cancelLoad context.CancelFunc
	current    *Session
	closed     bool
}

func New(subjectID string, deps Dependencies) (*FetchSelectPlayState, error) {
	switch {
	case deps.Metadata == nil:
		return nil, fmt.Errorf("%w: metadata loader", ErrMissingDependency)
	case deps.Player == nil:
		return nil, fmt.Errorf("%w: player", ErrMissingDependency)
	case deps.Preferences == nil:
		return nil, fmt.Errorf("%w: preferences", ErrMissingDependency)
	}

	return &FetchSelectPlayState{
		subjectID: subjectID,
		deps:      deps,
		state:     stream.NewState(PageState{}),
	}, nil
}

func (f *FetchSelectPlayState) SubjectID() string {
	return f.subjectID
}

func (f *FetchSelectPlayState) State() *stream.State[PageState] {
	return f.state
}

func (f *FetchSelectPlayState) Player() player.Engine {
	return f.deps.Player
}

// Current is the ready session, if any.
func (f *FetchSelectPlayState) Current() mo.Option[*Session] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return mo.EmptyableToOption(f.current)
}

// SwitchEpisode tears the current session down and starts the episode's.
// Switches run one at a time and the latest request wins: a switch that a later
// one replaced returns ErrSuperseded.
func (f *FetchSelectPlayState) SwitchEpisode(ctx context.Context, episodeID string) error {
	token, err := f.claim()
	if err != nil {
		return err
	}

	f.switching.Lock()
	defer f.switching.Unlock()

	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	f.mu.Lock()
	if f.closed || f.latest != token {
		f.mu.Unlock()
		return ErrSuperseded
	}
	f.cancelLoad = cancel
	previous := f.current
	f.current = nil
	f.mu.Unlock()

	logger := f.logger().With(logrus.Fields{"episode": episodeID})

	if previous != nil {
		for _, extension := range f.deps.Extensions {
			extension.OnEpisodeSwitch(f, previous, episodeID)
		}
		f.teardown(previous)
		if err := f.deps.Player.Stop(); err != nil && !errors.Is(err, player.ErrNotRunning) {
			logger.Warnf("stop player: %s", err)
		}
	}

	logger.Infof("switching episode")
	f.state.Set(PageState{Phase: PhaseLoading, EpisodeID: episodeID})

	session, seriesErr, err := f.open(loadCtx, episodeID)

	if f.superseded(token) {
		if session != nil {
			session.Close()
		}
		logger.Infof("superseded")
		return ErrSuperseded
	}

	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			f.state.Set(PageState{Phase: PhaseLoading, EpisodeID: episodeID, LoadError: loadErr})
		}
		logger.Errorf("%s", err)
		return err
	}

	f.start(session, seriesErr)
	return nil
}

// RestartLoad loads the current episode again, e.g. after a critical metadata error.
func (f *FetchSelectPlayState) RestartLoad(ctx context.Context) error {
	id := f.state.Get().EpisodeID
	if id == "" {
		return ErrNoEpisode
	}

	return f.SwitchEpisode(ctx, id)
}

// Refresh queries every source of the current episode again and forgets the selection.
func (f *FetchSelectPlayState) Refresh() error {
	session, ok := f.Current().Get()
	if !ok {
		return ErrNoEpisode
	}

	session.Selector.Reset()
	session.NoPlayableSource.Set(false)
	return session.Fetch.RestartAll(mo.None[*source.FetchRequest]())
}

// RestartSource queries one source of the current episode again.
func (f *FetchSelectPlayState) RestartSource(instanceID string) error {
	session, ok := f.Current().Get()
	if !ok {
		return ErrNoEpisode
	}

	return session.Fetch.Restart(instanceID)
}

// UpdateFetchRequest restarts the current episode's sources with request, e.g. with names the user added.
func (f *FetchSelectPlayState) UpdateFetchRequest(request *source.FetchRequest) error {
	session, ok := f.Current().Get()
	if !ok {
		return ErrNoEpisode
	}

	return session.Fetch.SetFetchRequest(request)
}

// SetDanmakuEnabled toggles a provider for the current episode and remembers the choice.
func (f *FetchSelectPlayState) SetDanmakuEnabled(providerID string, enabled bool) error {
	if session, ok := f.Current().Get(); ok {
		if err := session.Danmaku.SetEnabled(providerID, enabled); err != nil {
			return err
		}
	}

	return f.deps.Preferences.SetDanmakuEnabled(providerID, enabled)
}

// Close tears down the current session. The player is left to its owner.
func (f *FetchSelectPlayState) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	if f.cancelLoad != nil {
		f.cancelLoad()
	}
	f.mu.Unlock()

	f.switching.Lock()
	defer f.switching.Unlock()

	f.mu.Lock()
	current := f.current
	f.current = nil
	f.mu.Unlock()

	if current != nil {
		f.teardown(current)
	}

	f.state.Set(PageState{})
	f.state.Close()
}

func (f *FetchSelectPlayState) claim() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}

	f.latest++
	if f.cancelLoad != nil {
		f.cancelLoad()
		f.cancelLoad = nil
	}

	return f.latest, nil
}

func (f *FetchSelectPlayState) superseded(token uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed || f.latest != token
}

// open loads the metadata and builds the session without starting it.
func (f *FetchSelectPlayState) open(ctx context.Context, episodeID string) (*Session, *LoadError, error) {
	subject, err := f.deps.Metadata.LoadSubject(ctx, f.subjectID)
	switch {
	case ctx.Err() != nil:
		return nil, nil, ctx.Err()
	case err != nil:
		return nil, nil, critical(episodeID, err)
	}

	episode, ok := subject.Episode(episodeID)
	if !ok {
		return nil, nil, critical(episodeID, fmt.Errorf("%w: %s", ErrUnknownEpisode, episodeID))
	}

	request := &source.FetchRequest{
		SubjectID:    f.subjectID,
		EpisodeID:    episode.ID,
		SubjectNames: subject.Names,
		EpisodeSort:  episode.Sort,
		EpisodeName:  episode.Name,
	}

	var seriesErr *LoadError
	series, err := f.deps.Metadata.LoadSeries(ctx, f.subjectID)
	switch {
	case ctx.Err() != nil:
		return nil, nil, ctx.Err()
	case err != nil:
		seriesErr = secondary(episodeID, err)
		f.logger().Warnf("%s", seriesErr)
	default:
		request = request.WithNames(series.Names...)
	}

	return f.build(subject, episode, request, seriesErr)
}

func (f *FetchSelectPlayState) build(subject *metadata.Subject, episode metadata.Episode, request *source.FetchRequest, seriesErr *LoadError) (*Session, *LoadError, error) {
	options := f.deps.Options

	fetchSession, err := fetch.NewSession(request, f.deps.Sources, fetch.Options{Timeout: options.FetchTimeout})
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	preferences := f.deps.Preferences.Get()

	loader, err := danmaku.NewLoader(f.deps.DanmakuProviders, danmaku.LoaderOptions{
		Timeout:  options.DanmakuTimeout,
		SelfID:   options.SelfID,
		Position: f.deps.Player.Position().Get,
		Enabled:  preferences.DanmakuProviders,
	})
	if err != nil {
		cancel()
		fetchSession.Close()
		return nil, nil, err
	}

	session := &Session{
		SubjectID: f.subjectID,
		Subject:   subject,
		Episode:   episode,
		Fetch:     fetchSession,
		Selector: selector.New(fetchSession.Cumulative(), selector.Options{
			SettleWindow: options.SettleWindow,
			Settings:     f.deps.Preferences.SelectorSettings(ctx, f.subjectID),
			Comparator:   options.Comparator,
			Estimate:     fetchSession.Remaining,
		}),
		Danmaku:          loader,
		DanmakuList:      danmaku.NewListStateProducer(loader.All(), loader.FetchResults(), loader.Enabled()),
		NoPlayableSource: stream.NewState(false),
		ctx:              ctx,
		cancel:           cancel,
	}

	return session, seriesErr, nil
}

// start publishes the session as ready and lets it fetch. Subscriptions are made
// before the fetch begins so the dispatcher sees every selection change.
func (f *FetchSelectPlayState) start(session *Session, seriesErr *LoadError) {
	ctx := session.ctx
	changes := session.Selector.Changes().Subscribe(ctx)
	playback := f.deps.Player.Playback().Subscribe(ctx)
	failures := f.deps.Player.Errors().Subscribe(ctx)

	// the replayed state belongs to whatever played before this session
	<-playback

	for _, extension := range f.deps.Extensions {
		extension.OnSessionStart(f, session)
	}

	session.done = make(chan struct{})
	go f.dispatch(session, changes, playback, failures)

	f.mu.Lock()
	f.current = session
	f.mu.Unlock()

	f.state.Set(PageState{
		Phase:       PhaseReady,
		EpisodeID:   session.EpisodeID(),
		Session:     session,
		SeriesError: seriesErr,
	})

	if err := session.Fetch.Start(); err != nil {
		f.logger().Errorf("start fetch: %s", err)
	}
}

func (f *FetchSelectPlayState) teardown(session *Session) {
	for _, extension := range f.deps.Extensions {
		extension.OnSessionEnd(f, session)
	}

	session.Close()
	f.logger().With(logrus.Fields{"episode": session.EpisodeID()}).Infof("session closed")
}

// dispatch bridges the session's streams to the player and the extensions until the session closes.
func (f *FetchSelectPlayState) dispatch(session *Session, changes <-chan selector.Change, playback <-chan player.State, failures <-chan error) {
	defer close(session.done)

	for {
		select {
		case <-session.ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			f.onSelection(session, change)
		case state, ok := <-playback:
			if !ok {
				return
			}
			for _, extension := range f.deps.Extensions {
				extension.OnPlaybackState(f, session, state)
			}
		case err, ok := <-failures:
			if !ok {
				return
			}
			f.onPlaybackError(session, err)
		}
	}
}

func (f *FetchSelectPlayState) onSelection(session *Session, change selector.Change) {
	var failure error

	if media, ok := change.Item.Get(); ok {
		session.NoPlayableSource.Set(false)
		f.loadDanmaku(session, media)

		if err := f.deps.Player.Play(session.ctx, media, session.Title()); err != nil && session.ctx.Err() == nil {
			f.logger().With(logrus.Fields{"media": media.Key()}).Errorf("play: %s", err)
			failure = &player.PlaybackError{Media: media, Reason: err.Error()}
		}
	}

	for _, extension := range f.deps.Extensions {
		extension.OnSelectionChanged(f, session, change)
	}

	if failure != nil {
		f.onPlaybackError(session, failure)
	}
}

func (f *FetchSelectPlayState) onPlaybackError(session *Session, err error) {
	for _, extension := range f.deps.Extensions {
		extension.OnPlaybackError(f, session, err)
	}
}

// loadDanmaku queries the providers again whenever a different media is selected.
func (f *FetchSelectPlayState) loadDanmaku(session *Session, media *source.Media) {
	if len(f.deps.DanmakuProviders) == 0 || !f.deps.Preferences.Get().DanmakuEnabled {
		return
	}

	if loaded, ok := session.danmakuFor.Get(); ok && loaded == media.Key() {
		return
	}

	session.danmakuFor = mo.Some(media.Key())
	if err := session.Danmaku.Load(session.EpisodeContext(mo.Some(media))); err != nil {
		f.logger().Warnf("load danmaku: %s", err)
	}
}

func (f *FetchSelectPlayState) logger() *log.Entry {
	return log.With(logrus.Fields{"subject": f.subjectID})
}

// Episodes lists the subject's episodes in order, loading the subject when needed.
func (f *FetchSelectPlayState) Episodes(ctx context.Context) ([]metadata.Episode, error) {
	if session, ok := f.Current().Get(); ok {
		return session.Subject.Episodes, nil
	}

	subject, err := f.deps.Metadata.LoadSubject(ctx, f.subjectID)
	if err != nil {
		return nil, critical("", err)
	}

	return subject.Episodes, nil
}
