package episode

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/metadata"
	"github.com/anisan-cli/aniplay/player"
	"github.com/anisan-cli/aniplay/preference"
	"github.com/anisan-cli/aniplay/selector"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

type fakeMetadata struct {
	mu         sync.Mutex
	delay      time.Duration
	subjectErr error
	seriesErr  error
	calls      int
}

func (f *fakeMetadata) LoadSubject(ctx context.Context, subjectID string) (*metadata.Subject, error) {
	f.mu.Lock()
	f.calls++
	delay, err := f.delay, f.subjectErr
	f.mu.Unlock()

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err != nil {
		return nil, err
	}

	return &metadata.Subject{
		ID:       subjectID,
		Names:    []string{"Frieren"},
		Status:   metadata.StatusFinished,
		Episodes: metadata.BuildEpisodes(3, metadata.StatusFinished, 0),
	}, nil
}

func (f *fakeMetadata) LoadSeries(context.Context, string) (*metadata.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seriesErr != nil {
		return nil, f.seriesErr
	}
	return &metadata.Series{Names: []string{"Frieren 2"}}, nil
}

func (f *fakeMetadata) set(fn func(*fakeMetadata)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// fakeSource answers "ep<N>" for episode N after the episode's delay.
type fakeSource struct {
	id     string
	delays map[string]time.Duration

	mu        sync.Mutex
	cancelled []string
}

func (f *fakeSource) InstanceID() string { return f.id }
func (f *fakeSource) Kind() source.Kind  { return source.KindWeb }

func (f *fakeSource) Query(ctx context.Context, request *source.FetchRequest) ([]*source.Media, error) {
	select {
	case <-time.After(f.delays[request.EpisodeID]):
	case <-ctx.Done():
		f.mu.Lock()
		f.cancelled = append(f.cancelled, request.EpisodeID)
		f.mu.Unlock()
		return nil, ctx.Err()
	}

	id := "ep" + request.EpisodeID
	return []*source.Media{{
		ID:    id,
		Kind:  source.KindWeb,
		Title: id,
		URL:   "https://example.com/" + id + ".m3u8",
	}}, nil
}

func (f *fakeSource) wasCancelled(episodeID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.cancelled, episodeID)
}

type fakePlayer struct {
	mu      sync.Mutex
	played  []string
	stops   int
	playErr error

	position *stream.State[int64]
	duration *stream.State[int64]
	playback *stream.State[player.State]
	errors   *stream.Events[error]
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{
		position: stream.NewState[int64](0),
		duration: stream.NewState[int64](0),
		playback: stream.NewState(player.StateIdle),
		errors:   stream.NewEvents[error](),
	}
}

func (p *fakePlayer) Play(_ context.Context, media *source.Media, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.played = append(p.played, media.ID)
	if p.playErr != nil {
		return p.playErr
	}

	p.playback.Set(player.StatePlaying)
	return nil
}

func (p *fakePlayer) Position() *stream.State[int64]        { return p.position }
func (p *fakePlayer) Duration() *stream.State[int64]        { return p.duration }
func (p *fakePlayer) Playback() *stream.State[player.State] { return p.playback }
func (p *fakePlayer) Errors() *stream.Events[error]         { return p.errors }
func (p *fakePlayer) SeekTo(ms int64) error                 { p.position.Set(ms); return nil }
func (p *fakePlayer) Skip(ms int64) error                   { return nil }
func (p *fakePlayer) Close() error                          { return nil }

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stops++
	p.playback.Set(player.StateIdle)
	return nil
}

func (p *fakePlayer) history() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.played)
}

// recorder enables automatic selection and records the hooks it sees.
type recorder struct {
	BaseExtension

	mu    sync.Mutex
	calls []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *recorder) OnSessionStart(_ Host, session *Session) {
	session.Selector.SetAutoSelect(true)
	r.add("start %s", session.EpisodeID())
}

func (r *recorder) OnSelectionChanged(_ Host, session *Session, change selector.Change) {
	if media, ok := change.Item.Get(); ok {
		r.add("select %s", media.ID)
	}
}

func (r *recorder) OnPlaybackError(_ Host, session *Session, err error) {
	r.add("error %s", session.EpisodeID())
}

func (r *recorder) OnEpisodeSwitch(_ Host, from *Session, to string) {
	r.add("switch %s->%s", from.EpisodeID(), to)
}

func (r *recorder) OnSessionEnd(_ Host, session *Session) {
	r.add("end %s", session.EpisodeID())
}

func eventually(condition func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

type fixture struct {
	metadata    *fakeMetadata
	source      *fakeSource
	player      *fakePlayer
	recorder    *recorder
	preferences *preference.Store
	state       *FetchSelectPlayState
}

func newFixture(t *testing.T) *fixture {
	preferences, err := preference.Open(filepath.Join(t.TempDir(), "preferences.json"))
	So(err, ShouldBeNil)

	f := &fixture{
		metadata:    &fakeMetadata{},
		source:      &fakeSource{id: "web-A", delays: map[string]time.Duration{"1": 5 * time.Second, "2": 20 * time.Millisecond}},
		player:      newFakePlayer(),
		recorder:    &recorder{},
		preferences: preferences,
	}

	f.state, err = New("154587", Dependencies{
		Metadata:    f.metadata,
		Sources:     []source.MediaSource{f.source},
		Player:      f.player,
		Preferences: preferences,
		Extensions:  []Extension{f.recorder},
		Options: Options{
			FetchTimeout: 10 * time.Second,
			SettleWindow: 50 * time.Millisecond,
		},
	})
	So(err, ShouldBeNil)

	return f
}

func TestNew(t *testing.T) {
	Convey("A missing player is rejected", t, func() {
		_, err := New("1", Dependencies{Metadata: &fakeMetadata{}})
		So(errors.Is(err, ErrMissingDependency), ShouldBeTrue)
	})
}

func TestSwitchEpisode(t *testing.T) {
	Convey("Given an orchestrator with no episode", t, func() {
		f := newFixture(t)
		defer f.state.Close()

		So(f.state.State().Get().Phase, ShouldEqual, PhaseNoEpisode)

		Convey("Switching to an episode makes it ready and plays the selected media", func() {
			So(f.state.SwitchEpisode(context.Background(), "2"), ShouldBeNil)

			state := f.state.State().Get()
			So(state.Phase, ShouldEqual, PhaseReady)
			So(state.EpisodeID, ShouldEqual, "2")
			So(state.Session.Request().SubjectNames, ShouldResemble, []string{"Frieren", "Frieren 2"})

			So(eventually(func() bool { return slices.Equal(f.player.history(), []string{"ep2"}) }), ShouldBeTrue)
			So(f.recorder.seen(), ShouldResemble, []string{"start 2", "select ep2"})
		})

		Convey("Switching while the previous episode is still fetching cancels it", func() {
			So(f.state.SwitchEpisode(context.Background(), "1"), ShouldBeNil)
			first := f.state.Current().MustGet()

			So(f.state.SwitchEpisode(context.Background(), "2"), ShouldBeNil)

			So(first.Context().Err(), ShouldNotBeNil)
			So(eventually(func() bool { return f.source.wasCancelled("1") }), ShouldBeTrue)
			So(eventually(func() bool { return len(f.player.history()) == 1 }), ShouldBeTrue)
			So(f.player.history(), ShouldResemble, []string{"ep2"})

			seen := f.recorder.seen()
			So(seen[:4], ShouldResemble, []string{"start 1", "switch 1->2", "end 1", "start 2"})
		})

		Convey("Only the latest of concurrent switches wins", func() {
			f.metadata.set(func(m *fakeMetadata) { m.delay = 300 * time.Millisecond })

			older := make(chan error, 1)
			go func() {
				older <- f.state.SwitchEpisode(context.Background(), "1")
			}()

			time.Sleep(50 * time.Millisecond)
			So(f.state.SwitchEpisode(context.Background(), "3"), ShouldBeNil)
			So(<-older, ShouldEqual, ErrSuperseded)
			So(f.state.State().Get().EpisodeID, ShouldEqual, "3")
		})

		Convey("A subject that fails to load blocks the episode until it is retried", func() {
			f.metadata.set(func(m *fakeMetadata) { m.subjectErr = metadata.ErrNotFound })

			err := f.state.SwitchEpisode(context.Background(), "2")
			So(errors.Is(err, ErrCriticalMetadataLoad), ShouldBeTrue)
			So(errors.Is(err, metadata.ErrNotFound), ShouldBeTrue)

			state := f.state.State().Get()
			So(state.Phase, ShouldEqual, PhaseLoading)
			So(state.LoadError, ShouldNotBeNil)
			So(state.LoadError.Critical, ShouldBeTrue)

			f.metadata.set(func(m *fakeMetadata) { m.subjectErr = nil })
			So(f.state.RestartLoad(context.Background()), ShouldBeNil)
			So(f.state.State().Get().Phase, ShouldEqual, PhaseReady)
		})

		Convey("An episode the subject does not have is a critical error", func() {
			err := f.state.SwitchEpisode(context.Background(), "42")
			So(errors.Is(err, ErrCriticalMetadataLoad), ShouldBeTrue)
			So(errors.Is(err, ErrUnknownEpisode), ShouldBeTrue)
		})

		Convey("A missing series context does not block the episode", func() {
			f.metadata.set(func(m *fakeMetadata) { m.seriesErr = errors.New("boom") })

			So(f.state.SwitchEpisode(context.Background(), "2"), ShouldBeNil)

			state := f.state.State().Get()
			So(state.Phase, ShouldEqual, PhaseReady)
			So(errors.Is(state.SeriesError, ErrSecondaryMetadataLoad), ShouldBeTrue)
			So(state.Session.Request().SubjectNames, ShouldResemble, []string{"Frieren"})
		})

		Convey("Player errors reach the extensions of the current session", func() {
			So(f.state.SwitchEpisode(context.Background(), "2"), ShouldBeNil)
			So(eventually(func() bool { return len(f.player.history()) == 1 }), ShouldBeTrue)

			f.player.errors.Publish(&player.PlaybackError{Reason: "cannot open"})
			So(eventually(func() bool { return slices.Contains(f.recorder.seen(), "error 2") }), ShouldBeTrue)
		})

		Convey("A media the player refuses is reported as a playback error", func() {
			f.player.playErr = errors.New("refused")

			So(f.state.SwitchEpisode(context.Background(), "2"), ShouldBeNil)
			So(eventually(func() bool { return slices.Contains(f.recorder.seen(), "error 2") }), ShouldBeTrue)
		})

		Convey("Operations on the current episode need one", func() {
			So(f.state.Refresh(), ShouldEqual, ErrNoEpisode)
			So(f.state.RestartSource("web-A"), ShouldEqual, ErrNoEpisode)
			So(f.state.RestartLoad(context.Background()), ShouldEqual, ErrNoEpisode)
		})

		Convey("Danmaku choices are remembered", func() {
			So(f.state.SetDanmakuEnabled("dandan", false), ShouldBeNil)
			So(f.preferences.Get().DanmakuProviders["dandan"], ShouldBeFalse)
			So(f.preferences.Get().DanmakuProviders, ShouldContainKey, "dandan")
		})

		Convey("Closing ends the session and refuses further switches", func() {
			So(f.state.SwitchEpisode(context.Background(), "2"), ShouldBeNil)
			session := f.state.Current().MustGet()

			f.state.Close()

			So(session.Context().Err(), ShouldNotBeNil)
			So(f.state.Current().IsAbsent(), ShouldBeTrue)
			So(f.state.SwitchEpisode(context.Background(), "3"), ShouldEqual, ErrClosed)
		})
	})
}
