// Package episodetest provides fakes for exercising code built on package episode.
package episodetest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/anisan-cli/aniplay/metadata"
	"github.com/anisan-cli/aniplay/player"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
)

// Metadata serves one subject.
type Metadata struct {
	Subject *metadata.Subject
	Series  *metadata.Series
	Err     error
}

// NewMetadata serves a finished subject with count episodes.
func NewMetadata(subjectID string, count int) *Metadata {
	return &Metadata{
		Subject: &metadata.Subject{
			ID:              subjectID,
			MalID:           52991,
			Names:           []string{"Frieren"},
			EpisodeCount:    count,
			Status:          metadata.StatusFinished,
			DurationMinutes: 24,
			Episodes:        metadata.BuildEpisodes(count, metadata.StatusFinished, 0),
		},
		Series: &metadata.Series{},
	}
}

func (m *Metadata) LoadSubject(context.Context, string) (*metadata.Subject, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Subject, nil
}

func (m *Metadata) LoadSeries(context.Context, string) (*metadata.Series, error) {
	return m.Series, nil
}

// Source answers Items for every request after Delay.
type Source struct {
	ID    string
	Type  source.Kind
	Delay time.Duration
	Items func(request *source.FetchRequest) []*source.Media
}

func (s *Source) InstanceID() string { return s.ID }
func (s *Source) Kind() source.Kind  { return s.Type }

func (s *Source) Query(ctx context.Context, request *source.FetchRequest) ([]*source.Media, error) {
	select {
	case <-time.After(s.Delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return s.Items(request), nil
}

// Episodic returns one media per episode, named "<prefix><episode id>".
func Episodic(kind source.Kind, prefix string) func(*source.FetchRequest) []*source.Media {
	return func(request *source.FetchRequest) []*source.Media {
		id := prefix + request.EpisodeID
		return []*source.Media{{
			ID:    id,
			Kind:  kind,
			Title: id,
			URL:   "https://example.com/" + id + ".mkv",
		}}
	}
}

// Player records what it is asked to do. Tests drive its streams directly.
type Player struct {
	mu       sync.Mutex
	played   []string
	seeks    []int64
	chapters []player.Chapter
	stops    int

	// PlayErr is returned by every Play.
	PlayErr error

	position *stream.State[int64]
	duration *stream.State[int64]
	playback *stream.State[player.State]
	errors   *stream.Events[error]
}

func NewPlayer() *Player {
	return &Player{
		position: stream.NewState[int64](0),
		duration: stream.NewState[int64](0),
		playback: stream.NewState(player.StateIdle),
		errors:   stream.NewEvents[error](),
	}
}

func (p *Player) Play(_ context.Context, media *source.Media, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.played = append(p.played, media.ID)
	if p.PlayErr != nil {
		return p.PlayErr
	}

	p.position.Set(0)
	p.playback.Set(player.StatePlaying)
	return nil
}

func (p *Player) Position() *stream.State[int64]        { return p.position }
func (p *Player) Duration() *stream.State[int64]        { return p.duration }
func (p *Player) Playback() *stream.State[player.State] { return p.playback }
func (p *Player) Errors() *stream.Events[error]         { return p.errors }

func (p *Player) SeekTo(ms int64) error {
	p.mu.Lock()
	p.seeks = append(p.seeks, ms)
	p.mu.Unlock()

	p.position.Set(ms)
	return nil
}

func (p *Player) Skip(ms int64) error {
	return p.SeekTo(p.position.Get() + ms)
}

func (p *Player) Stop() error {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()

	p.playback.Set(player.StateIdle)
	return nil
}

func (p *Player) SetChapters(chapters []player.Chapter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chapters = slices.Clone(chapters)
	return nil
}

func (p *Player) Close() error { return nil }

// Fail publishes a fatal playback error.
func (p *Player) Fail(err error) {
	p.errors.Publish(err)
}

// Played lists the ids of the media handed to Play, in order.
func (p *Player) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.played)
}

func (p *Player) Seeks() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.seeks)
}

func (p *Player) Chapters() []player.Chapter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.chapters)
}

// Eventually polls condition for up to three seconds.
func Eventually(condition func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
