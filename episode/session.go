package episode

import (
	"context"
	"fmt"
	"sync"

	"github.com/anisan-cli/aniplay/danmaku"
	"github.com/anisan-cli/aniplay/fetch"
	"github.com/anisan-cli/aniplay/metadata"
	"github.com/anisan-cli/aniplay/selector"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
	"github.com/samber/mo"
)

// Session is the work of one episode: the fetch session, its selector and the
// danmaku loader. Closing it cancels all of them.
type Session struct {
	SubjectID string
	Subject   *metadata.Subject
	Episode   metadata.Episode

	Fetch       *fetch.Session
	Selector    *selector.Selector
	Danmaku     *danmaku.Loader
	DanmakuList *danmaku.ListStateProducer

	// NoPlayableSource is raised when every candidate failed to play.
	NoPlayableSource *stream.State[bool]

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	// danmakuFor is the media key danmaku was last loaded for. Only the dispatcher touches it.
	danmakuFor mo.Option[string]
}

// Context is done once the session is closed. Extensions bind their background work to it.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) EpisodeID() string {
	return s.Episode.ID
}

// Title is what the player shows.
func (s *Session) Title() string {
	return fmt.Sprintf("%s - %s", s.Subject.PrimaryName(), s.Episode.Name)
}

// Request is the fetch request of the current generation.
func (s *Session) Request() *source.FetchRequest {
	return s.Fetch.Request()
}

// EpisodeContext is what danmaku providers are asked about, with media as the selected item.
func (s *Session) EpisodeContext(media mo.Option[*source.Media]) *danmaku.EpisodeContext {
	request := s.Request()

	return &danmaku.EpisodeContext{
		SubjectID:      s.SubjectID,
		SubjectNames:   request.SubjectNames,
		EpisodeID:      s.Episode.ID,
		EpisodeSort:    s.Episode.Sort,
		EpisodeName:    s.Episode.Name,
		Media:          media,
		DurationMillis: int64(s.Subject.DurationMinutes) * 60_000,
	}
}

// Close cancels everything the session owns and waits for its dispatcher.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		if s.done != nil {
			<-s.done
		}

		s.DanmakuList.Close()
		s.Danmaku.Close()
		s.Selector.Close()
		s.Fetch.Close()
		s.NoPlayableSource.Close()
	})
}
