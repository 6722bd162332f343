package extension

import (
	"context"
	"errors"

	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/metadata"
	"github.com/anisan-cli/aniplay/player"
	"github.com/samber/mo"
)

// NextEpisodeFunc decides which episode follows current, if any.
type NextEpisodeFunc func(subject *metadata.Subject, current metadata.Episode) mo.Option[string]

// KnownCompletedPolicy moves on to the next episode of the list only once it is known to have aired.
func KnownCompletedPolicy(subject *metadata.Subject, current metadata.Episode) mo.Option[string] {
	next, ok := subject.Next(current.ID)
	if !ok || !next.KnownCompleted {
		return mo.None[string]()
	}

	return mo.Some(next.ID)
}

// SwitchNextEpisode switches to the next episode when playback finishes.
type SwitchNextEpisode struct {
	episode.BaseExtension
	Next NextEpisodeFunc

	switched perSession[bool]
}

func (*SwitchNextEpisode) Name() string { return "switch-next-episode" }

func (s *SwitchNextEpisode) OnPlaybackState(host episode.Host, session *episode.Session, state player.State) {
	if state != player.StateFinished {
		return
	}

	next := s.Next
	if next == nil {
		next = KnownCompletedPolicy
	}

	id, ok := next(session.Subject, session.Episode).Get()
	if !ok {
		logger(s.Name(), session).Infof("no next episode to play")
		return
	}

	if s.switched.swap(session, true) {
		return
	}

	count(s.Name(), "switch")
	logger(s.Name(), session).Infof("switching to episode %s", id)

	// the switch tears this session down, so it cannot run on the hook's goroutine
	go func() {
		err := host.SwitchEpisode(context.Background(), id)
		if err != nil && !errors.Is(err, episode.ErrSuperseded) && !errors.Is(err, episode.ErrClosed) {
			logger(s.Name(), session).Errorf("switch to %s: %s", id, err)
		}
	}()
}

func (s *SwitchNextEpisode) OnSessionEnd(_ episode.Host, session *episode.Session) {
	s.switched.delete(session)
}
