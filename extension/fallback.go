package extension

import (
	"errors"

	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/player"
)

// SwitchMediaOnPlayerError excludes a media the player could not play and moves
// on to the best remaining candidate. With none left, the session is flagged as
// having no playable source.
type SwitchMediaOnPlayerError struct {
	episode.BaseExtension
}

func (*SwitchMediaOnPlayerError) Name() string { return "switch-media-on-player-error" }

func (s *SwitchMediaOnPlayerError) OnPlaybackError(_ episode.Host, session *episode.Session, err error) {
	failed := selected(session)

	var playbackErr *player.PlaybackError
	if errors.As(err, &playbackErr) && playbackErr.Media != nil {
		failed = playbackErr.Media
	}

	if failed == nil {
		return
	}

	session.Selector.Exclude(failed)
	count(s.Name(), "exclude")

	candidates := session.Selector.Candidates()
	if len(candidates) == 0 {
		logger(s.Name(), session).Warnf("no playable source left after %s failed", failed.Key())
		session.NoPlayableSource.Set(true)
		return
	}

	if session.Selector.FastSelect(candidates[0]) {
		logger(s.Name(), session).Infof("switched from %s to %s", failed.Key(), candidates[0].Key())
	}
}
