package extension

import (
	"time"

	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/player"
	"github.com/anisan-cli/aniplay/selector"
)

// SaveMediaPreference remembers the kind and source of a media the user chose,
// once it stayed selected and playing for the whole window.
type SaveMediaPreference struct {
	episode.BaseExtension
	Store  MediaRememberer
	Window time.Duration

	pending perSession[*time.Timer]
}

func (*SaveMediaPreference) Name() string { return "save-media-preference" }

func (s *SaveMediaPreference) OnSelectionChanged(host episode.Host, session *episode.Session, change selector.Change) {
	media, ok := change.Item.Get()
	if !ok || !change.Explicit {
		s.stop(session)
		return
	}

	window := s.Window
	if window <= 0 {
		window = selector.DefaultSettleWindow
	}

	timer := time.AfterFunc(window, func() {
		if session.Context().Err() != nil {
			return
		}

		summary := session.Selector.Summary().Get()
		current, ok := summary.Item.Get()
		if !ok || !summary.Explicit || !current.Same(media) {
			return
		}

		if host.Player().Playback().Get() != player.StatePlaying {
			return
		}

		if err := s.Store.RememberMedia(session.SubjectID, media); err != nil {
			logger(s.Name(), session).Errorf("remember %s: %s", media.Key(), err)
			return
		}

		count(s.Name(), "remember")
	})

	if previous := s.pending.swap(session, timer); previous != nil {
		previous.Stop()
	}
}

func (s *SaveMediaPreference) OnSessionEnd(_ episode.Host, session *episode.Session) {
	if timer := s.pending.delete(session); timer != nil {
		timer.Stop()
	}
}

func (s *SaveMediaPreference) stop(session *episode.Session) {
	if timer := s.pending.get(session); timer != nil {
		timer.Stop()
	}
}
