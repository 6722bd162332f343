package extension

import (
	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/history"
	"github.com/anisan-cli/aniplay/player"
)

// DefaultCompletionPercentage is used when MarkAsWatched.Percentage is out of range.
const DefaultCompletionPercentage = 80

// MarkAsWatched marks the episode watched once enough of it played, or when it finishes.
type MarkAsWatched struct {
	episode.BaseExtension
	History    *history.Store
	Percentage int

	marked perSession[bool]
}

func (*MarkAsWatched) Name() string { return "mark-as-watched" }

func (m *MarkAsWatched) OnSessionStart(host episode.Host, session *episode.Session) {
	positions := host.Player().Position().Subscribe(session.Context())

	go func() {
		for position := range positions {
			if host.Player().Playback().Get() != player.StatePlaying || selected(session) == nil {
				continue
			}

			if m.reached(position, host.Player().Duration().Get()) {
				m.mark(session)
				return
			}
		}
	}()
}

func (m *MarkAsWatched) OnPlaybackState(_ episode.Host, session *episode.Session, state player.State) {
	if state == player.StateFinished {
		m.mark(session)
	}
}

func (m *MarkAsWatched) OnSessionEnd(_ episode.Host, session *episode.Session) {
	m.marked.delete(session)
}

func (m *MarkAsWatched) reached(position, duration int64) bool {
	percentage := m.Percentage
	if percentage <= 0 || percentage > 100 {
		percentage = DefaultCompletionPercentage
	}

	return duration > 0 && position*100 >= duration*int64(percentage)
}

func (m *MarkAsWatched) mark(session *episode.Session) {
	if session.Context().Err() != nil || m.marked.swap(session, true) {
		return
	}

	if err := m.History.MarkWatched(historyKey(session)); err != nil {
		logger(m.Name(), session).Errorf("mark watched: %s", err)
		return
	}

	count(m.Name(), "watched")
	logger(m.Name(), session).Infof("marked as watched")
}
