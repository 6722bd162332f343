package extension

import (
	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/metrics"
	"github.com/anisan-cli/aniplay/player"
	"github.com/anisan-cli/aniplay/selector"
	"github.com/sirupsen/logrus"
)

// Analytics logs and counts what happens to every session.
type Analytics struct {
	episode.BaseExtension
}

func (*Analytics) Name() string { return "analytics" }

func (a *Analytics) OnSessionStart(_ episode.Host, session *episode.Session) {
	count(a.Name(), "session_start")
	logger(a.Name(), session).Infof("session started with %d names", len(session.Request().SubjectNames))
}

func (a *Analytics) OnSelectionChanged(_ episode.Host, session *episode.Session, change selector.Change) {
	media, ok := change.Item.Get()
	if !ok {
		count(a.Name(), "unselect")
		return
	}

	count(a.Name(), "select")
	logger(a.Name(), session).With(logrus.Fields{
		"media":    media.Key(),
		"kind":     media.Kind,
		"explicit": change.Explicit,
	}).Infof("selected")
}

func (a *Analytics) OnPlaybackState(_ episode.Host, _ *episode.Session, state player.State) {
	count(a.Name(), "playback_"+state.String())
}

func (a *Analytics) OnPlaybackError(_ episode.Host, session *episode.Session, err error) {
	metrics.PlaybackErrors.Inc()
	logger(a.Name(), session).Errorf("playback: %s", err)
}

func (a *Analytics) OnEpisodeSwitch(_ episode.Host, from *episode.Session, to string) {
	count(a.Name(), "switch")
	logger(a.Name(), from).Infof("switching to %s", to)
}
