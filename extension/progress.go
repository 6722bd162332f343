package extension

import (
	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/history"
	"github.com/anisan-cli/aniplay/player"
)

// RememberPlayProgress saves the position when playback pauses or stops and
// when the episode is switched, and resumes from it when the episode plays again.
type RememberPlayProgress struct {
	episode.BaseExtension
	History *history.Store

	// restored is the media key the position was last restored for.
	restored perSession[string]
}

func (*RememberPlayProgress) Name() string { return "remember-play-progress" }

func (r *RememberPlayProgress) OnPlaybackState(host episode.Host, session *episode.Session, state player.State) {
	switch state {
	case player.StatePaused, player.StateIdle:
		r.save(host, session)
	case player.StateFinished:
		if err := r.History.ClearProgress(historyKey(session)); err != nil {
			logger(r.Name(), session).Errorf("clear progress: %s", err)
		}
	case player.StatePlaying:
		r.restore(host, session)
	}
}

func (r *RememberPlayProgress) OnEpisodeSwitch(host episode.Host, from *episode.Session, _ string) {
	r.save(host, from)
}

func (r *RememberPlayProgress) OnSessionEnd(_ episode.Host, session *episode.Session) {
	r.restored.delete(session)
}

func (r *RememberPlayProgress) save(host episode.Host, session *episode.Session) {
	media := selected(session)
	position := host.Player().Position().Get()
	if media == nil || position <= 0 {
		return
	}

	err := r.History.SaveProgress(historyKey(session), media.Key(), position, host.Player().Duration().Get())
	if err != nil {
		logger(r.Name(), session).Errorf("save progress: %s", err)
		return
	}

	count(r.Name(), "save")
}

// restore seeks once per selected media. Positions within the last 5% are not resumed.
func (r *RememberPlayProgress) restore(host episode.Host, session *episode.Session) {
	media := selected(session)
	if media == nil || r.restored.swap(session, media.Key()) == media.Key() {
		return
	}

	record, ok := r.History.Progress(historyKey(session)).Get()
	if !ok || record.PositionMillis <= 0 {
		return
	}

	duration := record.DurationMillis
	if duration <= 0 {
		duration = host.Player().Duration().Get()
	}

	if duration > 0 && record.PositionMillis*100 >= duration*95 {
		logger(r.Name(), session).Infof("saved position is at the end, starting over")
		return
	}

	if err := host.Player().SeekTo(record.PositionMillis); err != nil {
		logger(r.Name(), session).Errorf("restore progress: %s", err)
		return
	}

	count(r.Name(), "restore")
}
