package extension

import (
	"context"
	"time"

	"github.com/anisan-cli/aniplay/aniskip"
	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/player"
	"github.com/samber/lo"
)

// SkipTimer looks up the opening and ending of an episode.
type SkipTimer interface {
	SkipTimes(ctx context.Context, malID, episode int, lengthSec float64) ([]aniskip.Interval, error)
}

// durationWait bounds how long AutoSkip waits for the player to report a duration.
const durationWait = 30 * time.Second

// span is an interval to seek past, in milliseconds.
type span struct {
	title      string
	start, end int64
}

// AutoSkip seeks past the opening and ending once per interval while the
// preferences ask for it. It is not applied on the first episode of a list
// with more than one episode.
type AutoSkip struct {
	episode.BaseExtension
	Skipper     SkipTimer
	Preferences PreferenceReader

	started perSession[string]
}

func (*AutoSkip) Name() string { return "auto-skip" }

func (a *AutoSkip) OnPlaybackState(host episode.Host, session *episode.Session, state player.State) {
	if state != player.StatePlaying || !a.Preferences.Get().AutoSkipOpEd {
		return
	}

	media := selected(session)
	if media == nil || a.started.swap(session, media.Key()) == media.Key() {
		return
	}

	episodes := session.Subject.Episodes
	if session.Subject.MalID == 0 || len(episodes) > 1 && episodes[0].ID == session.EpisodeID() {
		return
	}

	go a.run(session.Context(), host, session)
}

func (a *AutoSkip) OnSessionEnd(_ episode.Host, session *episode.Session) {
	a.started.delete(session)
}

func (a *AutoSkip) run(ctx context.Context, host episode.Host, session *episode.Session) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	duration, ok := waitDuration(ctx, host.Player())
	if !ok {
		return
	}

	seconds := float64(duration) / 1000
	intervals, err := a.Skipper.SkipTimes(ctx, session.Subject.MalID, session.Episode.Sort, seconds)
	if err != nil {
		logger(a.Name(), session).Warnf("skip times: %s", err)
		return
	}

	spans := spansOf(intervals, seconds)
	if len(spans) == 0 {
		return
	}

	if marker, ok := host.Player().(player.ChapterMarker); ok {
		chapters := lo.Map(spans, func(s span, _ int) player.Chapter {
			return player.Chapter{Title: s.title, Start: float64(s.start) / 1000}
		})
		if err := marker.SetChapters(chapters); err != nil {
			logger(a.Name(), session).Warnf("set chapters: %s", err)
		}
	}

	skipped := make([]bool, len(spans))
	for position := range host.Player().Position().Subscribe(ctx) {
		for i, s := range spans {
			if skipped[i] || position < s.start || position >= s.end {
				continue
			}

			skipped[i] = true
			if err := host.Player().SeekTo(s.end); err != nil {
				logger(a.Name(), session).Warnf("skip %s: %s", s.title, err)
				continue
			}

			count(a.Name(), "skip")
			logger(a.Name(), session).Infof("skipped %s", s.title)
		}

		if !lo.Contains(skipped, false) {
			return
		}
	}
}

// ChapterLength is the assumed length in seconds of an opening or ending whose
// end is unknown: 85s for videos longer than 20 minutes, 55s for longer than 10,
// and none for shorter ones.
func ChapterLength(durationSec float64) float64 {
	switch {
	case durationSec > 20*60:
		return 85
	case durationSec > 10*60:
		return 55
	default:
		return 0
	}
}

func spansOf(intervals []aniskip.Interval, durationSec float64) []span {
	fallback := ChapterLength(durationSec)

	return lo.FilterMap(intervals, func(i aniskip.Interval, _ int) (span, bool) {
		length := i.Length(fallback)
		if length <= 0 {
			return span{}, false
		}

		title := "Opening"
		if i.Type == aniskip.Ending {
			title = "Ending"
		}

		start := int64(i.Start * 1000)
		return span{title: title, start: start, end: start + int64(length*1000)}, true
	})
}

func waitDuration(ctx context.Context, engine player.Engine) (int64, bool) {
	ctx, cancel := context.WithTimeout(ctx, durationWait)
	defer cancel()

	for duration := range engine.Duration().Subscribe(ctx) {
		if duration > 0 {
			return duration, true
		}
	}

	return 0, false
}
