package extension

import (
	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/source"
	"github.com/samber/lo"
)

// AutoSelect turns on automatic ranking for every session when the preferences
// ask for it, and plays a local copy as soon as one shows up.
type AutoSelect struct {
	episode.BaseExtension
	Preferences PreferenceReader
}

func (*AutoSelect) Name() string { return "auto-select" }

func (a *AutoSelect) OnSessionStart(_ episode.Host, session *episode.Session) {
	if !a.Preferences.Get().AutoSelect {
		return
	}

	session.Selector.SetAutoSelect(true)
	updates := session.Fetch.Cumulative().Subscribe(session.Context())

	go func() {
		for items := range updates {
			if session.Selector.Selected().Get().IsPresent() {
				return
			}

			local, ok := lo.Find(items, func(m *source.Media) bool {
				return m.Kind == source.KindLocal
			})
			if ok && session.Selector.FastSelect(local) {
				count(a.Name(), "local")
				logger(a.Name(), session).Infof("playing local %s right away", local.Key())
				return
			}
		}
	}()
}
