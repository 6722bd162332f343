// Package extension holds the behaviors layered on top of episode playback:
// progress, watched marks, next episode, media fallback, automatic and
// remembered selection, and skipping openings and endings.
package extension

import (
	"sync"
	"time"

	"github.com/anisan-cli/aniplay/episode"
	"github.com/anisan-cli/aniplay/history"
	"github.com/anisan-cli/aniplay/key"
	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/metrics"
	"github.com/anisan-cli/aniplay/preference"
	"github.com/anisan-cli/aniplay/source"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// PreferenceReader reads the current preferences.
type PreferenceReader interface {
	Get() preference.Preferences
}

// MediaRememberer persists the media chosen for a subject.
type MediaRememberer interface {
	RememberMedia(subjectID string, media *source.Media) error
}

type Config struct {
	History     *history.Store
	Preferences *preference.Store
	// Cacher is optional; CacheOnBtPlay is left out without one.
	Cacher  Cacher
	Skipper SkipTimer
	// Next defaults to KnownCompletedPolicy.
	Next NextEpisodeFunc

	CompletionPercentage int
	RememberProgress     bool
	AutoNext             bool
	SettleWindow         time.Duration
}

// ConfigFromViper fills the toggles from the configuration.
func ConfigFromViper(history *history.Store, preferences *preference.Store) Config {
	return Config{
		History:              history,
		Preferences:          preferences,
		CompletionPercentage: viper.GetInt(key.PlayerCompletionPercentage),
		RememberProgress:     viper.GetBool(key.PlayerRememberProgress),
		AutoNext:             viper.GetBool(key.PlayerAutoNext),
		SettleWindow:         viper.GetDuration(key.FetchSettleWindow),
	}
}

// Chain returns the enabled extensions in the order they must run.
func Chain(config Config) []episode.Extension {
	chain := []episode.Extension{&Analytics{}}

	if config.RememberProgress {
		chain = append(chain, &RememberPlayProgress{History: config.History})
	}

	chain = append(chain, &MarkAsWatched{History: config.History, Percentage: config.CompletionPercentage})

	if config.Cacher != nil {
		chain = append(chain, &CacheOnBtPlay{Cacher: config.Cacher})
	}

	if config.AutoNext {
		chain = append(chain, &SwitchNextEpisode{Next: config.Next})
	}

	chain = append(chain,
		&SwitchMediaOnPlayerError{},
		&AutoSelect{Preferences: config.Preferences},
		&SaveMediaPreference{Store: config.Preferences, Window: config.SettleWindow},
	)

	if config.Skipper != nil {
		chain = append(chain, &AutoSkip{Skipper: config.Skipper, Preferences: config.Preferences})
	}

	return chain
}

func historyKey(session *episode.Session) history.Key {
	return history.Key{SubjectID: session.SubjectID, EpisodeID: session.EpisodeID()}
}

func count(extension, event string) {
	metrics.ExtensionEvents.WithLabelValues(extension, event).Inc()
}

func logger(extension string, session *episode.Session) *log.Entry {
	return log.With(logrus.Fields{
		"extension": extension,
		"subject":   session.SubjectID,
		"episode":   session.EpisodeID(),
	})
}

// selected is the media the session currently plays, or nil.
func selected(session *episode.Session) *source.Media {
	return session.Selector.Selected().Get().OrEmpty()
}

// perSession keeps a value per live session; hooks of one session may run on two goroutines.
type perSession[T any] struct {
	mu     sync.Mutex
	values map[*episode.Session]T
}

func (p *perSession[T]) get(session *episode.Session) T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[session]
}

func (p *perSession[T]) set(session *episode.Session, value T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.values == nil {
		p.values = make(map[*episode.Session]T)
	}
	p.values[session] = value
}

// swap stores value and returns the previous one.
func (p *perSession[T]) swap(session *episode.Session, value T) T {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.values == nil {
		p.values = make(map[*episode.Session]T)
	}
	previous := p.values[session]
	p.values[session] = value
	return previous
}

func (p *perSession[T]) delete(session *episode.Session) T {
	p.mu.Lock()
	defer p.mu.Unlock()

	value := p.values[session]
	delete(p.values, session)
	return value
}
