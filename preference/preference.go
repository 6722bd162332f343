// Package preference holds the selection policy, live updating while sessions run.
//
// Policy fields start from the configuration. What the store learns while
// playing (the media chosen per subject, the enabled danmaku providers) is
// persisted on its own.
package preference

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/key"
	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/selector"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
	"github.com/anisan-cli/aniplay/where"
	"github.com/metafates/gache"
	"github.com/samber/mo"
	"github.com/spf13/viper"
)

// SubjectPreference is the media last chosen for a subject.
type SubjectPreference struct {
	MediaKind source.Kind `json:"media_kind,omitempty"`
	SourceID  string      `json:"source_id,omitempty"`
}

type Preferences struct {
	MediaKind    mo.Option[source.Kind]
	Sources      []string
	Resolutions  []string
	AutoSelect   bool
	AutoSkipOpEd bool

	DanmakuEnabled   bool
	DanmakuProviders map[string]bool
	Subjects         map[string]SubjectPreference
}

func (p Preferences) clone() Preferences {
	p.Sources = slices.Clone(p.Sources)
	p.Resolutions = slices.Clone(p.Resolutions)
	p.DanmakuProviders = maps.Clone(p.DanmakuProviders)
	p.Subjects = maps.Clone(p.Subjects)
	return p
}

// learned is the persisted part.
type learned struct {
	DanmakuProviders map[string]bool              `json:"danmaku_providers"`
	Subjects         map[string]SubjectPreference `json:"subjects"`
}

// Defaults reads the policy from the configuration.
func Defaults() Preferences {
	kind, ok := source.ParseKind(viper.GetString(key.SelectorPreferredKind))

	return Preferences{
		MediaKind:        mo.TupleToOption(kind, ok),
		Sources:          viper.GetStringSlice(key.SelectorPreferredSources),
		Resolutions:      viper.GetStringSlice(key.SelectorPreferredResolutions),
		AutoSelect:       viper.GetBool(key.SelectorAutoSelect),
		AutoSkipOpEd:     viper.GetBool(key.PlayerAutoSkipOpEd),
		DanmakuEnabled:   viper.GetBool(key.DanmakuEnable),
		DanmakuProviders: make(map[string]bool),
		Subjects:         make(map[string]SubjectPreference),
	}
}

type Store struct {
	mu     sync.Mutex
	cacher *gache.Cache[*learned]
	state  *stream.State[Preferences]
}

// Open loads the learned preferences at path over the configured defaults.
func Open(path string) (*Store, error) {
	cacher := gache.New[*learned](&gache.Options{
		Path:       path,
		FileSystem: &filesystem.GacheFs{},
	})

	preferences := Defaults()

	saved, expired, err := cacher.Get()
	if err != nil {
		return nil, err
	}

	if !expired && saved != nil {
		maps.Copy(preferences.DanmakuProviders, saved.DanmakuProviders)
		maps.Copy(preferences.Subjects, saved.Subjects)
	}

	return &Store{cacher: cacher, state: stream.NewState(preferences)}, nil
}

// OpenDefault opens the preferences of the current user.
func OpenDefault() (*Store, error) {
	return Open(where.Preferences())
}

func (s *Store) Get() Preferences {
	return s.state.Get().clone()
}

// Stream follows every update.
func (s *Store) Stream() *stream.State[Preferences] {
	return s.state
}

// Update changes the preferences, persisting what was learned.
func (s *Store) Update(fn func(*Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	preferences := s.state.Get().clone()
	fn(&preferences)
	s.state.Set(preferences)

	return s.cacher.Set(&learned{
		DanmakuProviders: preferences.DanmakuProviders,
		Subjects:         preferences.Subjects,
	})
}

// RememberMedia ranks the media's source and kind first for the subject from now on.
func (s *Store) RememberMedia(subjectID string, media *source.Media) error {
	log.Infof("remembering %s for subject %s", media.SourceID, subjectID)

	return s.Update(func(p *Preferences) {
		if p.Subjects == nil {
			p.Subjects = make(map[string]SubjectPreference)
		}

		p.Subjects[subjectID] = SubjectPreference{MediaKind: media.Kind, SourceID: media.SourceID}
	})
}

func (s *Store) SetDanmakuEnabled(providerID string, enabled bool) error {
	return s.Update(func(p *Preferences) {
		if p.DanmakuProviders == nil {
			p.DanmakuProviders = make(map[string]bool)
		}

		p.DanmakuProviders[providerID] = enabled
	})
}

// SelectorSettings follows the selection policy of a subject until ctx is done.
func (s *Store) SelectorSettings(ctx context.Context, subjectID string) *stream.State[selector.Settings] {
	return stream.Derive(ctx, s.state, func(p Preferences) selector.Settings {
		return Settings(p, subjectID)
	}, stream.WithEqual(sameSettings))
}

// Settings is the selection policy for a subject.
func Settings(p Preferences, subjectID string) selector.Settings {
	settings := selector.Settings{
		PreferredKind:        p.MediaKind,
		PreferredSources:     p.Sources,
		PreferredResolutions: p.Resolutions,
	}

	if remembered, ok := p.Subjects[subjectID]; ok {
		settings.RememberedSource = remembered.SourceID
		if remembered.MediaKind != "" {
			settings.PreferredKind = mo.Some(remembered.MediaKind)
		}
	}

	return settings
}

func sameSettings(a, b selector.Settings) bool {
	return a.PreferredKind == b.PreferredKind &&
		a.RememberedSource == b.RememberedSource &&
		slices.EqualFunc(a.PreferredSources, b.PreferredSources, strings.EqualFold) &&
		slices.Equal(a.PreferredResolutions, b.PreferredResolutions)
}
