package danmaku

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

var (
	ErrMatchCancelled  = errors.New("match cancelled")
	ErrMatchIncomplete = errors.New("no subject or episode selected")
	ErrUnknownSubject  = errors.New("subject is not among the candidates")
	ErrUnknownEpisode  = errors.New("episode is not among the candidates")
)

// MatchSession lets the user pick a provider's subject and episode by hand.
// Completing it overrides the provider's result in the loader.
type MatchSession struct {
	loader   *Loader
	provider InteractiveProvider

	mu        sync.Mutex
	subjects  []Subject
	subject   mo.Option[Subject]
	episodes  []Episode
	episode   mo.Option[Episode]
	cancelled bool
}

func newMatchSession(loader *Loader, provider InteractiveProvider) *MatchSession {
	return &MatchSession{loader: loader, provider: provider}
}

func (m *MatchSession) ProviderID() string {
	return m.provider.ID()
}

// SubmitQuery searches the provider and returns the candidates closest to query first.
func (m *MatchSession) SubmitQuery(ctx context.Context, query string) ([]Subject, error) {
	if err := m.check(); err != nil {
		return nil, err
	}

	subjects, err := m.provider.SearchSubjects(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q on %s: %w", query, m.provider.ID(), err)
	}

	ranked := RankSubjects(query, subjects)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = ranked
	m.subject = mo.None[Subject]()
	m.episodes = nil
	m.episode = mo.None[Episode]()

	return ranked, nil
}

// SelectSubject picks a candidate of the last query and lists its episodes.
func (m *MatchSession) SelectSubject(ctx context.Context, subjectID string) ([]Episode, error) {
	if err := m.check(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	subject, found := lo.Find(m.subjects, func(s Subject) bool { return s.ID == subjectID })
	m.mu.Unlock()

	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubject, subjectID)
	}

	episodes, err := m.provider.SubjectEpisodes(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("episodes of %s on %s: %w", subject.Title, m.provider.ID(), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subject = mo.Some(subject)
	m.episodes = episodes
	m.episode = mo.None[Episode]()

	return episodes, nil
}

func (m *MatchSession) SelectEpisode(episodeID string) error {
	if err := m.check(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	episode, found := lo.Find(m.episodes, func(e Episode) bool { return e.ID == episodeID })
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownEpisode, episodeID)
	}

	m.episode = mo.Some(episode)
	return nil
}

// Complete fetches the chosen episode's comments and hands them to the loader.
func (m *MatchSession) Complete(ctx context.Context) error {
	if err := m.check(); err != nil {
		return err
	}

	m.mu.Lock()
	subject, hasSubject := m.subject.Get()
	episode, hasEpisode := m.episode.Get()
	m.mu.Unlock()

	if !hasSubject || !hasEpisode {
		return ErrMatchIncomplete
	}

	items, err := m.provider.EpisodeDanmaku(ctx, subject, episode)
	if err != nil {
		return fmt.Errorf("danmaku of %s %s on %s: %w", subject.Title, episode.Sort, m.provider.ID(), err)
	}

	if err := m.check(); err != nil {
		return err
	}

	return m.loader.OverrideResults(m.provider.ID(), MatchResult{
		Info: MatchInfo{
			Method:       MatchManual,
			SubjectTitle: subject.Title,
			EpisodeTitle: episode.Title,
		},
		Items: items,
	})
}

// Cancel abandons the session; the provider's result stays as it was.
func (m *MatchSession) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
}

func (m *MatchSession) check() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelled {
		return ErrMatchCancelled
	}
	return nil
}
