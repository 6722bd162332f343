package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/network"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/where"
	"github.com/machinebox/graphql"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// DefaultEndpoint is the public AniList GraphQL API.
const DefaultEndpoint = "https://graphql.anilist.co"

type title struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

func (t title) names() []string {
	return lo.Compact([]string{t.English, t.Romaji, t.Native})
}

type media struct {
	ID                int      `json:"id"`
	IDMal             int      `json:"idMal"`
	Title             title    `json:"title"`
	Synonyms          []string `json:"synonyms"`
	Status            string   `json:"status"`
	Episodes          int      `json:"episodes"`
	Duration          int      `json:"duration"`
	NextAiringEpisode *struct {
		Episode int `json:"episode"`
	} `json:"nextAiringEpisode"`
}

func (m *media) subject() *Subject {
	next := 0
	if m.NextAiringEpisode != nil {
		next = m.NextAiringEpisode.Episode
	}

	names := lo.UniqBy(append(m.Title.names(), m.Synonyms...), normalizedName)

	return &Subject{
		ID:                strconv.Itoa(m.ID),
		MalID:             m.IDMal,
		Names:             lo.Compact(names),
		EpisodeCount:      m.Episodes,
		Status:            m.Status,
		NextAiringEpisode: next,
		DurationMinutes:   m.Duration,
		Episodes:          BuildEpisodes(m.Episodes, m.Status, next),
	}
}

// AniList loads subject metadata from the AniList GraphQL API.
// Responses are cached on disk.
type AniList struct {
	Endpoint string
	Client   *http.Client

	subjects  *cacher[int, *Subject]
	series    *cacher[int, *Series]
	searches  *cacher[string, []int]
	relations *cacher[string, int]
	failures  *cacher[string, bool]
	queries   *queryHistory
}

// New creates a client caching under dir.
func New(dir string) *AniList {
	return &AniList{
		Endpoint:  DefaultEndpoint,
		Client:    network.Client,
		subjects:  newCacher[int, *Subject](dir, "anilist_id_cache.json", 12*time.Hour, nil),
		series:    newCacher[int, *Series](dir, "anilist_series_cache.json", 10*24*time.Hour, nil),
		searches:  newCacher[string, []int](dir, "anilist_search_cache.json", 10*24*time.Hour, normalizedName),
		relations: newCacher[string, int](dir, "anilist_binds.json", 0, normalizedName),
		failures:  newCacher[string, bool](dir, "anilist_fail_cache.json", time.Minute, normalizedName),
		queries:   newQueryHistory(dir),
	}
}

// Default is the client shared by the CLI.
var Default = sync.OnceValue(func() *AniList {
	return New(where.Metadata())
})

func (a *AniList) graphql() *graphql.Client {
	client := graphql.NewClient(a.Endpoint, graphql.WithHTTPClient(&http.Client{
		Transport: &network.StatusTransport{
			Client:   a.Client,
			Policy:   network.DefaultRetryPolicy,
			NotFound: ErrNotFound,
		},
	}))
	client.Log = func(s string) { log.Tracef("anilist: %s", s) }
	return client
}

func (a *AniList) do(ctx context.Context, query string, variables map[string]any, out any) error {
	req := graphql.NewRequest(query)
	for name, value := range variables {
		req.Var(name, value)
	}

	err := a.graphql().Run(ctx, req, out)
	var urlErr *url.Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.As(err, &urlErr):
		return fmt.Errorf("anilist: %w", urlErr.Err)
	case strings.HasPrefix(err.Error(), "decoding response"):
		return fmt.Errorf("anilist: %w: %w", source.ErrParse, err)
	default:
		return fmt.Errorf("anilist: %s", strings.TrimPrefix(err.Error(), "graphql: "))
	}
}

// LoadSubject returns the subject with its episode list.
func (a *AniList) LoadSubject(ctx context.Context, subjectID string) (*Subject, error) {
	id, err := parseID(subjectID)
	if err != nil {
		return nil, err
	}

	if subject, ok := a.subjects.Get(id).Get(); ok {
		return subject, nil
	}

	log.With(logrus.Fields{"subject": id}).Infof("loading subject from anilist")

	var response struct {
		Media *media `json:"Media"`
	}

	if err := a.do(ctx, searchByIDQuery, map[string]any{"id": id}, &response); err != nil {
		return nil, err
	}

	if response.Media == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	subject := response.Media.subject()
	_ = a.subjects.Set(id, subject)
	return subject, nil
}

var seriesRelations = []string{"PREQUEL", "SEQUEL", "PARENT"}

// LoadSeries returns the names of the subject's prequels, sequels and parent.
func (a *AniList) LoadSeries(ctx context.Context, subjectID string) (*Series, error) {
	id, err := parseID(subjectID)
	if err != nil {
		return nil, err
	}

	if series, ok := a.series.Get(id).Get(); ok {
		return series, nil
	}

	var response struct {
		Media *struct {
			Relations struct {
				Edges []struct {
					RelationType string `json:"relationType"`
					Node         struct {
						ID    int    `json:"id"`
						Type  string `json:"type"`
						Title title  `json:"title"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"relations"`
		} `json:"Media"`
	}

	if err := a.do(ctx, relationsQuery, map[string]any{"id": id}, &response); err != nil {
		return nil, err
	}

	if response.Media == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	series := &Series{}
	for _, edge := range response.Media.Relations.Edges {
		if edge.Node.Type != "ANIME" || !lo.Contains(seriesRelations, edge.RelationType) {
			continue
		}
		series.Names = append(series.Names, edge.Node.Title.names()...)
	}
	series.Names = lo.UniqBy(series.Names, normalizedName)

	_ = a.series.Set(id, series)
	return series, nil
}

// Search returns subjects whose title matches name.
func (a *AniList) Search(ctx context.Context, name string) ([]*Subject, error) {
	name = normalizedName(name)
	_ = a.queries.Remember(name, 1)

	if _, failed := a.failures.Get(name).Get(); failed {
		return nil, fmt.Errorf("search for %q failed recently", name)
	}

	if ids, ok := a.searches.Get(name).Get(); ok {
		subjects := lo.FilterMap(ids, func(id, _ int) (*Subject, bool) {
			return a.subjects.Get(id).Get()
		})

		if len(subjects) == len(ids) {
			return subjects, nil
		}

		_ = a.searches.Delete(name)
	}

	log.With(logrus.Fields{"query": name}).Infof("searching anilist")

	var response struct {
		Page struct {
			Media []*media `json:"media"`
		} `json:"Page"`
	}

	if err := a.do(ctx, searchByNameQuery, map[string]any{"query": name}, &response); err != nil {
		if ctx.Err() == nil {
			_ = a.failures.Set(name, true)
		}
		return nil, err
	}

	subjects := make([]*Subject, len(response.Page.Media))
	ids := make([]int, len(response.Page.Media))
	for i, m := range response.Page.Media {
		subjects[i] = m.subject()
		ids[i] = m.ID
		_ = a.subjects.Set(m.ID, subjects[i])
	}

	_ = a.searches.Set(name, ids)
	log.Infof("anilist returned %d results for %q", len(subjects), name)
	return subjects, nil
}

// Suggest returns previous searches matching q, most frequent first.
func (a *AniList) Suggest(q string) []string {
	return a.queries.Suggest(q)
}

func trimLastWord(name string) (string, bool) {
	words := strings.Fields(name)
	if len(words) <= 2 {
		return "", false
	}
	return strings.Join(words[:len(words)-1], " "), true
}
