// Package metadata resolves subjects, their episodes and related series from AniList.
package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

var (
	ErrNotFound  = errors.New("subject not found")
	ErrInvalidID = errors.New("invalid subject id")
)

// Airing statuses reported by AniList.
const (
	StatusFinished       = "FINISHED"
	StatusReleasing      = "RELEASING"
	StatusNotYetReleased = "NOT_YET_RELEASED"
	StatusCancelled      = "CANCELLED"
	StatusHiatus         = "HIATUS"
)

// Subject is an anime with its episode list.
type Subject struct {
	ID    string `json:"id"`
	MalID int    `json:"mal_id,omitempty"`
	// Names holds the preferred title first, then alternatives.
	Names             []string  `json:"names"`
	EpisodeCount      int       `json:"episode_count"`
	Status            string    `json:"status"`
	NextAiringEpisode int       `json:"next_airing_episode,omitempty"`
	DurationMinutes   int       `json:"duration_minutes,omitempty"`
	Episodes          []Episode `json:"episodes"`
}

// Episode of a subject. ID is the episode number as a string.
type Episode struct {
	ID   string `json:"id"`
	Sort int    `json:"sort"`
	Name string `json:"name"`
	// KnownCompleted is set once the episode has aired.
	KnownCompleted bool `json:"known_completed"`
}

// Series is the secondary context of a subject: titles of its prequels and sequels.
type Series struct {
	Names []string `json:"names"`
}

func (s *Subject) PrimaryName() string {
	if len(s.Names) == 0 {
		return ""
	}
	return s.Names[0]
}

// Episode finds an episode by id.
func (s *Subject) Episode(id string) (Episode, bool) {
	return lo.Find(s.Episodes, func(e Episode) bool {
		return e.ID == id
	})
}

// Next returns the episode following id.
func (s *Subject) Next(id string) (Episode, bool) {
	_, index, ok := lo.FindIndexOf(s.Episodes, func(e Episode) bool {
		return e.ID == id
	})
	if !ok || index+1 >= len(s.Episodes) {
		return Episode{}, false
	}
	return s.Episodes[index+1], true
}

func (s *Subject) String() string {
	return fmt.Sprintf("%s (%s)", s.PrimaryName(), s.ID)
}

// BuildEpisodes lists episodes 1..n where n is the larger of the announced count
// and the last aired episode. An episode is known completed when the subject
// finished airing or a later episode is next to air.
func BuildEpisodes(count int, status string, nextAiring int) []Episode {
	if nextAiring > 0 {
		count = max(count, nextAiring-1)
	}

	episodes := make([]Episode, 0, count)
	for sort := 1; sort <= count; sort++ {
		episodes = append(episodes, Episode{
			ID:             strconv.Itoa(sort),
			Sort:           sort,
			Name:           fmt.Sprintf("Episode %d", sort),
			KnownCompleted: status == StatusFinished || (nextAiring > 0 && sort < nextAiring),
		})
	}

	return episodes
}

func normalizedName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func parseID(id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return n, nil
}
