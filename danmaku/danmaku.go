// Package danmaku loads the timed comments of an episode from every enabled provider
// and merges them into one feed anchored to the player's clock.
package danmaku

import (
	"context"
	"strings"

	"github.com/anisan-cli/aniplay/source"
	"github.com/samber/mo"
)

// Location is where a comment scrolls or sticks on screen.
type Location string

const (
	LocationNormal Location = "normal"
	LocationTop    Location = "top"
	LocationBottom Location = "bottom"
)

// Danmaku is a single timed comment.
type Danmaku struct {
	ID        string `json:"id"`
	ServiceID string `json:"service_id"`
	SenderID  string `json:"sender_id,omitempty"`
	Text      string `json:"text"`
	// PlayTimeMillis is the playback position the comment belongs to.
	PlayTimeMillis int64    `json:"play_time_millis"`
	Location       Location `json:"location,omitempty"`
	Color          uint32   `json:"color,omitempty"`
}

// IsBlank reports whether the comment has nothing to show.
func (d Danmaku) IsBlank() bool {
	return strings.TrimSpace(d.Text) == ""
}

// MatchMethod tells how confidently a provider tied its result to the episode.
type MatchMethod string

const (
	MatchExactID    MatchMethod = "exact-id"
	MatchExactTitle MatchMethod = "exact-title"
	MatchFuzzy      MatchMethod = "fuzzy"
	MatchManual     MatchMethod = "manual"
)

func (m MatchMethod) IsExact() bool {
	return m == MatchExactID || m == MatchExactTitle
}

type MatchInfo struct {
	ServiceID    string      `json:"service_id"`
	Method       MatchMethod `json:"method"`
	SubjectTitle string      `json:"subject_title,omitempty"`
	EpisodeTitle string      `json:"episode_title,omitempty"`
}

// MatchResult is what a provider answers for an episode.
type MatchResult struct {
	Info  MatchInfo
	Items []Danmaku
}

// ProviderResult is the snapshot of one provider's worker.
type ProviderResult struct {
	source.Result[Danmaku]
	Match MatchInfo `json:"match"`
}

// Presentation is a comment ready to be drawn.
type Presentation struct {
	Danmaku
	IsSelf bool `json:"is_self"`
}

// Event is either an Add or a Repopulate.
type Event interface {
	event()
}

// Add appends one live comment to what the consumer already shows.
type Add struct {
	Item Presentation
}

// Repopulate replaces everything the consumer shows.
// Consumers resynchronize against AnchorMillis and drop anything seen before.
type Repopulate struct {
	List         []Presentation
	AnchorMillis int64
}

func (Add) event()        {}
func (Repopulate) event() {}

// EpisodeContext is what providers are asked about.
type EpisodeContext struct {
	SubjectID    string
	SubjectNames []string
	EpisodeID    string
	EpisodeSort  int
	EpisodeName  string
	// Media is the selected media, when one is.
	Media          mo.Option[*source.Media]
	DurationMillis int64
}

// PrimaryName is the best known subject name.
func (e *EpisodeContext) PrimaryName() string {
	if len(e.SubjectNames) == 0 {
		return ""
	}

	return e.SubjectNames[0]
}

// Provider is a danmaku service.
type Provider interface {
	ID() string
	Match(ctx context.Context, episode *EpisodeContext) (MatchResult, error)
}

// Subject is a candidate title on a provider's side.
type Subject struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Aliases []string `json:"aliases,omitempty"`
}

// Episode is a candidate episode of a provider's subject.
type Episode struct {
	ID    string `json:"id"`
	Sort  string `json:"sort"`
	Title string `json:"title"`
}

// InteractiveProvider lets the user pick the subject and episode by hand.
type InteractiveProvider interface {
	Provider
	SearchSubjects(ctx context.Context, query string) ([]Subject, error)
	SubjectEpisodes(ctx context.Context, subjectID string) ([]Episode, error)
	EpisodeDanmaku(ctx context.Context, subject Subject, episode Episode) ([]Danmaku, error)
}

// Poster is a provider that accepts comments from the local user.
// It answers the comment as the service stored it.
type Poster interface {
	Provider
	Post(ctx context.Context, episode *EpisodeContext, item Danmaku) (Danmaku, error)
}
