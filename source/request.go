package source

import (
	"slices"
	"strings"
)

// FetchRequest describes the episode every media source is asked about.
type FetchRequest struct {
	SubjectID string `json:"subject_id"`
	EpisodeID string `json:"episode_id"`

	// SubjectNames holds the primary name first, then alternative titles.
	SubjectNames []string `json:"subject_names"`

	// EpisodeSort is the number of the episode within the whole series.
	EpisodeSort int `json:"episode_sort"`
	// EpisodeEp is the number within the current season, 0 when the same as EpisodeSort.
	EpisodeEp   int    `json:"episode_ep,omitempty"`
	EpisodeName string `json:"episode_name,omitempty"`
}

// PrimaryName is the best known subject name.
func (r *FetchRequest) PrimaryName() string {
	if len(r.SubjectNames) == 0 {
		return ""
	}

	return r.SubjectNames[0]
}

// WithNames returns a copy of the request with extra names appended, duplicates dropped.
func (r *FetchRequest) WithNames(names ...string) *FetchRequest {
	clone := *r
	clone.SubjectNames = slices.Clone(r.SubjectNames)

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if !slices.ContainsFunc(clone.SubjectNames, func(existing string) bool {
			return strings.EqualFold(existing, name)
		}) {
			clone.SubjectNames = append(clone.SubjectNames, name)
		}
	}

	return &clone
}

// Equal compares every field.
func (r *FetchRequest) Equal(other *FetchRequest) bool {
	if r == nil || other == nil {
		return r == other
	}

	return r.SubjectID == other.SubjectID &&
		r.EpisodeID == other.EpisodeID &&
		slices.Equal(r.SubjectNames, other.SubjectNames) &&
		r.EpisodeSort == other.EpisodeSort &&
		r.EpisodeEp == other.EpisodeEp &&
		r.EpisodeName == other.EpisodeName
}
