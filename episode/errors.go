package episode

import (
	"errors"
	"fmt"
)

var (
	// ErrCriticalMetadataLoad means the subject or episode could not be loaded and nothing can be fetched.
	ErrCriticalMetadataLoad = errors.New("critical metadata load failed")
	// ErrSecondaryMetadataLoad means the series context is missing; fetching goes on without it.
	ErrSecondaryMetadataLoad = errors.New("secondary metadata load failed")

	ErrUnknownEpisode = errors.New("unknown episode")
	ErrNoEpisode      = errors.New("no episode selected")
	// ErrSuperseded is returned to a switch that a later switch replaced.
	ErrSuperseded = errors.New("episode switch superseded")
	ErrClosed     = errors.New("episode state closed")
)

// LoadError is a metadata failure, critical or secondary.
type LoadError struct {
	Critical  bool
	EpisodeID string
	Err       error
}

func (e *LoadError) Error() string {
	kind := "secondary"
	if e.Critical {
		kind = "critical"
	}

	return fmt.Sprintf("%s metadata of episode %s: %v", kind, e.EpisodeID, e.Err)
}

// Unwrap exposes both the cause and the matching sentinel, so errors.Is works with either.
func (e *LoadError) Unwrap() []error {
	if e.Critical {
		return []error{ErrCriticalMetadataLoad, e.Err}
	}

	return []error{ErrSecondaryMetadataLoad, e.Err}
}

func critical(episodeID string, err error) *LoadError {
	return &LoadError{Critical: true, EpisodeID: episodeID, Err: err}
}

func secondary(episodeID string, err error) *LoadError {
	return &LoadError{EpisodeID: episodeID, Err: err}
}
