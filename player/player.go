// Package player drives the external playback engine the selected media is handed to.
// The primary backend is mpv over its JSON-IPC interface.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
)

var (
	ErrNotRunning    = errors.New("player is not running")
	ErrInvalidTarget = errors.New("invalid media target")
	ErrUnknownPlayer = errors.New("unknown player")
)

// State is the playback lifecycle as the engine reports it.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateFinished
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	default:
		return "idle"
	}
}

// Engine is a playback backend. Positions and durations are in milliseconds.
type Engine interface {
	// Play replaces whatever is playing with media.
	Play(ctx context.Context, media *source.Media, title string) error
	Position() *stream.State[int64]
	Duration() *stream.State[int64]
	Playback() *stream.State[State]
	// Errors carries fatal playback errors, such as a stream that cannot be opened.
	Errors() *stream.Events[error]
	SeekTo(ms int64) error
	// Skip seeks relative to the current position.
	Skip(ms int64) error
	Stop() error
	Close() error
}

// Chapter is a named mark on the timeline.
type Chapter struct {
	Title string
	Start float64
}

// ChapterMarker is implemented by engines that can show chapters.
type ChapterMarker interface {
	SetChapters(chapters []Chapter) error
}

// PlaybackError is a fatal error reported by the engine for one media.
type PlaybackError struct {
	Media  *source.Media
	Reason string
}

func (e *PlaybackError) Error() string {
	if e.Media == nil {
		return "playback failed: " + e.Reason
	}
	return fmt.Sprintf("playback of %s failed: %s", e.Media.Key(), e.Reason)
}

// New returns the engine registered under name.
func New(name string, out io.Writer) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mpv":
		return NewMPV(MPVOptions{}), nil
	case "print", "none":
		return NewPrinter(out), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, name)
	}
}

// Available lists the engine names New accepts.
func Available() []string {
	return []string{"mpv", "print"}
}
