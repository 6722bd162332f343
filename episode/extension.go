package episode

import (
	"context"

	"github.com/anisan-cli/aniplay/player"
	"github.com/anisan-cli/aniplay/selector"
	"github.com/anisan-cli/aniplay/stream"
	"github.com/samber/mo"
)

// Host is the shared state every extension sees.
type Host interface {
	SubjectID() string
	State() *stream.State[PageState]
	Current() mo.Option[*Session]
	Player() player.Engine
	SwitchEpisode(ctx context.Context, episodeID string) error
}

// Extension reacts to what happens while episodes are fetched, selected and played.
//
// Hooks run in order of registration on the orchestrator's goroutines and must
// not block. Anything that waits, switching episodes included, belongs in a
// goroutine bound to the session's context.
type Extension interface {
	Name() string
	// OnSessionStart runs before the session starts fetching.
	OnSessionStart(host Host, session *Session)
	OnSelectionChanged(host Host, session *Session, change selector.Change)
	OnPlaybackState(host Host, session *Session, state player.State)
	OnPlaybackError(host Host, session *Session, err error)
	// OnEpisodeSwitch runs before the previous session is torn down.
	OnEpisodeSwitch(host Host, from *Session, toEpisodeID string)
	// OnSessionEnd runs right before the session is closed.
	OnSessionEnd(host Host, session *Session)
}

// BaseExtension implements every hook as a no-op.
type BaseExtension struct{}

func (BaseExtension) OnSessionStart(Host, *Session)                      {}
func (BaseExtension) OnSelectionChanged(Host, *Session, selector.Change) {}
func (BaseExtension) OnPlaybackState(Host, *Session, player.State)       {}
func (BaseExtension) OnPlaybackError(Host, *Session, error)              {}
func (BaseExtension) OnEpisodeSwitch(Host, *Session, string)             {}
func (BaseExtension) OnSessionEnd(Host, *Session)                        {}
