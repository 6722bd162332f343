package source

import "strings"

// Kind tells how a media is delivered.
type Kind string

const (
	KindWeb        Kind = "web"
	KindBitTorrent Kind = "bt"
	KindLocal      Kind = "local"
	KindDanmaku    Kind = "danmaku"
)

// ParseKind accepts the configuration spelling of a kind.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindWeb, KindBitTorrent, KindLocal:
		return k, true
	case "torrent", "bittorrent":
		return KindBitTorrent, true
	default:
		return "", false
	}
}

// State is a position in a worker's lifecycle.
//
//	Idle -> Working -> Succeeded | Failed
//	any -> Disabled
//	Succeeded | Failed | Disabled -> Working (restart)
type State int

const (
	StateIdle State = iota
	StateWorking
	StateSucceeded
	StateFailed
	StateDisabled
)

// IsTerminal reports whether no work is pending in this state.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateDisabled
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWorking:
		return "working"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
