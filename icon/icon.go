// Package icon renders the status symbols printed by the CLI.
//
// The variant is read from icons.variant on every call, so a flag or an
// environment override applies without a restart.
package icon

import (
	"github.com/anisan-cli/aniplay/key"
	"github.com/anisan-cli/aniplay/source"
	"github.com/spf13/viper"
)

type variant int

const (
	emoji variant = iota
	nerd
	plain
	kaomoji
	squares
	variants
)

var variantNames = [variants]string{"emoji", "nerd", "plain", "kaomoji", "squares"}

func AvailableVariants() []string {
	return variantNames[:]
}

// symbol holds one icon in every variant, indexed by variant.
type symbol [variants]string

func current() (variant, bool) {
	name := viper.GetString(key.IconsVariant)
	for v, n := range variantNames {
		if n == name {
			return variant(v), true
		}
	}
	return 0, false
}

// Get renders i in the configured variant. Unknown variants render nothing.
func Get(i Icon) string {
	v, ok := current()
	if !ok {
		return ""
	}
	return icons[i][v]
}

// ForState is the icon of a worker state.
func ForState(state source.State) Icon {
	switch state {
	case source.StateWorking:
		return Working
	case source.StateSucceeded:
		return Succeeded
	case source.StateFailed:
		return Failed
	case source.StateDisabled:
		return Disabled
	default:
		return Idle
	}
}
