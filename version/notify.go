package version

import (
	"context"
	"fmt"
	"time"

	"github.com/anisan-cli/aniplay/color"
	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/key"
	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/style"
	"github.com/spf13/viper"
)

// Notify prints a notice when a newer release than the running one exists.
func Notify(ctx context.Context) {
	if !viper.GetBool(key.CliVersionCheck) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	latest, err := Latest(ctx)
	if err != nil {
		log.Warnf("version check: %s", err)
		return
	}

	if comp, err := Compare(latest, constant.Version); err != nil || comp <= 0 {
		return
	}

	fmt.Printf(`
%s New version is available %s %s
%s

`,
		style.Fg(color.Green)("▇▇▇"),
		style.Bold(latest),
		style.Faint(fmt.Sprintf("(You're on %s)", constant.Version)),
		style.Faint("https://github.com/anisan-cli/aniplay/releases/tag/v"+latest),
	)
}
