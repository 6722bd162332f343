// Command aniplay finds an anime, fetches its episodes from scripted sources
// and plays them with danmaku.
package main

import (
	"os"
	"runtime"

	"github.com/anisan-cli/aniplay/cmd"
	"github.com/anisan-cli/aniplay/config"
	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/internal/cache"
	"github.com/anisan-cli/aniplay/log"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	log.With(logrus.Fields{
		"version": constant.Version,
		"os":      runtime.GOOS,
		"args":    os.Args[1:],
	}).Debugf("starting")

	go cache.CollectGarbage()

	cmd.Execute()
}
