package provider

import (
	"context"
	"path/filepath"
	"time"

	"github.com/anisan-cli/aniplay/internal/scraper"
	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/network"
	"github.com/anisan-cli/aniplay/where"
	"github.com/sirupsen/logrus"
)

// RepoRawURL hosts the maintained scripts.
const RepoRawURL = "https://raw.githubusercontent.com/anisan-cli/aniplay/main/sources/"

// Update refreshes the given script files from baseURL and returns the ones that changed.
// A file that fails to download is logged and left as it is.
func Update(ctx context.Context, baseURL string, files ...string) []string {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var updated []string
	for _, file := range files {
		logger := log.With(logrus.Fields{"script": file})

		changed, err := scraper.Update(ctx, network.Client, baseURL+file, filepath.Join(where.Sources(), file))
		if err != nil {
			logger.Warnf("update failed: %v", err)
			continue
		}

		if changed {
			logger.Infof("script updated")
			updated = append(updated, file)
		}
	}

	return updated
}
