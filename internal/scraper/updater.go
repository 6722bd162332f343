package scraper

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"

	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/network"
)

// Update downloads remoteURL and replaces localPath when the contents differ.
// It reports whether the file changed.
func Update(ctx context.Context, client *http.Client, remoteURL, localPath string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return false, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if err := network.ClassifyStatus(resp.StatusCode); err != nil {
			return false, err
		}
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	remote, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}

	if local, err := filesystem.API().ReadFile(localPath); err == nil {
		remoteHash, localHash := sha256.Sum256(remote), sha256.Sum256(local)
		if bytes.Equal(remoteHash[:], localHash[:]) {
			return false, nil
		}
	}

	if err := filesystem.WriteAtomic(localPath, remote); err != nil {
		return false, err
	}

	return true, nil
}
