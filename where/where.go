// Package where resolves the directories and files the application reads and writes.
package where

import (
	"os"
	"path/filepath"

	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/samber/lo"
)

// EnvConfigPath overrides the configuration directory.
const EnvConfigPath = "ANIPLAY_CONFIG_PATH"

func mkdir(path string) string {
	lo.Must0(filesystem.API().MkdirAll(path, os.ModePerm))
	return path
}

// Config is the configuration directory: $ANIPLAY_CONFIG_PATH, else the user config dir.
func Config() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok {
		return mkdir(custom)
	}

	return mkdir(filepath.Join(lo.Must(os.UserConfigDir()), constant.Aniplay))
}

// Cache is the persistent cache directory.
func Cache() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = filepath.Join(".", "cache")
	}

	return mkdir(filepath.Join(base, constant.Aniplay))
}

func Logs() string {
	return mkdir(filepath.Join(Config(), "logs"))
}

// Sources holds the Lua media source and danmaku provider scripts.
func Sources() string {
	return mkdir(filepath.Join(Config(), "sources"))
}

// History is the play progress file.
func History() string {
	return filepath.Join(Config(), "history.json")
}

// Preferences is the selection policy file.
func Preferences() string {
	return filepath.Join(Config(), "preferences.json")
}

// Metadata is the cache directory for subject metadata.
func Metadata() string {
	return mkdir(filepath.Join(Cache(), "metadata"))
}

// Temp is a scratch directory for player sockets and similar.
func Temp() string {
	return mkdir(filepath.Join(os.TempDir(), constant.Aniplay))
}
