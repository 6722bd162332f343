// Package cache stores provider responses on disk for a week.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/where"
)

const TTL = 7 * 24 * time.Hour

func dir() string {
	path := filepath.Join(where.Cache(), "providers")
	_ = filesystem.API().MkdirAll(path, os.ModePerm)
	return path
}

// GenerateKey derives a file name from a query and the provider that answered it.
func GenerateKey(query, provider string) string {
	sanitized := strings.ToLower(strings.ReplaceAll(query, " ", "")) + provider
	hash := sha256.Sum256([]byte(sanitized))
	return hex.EncodeToString(hash[:])
}

// Read decodes the entry for key into target. It reports false when the entry is missing or older than TTL.
func Read(key string, target any) bool {
	path := filepath.Join(dir(), key)

	info, err := filesystem.API().Stat(path)
	if err != nil || time.Since(info.ModTime()) > TTL {
		return false
	}

	data, err := filesystem.API().ReadFile(path)
	if err != nil {
		return false
	}

	return json.Unmarshal(data, target) == nil
}

// Write stores data under key, replacing the previous entry atomically.
func Write(key string, data any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return filesystem.WriteAtomic(filepath.Join(dir(), key), encoded)
}

// CollectGarbage removes expired entries.
func CollectGarbage() {
	root := dir()
	_ = filesystem.API().Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		if time.Since(info.ModTime()) > TTL {
			_ = filesystem.API().Remove(path)
		}
		return nil
	})
}
