// Package provider discovers the Lua scripts under where.Sources() and builds
// media sources and danmaku providers from them.
package provider

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/anisan-cli/aniplay/danmaku"
	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/provider/custom"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/where"
	"github.com/samber/lo"
)

// commonScript holds helpers shared by other scripts; it is never a provider itself.
const commonScript = "common.lua"

// List loads every script. Scripts that fail to load are logged and skipped.
func List() ([]*custom.Script, error) {
	files, err := filesystem.API().ReadDir(where.Sources())
	if err != nil {
		return nil, err
	}

	var scripts []*custom.Script
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".lua" || f.Name() == commonScript {
			continue
		}

		script, err := custom.Load(filepath.Join(where.Sources(), f.Name()))
		if err != nil {
			log.Warnf("skipping %s: %v", f.Name(), err)
			continue
		}
		scripts = append(scripts, script)
	}

	slices.SortFunc(scripts, func(a, b *custom.Script) int {
		return strings.Compare(a.Name, b.Name)
	})

	return scripts, nil
}

// Get finds a script by name, ignoring case.
func Get(name string) (*custom.Script, bool) {
	scripts, err := List()
	if err != nil {
		return nil, false
	}

	return lo.Find(scripts, func(s *custom.Script) bool {
		return strings.EqualFold(s.Name, name)
	})
}

func pick(role custom.Role, names []string) ([]*custom.Script, error) {
	scripts, err := List()
	if err != nil {
		return nil, err
	}

	scripts = lo.Filter(scripts, func(s *custom.Script, _ int) bool {
		return s.Role == role
	})

	if len(names) == 0 {
		return scripts, nil
	}

	picked := make([]*custom.Script, 0, len(names))
	for _, name := range names {
		script, ok := lo.Find(scripts, func(s *custom.Script) bool {
			return strings.EqualFold(s.Name, name)
		})
		if !ok {
			return nil, fmt.Errorf("no %s provider named %q", role, name)
		}
		picked = append(picked, script)
	}

	return picked, nil
}

// MediaSources builds the named media sources, or all of them when no names are given.
func MediaSources(names ...string) ([]source.MediaSource, error) {
	scripts, err := pick(custom.RoleMedia, names)
	if err != nil {
		return nil, err
	}

	sources := make([]source.MediaSource, len(scripts))
	for i, script := range scripts {
		if sources[i], err = custom.NewMediaSource(script); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

// DanmakuProviders builds the named danmaku providers, or all of them when no names are given.
func DanmakuProviders(names ...string) ([]danmaku.Provider, error) {
	scripts, err := pick(custom.RoleDanmaku, names)
	if err != nil {
		return nil, err
	}

	providers := make([]danmaku.Provider, len(scripts))
	for i, script := range scripts {
		if providers[i], err = custom.NewDanmakuProvider(script); err != nil {
			return nil, err
		}
	}
	return providers, nil
}
