package custom

import (
	"context"
	"fmt"

	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/source"
	lua "github.com/yuin/gopher-lua"
)

// MediaSource answers fetch requests with the script's QueryMedia.
type MediaSource struct {
	script *Script
}

// NewMediaSource wraps a script whose role is RoleMedia.
func NewMediaSource(script *Script) (*MediaSource, error) {
	if script.Role != RoleMedia {
		return nil, fmt.Errorf("%s is a %s provider", script.Name, script.Role)
	}
	return &MediaSource{script: script}, nil
}

func (m *MediaSource) InstanceID() string {
	return m.script.Name
}

func (m *MediaSource) Kind() source.Kind {
	return m.script.Kind
}

// Query runs QueryMedia(request). Media links expire, so nothing is cached.
func (m *MediaSource) Query(ctx context.Context, request *source.FetchRequest) ([]*source.Media, error) {
	r, err := m.script.start(ctx)
	if err != nil {
		return nil, err
	}
	defer r.close()

	return callList(r, constant.QueryMediaFn, func(table *lua.LTable) (*source.Media, error) {
		return mediaFromTable(table, m.script)
	}, requestToTable(r.L, request))
}
