// Package custom runs Lua scripts as media sources and danmaku providers.
package custom

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/internal/scraper"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/util"
	libs "github.com/metafates/mangal-lua-libs"
	lua "github.com/yuin/gopher-lua"
)

// Role is what a script provides.
type Role string

const (
	RoleMedia   Role = "media"
	RoleDanmaku Role = "danmaku"
)

var ErrNotProvider = errors.New("script defines no provider functions")

// Script is a compiled provider script. Every call runs in a fresh Lua state,
// so a script may serve concurrent workers.
type Script struct {
	Name string
	Path string
	Kind source.Kind
	Role Role

	proto *lua.FunctionProto
}

func (s *Script) String() string {
	return s.Name
}

// Load compiles the script at path and detects its role from the globals it defines.
func Load(path string) (*Script, error) {
	proto, err := scraper.Compile(path)
	if err != nil {
		return nil, err
	}

	header, err := filesystem.API().ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := &Script{
		Name:  util.FileStem(path),
		Path:  path,
		Kind:  source.KindWeb,
		proto: proto,
	}
	s.readTags(header)

	r, err := s.start(context.Background())
	if err != nil {
		return nil, err
	}
	defer r.close()

	defines := func(fn string) bool {
		return r.L.GetGlobal(fn).Type() == lua.LTFunction
	}

	switch {
	case defines(constant.QueryMediaFn):
		s.Role = RoleMedia
	case defines(constant.SearchSubjectsFn) && defines(constant.SubjectEpisodesFn) && defines(constant.EpisodeDanmakuFn):
		s.Role = RoleDanmaku
		s.Kind = source.KindDanmaku
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotProvider, s.Name)
	}

	return s, nil
}

// readTags picks "-- @name" and "-- @kind" from the leading comment block.
func (s *Script) readTags(content []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "--") {
			return
		}

		tag, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "--")), " ")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch tag {
		case constant.ScriptTagName:
			if value != "" {
				s.Name = value
			}
		case constant.ScriptTagKind:
			if kind, ok := source.ParseKind(value); ok {
				s.Kind = kind
			}
		}
	}
}

// run is one Lua state bound to the context of a single call.
type run struct {
	ctx context.Context
	L   *lua.LState
	// failure is the last Go side error raised into Lua, e.g. by http_tls.
	failure error
}

func (s *Script) start(ctx context.Context) (*run, error) {
	r := &run{ctx: ctx, L: lua.NewState()}
	r.L.SetContext(ctx)

	libs.Preload(r.L)
	registerTLSClient(r)

	if err := scraper.Run(r.L, s.proto); err != nil {
		r.close()
		return nil, fmt.Errorf("load %s: %w", s.Name, err)
	}

	return r, nil
}

func (r *run) close() {
	r.L.Close()
}

func (r *run) raise(err error) {
	r.failure = err
	r.L.RaiseError("%s", err.Error())
}

// call invokes a global function and checks the type of its single return value.
func (r *run) call(fn string, want lua.LValueType, args ...lua.LValue) (lua.LValue, error) {
	luaFn := r.L.GetGlobal(fn)
	if luaFn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w: function %s is not defined", source.ErrUnsupported, fn)
	}

	err := r.L.CallByParam(lua.P{
		Fn:      luaFn,
		NRet:    1,
		Protect: true,
	}, args...)

	if err != nil {
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if r.failure != nil {
			return nil, fmt.Errorf("%s: %w", fn, r.failure)
		}
		return nil, fmt.Errorf("%s: %w", fn, err)
	}

	ret := r.L.Get(-1)
	r.L.Pop(1)

	if ret.Type() != want {
		return nil, fmt.Errorf("%w: %s returned %s, expected %s", source.ErrParse, fn, ret.Type(), want)
	}

	return ret, nil
}

// callList calls fn and converts every entry of the returned list with convert.
// Malformed entries are skipped; an error is returned only when nothing converts.
func callList[T any](r *run, fn string, convert func(*lua.LTable) (T, error), args ...lua.LValue) ([]T, error) {
	ret, err := r.call(fn, lua.LTTable, args...)
	if err != nil {
		return nil, err
	}

	var (
		items []T
		errs  []error
	)

	ret.(*lua.LTable).ForEach(func(k, v lua.LValue) {
		if k.Type() != lua.LTNumber {
			return
		}

		table, ok := v.(*lua.LTable)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: entry %s is %s", source.ErrParse, k, v.Type()))
			return
		}

		item, err := convert(table)
		if err != nil {
			errs = append(errs, err)
			return
		}
		items = append(items, item)
	})

	if len(items) == 0 && len(errs) > 0 {
		return nil, errs[0]
	}

	return items, nil
}
