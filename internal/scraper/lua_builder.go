// Package scraper compiles provider scripts and keeps their sources up to date.
package scraper

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/anisan-cli/aniplay/filesystem"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

type compiled struct {
	modTime int64
	proto   *lua.FunctionProto
}

var bytecodeCache sync.Map

// Compile returns the bytecode of the script at path.
// The result is reused until the file changes.
func Compile(path string) (*lua.FunctionProto, error) {
	info, err := filesystem.API().Stat(path)
	if err != nil {
		return nil, err
	}

	if cached, ok := bytecodeCache.Load(path); ok {
		if c := cached.(compiled); c.modTime == info.ModTime().UnixNano() {
			return c.proto, nil
		}
	}

	source, err := filesystem.API().ReadFile(path)
	if err != nil {
		return nil, err
	}

	chunk, err := parse.Parse(bytes.NewReader(source), path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}

	bytecodeCache.Store(path, compiled{modTime: info.ModTime().UnixNano(), proto: proto})
	return proto, nil
}

// Run executes compiled bytecode in L.
func Run(L *lua.LState, proto *lua.FunctionProto) error {
	L.Push(L.NewFunctionFromProto(proto))
	return L.PCall(0, lua.MultRet, nil)
}

// PreCompileAndLoad compiles the script at path and runs it in L.
func PreCompileAndLoad(L *lua.LState, path string) error {
	proto, err := Compile(path)
	if err != nil {
		return err
	}
	return Run(L, proto)
}
