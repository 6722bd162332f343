package custom

import (
	"github.com/anisan-cli/aniplay/internal/cache"
	"github.com/anisan-cli/aniplay/network"
	lua "github.com/yuin/gopher-lua"
)

// registerTLSClient exposes the "http_tls" module: requests sent with a
// Chrome TLS fingerprint, throttled per host.
//
//	http_tls.get(url [, headers]) -> body
//	http_tls.request({method, url, headers, body, cache}) -> {status, body}
//
// get raises on a non-2xx status; request leaves the status to the script.
func registerTLSClient(r *run) {
	mod := r.L.NewTable()
	r.L.SetField(mod, "get", r.L.NewFunction(r.httpGet))
	r.L.SetField(mod, "request", r.L.NewFunction(r.httpRequest))
	r.L.SetGlobal("http_tls", mod)
}

func (r *run) httpGet(L *lua.LState) int {
	url := L.CheckString(1)
	headers := stringMap(L.OptTable(2, nil))

	resp, err := network.DoTLS(r.ctx, "GET", url, headers, "")
	if err != nil {
		r.raise(err)
		return 0
	}

	if err := network.ClassifyStatus(resp.Status); err != nil {
		r.raise(err)
		return 0
	}

	L.Push(lua.LString(resp.Body))
	return 1
}

type tlsCacheEntry struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

func (r *run) httpRequest(L *lua.LState) int {
	opts := L.CheckTable(1)

	method := stringField(opts, "method", "GET")
	url := stringField(opts, "url", "")
	body := stringField(opts, "body", "")

	if url == "" {
		L.RaiseError("http_tls.request: url is required")
		return 0
	}

	headers := map[string]string{}
	if tbl, ok := opts.RawGetString("headers").(*lua.LTable); ok {
		headers = stringMap(tbl)
	}

	shouldCache := lua.LVAsBool(opts.RawGetString("cache"))
	key := cache.GenerateKey(url+body, method)

	var entry tlsCacheEntry
	if !shouldCache || !cache.Read(key, &entry) {
		resp, err := network.DoTLS(r.ctx, method, url, headers, body)
		if err != nil {
			r.raise(err)
			return 0
		}

		entry = tlsCacheEntry{Status: resp.Status, Body: resp.Body}
		if shouldCache && resp.Status == 200 {
			_ = cache.Write(key, entry)
		}
	}

	result := L.NewTable()
	L.SetField(result, "status", lua.LNumber(entry.Status))
	L.SetField(result, "body", lua.LString(entry.Body))
	L.Push(result)
	return 1
}

func stringField(tbl *lua.LTable, key, def string) string {
	val := tbl.RawGetString(key)
	if val == lua.LNil {
		return def
	}
	return val.String()
}

func stringMap(tbl *lua.LTable) map[string]string {
	m := make(map[string]string)
	if tbl == nil {
		return m
	}

	tbl.ForEach(func(k, v lua.LValue) {
		m[k.String()] = v.String()
	})
	return m
}
