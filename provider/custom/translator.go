package custom

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anisan-cli/aniplay/danmaku"
	"github.com/anisan-cli/aniplay/source"
	"github.com/samber/lo"
	lua "github.com/yuin/gopher-lua"
)

func getString(table *lua.LTable, key string) string {
	switch val := table.RawGetString(key); val.Type() {
	case lua.LTString, lua.LTNumber:
		return val.String()
	default:
		return ""
	}
}

func getNumber(table *lua.LTable, key string) float64 {
	switch val := table.RawGetString(key); val.Type() {
	case lua.LTNumber:
		return float64(val.(lua.LNumber))
	case lua.LTString:
		n, _ := strconv.ParseFloat(strings.TrimSpace(val.String()), 64)
		return n
	default:
		return 0
	}
}

// getStringList accepts a comma separated string or a list.
func getStringList(table *lua.LTable, key string) []string {
	val := table.RawGetString(key)
	switch val.Type() {
	case lua.LTString:
		return lo.Compact(lo.Map(strings.Split(val.String(), ","), func(s string, _ int) string {
			return strings.TrimSpace(s)
		}))
	case lua.LTTable:
		var list []string
		val.(*lua.LTable).ForEach(func(_, v lua.LValue) {
			if v.Type() == lua.LTString {
				list = append(list, v.String())
			}
		})
		return list
	default:
		return nil
	}
}

func mediaFromTable(table *lua.LTable, script *Script) (*source.Media, error) {
	url := getString(table, "url")
	if url == "" {
		return nil, fmt.Errorf("%w: media must have url", source.ErrParse)
	}

	media := &source.Media{
		ID:         getString(table, "id"),
		SourceID:   script.Name,
		Kind:       script.Kind,
		Title:      getString(table, "title"),
		URL:        url,
		Resolution: getString(table, "resolution"),
		Subtitles:  getStringList(table, "subtitles"),
		Seeds:      int(getNumber(table, "seeds")),
		Size:       int64(getNumber(table, "size")),
	}

	if media.ID == "" {
		media.ID = url
	}
	if media.Title == "" {
		media.Title = media.ID
	}

	if headers, ok := table.RawGetString("headers").(*lua.LTable); ok {
		media.Headers = stringMap(headers)
	}

	return media, nil
}

func requestToTable(L *lua.LState, request *source.FetchRequest) *lua.LTable {
	names := L.NewTable()
	for _, name := range request.SubjectNames {
		names.Append(lua.LString(name))
	}

	table := L.NewTable()
	table.RawSetString("subject_id", lua.LString(request.SubjectID))
	table.RawSetString("episode_id", lua.LString(request.EpisodeID))
	table.RawSetString("name", lua.LString(request.PrimaryName()))
	table.RawSetString("names", names)
	table.RawSetString("episode_sort", lua.LNumber(request.EpisodeSort))
	table.RawSetString("episode_ep", lua.LNumber(request.EpisodeEp))
	table.RawSetString("episode_name", lua.LString(request.EpisodeName))
	return table
}

// subject is a provider's subject with the AniList id it declares, if any.
type subject struct {
	danmaku.Subject
	AnilistID string `json:"anilist_id,omitempty"`
}

func subjectFromTable(table *lua.LTable) (subject, error) {
	s := subject{
		Subject: danmaku.Subject{
			ID:      getString(table, "id"),
			Title:   getString(table, "title"),
			Aliases: getStringList(table, "aliases"),
		},
		AnilistID: getString(table, "anilist_id"),
	}

	if s.ID == "" || s.Title == "" {
		return subject{}, fmt.Errorf("%w: subject must have id and title", source.ErrParse)
	}
	return s, nil
}

func subjectToTable(L *lua.LState, s danmaku.Subject) *lua.LTable {
	aliases := L.NewTable()
	for _, alias := range s.Aliases {
		aliases.Append(lua.LString(alias))
	}

	table := L.NewTable()
	table.RawSetString("id", lua.LString(s.ID))
	table.RawSetString("title", lua.LString(s.Title))
	table.RawSetString("aliases", aliases)
	return table
}

func episodeFromTable(table *lua.LTable) (danmaku.Episode, error) {
	e := danmaku.Episode{
		ID:    getString(table, "id"),
		Sort:  getString(table, "sort"),
		Title: getString(table, "title"),
	}

	if e.ID == "" {
		return danmaku.Episode{}, fmt.Errorf("%w: episode must have id", source.ErrParse)
	}
	return e, nil
}

func episodeToTable(L *lua.LState, e danmaku.Episode) *lua.LTable {
	table := L.NewTable()
	table.RawSetString("id", lua.LString(e.ID))
	table.RawSetString("sort", lua.LString(e.Sort))
	table.RawSetString("title", lua.LString(e.Title))
	return table
}

// danmakuFromTable reads {id, sender, text, time, location, color}; time is in seconds.
func danmakuFromTable(table *lua.LTable, serviceID string) (danmaku.Danmaku, error) {
	d := danmaku.Danmaku{
		ID:             getString(table, "id"),
		ServiceID:      serviceID,
		SenderID:       getString(table, "sender"),
		Text:           getString(table, "text"),
		PlayTimeMillis: int64(getNumber(table, "time") * 1000),
		Location:       danmaku.LocationNormal,
		Color:          uint32(getNumber(table, "color")),
	}

	switch location := danmaku.Location(strings.ToLower(getString(table, "location"))); location {
	case danmaku.LocationTop, danmaku.LocationBottom:
		d.Location = location
	}

	if d.PlayTimeMillis < 0 {
		return danmaku.Danmaku{}, fmt.Errorf("%w: negative danmaku time", source.ErrParse)
	}
	return d, nil
}

func danmakuToTable(L *lua.LState, d danmaku.Danmaku) *lua.LTable {
	table := L.NewTable()
	table.RawSetString("id", lua.LString(d.ID))
	table.RawSetString("sender", lua.LString(d.SenderID))
	table.RawSetString("text", lua.LString(d.Text))
	table.RawSetString("time", lua.LNumber(float64(d.PlayTimeMillis)/1000))
	table.RawSetString("location", lua.LString(d.Location))
	table.RawSetString("color", lua.LNumber(d.Color))
	return table
}

// episodeContextToTable is {anilist_id, names, episode_id, sort, name}.
func episodeContextToTable(L *lua.LState, ep *danmaku.EpisodeContext) *lua.LTable {
	names := L.NewTable()
	for _, name := range ep.SubjectNames {
		names.Append(lua.LString(name))
	}

	table := L.NewTable()
	table.RawSetString("anilist_id", lua.LString(ep.SubjectID))
	table.RawSetString("names", names)
	table.RawSetString("episode_id", lua.LString(ep.EpisodeID))
	table.RawSetString("sort", lua.LNumber(ep.EpisodeSort))
	table.RawSetString("name", lua.LString(ep.EpisodeName))
	return table
}
