package custom

import (
	"context"
	"errors"
	"testing"

	"github.com/anisan-cli/aniplay/danmaku"
	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/source"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

const mediaScript = `-- @name Example Torrents
-- @kind bt

function QueryMedia(request)
	local list = {}
	for i, name in ipairs(request.names) do
		table.insert(list, {
			id = tostring(i),
			title = name .. " - " .. request.episode_sort,
			url = "magnet:?xt=urn:btih:" .. i,
			seeds = 10 * i,
		})
	end
	return list
end
`

const brokenScript = `
function QueryMedia(request)
	return "not a list"
end
`

const danmakuScript = `
function SearchSubjects(query)
	return {
		{ id = "s1", title = "Frieren Movie" },
		{ id = "s2", title = "Sousou no Frieren", aliases = { "Frieren" } },
	}
end

function SubjectEpisodes(subject_id)
	if subject_id ~= "s2" then
		return {}
	end
	return {
		{ id = "e4", sort = "04", title = "The Hero's Village" },
		{ id = "e5", sort = "05", title = "Phantoms of the Dead" },
	}
end

function EpisodeDanmaku(subject, episode)
	return {
		{ id = "1", sender = "u1", text = subject.title .. " " .. episode.id, time = 3 },
		{ id = "2", sender = "u2", text = "later", time = 10.25 },
	}
end
`

const postingScript = danmakuScript + `
function PostDanmaku(episode, comment)
	return {
		id = "posted-" .. episode.anilist_id .. "-" .. episode.sort,
		sender = comment.sender,
		text = comment.text .. " (" .. episode.names[1] .. ")",
		time = comment.time,
	}
end
`

func write(path, content string) string {
	if err := filesystem.API().WriteFile(path, []byte(content), 0o644); err != nil {
		panic(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a media source script", t, func() {
		script, err := Load(write("/sources/example.lua", mediaScript))
		So(err, ShouldBeNil)

		Convey("tags name it and set its kind", func() {
			So(script.Name, ShouldEqual, "Example Torrents")
			So(script.Kind, ShouldEqual, source.KindBitTorrent)
			So(script.Role, ShouldEqual, RoleMedia)
		})

		Convey("queries return media", func() {
			src, err := NewMediaSource(script)
			So(err, ShouldBeNil)

			media, err := src.Query(context.Background(), &source.FetchRequest{
				SubjectNames: []string{"Frieren", "Sousou no Frieren"},
				EpisodeSort:  5,
			})
			So(err, ShouldBeNil)
			So(media, ShouldHaveLength, 2)
			So(media[1].Title, ShouldEqual, "Sousou no Frieren - 5")
			So(media[1].SourceID, ShouldEqual, "Example Torrents")
			So(media[1].Seeds, ShouldEqual, 20)
		})

		Convey("it cannot serve as a danmaku provider", func() {
			_, err := NewDanmakuProvider(script)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("A wrong return type is a parse error", t, func() {
		script, err := Load(write("/sources/broken.lua", brokenScript))
		So(err, ShouldBeNil)

		src, _ := NewMediaSource(script)
		_, err = src.Query(context.Background(), &source.FetchRequest{})
		So(source.Classify(err).Kind, ShouldEqual, source.ErrorParse)
	})

	Convey("A cancelled query reports the cancellation", t, func() {
		script, err := Load(write("/sources/example.lua", mediaScript))
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		src, _ := NewMediaSource(script)
		_, err = src.Query(ctx, &source.FetchRequest{SubjectNames: []string{"x"}})
		So(err, ShouldNotBeNil)
	})

	Convey("A script without provider functions is rejected", t, func() {
		_, err := Load(write("/sources/empty.lua", `local x = 1`))
		So(errors.Is(err, ErrNotProvider), ShouldBeTrue)
	})
}

func TestDanmakuProvider(t *testing.T) {
	Convey("Given a danmaku provider script", t, func() {
		script, err := Load(write("/sources/dandan.lua", danmakuScript))
		So(err, ShouldBeNil)
		So(script.Role, ShouldEqual, RoleDanmaku)

		provider, err := NewDanmakuProvider(script)
		So(err, ShouldBeNil)

		Convey("an episode is matched by title and sort", func() {
			result, err := provider.Match(context.Background(), &danmaku.EpisodeContext{
				SubjectID:    "154587",
				SubjectNames: []string{"Frieren", "Sousou no Frieren"},
				EpisodeSort:  5,
			})
			So(err, ShouldBeNil)

			So(result.Info.Method, ShouldEqual, danmaku.MatchExactTitle)
			So(result.Info.SubjectTitle, ShouldEqual, "Sousou no Frieren")
			So(result.Info.EpisodeTitle, ShouldEqual, "Phantoms of the Dead")
			So(result.Items, ShouldHaveLength, 2)
			So(result.Items[0].Text, ShouldEqual, "Sousou no Frieren e5")
			So(result.Items[1].PlayTimeMillis, ShouldEqual, 10250)
		})

		Convey("posting needs a PostDanmaku function", func() {
			_, err := provider.Post(context.Background(), &danmaku.EpisodeContext{SubjectID: "1"}, danmaku.Danmaku{Text: "hi"})
			So(errors.Is(err, danmaku.ErrPostUnsupported), ShouldBeTrue)
		})

		Convey("it supports interactive matching", func() {
			var _ danmaku.InteractiveProvider = provider

			subjects, err := provider.SearchSubjects(context.Background(), "frieren")
			So(err, ShouldBeNil)
			So(subjects, ShouldHaveLength, 2)

			episodes, err := provider.SubjectEpisodes(context.Background(), "s1")
			So(err, ShouldBeNil)
			So(episodes, ShouldBeEmpty)
		})
	})
}

func TestDanmakuPost(t *testing.T) {
	Convey("Given a danmaku provider script that accepts comments", t, func() {
		script, err := Load(write("/sources/posting.lua", postingScript))
		So(err, ShouldBeNil)

		provider, err := NewDanmakuProvider(script)
		So(err, ShouldBeNil)
		var _ danmaku.Poster = provider

		Convey("the stored comment is read back", func() {
			posted, err := provider.Post(context.Background(), &danmaku.EpisodeContext{
				SubjectID:    "154587",
				SubjectNames: []string{"Frieren"},
				EpisodeSort:  5,
			}, danmaku.Danmaku{SenderID: "me", Text: "nice", PlayTimeMillis: 12_500})
			So(err, ShouldBeNil)

			So(posted.ID, ShouldEqual, "posted-154587-5")
			So(posted.SenderID, ShouldEqual, "me")
			So(posted.Text, ShouldEqual, "nice (Frieren)")
			So(posted.PlayTimeMillis, ShouldEqual, 12_500)
			So(posted.ServiceID, ShouldEqual, "posting")
		})
	})
}
