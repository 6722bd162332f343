package custom

import (
	"errors"
	"testing"

	"github.com/anisan-cli/aniplay/danmaku"
	"github.com/anisan-cli/aniplay/source"
	. "github.com/smartystreets/goconvey/convey"
	lua "github.com/yuin/gopher-lua"
)

func TestMediaFromTable(t *testing.T) {
	Convey("mediaFromTable", t, func() {
		L := lua.NewState()
		defer L.Close()

		script := &Script{Name: "nyaa", Kind: source.KindBitTorrent}

		Convey("Should extract media from a valid table", func() {
			headers := L.NewTable()
			headers.RawSetString("Referer", lua.LString("https://example.com"))

			tbl := L.NewTable()
			tbl.RawSetString("id", lua.LString("42"))
			tbl.RawSetString("title", lua.LString("[Group] Frieren - 05"))
			tbl.RawSetString("url", lua.LString("magnet:?xt=urn:btih:abc"))
			tbl.RawSetString("resolution", lua.LString("1080P"))
			tbl.RawSetString("subtitles", lua.LString("CHS, CHT"))
			tbl.RawSetString("seeds", lua.LNumber(120))
			tbl.RawSetString("headers", headers)

			media, err := mediaFromTable(tbl, script)
			So(err, ShouldBeNil)
			So(media.SourceID, ShouldEqual, "nyaa")
			So(media.Kind, ShouldEqual, source.KindBitTorrent)
			So(media.Key(), ShouldEqual, "nyaa/42")
			So(media.Subtitles, ShouldResemble, []string{"CHS", "CHT"})
			So(media.Seeds, ShouldEqual, 120)
			So(media.Headers["Referer"], ShouldEqual, "https://example.com")
		})

		Convey("Should default the id and title to the url", func() {
			tbl := L.NewTable()
			tbl.RawSetString("url", lua.LString("https://example.com/ep5.m3u8"))

			media, err := mediaFromTable(tbl, script)
			So(err, ShouldBeNil)
			So(media.ID, ShouldEqual, "https://example.com/ep5.m3u8")
			So(media.Title, ShouldEqual, media.ID)
		})

		Convey("Should fail without a url", func() {
			tbl := L.NewTable()
			tbl.RawSetString("title", lua.LString("nothing"))

			_, err := mediaFromTable(tbl, script)
			So(errors.Is(err, source.ErrParse), ShouldBeTrue)
		})
	})
}

func TestDanmakuFromTable(t *testing.T) {
	Convey("danmakuFromTable", t, func() {
		L := lua.NewState()
		defer L.Close()

		Convey("Should convert seconds to milliseconds", func() {
			tbl := L.NewTable()
			tbl.RawSetString("id", lua.LString("1"))
			tbl.RawSetString("text", lua.LString("hello"))
			tbl.RawSetString("time", lua.LNumber(12.5))
			tbl.RawSetString("location", lua.LString("TOP"))
			tbl.RawSetString("color", lua.LNumber(0xffffff))

			d, err := danmakuFromTable(tbl, "dandan")
			So(err, ShouldBeNil)
			So(d.PlayTimeMillis, ShouldEqual, 12500)
			So(d.ServiceID, ShouldEqual, "dandan")
			So(d.Location, ShouldEqual, danmaku.LocationTop)
			So(d.Color, ShouldEqual, 0xffffff)
		})

		Convey("Should fall back to the normal location", func() {
			tbl := L.NewTable()
			tbl.RawSetString("text", lua.LString("hi"))
			tbl.RawSetString("location", lua.LString("sideways"))

			d, err := danmakuFromTable(tbl, "dandan")
			So(err, ShouldBeNil)
			So(d.Location, ShouldEqual, danmaku.LocationNormal)
		})
	})

	Convey("Episode sorts may be numbers", t, func() {
		L := lua.NewState()
		defer L.Close()

		tbl := L.NewTable()
		tbl.RawSetString("id", lua.LString("e5"))
		tbl.RawSetString("sort", lua.LNumber(5))

		e, err := episodeFromTable(tbl)
		So(err, ShouldBeNil)
		So(e.Sort, ShouldEqual, "5")
	})
}
