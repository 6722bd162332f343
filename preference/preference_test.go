package preference

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/key"
	"github.com/anisan-cli/aniplay/source"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestStore(t *testing.T) {
	Convey("Given configured defaults", t, func() {
		viper.Set(key.SelectorPreferredKind, "bt")
		viper.Set(key.SelectorPreferredSources, []string{"web-A"})
		viper.Set(key.SelectorPreferredResolutions, []string{"1080P"})
		viper.Set(key.SelectorAutoSelect, true)
		defer viper.Reset()

		path := filepath.Join(t.TempDir(), "preferences.json")
		store, err := Open(path)
		So(err, ShouldBeNil)

		Convey("They are the starting preferences", func() {
			p := store.Get()
			So(p.MediaKind, ShouldResemble, mo.Some(source.KindBitTorrent))
			So(p.Sources, ShouldResemble, []string{"web-A"})
			So(p.AutoSelect, ShouldBeTrue)
		})

		Convey("The chosen media of a subject ranks first for it", func() {
			So(store.RememberMedia("1", &source.Media{ID: "x", SourceID: "web-B", Kind: source.KindWeb}), ShouldBeNil)

			settings := Settings(store.Get(), "1")
			So(settings.RememberedSource, ShouldEqual, "web-B")
			So(settings.PreferredKind, ShouldResemble, mo.Some(source.KindWeb))

			other := Settings(store.Get(), "2")
			So(other.RememberedSource, ShouldBeEmpty)
			So(other.PreferredKind, ShouldResemble, mo.Some(source.KindBitTorrent))

			Convey("And survives reopening", func() {
				reopened, err := Open(path)
				So(err, ShouldBeNil)
				So(reopened.Get().Subjects["1"].SourceID, ShouldEqual, "web-B")
			})
		})

		Convey("Selector settings follow updates", func() {
			settings := store.SelectorSettings(t.Context(), "1")
			So(settings.Get().RememberedSource, ShouldBeEmpty)

			So(store.Update(func(p *Preferences) { p.Sources = []string{"web-C"} }), ShouldBeNil)
			time.Sleep(20 * time.Millisecond)
			So(settings.Get().PreferredSources, ShouldResemble, []string{"web-C"})
		})

		Convey("Danmaku providers are remembered", func() {
			So(store.SetDanmakuEnabled("bgm", false), ShouldBeNil)
			enabled, ok := store.Get().DanmakuProviders["bgm"]
			So(ok, ShouldBeTrue)
			So(enabled, ShouldBeFalse)
		})
	})
}
