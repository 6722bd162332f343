package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/anisan-cli/aniplay/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestCache(t *testing.T) {
	Convey("Given a cached entry", t, func() {
		key := GenerateKey("Sousou no Frieren", "example")
		So(Write(key, []string{"a", "b"}), ShouldBeNil)

		Convey("it is read back", func() {
			var got []string
			So(Read(key, &got), ShouldBeTrue)
			So(got, ShouldResemble, []string{"a", "b"})
		})

		Convey("keys ignore case and spaces", func() {
			So(GenerateKey("sousounofrieren", "example"), ShouldEqual, key)
			So(GenerateKey("sousounofrieren", "other"), ShouldNotEqual, key)
		})

		Convey("expired entries are ignored and collected", func() {
			old := time.Now().Add(-2 * TTL)
			So(filesystem.API().Chtimes(filepath.Join(dir(), key), old, old), ShouldBeNil)

			var got []string
			So(Read(key, &got), ShouldBeFalse)

			CollectGarbage()
			exists, _ := filesystem.API().Exists(filepath.Join(dir(), key))
			So(exists, ShouldBeFalse)
		})
	})

	Convey("A missing entry is not read", t, func() {
		var got map[string]int
		So(Read(GenerateKey("missing", "example"), &got), ShouldBeFalse)
	})
}
