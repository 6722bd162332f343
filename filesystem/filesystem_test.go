package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBackend(t *testing.T) {
	Convey("Switching backends", t, func() {
		SetOsFs()
		So(API().Name(), ShouldEqual, "OsFs")

		SetMemMapFs()
		So(API().Name(), ShouldEqual, "MemMapFS")
	})

	Convey("GacheFs writes through the memory backend", t, func() {
		SetMemMapFs()
		dir := filepath.Join("cache", "gache")
		So(GacheFs{}.MkdirAll(dir, os.ModePerm), ShouldBeNil)

		f, err := GacheFs{}.OpenFile(filepath.Join(dir, "a.json"), os.O_CREATE|os.O_WRONLY, 0o644)
		So(err, ShouldBeNil)
		_, err = f.Write([]byte("{}"))
		So(err, ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		data, err := API().ReadFile(filepath.Join(dir, "a.json"))
		So(err, ShouldBeNil)
		So(string(data), ShouldEqual, "{}")
	})

	Convey("WriteAtomic replaces a file and leaves no temp behind", t, func() {
		SetMemMapFs()
		path := filepath.Join("nested", "dir", "entry.json")

		So(WriteAtomic(path, []byte("old")), ShouldBeNil)
		So(WriteAtomic(path, []byte("new")), ShouldBeNil)

		data, err := API().ReadFile(path)
		So(err, ShouldBeNil)
		So(string(data), ShouldEqual, "new")

		exists, err := API().Exists(path + ".tmp")
		So(err, ShouldBeNil)
		So(exists, ShouldBeFalse)
	})
}
