package history

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/anisan-cli/aniplay/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestHistory(t *testing.T) {
	Convey("Given an empty history", t, func() {
		store := New(filepath.Join(t.TempDir(), "history.json"))
		key := Key{SubjectID: "154587", EpisodeID: "3"}

		Convey("Nothing is saved yet", func() {
			So(store.Progress(key).IsAbsent(), ShouldBeTrue)
			So(store.IsWatched(key), ShouldBeFalse)
		})

		Convey("When saving progress", func() {
			So(store.SaveProgress(key, "web-A/1", 60_000, 1_440_000), ShouldBeNil)

			Convey("It can be read back", func() {
				record, ok := store.Progress(key).Get()
				So(ok, ShouldBeTrue)
				So(record.PositionMillis, ShouldEqual, 60_000)
				So(record.MediaKey, ShouldEqual, "web-A/1")
				So(record.Percentage(), ShouldAlmostEqual, 4.1666, 0.001)
			})

			Convey("An unknown duration keeps the known one", func() {
				So(store.SaveProgress(key, "web-A/1", 90_000, 0), ShouldBeNil)
				So(store.Progress(key).MustGet().DurationMillis, ShouldEqual, 1_440_000)
			})

			Convey("Marking watched keeps the position", func() {
				So(store.MarkWatched(key), ShouldBeNil)
				So(store.IsWatched(key), ShouldBeTrue)
				So(store.Progress(key).MustGet().PositionMillis, ShouldEqual, 60_000)

				So(store.ClearProgress(key), ShouldBeNil)
				So(store.Progress(key).MustGet().PositionMillis, ShouldEqual, 0)
				So(store.IsWatched(key), ShouldBeTrue)
			})

			Convey("Removing forgets the episode", func() {
				So(store.Remove(key), ShouldBeNil)
				So(store.Progress(key).IsAbsent(), ShouldBeTrue)
			})

			Convey("A read record is a snapshot", func() {
				before := store.Progress(key).MustGet()
				So(store.SaveProgress(key, "web-A/1", 120_000, 1_440_000), ShouldBeNil)

				So(before.PositionMillis, ShouldEqual, 60_000)
				So(store.Progress(key).MustGet().PositionMillis, ShouldEqual, 120_000)

				before.PositionMillis = 1
				So(store.Progress(key).MustGet().PositionMillis, ShouldEqual, 120_000)
			})

			Convey("Concurrent readers and writers do not share records", func() {
				var wg sync.WaitGroup
				for i := range 8 {
					wg.Add(2)
					go func() {
						defer wg.Done()
						_ = store.SaveProgress(key, "web-A/1", int64(i)*1000, 1_440_000)
					}()
					go func() {
						defer wg.Done()
						if record, ok := store.Progress(key).Get(); ok {
							_ = record.PositionMillis
						}
					}()
				}
				wg.Wait()
				So(store.Progress(key).IsPresent(), ShouldBeTrue)
			})

			Convey("Other episodes are unaffected", func() {
				So(store.Progress(Key{SubjectID: "154587", EpisodeID: "4"}).IsAbsent(), ShouldBeTrue)
			})
		})
	})
}
