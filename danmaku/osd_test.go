package danmaku

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anisan-cli/aniplay/stream"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeScreen struct {
	mu    sync.Mutex
	shown []string
}

func (f *fakeScreen) ShowText(text string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, text)
	return nil
}

func (f *fakeScreen) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.shown...)
}

func said(text string, at int64) Presentation {
	return Presentation{Danmaku: Danmaku{Text: text, PlayTimeMillis: at}}
}

func TestOSD(t *testing.T) {
	Convey("Given an OSD repopulated at the start", t, func() {
		screen := &fakeScreen{}
		osd := NewOSD(screen, OSDOptions{Lines: 2})
		osd.Handle(Repopulate{List: []Presentation{said("b", 2000), said("a", 1000), said("c", 3000)}})

		Convey("Comments are drawn as the clock passes them", func() {
			osd.Advance(500)
			So(screen.texts(), ShouldBeEmpty)

			osd.Advance(1000)
			So(screen.texts(), ShouldResemble, []string{"a"})

			osd.Advance(2500)
			So(screen.texts(), ShouldResemble, []string{"a", "b"})
			So(osd.Pending(), ShouldEqual, 1)
		})

		Convey("A seek draws nothing and continues from the new position", func() {
			osd.Advance(2500)
			So(screen.texts(), ShouldBeEmpty)

			osd.Advance(3000)
			So(screen.texts(), ShouldResemble, []string{"c"})

			osd.Advance(0)
			So(osd.Pending(), ShouldEqual, 3)
		})

		Convey("Only the latest lines fit at once", func() {
			osd.Handle(Add{Item: said("d", 1500)})
			osd.Advance(1900)
			So(osd.Pending(), ShouldEqual, 2)

			osd.Advance(1900 + 1800)
			So(screen.texts(), ShouldHaveLength, 2)
			So(screen.texts()[1], ShouldEqual, "b\nc")
		})

		Convey("A repopulate restarts at its anchor", func() {
			osd.Advance(1000)
			osd.Handle(Repopulate{List: []Presentation{said("x", 1000), said("y", 4000)}, AnchorMillis: 1200})
			So(osd.Pending(), ShouldEqual, 1)

			osd.Advance(4000)
			So(screen.texts(), ShouldResemble, []string{"a"})

			osd.Advance(1300)
			osd.Advance(2800)
			osd.Advance(4000)
			So(screen.texts(), ShouldResemble, []string{"a", "y"})
		})

		Convey("A live comment behind the clock is drawn right away, once", func() {
			osd.Advance(1500)
			osd.Handle(Add{Item: Presentation{Danmaku: Danmaku{Text: "  mine  ", PlayTimeMillis: 1400}, IsSelf: true}})
			So(screen.texts(), ShouldResemble, []string{"a", "> mine"})

			osd.Advance(2000)
			So(screen.texts(), ShouldResemble, []string{"a", "> mine", "b"})
		})
	})

	Convey("Given an OSD following a loader", t, func() {
		screen := &fakeScreen{}
		position := stream.NewState[int64](0)
		defer position.Close()

		provider := &fakeProvider{id: "exact", method: MatchExactID, items: comments("p", 100, 200)}
		l := newLoader(LoaderOptions{Position: position.Get}, provider)
		defer l.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			NewOSD(screen, OSDOptions{}).Run(ctx, l, position)
		}()
		time.Sleep(20 * time.Millisecond)

		So(l.Load(episode()), ShouldBeNil)
		settled(l)
		time.Sleep(20 * time.Millisecond)

		Convey("The loaded comments are drawn as playback moves", func() {
			position.Set(150)
			time.Sleep(20 * time.Millisecond)
			position.Set(250)

			deadline := time.Now().Add(time.Second)
			for len(screen.texts()) < 2 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			So(screen.texts(), ShouldResemble, []string{"p", "p"})
		})

		Convey("It stops with its context", func() {
			cancel()
			select {
			case <-done:
			case <-time.After(time.Second):
				So("osd still running", ShouldBeEmpty)
			}
		})
	})
}

