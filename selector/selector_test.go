package selector

import (
	"errors"
	"testing"
	"time"

	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
	"github.com/samber/lo"
	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"
)

const window = 30 * time.Millisecond

func item(sourceID, id string, kind source.Kind, resolution string) *source.Media {
	return &source.Media{ID: id, SourceID: sourceID, Kind: kind, Title: id, Resolution: resolution}
}

func settle() {
	time.Sleep(4 * window)
}

func selected(s *Selector) *source.Media {
	return s.Selected().Get().OrEmpty()
}

func TestSelector(t *testing.T) {
	Convey("Given a selector over a live list", t, func() {
		a := item("web-A", "1", source.KindWeb, "720P")
		b := item("web-B", "1", source.KindWeb, "1080P")
		list := stream.NewState([]*source.Media{a, b})
		defer list.Close()

		s := New(list, Options{SettleWindow: window})
		defer s.Close()
		settle()

		Convey("Nothing is picked while automatic selection is off", func() {
			So(selected(s), ShouldBeNil)
			So(s.Summary().Get().Phase, ShouldEqual, PhaseManual)
		})

		Convey("An explicit selection is kept", func() {
			So(s.Select(a), ShouldBeNil)
			So(selected(s), ShouldEqual, a)
			So(s.Summary().Get().Explicit, ShouldBeTrue)

			Convey("And wins over automatic selection", func() {
				s.SetAutoSelect(true)
				settle()
				So(selected(s), ShouldEqual, a)
			})

			Convey("And is dropped once the item leaves the results", func() {
				list.Set([]*source.Media{b})
				settle()
				So(selected(s), ShouldBeNil)
			})
		})

		Convey("A fast selection is immediate but not explicit", func() {
			So(s.FastSelect(b), ShouldBeTrue)
			So(selected(s), ShouldEqual, b)
			So(s.Summary().Get().Explicit, ShouldBeFalse)

			Convey("And never replaces a selection", func() {
				So(s.FastSelect(a), ShouldBeFalse)
				So(selected(s), ShouldEqual, b)
			})
		})

		Convey("An item that just joined the results can be selected right away", func() {
			c := item("web-C", "1", source.KindWeb, "480P")
			list.Set([]*source.Media{a, b, c})
			So(s.Select(c), ShouldBeNil)
			So(selected(s), ShouldEqual, c)

			Convey("And fast selected too", func() {
				d := item("web-D", "1", source.KindWeb, "")
				s.Unselect()
				list.Set([]*source.Media{d})
				So(s.FastSelect(d), ShouldBeTrue)
				So(selected(s), ShouldEqual, d)
			})
		})

		Convey("Selecting something outside the results fails", func() {
			err := s.Select(item("web-C", "9", source.KindWeb, ""))
			So(errors.Is(err, ErrSelectionNotFound), ShouldBeTrue)
			So(errors.Is(err, ErrItemNotFound), ShouldBeTrue)
			So(selected(s), ShouldBeNil)
		})

		Convey("Automatic selection picks the best candidate after the window", func() {
			s.SetAutoSelect(true)
			So(s.Summary().Get().Phase, ShouldEqual, PhaseAutoSelecting)
			So(s.Summary().Get().String(), ShouldStartWith, "auto-selecting, estimate")

			settle()
			So(selected(s), ShouldEqual, b)
			So(s.Summary().Get().Explicit, ShouldBeFalse)
		})
	})

	Convey("Given the selected item gets excluded", t, func() {
		x := item("web-A", "x", source.KindWeb, "1080P")
		list := stream.NewState([]*source.Media{x})
		defer list.Close()

		s := New(list, Options{SettleWindow: window})
		defer s.Close()
		settle()
		So(s.Select(x), ShouldBeNil)

		s.SetAutoSelect(true)
		s.Exclude(x)
		settle()

		Convey("It is never auto-selected again, even as the only candidate", func() {
			So(selected(s), ShouldBeNil)
			So(s.IsExcluded(x), ShouldBeTrue)
			So(s.Summary().Get().Phase, ShouldEqual, PhaseAutoSelecting)
			So(s.Candidates(), ShouldBeEmpty)

			list.Set([]*source.Media{x})
			settle()
			So(selected(s), ShouldBeNil)
		})

		Convey("It cannot be selected explicitly", func() {
			err := s.Select(x)
			So(errors.Is(err, ErrSelectionNotFound), ShouldBeTrue)
			So(errors.Is(err, ErrItemExcluded), ShouldBeTrue)
		})

		Convey("Reset makes it eligible again", func() {
			s.Reset()
			settle()
			So(selected(s), ShouldEqual, x)
		})
	})

	Convey("Given a list that keeps changing", t, func() {
		list := stream.NewState([]*source.Media{})
		defer list.Close()

		s := New(list, Options{SettleWindow: 80 * time.Millisecond})
		defer s.Close()
		s.SetAutoSelect(true)

		Convey("The choice waits until the list settles", func() {
			worse := item("web-A", "1", source.KindWeb, "480P")
			better := item("web-B", "1", source.KindWeb, "1080P")

			list.Set([]*source.Media{worse})
			time.Sleep(40 * time.Millisecond)
			list.Set([]*source.Media{worse, better})
			time.Sleep(40 * time.Millisecond)
			So(selected(s), ShouldBeNil)

			time.Sleep(120 * time.Millisecond)
			So(selected(s), ShouldEqual, better)
		})
	})

	Convey("Given a subscriber to the changes", t, func() {
		a := item("web-A", "1", source.KindWeb, "")
		list := stream.NewState([]*source.Media{a})
		defer list.Close()

		s := New(list, Options{SettleWindow: window})
		defer s.Close()
		settle()

		changes := s.Changes().Subscribe(t.Context())
		So(s.Select(a), ShouldBeNil)
		s.Unselect()

		Convey("Every transition arrives in order", func() {
			first := <-changes
			So(first.Item.MustGet(), ShouldEqual, a)
			So(first.Explicit, ShouldBeTrue)

			second := <-changes
			So(second.Item.IsPresent(), ShouldBeFalse)
		})
	})
}

func TestRank(t *testing.T) {
	none := func(*source.Media) bool { return false }

	Convey("Given candidates of several kinds", t, func() {
		web := item("web-A", "1", source.KindWeb, "720P")
		bt1 := item("bt-A", "1", source.KindBitTorrent, "1080P")
		bt1.Seeds = 3
		bt2 := item("bt-A", "2", source.KindBitTorrent, "1080P")
		bt2.Seeds = 40
		local := item("local", "1", source.KindLocal, "")

		items := []*source.Media{web, bt1, bt2, local}
		keys := func(ranked []*source.Media) []string {
			return lo.Map(ranked, func(m *source.Media, _ int) string { return m.Key() })
		}

		Convey("Local ranks first, then web, then bt by seeds", func() {
			ranked := Rank(items, none, Settings{}, DefaultComparator)
			So(keys(ranked), ShouldResemble, []string{"local/1", "web-A/1", "bt-A/2", "bt-A/1"})
		})

		Convey("A preferred kind keeps only that kind", func() {
			ranked := Rank(items, none, Settings{PreferredKind: mo.Some(source.KindBitTorrent)}, DefaultComparator)
			So(keys(ranked), ShouldResemble, []string{"bt-A/2", "bt-A/1"})
		})

		Convey("A preferred kind with no candidates falls back to every kind", func() {
			onlyWeb := []*source.Media{web}
			ranked := Rank(onlyWeb, none, Settings{PreferredKind: mo.Some(source.KindBitTorrent)}, DefaultComparator)
			So(keys(ranked), ShouldResemble, []string{"web-A/1"})
		})

		Convey("Preferred sources outrank resolution", func() {
			other := item("web-B", "1", source.KindWeb, "1080P")
			ranked := Rank([]*source.Media{other, web}, none, Settings{PreferredSources: []string{"web-A"}}, DefaultComparator)
			So(keys(ranked), ShouldResemble, []string{"web-A/1", "web-B/1"})
		})

		Convey("The remembered source outranks preferred sources", func() {
			other := item("web-B", "1", source.KindWeb, "")
			ranked := Rank([]*source.Media{web, other}, none, Settings{
				PreferredSources: []string{"web-A"},
				RememberedSource: "web-B",
			}, DefaultComparator)
			So(keys(ranked), ShouldResemble, []string{"web-B/1", "web-A/1"})
		})

		Convey("Preferred resolutions are honored in order", func() {
			hd := item("web-A", "hd", source.KindWeb, "720P")
			fhd := item("web-A", "fhd", source.KindWeb, "1080P")
			ranked := Rank([]*source.Media{fhd, hd}, none, Settings{PreferredResolutions: []string{"720P"}}, DefaultComparator)
			So(keys(ranked), ShouldResemble, []string{"web-A/hd", "web-A/fhd"})
		})

		Convey("Excluded items are left out", func() {
			ranked := Rank(items, func(m *source.Media) bool { return m.Kind == source.KindLocal }, Settings{}, DefaultComparator)
			So(ranked, ShouldNotContain, local)
			So(ranked, ShouldHaveLength, 3)
		})
	})
}
