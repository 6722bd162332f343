package danmaku

import (
	"testing"
	"time"

	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
)

func succeeded(id string, method MatchMethod, items ...Danmaku) ProviderResult {
	return ProviderResult{
		Result: source.Idle[Danmaku](id, source.KindDanmaku).Succeeded(items),
		Match:  MatchInfo{ServiceID: id, Method: method},
	}
}

func TestProduceListState(t *testing.T) {
	Convey("Given nothing fetched yet", t, func() {
		state := ProduceListState(nil, nil, map[string]bool{})

		Convey("The list is loading", func() {
			So(state.Loading, ShouldBeTrue)
			So(state.Empty, ShouldBeFalse)
		})
	})

	Convey("Given results of two providers", t, func() {
		results := []ProviderResult{
			succeeded("X", MatchExactID),
			succeeded("Y", MatchFuzzy),
		}
		all := []Presentation{
			{Danmaku: Danmaku{ID: "2", Text: "later", PlayTimeMillis: 2000, ServiceID: "X"}},
			{Danmaku: Danmaku{ID: "1", Text: "sooner", PlayTimeMillis: 1000, ServiceID: "Y"}, IsSelf: true},
		}

		Convey("Items are sorted by time and sources flagged", func() {
			state := ProduceListState(all, results, map[string]bool{"X": true, "Y": false})

			So(lo.Map(state.Items, func(i ListItem, _ int) string { return i.ID }), ShouldResemble, []string{"1", "2"})
			So(state.Items[0].IsSelf, ShouldBeTrue)
			So(state.Sources, ShouldResemble, []SourceItem{
				{ServiceID: "X", Enabled: true, IsFuzzyMatch: false},
				{ServiceID: "Y", Enabled: false, IsFuzzyMatch: true},
			})
			So(state.Loading, ShouldBeFalse)
			So(state.Empty, ShouldBeFalse)
		})

		Convey("Without a chosen set every provider is enabled", func() {
			state := ProduceListState(all, results, nil)
			So(lo.EveryBy(state.Sources, func(s SourceItem) bool { return s.Enabled }), ShouldBeTrue)
		})

		Convey("No items with results is empty", func() {
			state := ProduceListState(nil, results, nil)
			So(state.Empty, ShouldBeTrue)
		})

		Convey("States differing only in row ids are equal", func() {
			So(ProduceListState(all, results, nil).Equal(ProduceListState(all, results, nil)), ShouldBeTrue)
		})
	})
}

func TestListStateProducer(t *testing.T) {
	Convey("Given a producer over live inputs", t, func() {
		all := stream.NewState[[]Presentation](nil)
		results := stream.NewState[[]ProviderResult](nil)
		enabled := stream.NewState(map[string]bool{})

		producer := NewListStateProducer(all, results, enabled)
		defer producer.Close()

		Convey("It starts loading", func() {
			So(producer.State().Get().Loading, ShouldBeTrue)
		})

		Convey("It follows the inputs", func() {
			results.Set([]ProviderResult{succeeded("X", MatchExactTitle)})
			all.Set([]Presentation{{Danmaku: Danmaku{ID: "1", Text: "hi", ServiceID: "X"}}})
			time.Sleep(50 * time.Millisecond)

			state := producer.State().Get()
			So(state.Loading, ShouldBeFalse)
			So(state.Items, ShouldHaveLength, 1)
			So(state.Sources[0].Enabled, ShouldBeTrue)
		})
	})
}
