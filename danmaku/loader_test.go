package danmaku

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anisan-cli/aniplay/source"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeProvider struct {
	id       string
	method   MatchMethod
	delay    time.Duration
	items    []Danmaku
	err      error
	stubborn bool
	calls    atomic.Int32
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) Match(ctx context.Context, _ *EpisodeContext) (MatchResult, error) {
	f.calls.Add(1)

	if f.stubborn {
		time.Sleep(f.delay)
	} else {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return MatchResult{}, ctx.Err()
		}
	}

	if f.err != nil {
		return MatchResult{}, f.err
	}
	return MatchResult{Info: MatchInfo{Method: f.method}, Items: f.items}, nil
}

type postingProvider struct {
	fakeProvider
	posted []Danmaku
	err    error
}

func (p *postingProvider) Post(_ context.Context, _ *EpisodeContext, item Danmaku) (Danmaku, error) {
	if p.err != nil {
		return Danmaku{}, p.err
	}
	p.posted = append(p.posted, item)
	item.ID = "stored"
	return item, nil
}

func comments(prefix string, times ...int64) []Danmaku {
	return lo.Map(times, func(t int64, i int) Danmaku {
		return Danmaku{ID: prefix + string(rune('a'+i)), Text: prefix, PlayTimeMillis: t}
	})
}

func episode() *EpisodeContext {
	return &EpisodeContext{SubjectID: "1", SubjectNames: []string{"Frieren"}, EpisodeID: "e1", EpisodeSort: 1}
}

func newLoader(options LoaderOptions, providers ...Provider) *Loader {
	if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	l, err := NewLoader(providers, options)
	So(err, ShouldBeNil)
	return l
}

func settled(l *Loader) {
	deadline := time.Now().Add(2 * time.Second)
	for l.Status().Get().Loading && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

func nextRepopulate(events <-chan Event) (Repopulate, bool) {
	timeout := time.After(time.Second)
	for {
		select {
		case e := <-events:
			if r, ok := e.(Repopulate); ok {
				return r, true
			}
		case <-timeout:
			return Repopulate{}, false
		}
	}
}

func serviceIDs(list []Presentation) []string {
	return lo.Uniq(lo.Map(list, func(p Presentation, _ int) string { return p.ServiceID }))
}

func TestLoader(t *testing.T) {
	Convey("Given an exact and a fuzzy provider", t, func() {
		x := &fakeProvider{id: "X", method: MatchExactID, delay: 10 * time.Millisecond, items: comments("x", 2000, 1000)}
		y := &fakeProvider{id: "Y", method: MatchFuzzy, delay: 20 * time.Millisecond, items: comments("y", 1500)}

		l := newLoader(LoaderOptions{Position: func() int64 { return 4200 }}, x, y)
		defer l.Close()

		So(l.Load(episode()), ShouldBeNil)
		settled(l)

		Convey("Both are merged by time", func() {
			all := l.All().Get()
			So(lo.Map(all, func(p Presentation, _ int) int64 { return p.PlayTimeMillis }), ShouldResemble, []int64{1000, 1500, 2000})
			So(l.Status().Get(), ShouldResemble, Status{})

			results := l.FetchResults().Get()
			So(results[0].Match.Method, ShouldEqual, MatchExactID)
			So(results[1].Match.Method, ShouldEqual, MatchFuzzy)
		})

		Convey("Disabling one repopulates without it", func() {
			events := l.Events().Subscribe(t.Context())
			So(l.SetEnabled("Y", false), ShouldBeNil)

			repopulate, ok := nextRepopulate(events)
			So(ok, ShouldBeTrue)
			So(serviceIDs(repopulate.List), ShouldResemble, []string{"X"})
			So(repopulate.AnchorMillis, ShouldEqual, 4200)
			So(l.FetchResults().Get()[1].State, ShouldEqual, source.StateDisabled)

			Convey("And enabling it again restores the cache without querying", func() {
				So(l.SetEnabled("Y", true), ShouldBeNil)

				repopulate, ok := nextRepopulate(events)
				So(ok, ShouldBeTrue)
				So(repopulate.List, ShouldHaveLength, 3)
				So(serviceIDs(repopulate.List), ShouldContain, "Y")
				So(y.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("Live comments are added and blank ones dropped", func() {
			events := l.Events().Subscribe(t.Context())
			So(l.Add(Danmaku{ID: "live", Text: "hello", PlayTimeMillis: 500}), ShouldBeNil)
			So(l.Add(Danmaku{ID: "blank", Text: "  "}), ShouldBeNil)

			event := <-events
			add, ok := event.(Add)
			So(ok, ShouldBeTrue)
			So(add.Item.ID, ShouldEqual, "live")
			So(l.All().Get(), ShouldHaveLength, 4)
			So(l.All().Get()[0].ID, ShouldEqual, "live")
		})

		Convey("Restarting queries again and ignores the cache", func() {
			So(l.Restart("X"), ShouldBeNil)
			settled(l)
			So(x.calls.Load(), ShouldEqual, 2)
		})

		Convey("Unknown providers are rejected", func() {
			So(errors.Is(l.SetEnabled("Z", false), ErrUnknownProvider), ShouldBeTrue)
			So(errors.Is(l.Restart("Z"), ErrUnknownProvider), ShouldBeTrue)
		})
	})

	Convey("Given a provider that is still working when disabled", t, func() {
		slow := &fakeProvider{id: "slow", method: MatchExactTitle, delay: 100 * time.Millisecond, items: comments("s", 1)}
		l := newLoader(LoaderOptions{}, slow)
		defer l.Close()

		So(l.Load(episode()), ShouldBeNil)
		So(l.SetEnabled("slow", false), ShouldBeNil)
		time.Sleep(150 * time.Millisecond)

		Convey("Its late result is discarded", func() {
			So(l.FetchResults().Get()[0].State, ShouldEqual, source.StateDisabled)
			So(l.All().Get(), ShouldBeEmpty)
		})

		Convey("Enabling it queries again", func() {
			So(l.SetEnabled("slow", true), ShouldBeNil)
			settled(l)
			So(slow.calls.Load(), ShouldEqual, 2)
			So(l.All().Get(), ShouldHaveLength, 1)
		})
	})

	Convey("Given failing providers", t, func() {
		broken := &fakeProvider{id: "broken", err: source.ErrRateLimited}
		stuck := &fakeProvider{id: "stuck", stubborn: true, delay: 300 * time.Millisecond}
		blank := &fakeProvider{id: "blank", method: MatchFuzzy, items: []Danmaku{{ID: "1", Text: ""}}}

		l := newLoader(LoaderOptions{Timeout: 50 * time.Millisecond}, broken, stuck, blank)
		defer l.Close()

		So(l.Load(episode()), ShouldBeNil)
		settled(l)

		Convey("Each failure is classified on its own", func() {
			results := l.FetchResults().Get()
			So(results[0].State, ShouldEqual, source.StateFailed)
			So(results[0].Err.Kind, ShouldEqual, source.ErrorRateLimited)
			So(results[1].State, ShouldEqual, source.StateFailed)
			So(results[1].Err.Kind, ShouldEqual, source.ErrorTimeout)
			So(results[2].State, ShouldEqual, source.StateSucceeded)
		})

		Convey("Nothing loaded reads as empty", func() {
			So(l.Status().Get(), ShouldResemble, Status{Loading: false, Empty: true})
		})
	})

	Convey("Given the local user's comments", t, func() {
		mine := &fakeProvider{id: "mine", method: MatchExactID, items: []Danmaku{
			{ID: "1", Text: "me", SenderID: "self"},
			{ID: "2", Text: "them", SenderID: "other"},
		}}

		l := newLoader(LoaderOptions{SelfID: "self"}, mine)
		defer l.Close()
		So(l.Load(episode()), ShouldBeNil)
		settled(l)

		Convey("They are marked as self", func() {
			all := l.All().Get()
			So(all, ShouldHaveLength, 2)
			So(all[0].IsSelf, ShouldBeTrue)
			So(all[1].IsSelf, ShouldBeFalse)
		})
	})

	Convey("Given a provider disabled from the start", t, func() {
		off := &fakeProvider{id: "off", method: MatchExactID, items: comments("o", 1)}
		l := newLoader(LoaderOptions{Enabled: map[string]bool{"off": false}}, off)
		defer l.Close()

		So(l.Load(episode()), ShouldBeNil)
		time.Sleep(20 * time.Millisecond)

		Convey("It is never queried", func() {
			So(off.calls.Load(), ShouldEqual, 0)
			So(l.Enabled().Get(), ShouldResemble, map[string]bool{"off": false})
		})
	})

	Convey("Given a provider that accepts comments", t, func() {
		poster := &postingProvider{fakeProvider: fakeProvider{id: "poster", method: MatchExactID}}
		silent := &fakeProvider{id: "silent", method: MatchExactID}

		l := newLoader(LoaderOptions{SelfID: "self", Position: func() int64 { return 42_000 }}, poster, silent)
		defer l.Close()

		Convey("Nothing can be posted before an episode loads", func() {
			_, err := l.Post(context.Background(), "poster", "hi")
			So(errors.Is(err, ErrNotLoaded), ShouldBeTrue)
		})

		Convey("Once loaded", func() {
			So(l.Load(episode()), ShouldBeNil)
			settled(l)
			events := l.Events().Subscribe(t.Context())

			Convey("A comment is posted at the current position and shown as the user's own", func() {
				posted, err := l.Post(context.Background(), "poster", "  hello  ")
				So(err, ShouldBeNil)
				So(posted.ID, ShouldEqual, "stored")
				So(posted.PlayTimeMillis, ShouldEqual, 42_000)
				So(poster.posted[0].Text, ShouldEqual, "hello")
				So(poster.posted[0].SenderID, ShouldEqual, "self")

				select {
				case e := <-events:
					add, ok := e.(Add)
					So(ok, ShouldBeTrue)
					So(add.Item.IsSelf, ShouldBeTrue)
					So(add.Item.Text, ShouldEqual, "hello")
				case <-time.After(time.Second):
					So("no add event", ShouldBeEmpty)
				}
				So(l.All().Get(), ShouldHaveLength, 1)
			})

			Convey("Blank comments are refused", func() {
				_, err := l.Post(context.Background(), "poster", "   ")
				So(errors.Is(err, ErrBlank), ShouldBeTrue)
				So(poster.posted, ShouldBeEmpty)
			})

			Convey("A provider without posting support is refused", func() {
				_, err := l.Post(context.Background(), "silent", "hi")
				So(errors.Is(err, ErrPostUnsupported), ShouldBeTrue)

				_, err = l.Post(context.Background(), "nobody", "hi")
				So(errors.Is(err, ErrUnknownProvider), ShouldBeTrue)
			})

			Convey("A failed post adds nothing", func() {
				poster.err = errors.New("rate limited")
				_, err := l.Post(context.Background(), "poster", "hi")
				So(err, ShouldNotBeNil)
				So(l.All().Get(), ShouldBeEmpty)
			})
		})
	})

	Convey("Given a closed loader", t, func() {
		l := newLoader(LoaderOptions{}, &fakeProvider{id: "p"})
		l.Close()

		Convey("Every operation fails", func() {
			So(errors.Is(l.Load(episode()), ErrClosed), ShouldBeTrue)
			So(errors.Is(l.SetEnabled("p", false), ErrClosed), ShouldBeTrue)
		})
	})
}
