package aniskip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := New()
	c.BaseURL = srv.URL
	c.HTTP = srv.Client()
	return c, srv
}

func TestSkipTimes(t *testing.T) {
	Convey("Given an episode with OP and ED", t, func() {
		var (
			calls        atomic.Int32
			mu           sync.Mutex
			path, length string
		)

		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			mu.Lock()
			path = r.URL.Path
			length = r.URL.Query().Get("episodeLength")
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)
			_, _ = w.Write([]byte(`{"found": true, "results": [
				{"interval": {"startTime": 1300.5, "endTime": 1390}, "skipType": "ed"},
				{"interval": {"startTime": 90, "endTime": 0}, "skipType": "op"},
				{"interval": {"startTime": 5, "endTime": 10}, "skipType": "recap"}
			]}`))
		})
		defer srv.Close()

		Convey("intervals are returned sorted by start", func() {
			intervals, err := c.SkipTimes(context.Background(), 1535, 3, 1420)
			So(err, ShouldBeNil)

			mu.Lock()
			defer mu.Unlock()
			So(path, ShouldEqual, "/1535/3")
			So(length, ShouldEqual, "1420")

			So(intervals, ShouldResemble, []Interval{
				{Type: Opening, Start: 90, End: 0},
				{Type: Ending, Start: 1300.5, End: 1390},
			})
			So(intervals[0].Length(85), ShouldEqual, 85)
			So(intervals[1].Length(85), ShouldEqual, 89.5)
		})

		Convey("concurrent identical requests share one call", func() {
			var wg sync.WaitGroup
			for range 5 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = c.SkipTimes(context.Background(), 1535, 3, 1420)
				}()
			}
			wg.Wait()

			So(calls.Load(), ShouldBeLessThan, 5)
		})
	})

	Convey("An unknown episode has no intervals", t, func() {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"found": false, "results": []}`))
		})
		defer srv.Close()

		intervals, err := c.SkipTimes(context.Background(), 999999, 1, 1400)
		So(err, ShouldBeNil)
		So(intervals, ShouldBeEmpty)
	})

	Convey("A failing API degrades to no intervals", t, func() {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		defer srv.Close()

		intervals, err := c.SkipTimes(context.Background(), 1535, 1, 1400)
		So(err, ShouldBeNil)
		So(intervals, ShouldBeEmpty)
	})

	Convey("Invalid ids are not requested", t, func() {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request")
		})
		defer srv.Close()

		intervals, err := c.SkipTimes(context.Background(), 0, 1, 0)
		So(err, ShouldBeNil)
		So(intervals, ShouldBeNil)
	})
}
