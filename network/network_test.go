package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anisan-cli/aniplay/source"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassifyStatus(t *testing.T) {
	Convey("Given HTTP status codes", t, func() {
		So(ClassifyStatus(200), ShouldBeNil)
		So(ClassifyStatus(302), ShouldBeNil)

		Convey("429 is rate limiting", func() {
			err := ClassifyStatus(http.StatusTooManyRequests)
			So(source.Classify(err).Kind, ShouldEqual, source.ErrorRateLimited)
		})

		Convey("5xx is a network failure", func() {
			So(source.Classify(ClassifyStatus(503)).Kind, ShouldEqual, source.ErrorNetwork)
		})

		Convey("other 4xx is unsupported", func() {
			So(source.Classify(ClassifyStatus(404)).Kind, ShouldEqual, source.ErrorUnsupported)
		})
	})
}

func TestParseRetryAfter(t *testing.T) {
	Convey("Retry-After is parsed and capped", t, func() {
		So(parseRetryAfter("", 10*time.Second), ShouldEqual, time.Second)
		So(parseRetryAfter("3", 10*time.Second), ShouldEqual, 3*time.Second)
		So(parseRetryAfter("60", 10*time.Second), ShouldEqual, 10*time.Second)
		So(parseRetryAfter("garbage", 10*time.Second), ShouldEqual, time.Second)
		So(parseRetryAfter(time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat), 10*time.Second), ShouldEqual, 0)
	})
}

func TestDoWithRetry(t *testing.T) {
	Convey("Given a server that fails once", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		So(err, ShouldBeNil)

		Convey("the request is retried once", func() {
			resp, err := DoWithRetry(context.Background(), srv.Client(), req, DefaultRetryPolicy)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(calls.Load(), ShouldEqual, 2)
		})

		Convey("a policy without retries returns the first response", func() {
			resp, err := DoWithRetry(context.Background(), srv.Client(), req, RetryPolicy{})
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusTooManyRequests)
			So(calls.Load(), ShouldEqual, 1)
		})
	})

	Convey("Cancellation during the backoff is returned", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		_, err := DoWithRetry(ctx, srv.Client(), req, RetryPolicy{Retry5xx: true, Backoff5xx: time.Minute})
		So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
	})
}

func TestHostLimits(t *testing.T) {
	Convey("Given a limit of one request per second", t, func() {
		limits := NewHostLimits(1, 1)

		Convey("the burst is spent per host", func() {
			So(limits.Allow("a.example"), ShouldBeTrue)
			So(limits.Allow("a.example"), ShouldBeFalse)
			So(limits.Allow("b.example"), ShouldBeTrue)
		})

		Convey("waiting respects the context", func() {
			So(limits.Allow("c.example"), ShouldBeTrue)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			So(limits.Wait(ctx, "c.example"), ShouldNotBeNil)
		})
	})

	Convey("A non positive rate never blocks", t, func() {
		limits := NewHostLimits(0, 0)
		for range 10 {
			So(limits.Allow("a.example"), ShouldBeTrue)
		}
	})
}

func TestLimitedTransport(t *testing.T) {
	Convey("Requests pass through the limited transport", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		client := &http.Client{Transport: Limited(srv.Client().Transport, NewHostLimits(100, 10))}
		resp, err := client.Get(srv.URL)
		So(err, ShouldBeNil)
		defer resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusOK)
	})

	Convey("Hosts are taken from URLs", t, func() {
		So(hostOf("https://example.com/path?q=1"), ShouldEqual, "example.com")
		So(hostOf("http://example.com:8080"), ShouldEqual, "example.com:8080")
	})
}

func TestStatusTransport(t *testing.T) {
	Convey("Given a server answering with a status from the path", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/missing":
				w.WriteHeader(http.StatusNotFound)
			case "/bad":
				w.WriteHeader(http.StatusBadRequest)
			default:
				_, _ = w.Write([]byte("ok"))
			}
		}))
		defer srv.Close()

		errMissing := errors.New("missing")
		client := &http.Client{Transport: &StatusTransport{Client: srv.Client(), NotFound: errMissing}}

		Convey("successful responses pass", func() {
			resp, err := client.Get(srv.URL + "/ok")
			So(err, ShouldBeNil)
			So(resp.Body.Close(), ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("404 is the not found error", func() {
			_, err := client.Get(srv.URL + "/missing")
			So(errors.Is(err, errMissing), ShouldBeTrue)
		})

		Convey("other failures are classified", func() {
			_, err := client.Get(srv.URL + "/bad")
			So(errors.Is(err, source.ErrUnsupported), ShouldBeTrue)
		})
	})
}
