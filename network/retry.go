package network

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/anisan-cli/aniplay/log"
	"github.com/sirupsen/logrus"
)

// RetryPolicy controls the single retry DoWithRetry may perform.
type RetryPolicy struct {
	Retry429   bool
	Max429Wait time.Duration
	Retry5xx   bool
	Backoff5xx time.Duration
}

// DefaultRetryPolicy retries 429 honoring Retry-After up to 10s and 5xx once after a second.
var DefaultRetryPolicy = RetryPolicy{
	Retry429:   true,
	Max429Wait: 10 * time.Second,
	Retry5xx:   true,
	Backoff5xx: time.Second,
}

// DoWithRetry sends req and retries at most once on 429 or 5xx.
// Requests with a body are retried only when req.GetBody is set.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = Client
	}

	req = req.WithContext(ctx)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	var wait time.Duration
	switch {
	case resp.StatusCode == http.StatusTooManyRequests && policy.Retry429:
		wait = parseRetryAfter(resp.Header.Get("Retry-After"), policy.Max429Wait)
	case resp.StatusCode >= 500 && policy.Retry5xx:
		wait = policy.Backoff5xx
	default:
		return resp, nil
	}

	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	drain(resp)

	log.With(logrus.Fields{
		"host":   req.URL.Host,
		"status": resp.StatusCode,
		"wait":   wait,
	}).Debugf("retrying request")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}

	return client.Do(retry)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// parseRetryAfter accepts delta seconds or an HTTP date, capped at max.
func parseRetryAfter(s string, max time.Duration) time.Duration {
	if s == "" {
		return time.Second
	}

	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		return min(time.Duration(sec)*time.Second, max)
	}

	t, err := http.ParseTime(s)
	if err != nil {
		return time.Second
	}

	until := time.Until(t)
	if until <= 0 {
		return 0
	}
	return min(until, max)
}

// StatusTransport sends through DoWithRetry and fails unsuccessful responses
// with ClassifyStatus errors, or NotFound on 404 when set. It serves clients
// that never look at the status code themselves.
type StatusTransport struct {
	Client   *http.Client
	Policy   RetryPolicy
	NotFound error
}

func (t *StatusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := DoWithRetry(req.Context(), t.Client, req, t.Policy)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound && t.NotFound != nil {
		drain(resp)
		return nil, t.NotFound
	}

	if err := ClassifyStatus(resp.StatusCode); err != nil {
		drain(resp)
		return nil, err
	}

	return resp, nil
}
