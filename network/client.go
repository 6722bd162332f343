// Package network provides the HTTP clients shared by metadata lookups and scripted providers.
package network

import (
	"net/http"
	"time"

	"github.com/anisan-cli/aniplay/key"
	"github.com/spf13/viper"
)

// Client is shared by metadata services and plain provider requests.
// Requests are throttled per host, see Limits.
var Client = &http.Client{
	Timeout:   time.Minute,
	Transport: &limitedTransport{next: newTransport()},
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 100
	t.MaxConnsPerHost = 200
	t.IdleConnTimeout = 30 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	t.ExpectContinueTimeout = 30 * time.Second
	return t
}

// limitedTransport waits on the host limiter before every round trip.
type limitedTransport struct {
	next   http.RoundTripper
	limits *HostLimits
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	limits := t.limits
	if limits == nil {
		limits = Limits()
	}

	if err := limits.Wait(req.Context(), req.URL.Host); err != nil {
		return nil, err
	}

	return t.next.RoundTrip(req)
}

// Limited wraps next so that every request obeys the given limits.
func Limited(next http.RoundTripper, limits *HostLimits) http.RoundTripper {
	if next == nil {
		next = newTransport()
	}
	return &limitedTransport{next: next, limits: limits}
}

// rateLimit returns the configured per host request rate.
func rateLimit() float64 {
	return viper.GetFloat64(key.NetworkRateLimit)
}
