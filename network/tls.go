package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// TLSTimeout bounds a single fingerprinted request.
const TLSTimeout = 30 * time.Second

// UserAgent is sent by fingerprinted requests unless overridden.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var (
	h2Transport     *http2.Transport
	h2TransportOnce sync.Once
)

// h2 dials with a Chrome 120 hello that advertises h2 and http/1.1.
func h2() http.RoundTripper {
	h2TransportOnce.Do(func() {
		h2Transport = &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialChrome(ctx, network, addr, nil)
			},
		}
	})
	return h2Transport
}

var h1Transport = &http.Transport{
	DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialChrome(ctx, network, addr, []string{"http/1.1"})
	},
}

// TLSResponse is a fully read fingerprinted response.
type TLSResponse struct {
	Status int
	Body   string
	Header http.Header
}

// DoTLS performs a request with a browser TLS fingerprint.
// HTTP/2 is tried first, a failed attempt is repeated over HTTP/1.1.
func DoTLS(ctx context.Context, method, rawURL string, headers map[string]string, body string) (*TLSResponse, error) {
	host := hostOf(rawURL)
	if err := Limits().Wait(ctx, host); err != nil {
		return nil, err
	}

	build := func() (*http.Request, error) {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}

	req, err := build()
	if err != nil {
		return nil, err
	}

	resp, err := (&http.Client{Timeout: TLSTimeout, Transport: h2()}).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if req, err = build(); err != nil {
			return nil, err
		}

		resp, err = (&http.Client{Timeout: TLSTimeout, Transport: h1Transport}).Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &TLSResponse{
		Status: resp.StatusCode,
		Body:   string(data),
		Header: resp.Header,
	}, nil
}

func hostOf(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func dialChrome(ctx context.Context, network, addr string, protos []string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	dialer := &net.Dialer{Timeout: TLSTimeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	tlsConn := utls.UClient(conn, &utls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
		NextProtos: protos,
	}, utls.HelloChrome_120)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
