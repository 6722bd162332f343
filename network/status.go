package network

import (
	"fmt"
	"net/http"

	"github.com/anisan-cli/aniplay/source"
)

// ClassifyStatus turns an unsuccessful HTTP status into an error that source.Classify understands.
// 2xx and 3xx return nil.
func ClassifyStatus(code int) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", source.ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", source.ErrNetwork, code)
	default:
		return fmt.Errorf("%w: status %d", source.ErrUnsupported, code)
	}
}
