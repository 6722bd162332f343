// Package aniskip fetches opening and ending timestamps from the AniSkip API.
package aniskip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/network"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const DefaultBaseURL = "https://api.aniskip.com/v2/skip-times"

// Skip types.
const (
	Opening = "op"
	Ending  = "ed"
)

// Interval is a range in seconds. End is 0 when AniSkip does not know it.
type Interval struct {
	Type  string  `json:"type"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length of the interval, or fallback when the end is unknown.
func (i Interval) Length(fallback float64) float64 {
	if i.End > i.Start {
		return i.End - i.Start
	}
	return fallback
}

type apiResponse struct {
	Found   bool `json:"found"`
	Results []struct {
		Interval struct {
			StartTime float64 `json:"startTime"`
			EndTime   float64 `json:"endTime"`
		} `json:"interval"`
		SkipType string `json:"skipType"`
	} `json:"results"`
}

// Client collapses identical concurrent requests.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	group singleflight.Group
}

func New() *Client {
	return &Client{BaseURL: DefaultBaseURL, HTTP: network.Client}
}

// Default is the client used by the auto skip extension.
var Default = New()

// SkipTimes returns the OP and ED intervals of an episode sorted by start.
// A missing entry or an unreachable API yields no intervals and no error.
func (c *Client) SkipTimes(ctx context.Context, malID, episode int, lengthSec float64) ([]Interval, error) {
	if malID <= 0 || episode <= 0 {
		return nil, nil
	}

	key := fmt.Sprintf("%d/%d/%d", malID, episode, int(lengthSec))
	value, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetch(ctx, malID, episode, lengthSec)
	})
	if err != nil {
		return nil, err
	}

	return value.([]Interval), nil
}

func (c *Client) fetch(ctx context.Context, malID, episode int, lengthSec float64) ([]Interval, error) {
	logger := log.With(logrus.Fields{"mal": malID, "episode": episode})

	query := url.Values{}
	query.Add("types", Opening)
	query.Add("types", Ending)
	query.Set("episodeLength", strconv.Itoa(int(lengthSec)))

	endpoint := fmt.Sprintf("%s/%d/%d?%s", c.BaseURL, malID, episode, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warnf("aniskip request failed: %v", err)
		return []Interval{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []Interval{}, nil
	}

	if err := network.ClassifyStatus(resp.StatusCode); err != nil {
		logger.Warnf("aniskip: %v", err)
		return []Interval{}, nil
	}

	var data apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("parse aniskip response: %w", err)
	}

	intervals := []Interval{}
	if !data.Found {
		return intervals, nil
	}

	for _, result := range data.Results {
		if result.SkipType != Opening && result.SkipType != Ending {
			continue
		}

		intervals = append(intervals, Interval{
			Type:  result.SkipType,
			Start: result.Interval.StartTime,
			End:   result.Interval.EndTime,
		})
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})

	logger.Debugf("found %d skip intervals", len(intervals))
	return intervals, nil
}
