package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Media is one playable candidate for an episode.
type Media struct {
	// ID is unique within its source.
	ID       string            `json:"id"`
	SourceID string            `json:"source_id"`
	Kind     Kind              `json:"kind"`
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers,omitempty"`

	// Resolution is a label such as "1080P" or "4K".
	Resolution string `json:"resolution,omitempty"`
	// Subtitles lists subtitle languages, e.g. "CHS".
	Subtitles []string `json:"subtitles,omitempty"`
	// Seeds is the swarm health of peer-to-peer media.
	Seeds int   `json:"seeds,omitempty"`
	Size  int64 `json:"size,omitempty"`
}

// Key identifies the media across every source of a session.
func (m *Media) Key() string {
	return m.SourceID + "/" + m.ID
}

// Same reports whether both point to the same media.
func (m *Media) Same(other *Media) bool {
	if m == nil || other == nil {
		return m == other
	}

	return m.Key() == other.Key()
}

func (m *Media) String() string {
	if m.Resolution == "" {
		return fmt.Sprintf("%s (%s)", m.Title, m.SourceID)
	}

	return fmt.Sprintf("%s [%s] (%s)", m.Title, m.Resolution, m.SourceID)
}

var resolutionPattern = regexp.MustCompile(`(?i)(\d{3,4})\s*[pi]`)

// ResolutionHeight extracts the vertical resolution from a label; 0 when unknown.
func ResolutionHeight(label string) int {
	upper := strings.ToUpper(strings.TrimSpace(label))

	switch upper {
	case "4K", "UHD":
		return 2160
	case "2K":
		return 1440
	case "FHD":
		return 1080
	case "HD":
		return 720
	}

	if match := resolutionPattern.FindStringSubmatch(upper); match != nil {
		height, _ := strconv.Atoi(match[1])
		return height
	}

	return 0
}
