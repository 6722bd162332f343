package danmaku

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/stream"
	"github.com/samber/lo"
)

// Screen shows transient text over the video. mpv's show-text is one.
type Screen interface {
	ShowText(text string, hold time.Duration) error
}

type OSDOptions struct {
	// Lines caps how many comments are drawn at once.
	Lines int
	// Hold is how long drawn comments stay visible.
	Hold time.Duration
	// Jump is the largest clock advance still treated as playback. Bigger
	// advances and any step back are seeks, which draw nothing.
	Jump time.Duration
}

const (
	DefaultOSDLines = 3
	DefaultOSDHold  = 3 * time.Second
	DefaultOSDJump  = 2 * time.Second
)

// OSD draws the feed of a Loader on a Screen as the player's clock passes each comment.
type OSD struct {
	screen  Screen
	options OSDOptions

	items []Presentation
	// next is the first item not drawn yet.
	next  int
	clock int64
}

func NewOSD(screen Screen, options OSDOptions) *OSD {
	if options.Lines <= 0 {
		options.Lines = DefaultOSDLines
	}
	if options.Hold <= 0 {
		options.Hold = DefaultOSDHold
	}
	if options.Jump <= 0 {
		options.Jump = DefaultOSDJump
	}

	return &OSD{screen: screen, options: options}
}

// Run follows the loader's events and the clock until ctx is done or either stream closes.
func (o *OSD) Run(ctx context.Context, loader *Loader, position *stream.State[int64]) {
	events := loader.Events().Subscribe(ctx)
	o.Repopulate(Repopulate{List: loader.All().Get(), AnchorMillis: position.Get()})

	clock := position.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			o.Handle(event)
		case ms, ok := <-clock:
			if !ok {
				return
			}
			o.Advance(ms)
		}
	}
}

func (o *OSD) Handle(event Event) {
	switch e := event.(type) {
	case Repopulate:
		o.Repopulate(e)
	case Add:
		o.Add(e.Item)
	}
}

// Repopulate replaces the pending comments and restarts the clock at the anchor.
func (o *OSD) Repopulate(r Repopulate) {
	o.items = slices.Clone(r.List)
	slices.SortStableFunc(o.items, func(a, b Presentation) int {
		return cmp.Compare(a.PlayTimeMillis, b.PlayTimeMillis)
	})

	o.seek(r.AnchorMillis)
}

// Add queues a live comment. One the clock already passed is drawn right away.
func (o *OSD) Add(item Presentation) {
	i, _ := slices.BinarySearchFunc(o.items, item.PlayTimeMillis, func(p Presentation, t int64) int {
		// After equal times, so the new comment goes last among its peers.
		if p.PlayTimeMillis <= t {
			return -1
		}
		return 1
	})
	o.items = slices.Insert(o.items, i, item)

	if item.PlayTimeMillis <= o.clock {
		// Drawn items all sit before the cursor, so i <= o.next here.
		o.next++
		o.draw([]Presentation{item})
	}
}

// Advance moves the clock to ms and draws whatever it passed.
func (o *OSD) Advance(ms int64) {
	if ms < o.clock || time.Duration(ms-o.clock)*time.Millisecond > o.options.Jump {
		o.seek(ms)
		return
	}

	start := o.next
	for o.next < len(o.items) && o.items[o.next].PlayTimeMillis <= ms {
		o.next++
	}
	o.clock = ms

	o.draw(o.items[start:o.next])
}

// Pending is how many comments are still ahead of the clock.
func (o *OSD) Pending() int {
	return len(o.items) - o.next
}

// seek skips to ms without drawing. Comments exactly at ms are still ahead,
// so the clock stops just short of them: items before the cursor are at or
// before the clock, items after it are later.
func (o *OSD) seek(ms int64) {
	o.clock = ms - 1
	o.next, _ = slices.BinarySearchFunc(o.items, ms, func(p Presentation, t int64) int {
		return cmp.Compare(p.PlayTimeMillis, t)
	})
}

func (o *OSD) draw(items []Presentation) {
	items = lo.Filter(items, func(p Presentation, _ int) bool { return !p.IsBlank() })
	if len(items) == 0 {
		return
	}

	if len(items) > o.options.Lines {
		items = items[len(items)-o.options.Lines:]
	}

	lines := lo.Map(items, func(p Presentation, _ int) string {
		text := strings.Join(strings.Fields(p.Text), " ")
		if p.IsSelf {
			return "> " + text
		}
		return text
	})

	err := o.screen.ShowText(strings.Join(lines, "\n"), o.options.Hold)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Debugf("show danmaku: %s", err)
	}
}
