package player

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
)

// Printer writes the stream it is asked to play instead of playing it.
// It is useful for piping into other players.
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	position *stream.State[int64]
	duration *stream.State[int64]
	playback *stream.State[State]
	errors   *stream.Events[error]
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:      out,
		position: stream.NewState[int64](0),
		duration: stream.NewState[int64](0),
		playback: stream.NewState(StateIdle),
		errors:   stream.NewEvents[error](),
	}
}

func (p *Printer) Play(_ context.Context, media *source.Media, title string) error {
	target, err := sanitizeMediaTarget(media.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintf(p.out, "%s\t%s\n", sanitizeTitle(title), target); err != nil {
		return err
	}

	p.position.Set(0)
	p.playback.Set(StatePlaying)
	return nil
}

func (p *Printer) Position() *stream.State[int64] { return p.position }
func (p *Printer) Duration() *stream.State[int64] { return p.duration }
func (p *Printer) Playback() *stream.State[State] { return p.playback }
func (p *Printer) Errors() *stream.Events[error]  { return p.errors }

func (p *Printer) SeekTo(ms int64) error {
	p.position.Set(ms)
	return nil
}

func (p *Printer) Skip(ms int64) error {
	p.position.Update(func(pos int64) int64 { return max(pos+ms, 0) })
	return nil
}

func (p *Printer) Stop() error {
	p.playback.Set(StateIdle)
	return nil
}

func (p *Printer) Close() error {
	p.position.Close()
	p.duration.Close()
	p.playback.Close()
	p.errors.Close()
	return nil
}
