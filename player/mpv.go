package player

import (
	"cmp"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/anisan-cli/aniplay/constant"
	"github.com/anisan-cli/aniplay/log"
	"github.com/anisan-cli/aniplay/metrics"
	"github.com/anisan-cli/aniplay/source"
	"github.com/anisan-cli/aniplay/stream"
	"github.com/samber/lo"
)

const (
	socketWaitRetries = 10
	socketWaitDelay   = 300 * time.Millisecond
	quitTimeout       = 3 * time.Second
)

type MPVOptions struct {
	// Binary defaults to "mpv" on the PATH.
	Binary string
	// Args are appended to every invocation.
	Args []string
}

// MPV plays media in one long-lived mpv process, loading new media into it over IPC.
type MPV struct {
	options MPVOptions

	mu         sync.Mutex
	socketPath string
	cmd        *exec.Cmd
	exited     chan struct{}
	listener   *EventListener
	current    *source.Media

	// ipc serializes socket writes
	ipc sync.Mutex

	position *stream.State[int64]
	duration *stream.State[int64]
	playback *stream.State[State]
	errors   *stream.Events[error]
}

func NewMPV(options MPVOptions) *MPV {
	if options.Binary == "" {
		options.Binary = "mpv"
	}

	exited := make(chan struct{})
	close(exited)

	return &MPV{
		options:  options,
		exited:   exited,
		position: stream.NewState[int64](0),
		duration: stream.NewState[int64](0),
		playback: stream.NewState(StateIdle),
		errors:   stream.NewEvents[error](),
	}
}

func (m *MPV) Position() *stream.State[int64] { return m.position }
func (m *MPV) Duration() *stream.State[int64] { return m.duration }
func (m *MPV) Playback() *stream.State[State] { return m.playback }
func (m *MPV) Errors() *stream.Events[error]  { return m.errors }

// Play loads media into the running mpv, starting one first if needed.
func (m *MPV) Play(ctx context.Context, media *source.Media, title string) error {
	target, err := sanitizeMediaTarget(media.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}

	title = sanitizeTitle(title)
	headers := headerFields(media.Headers)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = media
	m.position.Set(0)
	m.duration.Set(0)

	if m.running() {
		log.Infof("loading %s into the running mpv", media.Key())
		return m.load(target, title, headers)
	}

	return m.start(ctx, target, title, headers)
}

func (m *MPV) start(ctx context.Context, target, title, headers string) error {
	if err := m.newSocketPath(); err != nil {
		return err
	}

	// only the socket, title and target: the user's mpv.conf decides the rest
	args := []string{
		"--no-terminal",
		"--really-quiet",
		"--input-ipc-server=" + m.socketPath,
		"--force-media-title=" + title,
		"--title=" + title,
		"--force-window=yes",
		"--idle=yes",
	}

	if headers != "" {
		args = append(args, "--http-header-fields="+headers)
	}

	args = append(args, m.options.Args...)
	args = append(args, "--", target)

	cmd := exec.Command(m.options.Binary, args...)
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mpv: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
		m.onExit(exited)
	}()

	m.cmd = cmd
	m.exited = exited

	if err := m.waitForSocket(ctx); err != nil {
		select {
		case <-exited:
		default:
			log.Warnf("killing mpv: socket never became ready")
			_ = killGroup(cmd)
		}
		return fmt.Errorf("mpv socket not ready: %w", err)
	}

	m.listener = NewEventListener(m.socketPath, m.onEvent)
	if err := m.listener.Start(); err != nil {
		return err
	}

	log.Infof("mpv started with pid %d", cmd.Process.Pid)
	m.playback.Set(StatePlaying)
	return nil
}

// load must be called with mu held.
func (m *MPV) load(target, title, headers string) error {
	commands := [][]any{
		{"set_property", "force-media-title", title},
		{"set_property", "http-header-fields", headers},
		{"loadfile", target, "replace"},
	}

	for _, command := range commands {
		if _, err := m.send(m.socketPath, command...); err != nil {
			return err
		}
	}

	m.playback.Set(StatePlaying)
	return nil
}

func (m *MPV) newSocketPath() error {
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		return fmt.Errorf("generate socket name: %w", err)
	}

	m.socketPath = ipcPath(fmt.Sprintf("%s-%x", constant.Aniplay, random))
	return nil
}

func (m *MPV) waitForSocket(ctx context.Context) error {
	for range socketWaitRetries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.exited:
			return errors.New("mpv exited before the socket was ready")
		case <-time.After(socketWaitDelay):
		}

		if conn, err := dialIPC(m.socketPath); err == nil {
			_ = conn.Close()
			return nil
		}
	}

	return fmt.Errorf("socket %s not ready after %d attempts", m.socketPath, socketWaitRetries)
}

func (m *MPV) running() bool {
	select {
	case <-m.exited:
		return false
	default:
		return m.socketPath != ""
	}
}

func (m *MPV) onExit(exited chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.exited != exited {
		return
	}

	if m.listener != nil {
		m.listener.Stop()
		m.listener = nil
	}

	_ = os.Remove(m.socketPath)
	m.socketPath = ""

	if m.playback.Get() != StateFinished {
		m.playback.Set(StateIdle)
	}
	log.Infof("mpv exited")
}

// onEvent runs on the listener's goroutine.
func (m *MPV) onEvent(event Event) {
	switch event.Name {
	case "time-pos":
		if seconds, ok := event.Float(); ok {
			m.position.Set(int64(seconds * 1000))
		}
	case "duration":
		if seconds, ok := event.Float(); ok {
			m.duration.Set(int64(seconds * 1000))
		}
	case "pause":
		if paused, ok := event.Bool(); ok && m.playback.Get() != StateFinished {
			m.playback.Set(lo.Ternary(paused, StatePaused, StatePlaying))
		}
	case "eof-reached":
		if eof, ok := event.Bool(); ok && eof {
			m.playback.Set(StateFinished)
		}
	case "end-file":
		switch event.Reason {
		case "eof":
			m.playback.Set(StateFinished)
		case "error":
			m.mu.Lock()
			media := m.current
			m.mu.Unlock()

			err := &PlaybackError{Media: media, Reason: lo.CoalesceOrEmpty(event.FileError, "unknown error")}
			log.Errorf("%s", err)
			metrics.PlaybackErrors.Inc()
			m.errors.Publish(err)
		}
	case "file-loaded":
		if m.playback.Get() == StateFinished {
			m.playback.Set(StatePlaying)
		}
	}
}

func (m *MPV) SeekTo(ms int64) error {
	_, err := m.command("seek", float64(ms)/1000, "absolute")
	return err
}

func (m *MPV) Skip(ms int64) error {
	_, err := m.command("seek", float64(ms)/1000, "relative")
	return err
}

// Stop unloads the media but keeps mpv open.
func (m *MPV) Stop() error {
	if _, err := m.command("stop"); err != nil {
		return err
	}

	m.playback.Set(StateIdle)
	return nil
}

func (m *MPV) TogglePause() error {
	_, err := m.command("cycle", "pause")
	return err
}

// ShowText draws text over the video for hold, replacing the previous text.
func (m *MPV) ShowText(text string, hold time.Duration) error {
	_, err := m.command("show-text", text, hold.Milliseconds())
	return err
}

// SetChapters marks the timeline, e.g. with the opening and ending.
func (m *MPV) SetChapters(chapters []Chapter) error {
	chapters = slices.Clone(chapters)
	slices.SortStableFunc(chapters, func(a, b Chapter) int {
		return cmp.Compare(a.Start, b.Start)
	})

	list := lo.Map(chapters, func(c Chapter, _ int) map[string]any {
		return map[string]any{"title": c.Title, "time": c.Start}
	})

	_, err := m.command("set_property", "chapter-list", list)
	return err
}

// Close quits mpv and releases the socket.
func (m *MPV) Close() error {
	m.mu.Lock()
	cmd, exited, running := m.cmd, m.exited, m.running()
	m.mu.Unlock()

	if running {
		_, _ = m.command("quit")

		select {
		case <-exited:
		case <-time.After(quitTimeout):
			_ = killGroup(cmd)
		}
	}

	m.position.Close()
	m.duration.Close()
	m.playback.Close()
	m.errors.Close()
	return nil
}

func (m *MPV) command(args ...any) (any, error) {
	m.mu.Lock()
	socket, running := m.socketPath, m.running()
	m.mu.Unlock()

	if !running {
		return nil, ErrNotRunning
	}

	return m.send(socket, args...)
}

func (m *MPV) send(socket string, args ...any) (any, error) {
	m.ipc.Lock()
	defer m.ipc.Unlock()
	return sendCommand(socket, args)
}

func headerFields(headers map[string]string) string {
	keys := lo.Keys(headers)
	slices.Sort(keys)

	return strings.Join(lo.Map(keys, func(k string, _ int) string {
		return k + ": " + strings.ReplaceAll(headers[k], ",", "%2C")
	}), ",")
}

// sanitizeMediaTarget keeps scripted sources from smuggling flags or odd schemes into mpv.
// Control characters are checked before trimming: a trailing newline is still an injection.
func sanitizeMediaTarget(link string) (string, error) {
	if strings.ContainsAny(link, "\x00\n\r") {
		return "", errors.New("control characters in URL")
	}

	l := strings.TrimSpace(link)
	if l == "" {
		return "", errors.New("empty URL")
	}

	if strings.HasPrefix(l, "-") {
		return "", errors.New("url must not start with '-'")
	}

	if strings.Contains(l, "://") {
		u, err := url.Parse(l)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}

		switch strings.ToLower(u.Scheme) {
		case "http", "https", "magnet":
			return l, nil
		default:
			return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
		}
	}

	if strings.HasPrefix(strings.ToLower(l), "magnet:") {
		return l, nil
	}

	return filepath.Clean(l), nil
}

func sanitizeTitle(title string) string {
	return strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ", "\t", " ", "\x00", "").Replace(title))
}
