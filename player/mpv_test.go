package player

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/anisan-cli/aniplay/source"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSanitize(t *testing.T) {
	Convey("Given media targets from scripted sources", t, func() {
		Convey("Web and magnet links pass", func() {
			for _, link := range []string{"https://example.com/a.m3u8", "magnet:?xt=urn:btih:abc"} {
				target, err := sanitizeMediaTarget(link)
				So(err, ShouldBeNil)
				So(target, ShouldEqual, link)
			}
		})

		Convey("Flags, control characters and odd schemes are rejected", func() {
			for _, link := range []string{"", "  ", "--script=evil.lua", "http://a\n", "\r\nhttp://a", "http://a\x00b", "file:///etc/passwd"} {
				_, err := sanitizeMediaTarget(link)
				So(err, ShouldNotBeNil)
			}
		})

		Convey("Surrounding spaces are trimmed", func() {
			target, err := sanitizeMediaTarget("  https://example.com/a.m3u8 ")
			So(err, ShouldBeNil)
			So(target, ShouldEqual, "https://example.com/a.m3u8")
		})

		Convey("Local paths are cleaned", func() {
			target, err := sanitizeMediaTarget("/videos/../videos/ep1.mkv")
			So(err, ShouldBeNil)
			So(target, ShouldEqual, filepath.Clean("/videos/ep1.mkv"))
		})

		Convey("Titles lose their control characters", func() {
			So(sanitizeTitle(" Frieren\n- 01\t\x00"), ShouldEqual, "Frieren - 01")
		})

		Convey("Headers are joined in a stable order", func() {
			So(headerFields(map[string]string{"Referer": "https://a", "Cookie": "a=1,b=2"}), ShouldEqual, "Cookie: a=1%2Cb=2,Referer: https://a")
			So(headerFields(nil), ShouldBeEmpty)
		})
	})
}

func TestEvents(t *testing.T) {
	Convey("Given a player receiving mpv events", t, func() {
		mpv := NewMPV(MPVOptions{})
		defer mpv.Close()

		media := &source.Media{ID: "1", SourceID: "web-A", URL: "https://example.com/1.mp4"}
		mpv.current = media

		feed := func(line string) {
			event, ok := parseEvent([]byte(line))
			So(ok, ShouldBeTrue)
			mpv.onEvent(event)
		}

		Convey("Position and duration are converted to milliseconds", func() {
			feed(`{"event":"property-change","id":1,"name":"time-pos","data":12.5}`)
			feed(`{"event":"property-change","id":2,"name":"duration","data":1440}`)
			So(mpv.Position().Get(), ShouldEqual, 12500)
			So(mpv.Duration().Get(), ShouldEqual, 1440000)
		})

		Convey("Pause and end of file move the playback state", func() {
			feed(`{"event":"property-change","name":"pause","data":true}`)
			So(mpv.Playback().Get(), ShouldEqual, StatePaused)

			feed(`{"event":"property-change","name":"pause","data":false}`)
			So(mpv.Playback().Get(), ShouldEqual, StatePlaying)

			feed(`{"event":"end-file","reason":"eof"}`)
			So(mpv.Playback().Get(), ShouldEqual, StateFinished)
		})

		Convey("A file that fails to load is a fatal error", func() {
			errs := mpv.Errors().Subscribe(t.Context())
			feed(`{"event":"end-file","reason":"error","file_error":"loading failed"}`)

			select {
			case err := <-errs:
				var playbackErr *PlaybackError
				So(errors.As(err, &playbackErr), ShouldBeTrue)
				So(playbackErr.Media, ShouldEqual, media)
				So(playbackErr.Reason, ShouldEqual, "loading failed")
			case <-time.After(time.Second):
				So("no error published", ShouldBeEmpty)
			}
		})

		Convey("Replies and garbage are not events", func() {
			_, ok := parseEvent([]byte(`{"data":1,"error":"success","request_id":1}`))
			So(ok, ShouldBeFalse)
			_, ok = parseEvent([]byte(`not json`))
			So(ok, ShouldBeFalse)
		})
	})
}

func TestSendCommand(t *testing.T) {
	Convey("Given an mpv socket that interleaves events with replies", t, func() {
		socket := filepath.Join(t.TempDir(), "mpv.sock")
		listener, err := net.Listen("unix", socket)
		So(err, ShouldBeNil)
		defer listener.Close()

		received := make(chan ipcCommand, 1)
		go func() {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			defer conn.Close()

			line, _ := bufio.NewReader(conn).ReadBytes('\n')
			var command ipcCommand
			_ = json.Unmarshal(line, &command)
			received <- command

			_, _ = conn.Write([]byte(`{"event":"playback-restart"}` + "\n"))
			_, _ = conn.Write([]byte(`{"data":42.5,"error":"success","request_id":1}` + "\n"))
		}()

		Convey("The reply is picked out", func() {
			data, err := sendCommand(socket, []any{"get_property", "time-pos"})
			So(err, ShouldBeNil)
			So(data, ShouldEqual, 42.5)

			command := <-received
			So(command.Command, ShouldResemble, []any{"get_property", "time-pos"})
		})
	})

	Convey("Given no mpv at all", t, func() {
		mpv := NewMPV(MPVOptions{})
		defer mpv.Close()

		Convey("Commands fail fast", func() {
			So(errors.Is(mpv.SeekTo(1000), ErrNotRunning), ShouldBeTrue)
			So(errors.Is(mpv.ShowText("hello", time.Second), ErrNotRunning), ShouldBeTrue)
		})
	})
}

func TestPrinter(t *testing.T) {
	Convey("Given the printing engine", t, func() {
		var out bytes.Buffer
		engine, err := New("print", &out)
		So(err, ShouldBeNil)
		defer engine.Close()

		Convey("Playing writes the stream", func() {
			So(engine.Play(t.Context(), &source.Media{URL: "https://example.com/1.m3u8"}, "Frieren 01"), ShouldBeNil)
			So(out.String(), ShouldEqual, "Frieren 01\thttps://example.com/1.m3u8\n")
			So(engine.Playback().Get(), ShouldEqual, StatePlaying)

			So(engine.Skip(85_000), ShouldBeNil)
			So(engine.Position().Get(), ShouldEqual, 85_000)
		})

		Convey("Unsafe targets are refused", func() {
			err := engine.Play(t.Context(), &source.Media{URL: "-o /tmp/x"}, "x")
			So(errors.Is(err, ErrInvalidTarget), ShouldBeTrue)
		})
	})

	Convey("Unknown engines are rejected", t, func() {
		_, err := New("vlc-but-misspelled", nil)
		So(errors.Is(err, ErrUnknownPlayer), ShouldBeTrue)
	})
}
