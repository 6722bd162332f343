package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/anisan-cli/aniplay/log"
	"github.com/sirupsen/logrus"
)

// Event is a property change or an mpv event. For property changes Name is the property.
type Event struct {
	Name      string
	Data      any
	Reason    string
	FileError string
}

func (e Event) Float() (float64, bool) {
	f, ok := e.Data.(float64)
	return f, ok
}

func (e Event) Bool() (bool, bool) {
	b, ok := e.Data.(bool)
	return b, ok
}

type rawEvent struct {
	Event     string `json:"event"`
	Name      string `json:"name"`
	Data      any    `json:"data"`
	Reason    string `json:"reason"`
	FileError string `json:"file_error"`
}

var observed = []string{"time-pos", "duration", "pause", "eof-reached"}

// EventListener keeps one connection to mpv open and forwards what it observes.
type EventListener struct {
	socketPath string
	callback   func(Event)

	mu      sync.Mutex
	conn    net.Conn
	stop    chan struct{}
	running bool
}

func NewEventListener(socketPath string, callback func(Event)) *EventListener {
	return &EventListener{socketPath: socketPath, callback: callback}
}

// Start observes the properties on a dedicated connection and reads it in the background.
func (el *EventListener) Start() error {
	el.mu.Lock()
	defer el.mu.Unlock()

	if el.running {
		return nil
	}

	conn, err := dialIPC(el.socketPath)
	if err != nil {
		return fmt.Errorf("event listener connect: %w", err)
	}

	// observations belong to the connection they were requested on
	encoder := json.NewEncoder(conn)
	for i, property := range observed {
		if err := encoder.Encode(ipcCommand{Command: []any{"observe_property", i + 1, property}}); err != nil {
			_ = conn.Close()
			return fmt.Errorf("observe %s: %w", property, err)
		}
	}

	el.conn = conn
	el.stop = make(chan struct{})
	el.running = true

	go el.readLoop(conn, el.stop)

	log.With(logrus.Fields{"socket": el.socketPath}).Debugf("mpv event listener started")
	return nil
}

func (el *EventListener) Stop() {
	el.mu.Lock()
	defer el.mu.Unlock()

	if !el.running {
		return
	}

	close(el.stop)
	_ = el.conn.Close()
	el.running = false
}

func (el *EventListener) readLoop(conn net.Conn, stop chan struct{}) {
	reader := bufio.NewReader(conn)
	var pending []byte

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return
		}

		line, err := reader.ReadBytes('\n')
		if errors.Is(err, os.ErrDeadlineExceeded) {
			// keep the partial line for the next read
			pending = append(pending, line...)
			continue
		}
		if err != nil {
			select {
			case <-stop:
			default:
				log.Warnf("event listener read error: %v", err)
			}
			return
		}

		line = append(pending, line...)
		pending = nil

		if event, ok := parseEvent(line); ok {
			el.callback(event)
		}
	}
}

func parseEvent(line []byte) (Event, bool) {
	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil || raw.Event == "" {
		return Event{}, false
	}

	if raw.Event == "property-change" {
		if raw.Name == "" {
			return Event{}, false
		}
		return Event{Name: raw.Name, Data: raw.Data}, true
	}

	return Event{Name: raw.Event, Reason: raw.Reason, FileError: raw.FileError}, true
}
