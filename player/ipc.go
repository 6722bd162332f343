package player

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"
)

type ipcCommand struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id,omitempty"`
}

type ipcResponse struct {
	Data      any    `json:"data"`
	Error     string `json:"error"`
	Event     string `json:"event"`
	RequestID int    `json:"request_id"`
}

const (
	maxRetries   = 3
	retryDelay   = 100 * time.Millisecond
	readDeadline = time.Second
)

// sendCommand sends one JSON-IPC command, retrying transient connection errors.
func sendCommand(socketPath string, command []any) (any, error) {
	var lastErr error

	for attempt := range maxRetries {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}

		result, err := sendOnce(socketPath, command)
		if err == nil {
			return result, nil
		}

		if _, rejected := err.(*commandError); rejected {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("ipc command failed after %d attempts: %w", maxRetries, lastErr)
}

// commandError is mpv refusing a command; retrying would not help.
type commandError struct {
	command any
	reason  string
}

func (e *commandError) Error() string {
	return fmt.Sprintf("mpv rejected %v: %s", e.command, e.reason)
}

func sendOnce(socketPath string, command []any) (any, error) {
	conn, err := dialIPC(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	const requestID = 1
	payload, err := json.Marshal(ipcCommand{Command: command, RequestID: requestID})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	// newline delimited
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}

		var response ipcResponse
		if err := json.Unmarshal(line, &response); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}

		// events interleave with replies on every connection
		if response.Event != "" || response.RequestID != requestID {
			continue
		}

		if response.Error != "" && response.Error != "success" {
			return nil, &commandError{command: command[0], reason: response.Error}
		}

		return response.Data, nil
	}
}
