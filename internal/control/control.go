package control

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Control socket ops. Each connection carries one JSON request line and one
// JSON response, except OpKeyStream which keeps reading KeyEvent lines after
// the response until the client disconnects.
const (
	OpStatus      = "status"
	OpHealth      = "health"
	OpLoadModel   = "load-model"
	OpDeleteModel = "delete-model"
	OpHotkey      = "hotkey"
	OpSetHotkey   = "set-hotkey"
	OpEditHotkey  = "edit-hotkey"
	OpKeyStream   = "key-stream"
)

type Request struct {
	Op      string `json:"op"`
	Model   string `json:"model,omitempty"`
	Binding string `json:"binding,omitempty"`
	Editing bool   `json:"editing,omitempty"`
	Wait    bool   `json:"wait,omitempty"`
}

type Status struct {
	Running       bool         `json:"running"`
	UptimeSec     float64      `json:"uptime_sec"`
	Phase         string       `json:"phase"`
	Model         string       `json:"model"`
	SelectedModel string       `json:"selected_model,omitempty"`
	LoadedModel   string       `json:"loaded_model,omitempty"`
	Hotkey        string       `json:"hotkey"`
	EditingHotkey bool         `json:"editing_hotkey"`
	KeyFeeders    int          `json:"key_feeders"`
	Transcripts   []Transcript `json:"transcripts"`
}

type SimpleResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type Transcript struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model,omitempty"`
	AudioSec  float64   `json:"audio_sec,omitempty"`
}

// KeyEvent is one line of a key stream. Type is down, up, modifiers or
// disabled. For modifiers, Modifiers lists every modifier still held.
type KeyEvent struct {
	Type      string   `json:"type"`
	Key       string   `json:"key,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// Call sends req to the daemon at socket and decodes the reply into resp.
func Call(socket string, req Request, resp any) error {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon: %w", err)
	}
	defer conn.Close()
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return err
	}
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(resp); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	return nil
}

// CallSimple is Call for ops answered with a SimpleResponse. A reply with
// OK=false is returned as an error.
func CallSimple(socket string, req Request) (string, error) {
	var resp SimpleResponse
	if err := Call(socket, req, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("%s", resp.Message)
	}
	return resp.Message, nil
}

// daemonDown reports whether err means the control socket was unreachable.
func daemonDown(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
