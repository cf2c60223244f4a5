package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"

	"holdtalk/internal/config"

	"github.com/spf13/cobra"
)

// NewKeysCmd streams key events from stdin to the daemon. It is the bridge
// for whatever global key tap the desktop provides.
func NewKeysCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Feed key events from stdin to the daemon",
		Long: `Reads one key event per line from stdin and forwards it to the daemon:

  down <key>              key pressed
  up <key>                key released
  modifiers [<mod> ...]   modifiers still held (recovers lost releases)
  disabled                the key tap stopped delivering events

JSON lines ({"type":"down","key":"ctrl"}) are accepted too. Blank lines and
lines starting with # are ignored. Closing stdin releases every key.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return streamKeys(cfg.Paths.SocketPath, cmd.InOrStdin(), cmd.ErrOrStderr())
		},
	}
}

func streamKeys(socket string, in io.Reader, errOut io.Writer) error {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon: %w", err)
	}
	defer conn.Close()
	enc := json.NewEncoder(conn)
	if err := enc.Encode(Request{Op: OpKeyStream}); err != nil {
		return err
	}
	var resp SimpleResponse
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("%s", resp.Message)
	}

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		ev, ok, err := parseKeyLine(sc.Text())
		if err != nil {
			fmt.Fprintf(errOut, "skipped: %v\n", err)
			continue
		}
		if !ok {
			continue
		}
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("daemon went away: %w", err)
		}
	}
	return sc.Err()
}

// parseKeyLine reads one stdin line. ok is false for blank and comment lines.
func parseKeyLine(line string) (ev KeyEvent, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return KeyEvent{}, false, nil
	}
	if strings.HasPrefix(line, "{") {
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return KeyEvent{}, false, err
		}
		return ev, true, nil
	}
	fields := strings.Fields(line)
	switch typ := strings.ToLower(fields[0]); typ {
	case "down", "up":
		if len(fields) != 2 {
			return KeyEvent{}, false, fmt.Errorf("%q: want %s <key>", line, typ)
		}
		return KeyEvent{Type: typ, Key: fields[1]}, true, nil
	case "modifiers":
		return KeyEvent{Type: typ, Modifiers: fields[1:]}, true, nil
	case "disabled":
		return KeyEvent{Type: typ}, true, nil
	default:
		return KeyEvent{}, false, fmt.Errorf("unknown event %q", fields[0])
	}
}
