package output

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"holdtalk/internal/config"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// Hook runs a command with the transcript as its last argument and in
// HOLDTALK_TEXT.
type Hook struct {
	command   string
	args      []string
	prefix    string
	env       map[string]string
	timeout   time.Duration
	redactPII bool
	hostname  string
	logger    *logrus.Logger
}

// NewHook builds a hook from the output section. args_line, when set, is
// split shell-style and appended to args.
func NewHook(cfg *config.Config, logger *logrus.Logger) (*Hook, error) {
	if strings.TrimSpace(cfg.Output.Command) == "" {
		return nil, fmt.Errorf("output.mode = hook needs output.command")
	}
	args := append([]string{}, cfg.Output.Args...)
	extra, err := ParseArgs(cfg.Output.ArgsLine)
	if err != nil {
		return nil, fmt.Errorf("output.args_line: %w", err)
	}
	args = append(args, extra...)
	host, _ := os.Hostname()
	return &Hook{
		command:   cfg.Output.Command,
		args:      args,
		prefix:    cfg.Output.Prefix,
		env:       cfg.Output.Env,
		timeout:   cfg.OutputTimeout(),
		redactPII: cfg.Output.RedactPII,
		hostname:  host,
		logger:    logger,
	}, nil
}

func (h *Hook) Emit(ctx context.Context, text string) error {
	prefix := strings.ReplaceAll(h.prefix, "${hostname}", h.hostname)
	if h.redactPII {
		text = RedactPII(text)
	}
	payload := strings.TrimSpace(prefix + text)
	args := append(append([]string{}, h.args...), payload)

	runCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, h.command, args...)
	cmd.Env = os.Environ()
	for k, v := range h.env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env, "HOLDTALK_TEXT="+text, "HOLDTALK_PREFIX="+prefix)

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		h.logger.Infof("hook output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}
	return nil
}

// ParseArgs splits a shell-style argument string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}

var (
	emailRE = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s\-\(\)]{6,}\d`)
)

// RedactPII masks e-mail addresses and phone numbers.
func RedactPII(s string) string {
	s = emailRE.ReplaceAllString(s, "[redacted-email]")
	s = phoneRE.ReplaceAllString(s, "[redacted-phone]")
	return s
}
