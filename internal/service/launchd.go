// Package service writes per-user service definitions that keep the holdtalk
// daemon running: a launchd agent on macOS, a systemd user unit elsewhere.
package service

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

// Label names the service in launchd and systemd.
const Label = "com.holdtalk.agent"

const launchdTemplate = `<?xml version='1.0' encoding='UTF-8'?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>Label</key><string>{{.Label}}</string>
  <key>ProgramArguments</key>
  <array>
    <string>{{.Binary}}</string>
    <string>serve</string>
    <string>--config</string>
    <string>{{.Config}}</string>
  </array>
  <key>RunAtLoad</key><true/>
  <key>KeepAlive</key><dict><key>SuccessfulExit</key><false/></dict>
  <key>StandardOutPath</key><string>{{.Log}}</string>
  <key>StandardErrorPath</key><string>{{.Log}}</string>
  {{- if .Env }}
  <key>EnvironmentVariables</key>
  <dict>
    {{- range $k, $v := .Env }}
    <key>{{$k}}</key><string>{{$v}}</string>
    {{- end }}
  </dict>
  {{- end }}
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=holdtalk push-to-talk dictation
After=graphical-session.target

[Service]
ExecStart={{.Binary}} serve --config {{.Config}}
Restart=on-failure
{{- range $k, $v := .Env }}
Environment={{$k}}={{$v}}
{{- end }}

[Install]
WantedBy=default.target
`

type Params struct {
	Label  string
	Binary string
	Config string
	Log    string
	Env    map[string]string
}

// Launchd reports whether this platform uses launchd.
func Launchd() bool { return runtime.GOOS == "darwin" }

// Path returns where the service file for label lives on this platform.
func Path(label string) string {
	home := os.Getenv("HOME")
	if Launchd() {
		return filepath.Join(home, "Library", "LaunchAgents", fmt.Sprintf("%s.plist", label))
	}
	return filepath.Join(home, ".config", "systemd", "user", fmt.Sprintf("%s.service", label))
}

// Write renders the service file for this platform.
func Write(params Params) (string, error) {
	tpl := systemdTemplate
	if Launchd() {
		tpl = launchdTemplate
	}
	return write(Path(params.Label), tpl, params)
}

func write(path, tpl string, params Params) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	t := template.Must(template.New("service").Parse(tpl))
	if err := t.Execute(f, params); err != nil {
		return "", err
	}
	return path, nil
}
