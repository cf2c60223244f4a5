// Package doctor runs the environment checks behind `holdtalk doctor`.
package doctor

import (
	"os"
	"os/exec"
	"runtime"
	"strings"

	"holdtalk/internal/asr"
	"holdtalk/internal/config"
	"holdtalk/internal/hotkey"

	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(cfg *config.Config, logger *logrus.Logger) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkModel(asr.NewCatalog(cfg.ASR.ModelsDir, nil, logger), cfg.ASR.Model),
		checkHotkey(hotkey.NewStore(cfg.Hotkey.BindingPath, logger)),
	}
	results = append(results, checkOutput(cfg)...)
	results = append(results, checkPortAudioPkgConfig(), checkPortAudio())
	return results
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkModel(cat *asr.Catalog, id string) Result {
	const label = "model"
	if id == "" {
		id = config.DefaultModel
	}
	path, err := cat.Resolve(id)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	if _, err := os.Stat(path); err != nil {
		return Result{Name: label, Pass: false, Detail: id + " not downloaded (run: holdtalk setup)"}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkHotkey(store *hotkey.Store) Result {
	b, note := store.Load()
	if note != "" {
		return Result{Name: "hotkey", Pass: false, Detail: note}
	}
	return Result{Name: "hotkey", Pass: true, Detail: b.String()}
}

func checkOutput(cfg *config.Config) []Result {
	switch cfg.Output.Mode {
	case "", "paste":
		return []Result{checkClipboard(), checkKeystrokes()}
	case "clipboard":
		return []Result{checkClipboard()}
	case "hook":
		return []Result{checkHookExecutable(cfg.Output.Command)}
	default:
		return []Result{{Name: "output.mode", Pass: false, Detail: "unknown mode " + cfg.Output.Mode}}
	}
}

func checkClipboard() Result {
	if clipboard.Unsupported {
		return Result{Name: "clipboard", Pass: false, Detail: "no clipboard tool (install wl-clipboard, xclip or xsel)"}
	}
	return Result{Name: "clipboard", Pass: true, Detail: "ok"}
}

// checkKeystrokes looks for the device the paste keystroke goes through
// without creating it.
func checkKeystrokes() Result {
	const label = "keystrokes"
	switch runtime.GOOS {
	case "linux":
		f, err := os.OpenFile("/dev/uinput", os.O_WRONLY, 0)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: "/dev/uinput not writable; add yourself to the input group"}
		}
		_ = f.Close()
		return Result{Name: label, Pass: true, Detail: "/dev/uinput"}
	case "darwin":
		return Result{Name: label, Pass: true, Detail: "needs Accessibility access for the terminal or holdtalk"}
	default:
		return Result{Name: label, Pass: true, Detail: runtime.GOOS}
	}
}

func checkHookExecutable(cmd string) Result {
	label := "output.command"
	if cmd == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set output.command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "pkg-config", Pass: false, Detail: "pkg-config not found"}
	}
	if err := exec.Command(pkg, "--exists", "portaudio-2.0").Run(); err != nil {
		return Result{Name: "portaudio-dev", Pass: false, Detail: "portaudio-2.0 not found (brew install portaudio / apt install portaudio19-dev)"}
	}
	if out, err := exec.Command(pkg, "--modversion", "portaudio-2.0").Output(); err == nil {
		return Result{Name: "portaudio-dev", Pass: true, Detail: strings.TrimSpace(string(out))}
	}
	return Result{Name: "portaudio-dev", Pass: true, Detail: "found via pkg-config"}
}
