// Package player hands recordings to an external video player.
package player

import (
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Config selects the player. An empty Command auto-detects one.
type Config struct {
	Command   string   `mapstructure:"command"`
	Args      []string `mapstructure:"args"`
	StartFlag string   `mapstructure:"start_flag"` // e.g. "--start=" or "-ss "
}

// offsetFlags maps known players to their start offset flag
var offsetFlags = map[string]string{
	"mpv":       "--start=",
	"vlc":       "--start-time=",
	"celluloid": "--mpv-start=",
	"haruna":    "--mpv-start=",
	"ffplay":    "-ss ",
}

// candidates is the preferred player order for each platform
var candidates = map[string][]string{
	"darwin":  {"mpv", "vlc"},
	"linux":   {"mpv", "celluloid", "haruna", "vlc", "ffplay"},
	"windows": {"vlc", "mpv"},
}

// Launcher launches media URLs in an external player
type Launcher struct {
	command   string
	args      []string
	startFlag string
	goos      string
	logger    *slog.Logger

	lookPath func(string) (string, error)
	start    func(name string, args ...string) error
}

// NewLauncher creates a Launcher, filling in the start flag of known players.
func NewLauncher(cfg Config, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}

	flag := cfg.StartFlag
	if flag == "" && cfg.Command != "" {
		if f, ok := offsetFlags[playerName(cfg.Command)]; ok {
			flag = f
			logger.Debug("auto-detected player offset flag", "player", cfg.Command, "flag", flag)
		}
	}

	return &Launcher{
		command:   cfg.Command,
		args:      cfg.Args,
		startFlag: flag,
		goos:      runtime.GOOS,
		logger:    logger,
		lookPath:  exec.LookPath,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// playerName strips directory and extension: "/usr/bin/mpv.exe" -> "mpv"
func playerName(command string) string {
	base := filepath.Base(command)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// offsetArgs renders offset with flag; a trailing space means a separate argument.
func offsetArgs(flag string, offset time.Duration) []string {
	if offset <= 0 || flag == "" {
		return nil
	}
	secs := fmt.Sprintf("%.0f", offset.Seconds())
	if strings.HasSuffix(flag, " ") {
		return []string{strings.TrimSuffix(flag, " "), secs}
	}
	return []string{flag + secs}
}

// Launch opens url in the configured player, else the first installed
// candidate, else the system default handler. The player starts offset into
// the media when it supports a start flag.
func (l *Launcher) Launch(url string, offset time.Duration) error {
	if l.command != "" {
		if offset > 0 && l.startFlag == "" {
			l.logger.Warn("cannot set start offset, configure player.start_flag",
				"command", l.command, "offset", offset)
		}
		args := append(append([]string{}, l.args...), offsetArgs(l.startFlag, offset)...)
		l.logger.Info("launching player", "command", l.command, "args", args)
		return l.start(l.command, append(args, url)...)
	}

	names, ok := candidates[l.goos]
	if !ok {
		names = candidates["linux"]
	}
	for _, name := range names {
		path, err := l.lookPath(name)
		if err != nil {
			continue
		}
		args := append(offsetArgs(offsetFlags[name], offset), url)
		if err := l.start(path, args...); err != nil {
			l.logger.Debug("player failed to start", "player", name, "error", err)
			continue
		}
		l.logger.Info("launched with detected player", "player", name)
		return nil
	}

	l.logger.Info("no candidate players found, using system default")
	return l.launchDefault(url)
}

// launchDefault opens the URL using the system default handler
func (l *Launcher) launchDefault(url string) error {
	switch l.goos {
	case "darwin":
		return l.start("open", url)
	case "windows":
		return l.start("cmd", "/c", "start", "", url)
	default:
		return l.start("xdg-open", url)
	}
}
