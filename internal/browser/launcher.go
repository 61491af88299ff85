// Package browser opens article URLs with the desktop's default handler.
package browser

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/validation"
)

var ErrNoOpener = errors.New("no application found to open URL")

type Launcher struct {
	command string
	args    []string
	urls    *validation.ArticleURLValidator

	// start runs the prepared command; replaced in tests.
	start func(*exec.Cmd) error
}

// NewLauncher resolves the opener for this platform. A non-empty command
// wins over both the user file and the built-in defaults.
func NewLauncher(command string) *Launcher {
	l := &Launcher{
		urls:  validation.NewPermissiveArticleURLValidator(),
		start: startDetached,
	}

	if command != "" {
		l.command = command
		return l
	}

	platforms, err := loadDefaults()
	if err != nil {
		debuglog.Warnf("parsing built-in openers: %v", err)
		platforms = map[string]Opener{}
	}
	loadUserOpeners(platforms, userConfigPaths())

	o := platformOpener(platforms, currentPlatform())
	l.command = findCommand(o.Commands...)
	if l.command == "" && len(o.Commands) > 0 {
		l.command = o.Commands[0]
	}
	l.args = o.Args
	return l
}

// Command is the resolved executable name.
func (l *Launcher) Command() string { return l.command }

// Open validates rawURL and starts the opener without waiting for it.
func (l *Launcher) Open(rawURL string) error {
	u, err := l.urls.ValidateAndNormalize(rawURL)
	if err != nil {
		return err
	}
	if l.command == "" {
		return ErrNoOpener
	}

	args := append(append([]string(nil), l.args...), u)
	cmd := exec.Command(l.command, args...)
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("failed to start %s: %w", l.command, err)
	}
	debuglog.Debugf("opened %s with %s", u, l.command)
	return nil
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func userConfigPaths() []string {
	paths := []string{"./openers.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append([]string{filepath.Join(home, ".config", "headlines", "openers.toml")}, paths...)
	}
	return paths
}

// loadUserOpeners merges user definitions over platforms. Unreadable or
// malformed files are skipped.
func loadUserOpeners(platforms map[string]Opener, paths []string) {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var user openersConfig
		if err := toml.Unmarshal(data, &user); err != nil {
			debuglog.Warnf("ignoring %s: %v", path, err)
			continue
		}
		for name, o := range user.Platforms {
			platforms[name] = o
		}
	}
}

func findCommand(commands ...string) string {
	for _, cmd := range commands {
		if _, err := exec.LookPath(cmd); err == nil {
			return cmd
		}
	}
	return ""
}
