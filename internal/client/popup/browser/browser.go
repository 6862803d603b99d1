// Package browser opens handshake popups as dedicated browser processes.
//
// A Chromium-family browser started with --app opens a chromeless window of
// the requested size; the window counts as closed once the process exits.
//
// Chromium hands a launch over to an already running instance that uses the
// same profile and exits at once, which would look like the user closing the
// popup. Every popup therefore gets its own throwaway profile directory,
// passed through the {profile} placeholder as --user-data-dir. The directory
// is removed once the process has exited. A custom command that omits
// {profile} gets no directory.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/campusgive/internal/client/popup"
	"github.com/dmitrijs2005/campusgive/internal/logging"
)

// DefaultCommand is used when the configuration names none.
const DefaultCommand = "chromium --user-data-dir={profile} --no-first-run --no-default-browser-check --app={url} --window-size={width},{height}"

const profilePlaceholder = "{profile}"

// ExecOpener implements popup.Opener by starting a command. The placeholders
// {url}, {width}, {height} and {profile} are substituted in every argument.
type ExecOpener struct {
	name string
	args []string
	log  logging.Logger
}

func NewExecOpener(commandLine string, log logging.Logger) (*ExecOpener, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("empty popup command")
	}
	return &ExecOpener{name: fields[0], args: fields[1:], log: log.With("component", "browser")}, nil
}

func (o *ExecOpener) Open(ctx context.Context, url string, size popup.Size) (popup.Window, error) {
	var profile string
	if o.wantsProfile() {
		dir, err := os.MkdirTemp("", "campusgive-popup-*")
		if err != nil {
			return nil, fmt.Errorf("popup profile: %w", err)
		}
		profile = dir
	}
	args := o.expand(url, size, profile)

	// not CommandContext: the window belongs to the user, the driver closes it
	cmd := exec.Command(o.name, args...)
	if err := cmd.Start(); err != nil {
		o.removeProfile(ctx, profile)
		return nil, fmt.Errorf("%w: start %s: %v", popup.ErrPopupBlocked, o.name, err)
	}
	o.log.Debug(ctx, "popup process started", "pid", cmd.Process.Pid, "profile", profile)

	w := &processWindow{cmd: cmd, profile: profile, exited: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		o.removeProfile(ctx, profile)
		close(w.exited)
	}()
	return w, nil
}

func (o *ExecOpener) wantsProfile() bool {
	for _, a := range o.args {
		if strings.Contains(a, profilePlaceholder) {
			return true
		}
	}
	return false
}

func (o *ExecOpener) removeProfile(ctx context.Context, dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		o.log.Warn(ctx, "could not remove popup profile", "dir", dir, "error", err)
	}
}

func (o *ExecOpener) expand(url string, size popup.Size, profile string) []string {
	r := strings.NewReplacer(
		"{url}", url,
		"{width}", strconv.Itoa(size.Width),
		"{height}", strconv.Itoa(size.Height),
		profilePlaceholder, profile,
	)
	args := make([]string, len(o.args))
	for i, a := range o.args {
		args[i] = r.Replace(a)
	}
	return args
}

// processWindow is closed once its process has exited and its profile
// directory, if any, is gone.
type processWindow struct {
	cmd     *exec.Cmd
	profile string
	exited  chan struct{}
	once    sync.Once
}

func (w *processWindow) Closed() bool {
	select {
	case <-w.exited:
		return true
	default:
		return false
	}
}

func (w *processWindow) Close() error {
	if w.Closed() {
		return nil
	}
	var err error
	w.once.Do(func() {
		err = w.cmd.Process.Kill()
	})
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
