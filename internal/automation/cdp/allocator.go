package cdp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/PaperStrike/wrightplay/internal/log"
)

// Allocator finds and launches a local browser executable. Attaching to a
// browser that's already running (the harness's --browser-server-options
// flag) is done by Connect instead, without an Allocator.
//
// Grounded on chromium/allocator.go's Allocator: same exec.CommandContext
// launch, the same "DevTools listening on ws://..." stdout scrape for the
// websocket endpoint, and the same executable search list.
type Allocator struct {
	execPath string
	flags    map[string]any
	env      []string
	logger   *log.Logger
}

// NewAllocator builds an allocator using flags as additional Chromium
// command-line switches (e.g. "headless": true).
func NewAllocator(flags map[string]any, env []string, logger *log.Logger) *Allocator {
	return &Allocator{flags: flags, env: env, execPath: findExecPath(), logger: logger}
}

// LaunchedProcess is a spawned browser subprocess plus its devtools
// endpoint.
type LaunchedProcess struct {
	Cmd   *exec.Cmd
	WSURL string
}

// Launch starts a fresh browser process and returns its websocket
// devtools endpoint.
func (a *Allocator) Launch(ctx context.Context, timeout time.Duration) (*LaunchedProcess, error) {
	if a.execPath == "" {
		return nil, errors.New("cdp: no browser executable found; set the --browser flag or install Chrome/Chromium")
	}

	args, err := a.args()
	if err != nil {
		return nil, fmt.Errorf("cdp: preparing launch args: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.execPath, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("cdp: piping stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if len(a.env) > 0 {
		cmd.Env = append(os.Environ(), a.env...)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cdp: starting browser executable %q: %w", a.execPath, err)
	}

	wsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	wsURL, err := parseWebsocketURL(wsCtx, stdout)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("cdp: waiting for devtools endpoint: %w", err)
	}

	a.logger.Infof("cdp:launch", "pid=%d wsurl=%s", cmd.Process.Pid, wsURL)
	return &LaunchedProcess{Cmd: cmd, WSURL: wsURL}, nil
}

func (a *Allocator) args() ([]string, error) {
	var args []string
	for name, value := range a.flags {
		switch v := value.(type) {
		case string:
			args = append(args, fmt.Sprintf("--%s=%s", name, v))
		case bool:
			if v {
				args = append(args, fmt.Sprintf("--%s", name))
			}
		default:
			return nil, fmt.Errorf("invalid browser flag %q: unsupported value type %T", name, value)
		}
	}
	if _, ok := a.flags["no-sandbox"]; !ok && os.Getuid() == 0 {
		args = append(args, "--no-sandbox")
	}
	if _, ok := a.flags["remote-debugging-port"]; !ok {
		args = append(args, "--remote-debugging-port=0")
	}
	return args, nil
}

func parseWebsocketURL(ctx context.Context, r io.Reader) (string, error) {
	const prefix = "DevTools listening on "

	type result struct {
		url string
		err error
	}
	c := make(chan result, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if s := scanner.Text(); strings.HasPrefix(s, prefix) {
				c <- result{url: strings.TrimPrefix(strings.TrimSpace(s), prefix)}
				return
			}
		}
		c <- result{err: fmt.Errorf("browser exited before printing its devtools endpoint: %w", scanner.Err())}
	}()

	select {
	case r := <-c:
		return r.url, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func findExecPath() string {
	for _, path := range [...]string{
		"headless_shell",
		"headless-shell",
		"chromium",
		"chromium-browser",
		"google-chrome",
		"google-chrome-stable",
		"google-chrome-beta",
		"google-chrome-unstable",
		"/usr/bin/google-chrome",

		"chrome",
		"chrome.exe",
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		filepath.Join(os.Getenv("USERPROFILE"), `AppData\Local\Google\Chrome\Application\chrome.exe`),

		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	} {
		if _, err := exec.LookPath(path); err == nil {
			return path
		}
	}
	return ""
}
