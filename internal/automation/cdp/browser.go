package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"

	"github.com/PaperStrike/wrightplay/internal/log"
	"github.com/PaperStrike/wrightplay/internal/route"
)

// Browser owns one CDP connection to a browser process, whether the
// harness launched it itself or connected to one that was already running
// (§6's --browser-server-options). It's the root object internal/handle
// registers as target-vector id 0's backing implementation once wrapped in
// a BrowsingContext.
//
// Grounded on common/browser.go's Browser, trimmed to what the harness
// needs: browser-context/page lifecycle and network interception, not
// input simulation or DOM queries (§ Non-goals).
type Browser struct {
	conn    *Connection
	proc    *exec.Cmd
	logger  *log.Logger
}

// Launch starts a fresh local browser and connects to it.
func Launch(ctx context.Context, flags map[string]any, env []string, logger *log.Logger) (*Browser, error) {
	proc, err := NewAllocator(flags, env, logger).Launch(ctx, 20*time.Second)
	if err != nil {
		return nil, err
	}
	conn, err := Dial(ctx, proc.WSURL, logger)
	if err != nil {
		return nil, fmt.Errorf("cdp: connecting to launched browser: %w", err)
	}
	return &Browser{conn: conn, proc: proc.Cmd, logger: logger}, nil
}

// Connect attaches to a browser server that's already listening at
// devtoolsAddr (host:port), per the harness's --browser-server-options
// flag: the harness doesn't own the process lifecycle in that case.
func Connect(ctx context.Context, devtoolsAddr string, logger *log.Logger) (*Browser, error) {
	wsURL, err := discoverWebsocketURL(ctx, devtoolsAddr)
	if err != nil {
		return nil, err
	}
	conn, err := Dial(ctx, wsURL, logger)
	if err != nil {
		return nil, fmt.Errorf("cdp: connecting to browser server at %s: %w", devtoolsAddr, err)
	}
	return &Browser{conn: conn, logger: logger}, nil
}

func discoverWebsocketURL(ctx context.Context, addr string) (string, error) {
	url := "http://" + strings.TrimPrefix(addr, "http://") + "/json/version"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cdp: querying %s: %w", url, err)
	}
	defer resp.Body.Close()

	var info struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("cdp: decoding %s: %w", url, err)
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("cdp: %s did not report a websocket debugger url", url)
	}
	return info.WebSocketDebuggerURL, nil
}

// NewContext creates a fresh, isolated browsing context (an incognito-like
// browser context in CDP terms) and returns its adapter. bypassHeader names
// the per-session escape-hatch header (§4.3 step 1) every page opened in
// this context honors.
func (b *Browser) NewContext(ctx context.Context, bypassHeader string) (*BrowsingContext, error) {
	browserCtxID, err := target.CreateBrowserContext().Do(cdp.WithExecutor(ctx, b.conn))
	if err != nil {
		return nil, fmt.Errorf("cdp: creating browser context: %w", err)
	}
	return &BrowsingContext{
		browser: b,
		id:      browserCtxID,
		routes:  route.NewList(bypassHeader, b.logger),
	}, nil
}

// Version reports the browser's product string (e.g. "HeadlessChrome/
// 120.0.0.0"), backing page.context().browser().version() (§8/E2E
// scenario 4).
func (b *Browser) Version() (string, error) {
	_, product, _, _, _, err := cdpbrowser.GetVersion().Do(cdp.WithExecutor(context.Background(), b.conn))
	if err != nil {
		return "", fmt.Errorf("cdp: getting browser version: %w", err)
	}
	return product, nil
}

// Close disconnects and, if the harness launched the process itself, kills
// it.
func (b *Browser) Close() error {
	err := b.conn.Close()
	if b.proc != nil && b.proc.Process != nil {
		_ = b.proc.Process.Kill()
	}
	return err
}
