package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/chromedp/cdproto/profiler"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PaperStrike/wrightplay/internal/automation/cdp"
	"github.com/PaperStrike/wrightplay/internal/bridge"
	"github.com/PaperStrike/wrightplay/internal/bundler"
	"github.com/PaperStrike/wrightplay/internal/config"
	"github.com/PaperStrike/wrightplay/internal/coverage"
	"github.com/PaperStrike/wrightplay/internal/handle"
	"github.com/PaperStrike/wrightplay/internal/log"
	"github.com/PaperStrike/wrightplay/internal/stackmap"
)

// browserServerAddress is the shape --browser-server-options' JSON takes:
// an already-running browser's devtools HTTP address to attach to instead
// of launching one (§6). No teacher analogue names a field for this, so
// the single field this harness actually consumes is named directly after
// what it is.
type browserServerAddress struct {
	Address string `json:"address"`
}

// coveragePage is the subset of *cdp.Page internal/coverage needs. Asserted
// against the handle.Page interface page.go's exitPage embeds, since only
// the CDP automation engine (Chromium) implements it.
type coveragePage interface {
	StartCoverage(ctx context.Context) error
	StopCoverage(ctx context.Context) ([]*profiler.ScriptCoverage, error)
}

// RunAll executes every run in seq in order, folding their exit codes with
// CombineExitCodes (§6: "the maximum of per-run exit codes, never
// overwriting a nonzero value with zero"). It stops early only on an error
// unrelated to a run's own exit code (a run that fails by returning a
// nonzero exit code is not itself an error: the sequence continues).
func RunAll(ctx context.Context, seq config.RunSequence, logger *log.Logger) (int, error) {
	code := 0
	for i, cfg := range seq {
		runLogger := logger.With(logrus.Fields{"run": i + 1})
		runCode, err := run(ctx, cfg, runLogger, i == 0)
		if err != nil {
			return code, fmt.Errorf("runner: run %d/%d: %w", i+1, len(seq), err)
		}
		code = CombineExitCodes(code, runCode)
	}
	return code, nil
}

// Run executes one configured run end to end (§4.7): start the bundle
// server, acquire a browser page bound to it, navigate, and wait for the
// browser side to report an exit code. In watch mode it keeps re-running
// on every rebuild until ctx is cancelled.
//
// Run is the entry point for a standalone invocation (not part of a
// config-file sequence), so it always treats itself as the sequence's
// first run for coverage-gating purposes.
func Run(ctx context.Context, cfg config.Config, logger *log.Logger) (int, error) {
	return run(ctx, cfg, logger, true)
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger, firstRun bool) (int, error) {
	cwd, err := resolveCwd(cfg)
	if err != nil {
		return 1, err
	}

	entries, err := gatherEntries(cwd, cfg)
	if err != nil {
		return 1, err
	}
	watch := cfg.Watch.ValueOrZero()
	if len(entries) == 0 && !watch {
		logger.Errorf("runner", "no test files matched the given patterns")
		return 1, nil
	}

	setupPath := ""
	if cfg.Setup.Valid {
		setupPath = resolvePath(cwd, cfg.Setup.String)
	}

	bypassHeader := "bypass-" + uuid.New().String()

	bs := bundler.NewServer(newPassthroughBuilder(), "", "", cwd, logger)
	rebuild := func() error {
		sessionID := uuid.New().String()
		bs.SetEntrySource(bundler.SynthesizeEntry(setupPath, entries, sessionID, bypassHeader))
		return bs.Build(ctx)
	}
	if err := rebuild(); err != nil {
		return 1, fmt.Errorf("runner: initial build: %w", err)
	}

	browser, closeBrowser, err := acquireBrowser(ctx, cfg, logger)
	if err != nil {
		return 1, err
	}
	defer closeBrowser()

	bctx, err := browser.NewContext(ctx, bypassHeader)
	if err != nil {
		return 1, fmt.Errorf("runner: creating browsing context: %w", err)
	}
	defer bctx.Close()
	routes := bctx.Routes()

	page, err := bctx.NewPage()
	if err != nil {
		return 1, fmt.Errorf("runner: opening page: %w", err)
	}
	defer page.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 1, fmt.Errorf("runner: opening listener: %w", err)
	}
	defer ln.Close()
	baseURL := "http://" + ln.Addr().String()

	transportCh := make(chan *bridge.Transport, 1)
	mux := http.NewServeMux()
	mux.Handle("/", bs.Handler())
	mux.HandleFunc(bridge.WSPath, func(w http.ResponseWriter, r *http.Request) {
		t, err := bridge.Upgrade(w, r, logger)
		if err != nil {
			logger.Errorf("runner", "bridge upgrade: %s", err)
			return
		}
		wireRouteProtocol(t, routes, logger)
		select {
		case transportCh <- t:
		default:
			// A page reload attaches a second bridge client; only the first
			// one per run is observed as "the" run's transport (§5: a rerun
			// only counts once the client has actually reconnected).
		}
	})

	httpServer := &http.Server{Handler: mux}
	go func() { _ = httpServer.Serve(ln) }()
	defer httpServer.Close()

	// runOnce registers a fresh evaluator/exitPage against the page's next
	// bridge connection: each navigation opens a brand new browser-side
	// execution context, so stale handles from a prior run must not answer
	// for the new one.
	runOnce := func() (int, error) {
		ep := newExitPage(page)
		registry := handle.NewRegistry(bctx, ep, logger)
		ev := handle.NewEvaluator(registry, logger)

		if err := page.Goto(baseURL + "/"); err != nil {
			return 1, fmt.Errorf("runner: navigating: %w", err)
		}

		t, err := waitForTransport(ctx, transportCh)
		if err != nil {
			return 1, err
		}
		wireHandleProtocol(t, ev, logger)

		select {
		case code := <-ep.done:
			if code != 0 && ep.message != "" {
				logger.Errorf("runner", "%s\n%s", ep.message, remapStack(bs, ep.stack))
			}
			return code, nil
		case <-ctx.Done():
			return 1, ctx.Err()
		}
	}

	// Coverage recording spans only the first run: watch-mode reruns and
	// later entries in a config-file sequence share the same top-level
	// module evaluation the first run already accounted for (§6).
	runFirst := runOnce
	if cp, ok := page.(coveragePage); ok && !cfg.NoCoverage.ValueOrZero() {
		if dir, ok := coverage.Enabled(cfg.Browser.ValueOrZero(), firstRun); ok {
			rec := coverage.NewRecorder(cp, dir, logger)
			runFirst = func() (int, error) {
				if err := rec.Start(ctx); err != nil {
					logger.Errorf("runner", "starting coverage: %s", err)
					return runOnce()
				}
				code, err := runOnce()
				if stopErr := rec.Stop(ctx); stopErr != nil {
					logger.Errorf("runner", "stopping coverage: %s", stopErr)
				}
				return code, err
			}
		}
	}

	if !watch {
		return runFirst()
	}

	if err := bs.Watch(ctx, []string{cwd}); err != nil {
		return 1, fmt.Errorf("runner: starting watcher: %w", err)
	}
	changed := bs.OnChange()
	code, err := runFirst()
	if err != nil {
		return code, err
	}
	for {
		select {
		case <-changed:
			if err := rebuild(); err != nil {
				logger.Errorf("runner", "rebuild failed: %s", err)
				continue
			}
			code, err = runOnce()
			if err != nil {
				return code, err
			}
		case <-ctx.Done():
			return code, nil
		}
	}
}

// remapStack rewrites stack against the entry's current source map, if the
// configured Builder produced one. It falls back to the bundled-output
// stack unchanged when there's no map to consult (§ Open Question decisions:
// the default passthroughBuilder never emits one).
func remapStack(bs *bundler.Server, stack string) string {
	mapJSON, ok := bs.SourceMap("entry.js")
	if !ok {
		return stack
	}
	m, err := stackmap.New(mapJSON)
	if err != nil {
		return stack
	}
	return m.Remap(stack)
}

// waitForTransport blocks for the bridge's initial handshake, which
// completes once the entry's synthesized script opens the WebSocket during
// page load.
func waitForTransport(ctx context.Context, ch <-chan *bridge.Transport) (*bridge.Transport, error) {
	select {
	case t := <-ch:
		return t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func resolveCwd(cfg config.Config) (string, error) {
	if cfg.Cwd.Valid && cfg.Cwd.String != "" {
		return cfg.Cwd.String, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("runner: resolving working directory: %w", err)
	}
	return cwd, nil
}

// gatherEntries merges the CLI's still-unsplit positional Entries with the
// config file's already-split Tests/EntryPoints (§6) into one resolved
// entry-point list.
func gatherEntries(cwd string, cfg config.Config) ([]bundler.EntryPoint, error) {
	patterns, named := splitEntries(cfg.Entries)
	for name, path := range cfg.EntryPoints {
		named[name] = path
	}
	patterns = append(patterns, cfg.Tests...)
	return resolveEntryPoints(cwd, patterns, named)
}

// acquireBrowser launches a local browser or attaches to an already-running
// one per cfg.BrowserServerOptions, returning a cleanup func that always
// closes/disconnects it.
func acquireBrowser(ctx context.Context, cfg config.Config, logger *log.Logger) (*cdp.Browser, func(), error) {
	if len(cfg.BrowserServerOptions) > 0 {
		var opts browserServerAddress
		if err := json.Unmarshal(cfg.BrowserServerOptions, &opts); err != nil {
			return nil, nil, fmt.Errorf("runner: decoding browserServerOptions: %w", err)
		}
		b, err := cdp.Connect(ctx, opts.Address, logger)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	}

	flags := map[string]any{}
	if cfg.Headless.ValueOrZero() {
		flags["headless"] = "new"
	}
	if cfg.Debug.ValueOrZero() {
		flags["auto-open-devtools-for-tabs"] = true
	}
	b, err := cdp.Launch(ctx, flags, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	return b, func() { _ = b.Close() }, nil
}
