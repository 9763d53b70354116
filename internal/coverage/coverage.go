// Package coverage writes V8 precise code-coverage output when
// NODE_V8_COVERAGE names an output directory, following Node's own
// convention for the env var: one JSON file per collection, holding the
// raw per-function call counts the V8 inspector protocol reports.
//
// Collection is restricted to Chromium (the Profiler domain this builds
// on has no Firefox/WebKit equivalent exposed the same way) and to the
// first run of a sequence: later runs share the same top-level module
// evaluation, so re-collecting on every run would double-count code that
// only actually executed once.
package coverage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/profiler"
	"github.com/google/uuid"

	"github.com/PaperStrike/wrightplay/internal/log"
)

// page is the subset of automation/cdp.Page a Recorder needs.
type page interface {
	StartCoverage(ctx context.Context) error
	StopCoverage(ctx context.Context) ([]*profiler.ScriptCoverage, error)
}

// Recorder starts and stops coverage collection for one run.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Enabled reports whether coverage should be collected for a run against
// the given browser name, returning the directory to write into.
func Enabled(browserName string, isFirstRun bool) (dir string, ok bool) {
	dir = os.Getenv("NODE_V8_COVERAGE")
	if dir == "" || !isFirstRun {
		return "", false
	}
	switch browserName {
	case "", "chromium", "chrome":
		return dir, true
	default:
		return "", false
	}
}

type recorder struct {
	page   page
	dir    string
	logger *log.Logger
}

// NewRecorder builds a Recorder that writes coverage output under dir.
func NewRecorder(p page, dir string, logger *log.Logger) Recorder {
	return &recorder{page: p, dir: dir, logger: logger}
}

func (r *recorder) Start(ctx context.Context) error {
	return r.page.StartCoverage(ctx)
}

// coverageFile mirrors Node's own on-disk shape for NODE_V8_COVERAGE
// output: a single top-level "result" array of per-script coverage.
type coverageFile struct {
	Result []*profiler.ScriptCoverage `json:"result"`
}

func (r *recorder) Stop(ctx context.Context) error {
	result, err := r.page.StopCoverage(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("coverage: creating output directory: %w", err)
	}

	raw, err := json.Marshal(coverageFile{Result: result})
	if err != nil {
		return fmt.Errorf("coverage: encoding result: %w", err)
	}

	name := "coverage-" + uuid.New().String() + ".json"
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("coverage: writing %s: %w", path, err)
	}
	r.logger.Infof("coverage", "wrote %s (%d scripts)", path, len(result))
	return nil
}
