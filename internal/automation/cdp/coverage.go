package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/profiler"
)

// StartCoverage enables the Profiler domain on this page's session and
// begins precise, per-function call-count coverage collection.
//
// Grounded on this file's own Goto/Close: every CDP command routes through
// cdp.WithExecutor(ctx, p.session), same as page.go's navigation call.
func (p *Page) StartCoverage(ctx context.Context) error {
	exec := cdp.WithExecutor(ctx, p.session)
	if err := profiler.Enable().Do(exec); err != nil {
		return fmt.Errorf("cdp: enabling profiler: %w", err)
	}
	if _, err := profiler.StartPreciseCoverage().WithCallCount(true).WithDetailed(true).Do(exec); err != nil {
		return fmt.Errorf("cdp: starting precise coverage: %w", err)
	}
	return nil
}

// StopCoverage takes the coverage accumulated since StartCoverage and
// disables collection.
func (p *Page) StopCoverage(ctx context.Context) ([]*profiler.ScriptCoverage, error) {
	exec := cdp.WithExecutor(ctx, p.session)
	result, _, err := profiler.TakePreciseCoverage().Do(exec)
	if err != nil {
		return nil, fmt.Errorf("cdp: taking precise coverage: %w", err)
	}
	if err := profiler.StopPreciseCoverage().Do(exec); err != nil {
		return nil, fmt.Errorf("cdp: stopping precise coverage: %w", err)
	}
	if err := profiler.Disable().Do(exec); err != nil {
		return nil, fmt.Errorf("cdp: disabling profiler: %w", err)
	}
	return result, nil
}
