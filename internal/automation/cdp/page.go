package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"

	"github.com/PaperStrike/wrightplay/internal/handle"
)

// Page adapts one CDP page target to the internal/handle.Page contract,
// and is what the harness registers at target-vector id 1 (§4.1).
//
// Grounded on common/page.go's Page, trimmed to navigation and teardown:
// the evaluate/route surface the spec actually needs, not element queries,
// input simulation, or emulation (§ Non-goals).
type Page struct {
	browserCtx *BrowsingContext
	session    *Session
	targetID   target.ID
	network    *networkManager

	url string
}

var _ handle.Page = (*Page)(nil)

// URL returns the last-navigated URL.
func (p *Page) URL() string {
	return p.url
}

// Goto navigates the page to url and waits for the navigation to commit.
func (p *Page) Goto(url string) error {
	ctx := context.Background()
	_, _, _, err := cdppage.Navigate(url).Do(cdp.WithExecutor(ctx, p.session))
	if err != nil {
		return fmt.Errorf("cdp: navigating to %s: %w", url, err)
	}
	p.url = url
	return nil
}

// Close closes the underlying page target.
func (p *Page) Close() error {
	ctx := context.Background()
	return target.CloseTarget(p.targetID).Do(cdp.WithExecutor(ctx, p.browserCtx.browser.conn))
}

// Context returns the browsing context this page belongs to.
func (p *Page) Context() handle.BrowsingContext {
	return p.browserCtx
}
