package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"

	"github.com/PaperStrike/wrightplay/internal/handle"
	"github.com/PaperStrike/wrightplay/internal/route"
)

// BrowsingContext adapts one CDP browser context to the
// internal/handle.BrowsingContext contract, and is what the harness
// registers at target-vector id 0 (§4.1).
//
// Grounded on common/browser_context.go's BrowserContext, trimmed to
// page creation/teardown and route registration.
type BrowsingContext struct {
	browser *Browser
	id      cdp.BrowserContextID

	// routes is created alongside the context itself (see Browser.
	// NewContext) rather than lazily on first use, so that every page
	// NewPage opens, including the first, gets Fetch-domain interception
	// wired up: a page created before anything registered a route still
	// needs the universal matcher attached, since a route call arriving
	// later must reach a page that already exists.
	routes *route.List
}

var _ handle.BrowsingContext = (*BrowsingContext)(nil)

// NewPage opens a new page (tab) in this browsing context.
func (bc *BrowsingContext) NewPage() (handle.Page, error) {
	ctx := context.Background()
	targetID, err := target.CreateTarget("about:blank").
		WithBrowserContextID(bc.id).
		Do(cdp.WithExecutor(ctx, bc.browser.conn))
	if err != nil {
		return nil, fmt.Errorf("cdp: creating page: %w", err)
	}

	sessionID, err := target.AttachToTarget(targetID).WithFlatten(true).
		Do(cdp.WithExecutor(ctx, bc.browser.conn))
	if err != nil {
		return nil, fmt.Errorf("cdp: attaching to page target %s: %w", targetID, err)
	}

	session := bc.browser.conn.Session(sessionID)
	p := &Page{
		browserCtx: bc,
		session:    session,
		targetID:   targetID,
	}
	nm, err := newNetworkManager(ctx, session, bc.routes, bc.browser.logger)
	if err != nil {
		return nil, fmt.Errorf("cdp: enabling network interception: %w", err)
	}
	p.network = nm
	return p, nil
}

// Routes returns the route list every page opened in this context shares,
// per §3's "route registration is per browsing context" semantics.
func (bc *BrowsingContext) Routes() *route.List {
	return bc.routes
}

// Browser returns the browser this context belongs to (§8/E2E scenario 4's
// "page.context().browser()" chain).
func (bc *BrowsingContext) Browser() handle.Browser {
	return bc.browser
}

// Close tears down the browser context and every page in it.
func (bc *BrowsingContext) Close() error {
	ctx := context.Background()
	return target.DisposeBrowserContext(bc.id).Do(cdp.WithExecutor(ctx, bc.browser.conn))
}
