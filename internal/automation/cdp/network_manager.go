package cdp

import (
	"context"
	"encoding/base64"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"

	"github.com/PaperStrike/wrightplay/internal/log"
	"github.com/PaperStrike/wrightplay/internal/route"
)

// errorReason maps abort(errorCode)'s documented lowercase strings onto
// the Network.ErrorReason CDP expects, defaulting to a generic failure
// for an empty or unrecognized code.
func errorReason(code string) network.ErrorReason {
	switch code {
	case "aborted":
		return network.ErrorReasonAborted
	case "accessdenied":
		return network.ErrorReasonAccessDenied
	case "addressunreachable":
		return network.ErrorReasonAddressUnreachable
	case "blockedbyclient":
		return network.ErrorReasonBlockedByClient
	case "blockedbyresponse":
		return network.ErrorReasonBlockedByResponse
	case "connectionaborted":
		return network.ErrorReasonConnectionAborted
	case "connectionclosed":
		return network.ErrorReasonConnectionClosed
	case "connectionfailed":
		return network.ErrorReasonConnectionFailed
	case "connectionrefused":
		return network.ErrorReasonConnectionRefused
	case "connectionreset":
		return network.ErrorReasonConnectionReset
	case "internetdisconnected":
		return network.ErrorReasonInternetDisconnected
	case "namenotresolved":
		return network.ErrorReasonNameNotResolved
	case "timedout":
		return network.ErrorReasonTimedOut
	default:
		return network.ErrorReasonFailed
	}
}

// networkManager enables the Fetch domain on one page's session and
// forwards every paused request into the route list, translating the
// route decision back into the matching Fetch command.
//
// Grounded on common/network_manager.go's initDomains/onRequestPaused,
// simplified from a full request/response accounting layer (redirect
// chains, metrics, blocked-IP checks — all out of scope here) down to the
// continue/abort/fulfill decision table §3 actually needs.
type networkManager struct {
	session *Session
	routes  *route.List
	logger  *log.Logger
}

func newNetworkManager(ctx context.Context, session *Session, routes *route.List, logger *log.Logger) (*networkManager, error) {
	nm := &networkManager{session: session, routes: routes, logger: logger}

	if err := network.Enable().Do(cdp.WithExecutor(ctx, session)); err != nil {
		return nil, err
	}
	if err := fetch.Enable().
		WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}).
		Do(cdp.WithExecutor(ctx, session)); err != nil {
		return nil, err
	}

	session.conn.OnEvent(func(method string, data any) {
		if method != cdproto.EventFetchRequestPaused {
			return
		}
		ev, ok := data.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		nm.onRequestPaused(ev)
	})

	return nm, nil
}

func (nm *networkManager) onRequestPaused(event *fetch.EventRequestPaused) {
	ctx := context.Background()

	headers := make(map[string]string, len(event.Request.Headers))
	for k, v := range event.Request.Headers {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}

	req := &route.Request{
		URL:                 event.Request.URL,
		Method:              event.Request.Method,
		Headers:             headers,
		Body:                []byte(event.Request.PostData),
		ResourceType:        string(event.ResourceType),
		IsNavigationRequest: event.ResourceType == network.ResourceTypeDocument,
	}

	decision, err := nm.routes.Dispatch(ctx, req)
	if err != nil {
		nm.logger.Errorf("network", "route dispatch for %s: %s", req.URL, err)
		_ = fetch.FailRequest(event.RequestID, network.ErrorReasonFailed).Do(cdp.WithExecutor(ctx, nm.session))
		return
	}

	switch decision.Action {
	case route.ActionAbort:
		if err := fetch.FailRequest(event.RequestID, errorReason(decision.ErrorCode)).
			Do(cdp.WithExecutor(ctx, nm.session)); err != nil {
			nm.logger.Errorf("network", "aborting %s: %s", req.URL, err)
		}
	case route.ActionFulfill:
		resp := decision.Response
		headers := make([]*fetch.HeaderEntry, 0, len(resp.Headers))
		for k, v := range resp.Headers {
			headers = append(headers, &fetch.HeaderEntry{Name: k, Value: v})
		}
		if err := fetch.FulfillRequest(event.RequestID, int64(resp.Status)).
			WithResponseHeaders(headers).
			WithBody(base64.StdEncoding.EncodeToString(resp.Body)).
			Do(cdp.WithExecutor(ctx, nm.session)); err != nil {
			nm.logger.Errorf("network", "fulfilling %s: %s", req.URL, err)
		}
	default:
		cmd := fetch.ContinueRequest(event.RequestID)
		if ov := decision.Overrides; ov != nil {
			if ov.URL != "" {
				cmd = cmd.WithURL(ov.URL)
			}
			if ov.Method != "" {
				cmd = cmd.WithMethod(ov.Method)
			}
			if len(ov.Headers) > 0 {
				headers := make([]*fetch.HeaderEntry, 0, len(ov.Headers))
				for k, v := range ov.Headers {
					headers = append(headers, &fetch.HeaderEntry{Name: k, Value: v})
				}
				cmd = cmd.WithHeaders(headers)
			}
			if len(ov.Body) > 0 {
				cmd = cmd.WithPostData(base64.StdEncoding.EncodeToString(ov.Body))
			}
		}
		if err := cmd.Do(cdp.WithExecutor(ctx, nm.session)); err != nil {
			nm.logger.Errorf("network", "continuing %s: %s", req.URL, err)
		}
	}
}
