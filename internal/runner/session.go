package runner

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PaperStrike/wrightplay/internal/bridge"
	"github.com/PaperStrike/wrightplay/internal/handle"
	"github.com/PaperStrike/wrightplay/internal/log"
	"github.com/PaperStrike/wrightplay/internal/route"
	"github.com/PaperStrike/wrightplay/internal/wire"
)

// encodeHandleError turns a dispatchHandleRequest failure into the JSON
// text of a wire-encoded error node, so the browser's `throw
// wire.parse(JSON.parse(resolve.error))` sees back a real Error value
// rather than a bare message string (§7's "user-code fault" and
// "protocol violation" both round-trip this way, distinguished only by
// which wire.ErrorValue.Message ends up in it). If err carries the actual
// thrown JS value (a *handle.EvaluationError), that value's own node is
// used instead of synthesizing a generic one.
func encodeHandleError(err error) (string, error) {
	var evalErr *handle.EvaluationError
	node := func() wire.Node {
		if errors.As(err, &evalErr) {
			return evalErr.Node
		}
		n, serErr := wire.Serialize(&wire.ErrorValue{Name: "Error", Message: err.Error()})
		if serErr != nil {
			return wire.Node{}
		}
		return n
	}()

	raw, marshalErr := json.Marshal(node)
	if marshalErr != nil {
		return "", marshalErr
	}
	return string(raw), nil
}

// wireHandleProtocol registers the host side of the five handle actions
// (§4.2) against t: every inbound HandleRequest is answered with a
// HandleResolve carrying the matching ResolveID.
//
// Grounded on common/execution_context.go's action dispatch (eval/
// getProperty/getProperties/dispose all funnel through one message
// handler keyed by action name), adapted from a CDP binding call to a
// bridge message handler.
func wireHandleProtocol(t *bridge.Transport, ev *handle.Evaluator, logger *log.Logger) {
	t.OnMessage(bridge.TypeHandleRequest, func(env *bridge.Envelope) {
		var req bridge.HandleRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			logger.Errorf("handle", "decoding request: %s", err)
			return
		}

		resolve, err := dispatchHandleRequest(ev, req)
		payload := bridge.HandleResolve{}
		if err != nil {
			logger.Errorf("handle", "action=%s handle=%d: %s", req.Action, req.Handle, err)
			errJSON, encErr := encodeHandleError(err)
			if encErr != nil {
				logger.Errorf("handle", "encoding error for reply: %s", encErr)
				errJSON = `{"i":0,"e":{"n":"Error","m":"internal error"}}`
			}
			payload.Error = errJSON
		} else {
			payload.Result = resolve
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			logger.Errorf("handle", "encoding resolve: %s", err)
			return
		}
		t.Send(&bridge.Envelope{Type: bridge.TypeHandleResolve, ResolveID: &env.ID, Payload: raw})
	})
}

func dispatchHandleRequest(ev *handle.Evaluator, req bridge.HandleRequest) (json.RawMessage, error) {
	switch req.Action {
	case "evaluate":
		var argNode wire.Node
		if len(req.Arg) > 0 {
			if err := json.Unmarshal(req.Arg, &argNode); err != nil {
				return nil, fmt.Errorf("decoding evaluate argument: %w", err)
			}
		}

		result, err := ev.Evaluate(req.Handle, req.Expr, argNode, req.H)
		if err != nil {
			return nil, err
		}
		if req.H {
			if result.Handle == nil {
				return nil, fmt.Errorf("internal error: evaluate(h=true) did not return a handle")
			}
			return json.Marshal(*result.Handle)
		}
		return json.Marshal(result)

	case "json-value":
		result, err := ev.JSONValue(req.Handle)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)

	case "get-property":
		id, err := ev.GetProperty(req.Handle, req.Key)
		if err != nil {
			return nil, err
		}
		return json.Marshal(id)

	case "get-properties":
		props, err := ev.GetProperties(req.Handle)
		if err != nil {
			return nil, err
		}
		pairs := make([][2]any, len(props))
		for i, p := range props {
			pairs[i] = [2]any{p.Key, p.Handle}
		}
		return json.Marshal(pairs)

	case "dispose":
		if err := ev.Dispose(req.Handle); err != nil {
			return nil, err
		}
		return json.Marshal(nil)

	default:
		return nil, fmt.Errorf("unknown handle action %q", req.Action)
	}
}

// wireRouteProtocol registers t as the browsing context's sole route
// forwarder and lets the browser's route-toggle messages flip its
// bypass-all switch (§4.3: "if no client is currently attached, continue
// without modification" — modeled here as bypassAll being true until the
// browser reports a non-empty route stack).
func wireRouteProtocol(t *bridge.Transport, routes *route.List, logger *log.Logger) {
	routes.SetBypassAll(true)
	routes.SetForwarder(bridge.NewRouteForwarder(t))

	t.OnMessage(bridge.TypeRouteToggle, func(env *bridge.Envelope) {
		var toggle bridge.RouteToggle
		if err := json.Unmarshal(env.Payload, &toggle); err != nil {
			logger.Errorf("route", "decoding toggle: %s", err)
			return
		}
		routes.SetBypassAll(!toggle.Enabled)
	})
}
