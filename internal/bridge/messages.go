package bridge

import "encoding/json"

// MessageType discriminates the six message shapes the bridge protocol
// carries (per the Design Notes in spec §4.3): route toggling, an
// intercepted request being offered by the host to the browser, the
// browser's terminal decision for that request, the route resolve
// (declared but unused, see RouteResolve), and the handle
// request/resolve pair.
type MessageType string

const (
	TypeRouteToggle  MessageType = "route-toggle"
	TypeRouteRequest MessageType = "route-request"
	TypeRouteAction  MessageType = "route-action"
	TypeRouteResolve MessageType = "route-resolve"
	TypeHandleRequest MessageType = "handle-request"
	TypeHandleResolve MessageType = "handle-resolve"
)

// Envelope is the outer shape of every message exchanged over the bridge.
// ID correlates a request to its eventual resolve message; ResolveID is
// set on a resolve message and echoes the ID it answers. Payload is
// re-decoded into the concrete type matching Type once Type is known,
// mirroring the way cdproto.Message keeps Method/Params separate so the
// dispatcher can decide the concrete params type before decoding it.
type Envelope struct {
	Type      MessageType     `json:"type"`
	ID        int             `json:"id,omitempty"`
	ResolveID *int            `json:"resolveId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RouteToggle enables or disables routing entirely for a browsing context
// (the bypass-all escape hatch, §4.3).
type RouteToggle struct {
	Enabled bool `json:"enabled"`
}

// RouteRequest is sent host->browser: interception happens at the CDP Fetch
// layer the host owns, so the host is the one that notices a request and
// offers it to the browser's route stack for a decision (§4.3). Body
// travels base64-encoded in the JSON payload rather than as a separate
// binary frame (see RouteForwarder's doc comment for why). HasBody carries
// the same "did this request actually have a body" bit a separate framing
// scheme would signal with a leading flag frame (§8: "a request whose body
// is 0 bytes sends no body frame"); ResourceType/IsNavigationRequest mirror
// the two remaining §4.3 step 3 metadata fields.
type RouteRequest struct {
	URL                 string            `json:"url"`
	Method              string            `json:"method"`
	Headers             map[string]string `json:"headers,omitempty"`
	HasBody             bool              `json:"hasBody"`
	Body                string            `json:"body,omitempty"`
	ResourceType        string            `json:"resourceType,omitempty"`
	IsNavigationRequest bool              `json:"isNavigationRequest,omitempty"`
}

// RouteAction is the browser's terminal decision for a RouteRequest, sent
// browser->host in reply.
type RouteAction struct {
	Action   string            `json:"action"` // "continue" | "abort" | "fulfill"
	Status   int               `json:"status,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     []byte            `json:"body,omitempty"`
	ErrorMsg string            `json:"error,omitempty"`
}

// RouteResolve is unused by the simplified body-framing scheme this bridge
// implements; retained as a placeholder for a future host-registered
// predicate matcher round trip.
type RouteResolve struct {
	Matched bool `json:"matched"`
}

// HandleRequest carries one of the five handle actions the browser issues
// against the host's target vector (§4.2): evaluate, jsonValue,
// getProperty, getProperties, dispose. Arg, present only for evaluate,
// holds a wire.Node encoding the call argument, decoded directly rather
// than double-encoded as a JSON string.
type HandleRequest struct {
	Action string          `json:"action"`
	Handle int             `json:"handle"`
	Expr   string          `json:"expr,omitempty"`
	H      bool            `json:"h,omitempty"`
	Arg    json.RawMessage `json:"arg,omitempty"`
	Key    string          `json:"key,omitempty"`
}

// HandleResolve answers a HandleRequest.
type HandleResolve struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
