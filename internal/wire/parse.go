package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"time"
)

// HandleTargets resolves a handle id against the current target vector. It
// returns ok=false when the id is absent, which is a protocol error (§4.1).
type HandleTargets func(id int) (any, bool)

// Parser rebuilds Go values from a Node tree, resolving handle references
// and reconstructing cyclic/shared structures from back-references.
type Parser struct {
	refs    map[int]any
	targets HandleTargets
}

// Parse decodes a Node tree produced by Serialize/SerializeWithFallback.
// handleTargets may be nil if the message is known not to contain handles.
func Parse(n Node, handleTargets HandleTargets) (any, error) {
	p := &Parser{refs: make(map[int]any), targets: handleTargets}
	return p.decode(n)
}

func (p *Parser) decode(n Node) (any, error) {
	if n.IsBackref() {
		v, ok := p.refs[n.Index]
		if !ok {
			return nil, fmt.Errorf("node %d: dangling back-reference", n.Index)
		}
		return v, nil
	}

	switch {
	case n.Error != nil:
		return p.decodeError(n)
	case n.Array != nil:
		return p.decodeArray(n)
	case n.Object != nil:
		return p.decodeObject(n)
	}

	var (
		v   any
		err error
	)
	switch {
	case n.Primitive != nil:
		v, err = decodePrimitive(n)
	case n.SentinelTag != "":
		v, err = decodeSentinel(n)
	case n.BigInt != "":
		v, err = decodeBigInt(n)
	case n.URL != "":
		uv := URLValue{Raw: n.URL}
		if u, perr := url.Parse(n.URL); perr == nil {
			uv.Parsed = u
		}
		v = uv
	case n.Date != "":
		t, terr := parseISODate(n.Date)
		if terr != nil {
			return nil, fmt.Errorf("node %d: parsing date %q: %w", n.Index, n.Date, terr)
		}
		v = DateValue{Time: t}
	case n.Regexp != nil:
		v = RegexpValue{Source: n.Regexp.Source, Flags: n.Regexp.Flags}
	case n.Handle != nil:
		if p.targets == nil {
			return nil, fmt.Errorf("node %d: handle %d referenced but no target vector supplied", n.Index, *n.Handle)
		}
		target, ok := p.targets(*n.Handle)
		if !ok {
			return nil, fmt.Errorf("node %d: handle %d: protocol error, id not present in target vector", n.Index, *n.Handle)
		}
		v = target
	default:
		return nil, fmt.Errorf("node %d: no recognized discriminator", n.Index)
	}
	if err != nil {
		return nil, err
	}
	p.refs[n.Index] = v
	return v, nil
}

// decodeArray, decodeObject and decodeError construct their (empty)
// container and register it in refs *before* recursing into children, so a
// child that back-references the container closes the cycle correctly.
func (p *Parser) decodeArray(n Node) (any, error) {
	arr := &Array{Items: make([]any, len(n.Array))}
	p.refs[n.Index] = arr
	for i, child := range n.Array {
		v, err := p.decode(child)
		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", i, err)
		}
		arr.Items[i] = v
	}
	return arr, nil
}

func (p *Parser) decodeObject(n Node) (any, error) {
	obj := &Object{Props: make([]KV, len(n.Object))}
	p.refs[n.Index] = obj
	for i, prop := range n.Object {
		obj.Props[i].Key = prop.Key
	}
	for i, prop := range n.Object {
		v, err := p.decode(prop.Value)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", prop.Key, err)
		}
		obj.Props[i].Value = v
	}
	return obj, nil
}

func (p *Parser) decodeError(n Node) (any, error) {
	e := &ErrorValue{Name: n.Error.Name, Message: n.Error.Message, Stack: n.Error.Stack}
	p.refs[n.Index] = e
	if n.Error.Cause != nil {
		e.HasCause = true
		v, err := p.decode(*n.Error.Cause)
		if err != nil {
			return nil, fmt.Errorf("error cause: %w", err)
		}
		e.Cause = v
	}
	return e, nil
}

func decodePrimitive(n Node) (any, error) {
	var v any
	if err := json.Unmarshal(*n.Primitive, &v); err != nil {
		return nil, fmt.Errorf("node %d: %w", n.Index, err)
	}
	if f, ok := v.(json.Number); ok {
		fv, err := f.Float64()
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", n.Index, err)
		}
		return fv, nil
	}
	return v, nil
}

func decodeSentinel(n Node) (any, error) {
	switch n.SentinelTag {
	case SentinelUndefined:
		return Undefined{}, nil
	case SentinelNaN:
		return math.NaN(), nil
	case SentinelPositiveInf:
		return math.Inf(1), nil
	case SentinelNegativeInf:
		return math.Inf(-1), nil
	case SentinelNegativeZero:
		return math.Copysign(0, -1), nil
	default:
		return nil, fmt.Errorf("unknown sentinel %q", n.SentinelTag)
	}
}

func decodeBigInt(n Node) (any, error) {
	i, ok := new(big.Int).SetString(n.BigInt, 10)
	if !ok {
		return nil, fmt.Errorf("invalid bigint literal %q", n.BigInt)
	}
	return BigInt{i}, nil
}

var isoDateLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	time.RFC3339Nano,
	time.RFC3339,
}

func parseISODate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
