package handle

import (
	"fmt"
	"math/big"
	"time"

	"github.com/dop251/goja"

	"github.com/PaperStrike/wrightplay/internal/wire"
)

// fromGoja converts a goja.Value into the dynamic value domain understood
// by internal/wire, so it can be serialized to the browser. Cycles and
// shared references inside the *goja* graph are preserved the same way
// wire.Serializer preserves them on the way out: by identity.
//
// This mirrors, for our own goja-hosted values, what
// common/remote_object.go's valueFromRemoteObject does for CDP's
// RemoteObject tagged unions: dispatch on a discriminator (there,
// Type/Subtype; here, ClassName) into the matching Go representation.
func fromGoja(rt *goja.Runtime, v goja.Value, seen map[goja.Value]any) (any, error) {
	if v == nil || goja.IsUndefined(v) {
		return wire.Undefined{}, nil
	}
	if goja.IsNull(v) {
		return nil, nil
	}
	if existing, ok := seen[v]; ok {
		return existing, nil
	}

	switch {
	case goja.IsNaN(v), goja.IsInfinity(v):
		return v.ToFloat(), nil
	}

	obj, isObj := v.(*goja.Object)
	if !isObj {
		switch v.ExportType() {
		case nil:
			return nil, nil
		}
		switch ev := v.Export().(type) {
		case bool, string, int64, float64:
			return normalizeNumber(ev), nil
		case *big.Int:
			return wire.BigInt{Int: ev}, nil
		default:
			return normalizeNumber(v.Export()), nil
		}
	}

	if _, ok := goja.AssertFunction(obj); ok {
		return wire.Func{}, nil
	}

	switch obj.ClassName() {
	case "Array":
		arr := &wire.Array{}
		seen[v] = arr
		length := int(obj.Get("length").ToInteger())
		arr.Items = make([]any, length)
		for i := 0; i < length; i++ {
			item, err := fromGoja(rt, obj.Get(fmt.Sprintf("%d", i)), seen)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			arr.Items[i] = item
		}
		return arr, nil

	case "Date":
		return exportDate(v)

	case "RegExp":
		src := obj.Get("source")
		flags := obj.Get("flags")
		return wire.RegexpValue{Source: src.String(), Flags: flags.String()}, nil

	case "Error", "TypeError", "RangeError", "SyntaxError", "EvalError", "URIError", "ReferenceError":
		ev := &wire.ErrorValue{
			Name:    obj.Get("name").String(),
			Message: obj.Get("message").String(),
		}
		if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
			ev.Stack = stack.String()
		}
		seen[v] = ev
		if cause := obj.Get("cause"); cause != nil {
			ev.HasCause = true
			cv, err := fromGoja(rt, cause, seen)
			if err != nil {
				return nil, fmt.Errorf("error cause: %w", err)
			}
			ev.Cause = cv
		}
		return ev, nil

	default:
		result := &wire.Object{}
		seen[v] = result
		for _, key := range obj.Keys() {
			pv, err := fromGoja(rt, obj.Get(key), seen)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", key, err)
			}
			result.Props = append(result.Props, wire.KV{Key: key, Value: pv})
		}
		return result, nil
	}
}

func exportDate(v goja.Value) (any, error) {
	t, ok := v.Export().(time.Time)
	if !ok {
		return nil, fmt.Errorf("expected Date export to be time.Time, got %T", v.Export())
	}
	return wire.DateValue{Time: t}, nil
}

func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return v
	}
}

// toGoja converts a value out of the wire domain into a goja.Value ready to
// be passed as a function argument.
func toGoja(rt *goja.Runtime, v any) goja.Value {
	switch tv := v.(type) {
	case wire.Undefined:
		return goja.Undefined()
	case nil:
		return goja.Null()
	case wire.HandleRef:
		return rt.ToValue(tv)
	case *wire.Array:
		items := make([]any, len(tv.Items))
		for i, item := range tv.Items {
			items[i] = toGoja(rt, item)
		}
		return rt.ToValue(items)
	case *wire.Object:
		obj := rt.NewObject()
		for _, kv := range tv.Props {
			_ = obj.Set(kv.Key, toGoja(rt, kv.Value))
		}
		return obj
	default:
		return rt.ToValue(v)
	}
}
