package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Serializer accumulates the values visited so far in a single message, so
// that repeated or cyclic references become back-references instead of
// being re-emitted (§3, §4.1).
type Serializer struct {
	visited     []any
	fallback    any
	hasFallback bool
}

// Serialize encodes value into a Node tree. Encountering a Func anywhere in
// the tree fails the whole call (§7 "Unencodable value").
func Serialize(value any) (Node, error) {
	s := &Serializer{}
	return s.encode(value)
}

// SerializeWithFallback behaves like Serialize, but replaces any
// unencodable value with fallback instead of failing. fallback must itself
// be encodable, or the call fails immediately — a fallback of a function is
// still a function (§7, §8).
func SerializeWithFallback(value any, fallback any) (Node, error) {
	if _, err := Serialize(fallback); err != nil {
		return Node{}, fmt.Errorf("fallback value is not serializable: %w", err)
	}
	s := &Serializer{fallback: fallback, hasFallback: true}
	return s.encode(value)
}

func (s *Serializer) encode(value any) (Node, error) {
	if i, ok := value.(int); ok {
		value = float64(i)
	}

	if idx, ok := s.find(value); ok {
		return backref(idx), nil
	}

	switch v := value.(type) {
	case nil:
		return s.record(value, primitiveNode(nil))
	case bool:
		return s.record(value, primitiveNode(v))
	case string:
		return s.record(value, primitiveNode(v))
	case float64:
		return s.encodeFloat(value, v)
	case Undefined:
		return s.record(value, sentinelNode(SentinelUndefined))
	case BigInt:
		return s.record(value, Node{BigInt: v.String()})
	case URLValue:
		return s.record(value, Node{URL: v.Raw})
	case DateValue:
		return s.record(value, Node{Date: v.Time.UTC().Format("2006-01-02T15:04:05.000Z")})
	case RegexpValue:
		return s.record(value, Node{Regexp: &RegexpNode{Source: v.Source, Flags: v.Flags}})
	case HandleRef:
		id := v.ID
		return s.record(value, Node{Handle: &id})
	case *ErrorValue:
		return s.encodeError(value, v)
	case *Array:
		return s.encodeArray(value, v)
	case *Object:
		return s.encodeObject(value, v)
	case Func:
		return s.encodeFunc()
	default:
		return Node{}, fmt.Errorf("unexpected value of type %T", value)
	}
}

func (s *Serializer) encodeFloat(identity any, f float64) (Node, error) {
	switch {
	case math.IsNaN(f):
		return s.record(identity, sentinelNode(SentinelNaN))
	case math.IsInf(f, 1):
		return s.record(identity, sentinelNode(SentinelPositiveInf))
	case math.IsInf(f, -1):
		return s.record(identity, sentinelNode(SentinelNegativeInf))
	case f == 0 && math.Signbit(f):
		return s.record(identity, sentinelNode(SentinelNegativeZero))
	default:
		return s.record(identity, primitiveNode(f))
	}
}

func (s *Serializer) encodeError(identity any, v *ErrorValue) (Node, error) {
	idx := s.reserve(identity)
	en := &ErrorNode{Name: v.Name, Message: v.Message, Stack: v.Stack}
	if v.HasCause {
		cause := v.Cause
		if cause == nil {
			cause = Undefined{}
		}
		cn, err := s.encode(cause)
		if err != nil {
			return Node{}, fmt.Errorf("serializing error cause: %w", err)
		}
		en.Cause = &cn
	}
	return Node{Index: idx, Error: en}, nil
}

func (s *Serializer) encodeArray(identity any, v *Array) (Node, error) {
	idx := s.reserve(identity)
	items := make([]Node, len(v.Items))
	for i, item := range v.Items {
		n, err := s.encode(item)
		if err != nil {
			return Node{}, fmt.Errorf("serializing array element %d: %w", i, err)
		}
		items[i] = n
	}
	if items == nil {
		items = []Node{}
	}
	return Node{Index: idx, Array: items}, nil
}

func (s *Serializer) encodeObject(identity any, v *Object) (Node, error) {
	idx := s.reserve(identity)
	props := make([]Property, len(v.Props))
	for i, kv := range v.Props {
		n, err := s.encode(kv.Value)
		if err != nil {
			return Node{}, fmt.Errorf("serializing property %q: %w", kv.Key, err)
		}
		props[i] = Property{Key: kv.Key, Value: n}
	}
	if props == nil {
		props = []Property{}
	}
	return Node{Index: idx, Object: props}, nil
}

func (s *Serializer) encodeFunc() (Node, error) {
	if s.hasFallback {
		return s.encode(s.fallback)
	}
	return Node{}, errors.New("Unexpected value: function is not serializable")
}

func (s *Serializer) reserve(identity any) int {
	idx := len(s.visited)
	s.visited = append(s.visited, identity)
	return idx
}

func (s *Serializer) record(identity any, n Node) (Node, error) {
	n.Index = s.reserve(identity)
	return n, nil
}

func (s *Serializer) find(v any) (int, bool) {
	for i, existing := range s.visited {
		if sameValue(existing, v) {
			return i, true
		}
	}
	return -1, false
}

// sameValue implements the SameValue comparison used for §3's identity
// tracking: NaN equals NaN, but -0 is distinct from +0. Every concrete type this
// package puts into the visited list is comparable, so a bare == is safe
// for everything that isn't a float64.
func sameValue(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		if math.IsNaN(af) && math.IsNaN(bf) {
			return true
		}
		if af == 0 && bf == 0 {
			return math.Signbit(af) == math.Signbit(bf)
		}
		return af == bf
	}
	return a == b
}

func primitiveNode(v any) Node {
	raw, err := json.Marshal(v)
	if err != nil {
		// v is always nil/bool/string/float64 here, which always marshal.
		panic(fmt.Sprintf("wire: marshaling primitive %#v: %v", v, err))
	}
	rm := json.RawMessage(raw)
	return Node{Primitive: &rm}
}

func sentinelNode(tag Sentinel) Node {
	return Node{SentinelTag: tag}
}
