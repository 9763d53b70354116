// Package wire implements the remote-value serializer: a tagged JSON tree
// that transfers values, including cyclic graphs, platform objects, and
// opaque handle references, between the host and the in-browser runtime.
package wire

import "encoding/json"

// Sentinel names the five "sentinel" numerics/undefines that don't survive
// plain JSON encoding.
type Sentinel string

const (
	SentinelUndefined       Sentinel = "undefined"
	SentinelNaN             Sentinel = "NaN"
	SentinelPositiveInf     Sentinel = "Infinity"
	SentinelNegativeInf     Sentinel = "-Infinity"
	SentinelNegativeZero    Sentinel = "-0"
)

// Node is one position in a serialized value tree. Exactly one of the
// discriminator fields is populated, except for back-references, which
// carry only Index.
//
// Node positions are assigned in depth-first pre-order starting at 0; a
// value is emitted at most once per message, subsequent occurrences become
// back-references ({"i": <index>}).
type Node struct {
	Index int `json:"i"`

	// Primitive holds a finite number, boolean, string, or null (tag "n").
	Primitive    *json.RawMessage `json:"n,omitempty"`
	SentinelTag  Sentinel         `json:"v,omitempty"`
	BigInt       string           `json:"b,omitempty"`
	URL          string           `json:"u,omitempty"`
	Date         string           `json:"d,omitempty"`
	Regexp       *RegexpNode      `json:"r,omitempty"`
	Handle       *int             `json:"h,omitempty"`
	Error        *ErrorNode       `json:"e,omitempty"`
	Array        []Node           `json:"a,omitempty"`
	Object       []Property       `json:"o,omitempty"`

	// isRef marks this Node as a bare back-reference ({"i": N} with no
	// other field set). It is unexported, so encoding/json never writes it;
	// a back-reference marshals as {"i": N} because every other field is
	// omitempty.
	isRef bool
}

// RegexpNode is the "r" discriminator payload.
type RegexpNode struct {
	Source string `json:"p"`
	Flags  string `json:"f"`
}

// ErrorNode is the "e" discriminator payload. Cause is present (possibly as
// the undefined sentinel) whenever the source error has a `cause` property
// at all, per the round-trip invariant in §3/§4.1.
type ErrorNode struct {
	Name    string `json:"n"`
	Message string `json:"m"`
	Cause   *Node  `json:"c,omitempty"`
	Stack   string `json:"s,omitempty"`
}

// Property is one key/value pair of an "o" node, in insertion order.
type Property struct {
	Key   string `json:"k"`
	Value Node   `json:"v"`
}

// backref builds a bare back-reference node.
func backref(index int) Node {
	return Node{Index: index, isRef: true}
}

// IsBackref reports whether n only carries a position, referring back to an
// earlier occurrence of the same value in this message.
func (n Node) IsBackref() bool {
	return n.isRef
}

// nodeAlias avoids infinite recursion into Node's own UnmarshalJSON.
type nodeAlias Node

// UnmarshalJSON detects the no-discriminator case (a bare back-reference)
// and records it on isRef, since encoding/json can't distinguish "the
// field was absent" from "the field held its zero value" without a manual
// presence check.
func (n *Node) UnmarshalJSON(data []byte) error {
	var alias nodeAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return err
	}
	*n = Node(alias)
	if raw, ok := present["n"]; ok && n.Primitive == nil {
		rm := json.RawMessage(raw)
		n.Primitive = &rm
	}
	delete(present, "i")
	n.isRef = len(present) == 0
	return nil
}
