package wire

import (
	"math/big"
	"net/url"
	"time"
)

// Undefined is the Go stand-in for JS `undefined` (and for symbols, which
// serialize as undefined per §3).
type Undefined struct{}

// BigInt is the Go stand-in for a JS BigInt.
type BigInt struct {
	*big.Int
}

// URLValue is the Go stand-in for a JS URL object. It's a distinct type
// (rather than *url.URL directly) so callers can hold both a parsed and an
// original string form; Parsed may be nil if the URL failed to parse but
// was still tagged as a URL by its source realm.
type URLValue struct {
	Raw    string
	Parsed *url.URL
}

// DateValue is the Go stand-in for a JS Date.
type DateValue struct {
	Time time.Time
}

// RegexpValue is the Go stand-in for a JS RegExp.
type RegexpValue struct {
	Source string
	Flags  string
}

// HandleRef is a reference to a host-side object at the given target-vector
// id. It appears both as an input (an argument being passed a handle) and
// an output (a property/evaluate result registered as a handle).
type HandleRef struct {
	ID int
}

// ErrorValue is the Go stand-in for a JS Error (or subclass), including
// AggregateError-style causes.
type ErrorValue struct {
	Name    string
	Message string
	Stack   string

	// HasCause distinguishes "no cause property" from "cause is present
	// but undefined"; when true, Cause holds the (possibly Undefined{})
	// value.
	HasCause bool
	Cause    any
}

// Array is an ordered sequence of values. It's always handled through a
// pointer so that two array values retain distinct identity for the
// serializer's back-reference/cycle detection, matching JS reference
// semantics.
type Array struct {
	Items []any
}

// KV is one property of an Object, in insertion order.
type KV struct {
	Key   string
	Value any
}

// Object is an ordered set of string-keyed properties, standing in for a
// plain JS object. Always handled through a pointer for identity, as Array.
type Object struct {
	Props []KV
}

// Func marks a value as an unencodable JS function. It carries no payload;
// its only purpose is to be recognized and rejected (or replaced by a
// fallback) by Serialize.
type Func struct{}
