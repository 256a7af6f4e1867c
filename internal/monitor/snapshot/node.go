// Package snapshot holds the untyped value tree delivered by a record store.
//
// Objects keep their keys in document order. The order in which a store lists push-keys is
// the only ordering guarantee the monitor relies on, so nothing in this package sorts keys.
package snapshot

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind identifies the type of a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindObject
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Node is an immutable value. The nil *Node is the null value and every method accepts it.
type Node struct {
	kind Kind

	keys     []string
	children map[string]*Node

	str string
	num json.Number
	b   bool
}

// Member is one key/value pair of an object under construction.
type Member struct {
	Key   string
	Value *Node
}

// Field is shorthand for Member{key, v}.
func Field(key string, v *Node) Member {
	return Member{Key: key, Value: v}
}

// Object builds an object node; later duplicates of a key replace the earlier value in place.
func Object(members ...Member) *Node {
	n := &Node{kind: KindObject, children: make(map[string]*Node, len(members))}
	for _, m := range members {
		n.set(m.Key, m.Value)
	}
	return n
}

// Str builds a string node.
func Str(s string) *Node { return &Node{kind: KindString, str: s} }

// Int builds an integral number node.
func Int(i int64) *Node { return &Node{kind: KindNumber, num: json.Number(strconv.FormatInt(i, 10))} }

// Num builds a number node from its JSON text.
func Num(n json.Number) *Node { return &Node{kind: KindNumber, num: n} }

// Bool builds a boolean node.
func Bool(b bool) *Node { return &Node{kind: KindBool, b: b} }

func (n *Node) set(key string, v *Node) {
	if _, ok := n.children[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.children[key] = v
}

// Kind returns the node type.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

func (n *Node) IsNull() bool   { return n.Kind() == KindNull }
func (n *Node) IsObject() bool { return n.Kind() == KindObject }

// Len returns the number of keys of an object and 0 for anything else.
func (n *Node) Len() int {
	if !n.IsObject() {
		return 0
	}
	return len(n.keys)
}

// Keys returns the object keys in store order.
func (n *Node) Keys() []string {
	if !n.IsObject() {
		return nil
	}
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// Has reports whether an object contains key, even when the value is null.
func (n *Node) Has(key string) bool {
	if !n.IsObject() {
		return false
	}
	_, ok := n.children[key]
	return ok
}

// Child returns the value under key, or nil.
func (n *Node) Child(key string) *Node {
	if !n.IsObject() {
		return nil
	}
	return n.children[key]
}

// Get walks a path of keys.
func (n *Node) Get(path ...string) *Node {
	cur := n
	for _, k := range path {
		cur = cur.Child(k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Range calls fn for each member in store order until fn returns false.
func (n *Node) Range(fn func(key string, v *Node) bool) {
	if !n.IsObject() {
		return
	}
	for _, k := range n.keys {
		if !fn(k, n.children[k]) {
			return
		}
	}
}

// Text returns the value of a string node.
func (n *Node) Text() (string, bool) {
	if n.Kind() != KindString {
		return "", false
	}
	return n.str, true
}

// Boolean returns the value of a bool node.
func (n *Node) Boolean() (bool, bool) {
	if n.Kind() != KindBool {
		return false, false
	}
	return n.b, true
}

// Int64 returns the value of an integral number node.
// Numbers written with an exponent or a zero fraction (1.7e12, 5.0) are accepted.
func (n *Node) Int64() (int64, bool) {
	if n.Kind() != KindNumber {
		return 0, false
	}
	if i, err := n.num.Int64(); err == nil {
		return i, true
	}
	f, err := n.num.Float64()
	if err != nil || f != math.Trunc(f) || f >= 1<<63 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// Number returns the raw JSON text of a number node.
func (n *Node) Number() (json.Number, bool) {
	if n.Kind() != KindNumber {
		return "", false
	}
	return n.num, true
}

// With returns a copy of an object with key set to v. A new key is appended;
// an existing key keeps its position. Non-object receivers are treated as empty objects.
func (n *Node) With(key string, v *Node) *Node {
	out := n.cloneObject(1)
	out.set(key, v)
	return out
}

// Prepend returns a copy of an object with key placed first.
func (n *Node) Prepend(key string, v *Node) *Node {
	out := Object(Field(key, v))
	n.Range(func(k string, c *Node) bool {
		if k != key {
			out.set(k, c)
		}
		return true
	})
	return out
}

// Without returns a copy of an object lacking key.
func (n *Node) Without(key string) *Node {
	out := Object()
	n.Range(func(k string, c *Node) bool {
		if k != key {
			out.set(k, c)
		}
		return true
	})
	return out
}

func (n *Node) cloneObject(extra int) *Node {
	out := &Node{kind: KindObject, children: make(map[string]*Node, n.Len()+extra)}
	n.Range(func(k string, c *Node) bool {
		out.set(k, c)
		return true
	})
	return out
}

// Equal reports deep equality, including key order.
func (n *Node) Equal(o *Node) bool {
	if n.Kind() != o.Kind() {
		return false
	}
	switch n.Kind() {
	case KindNull:
		return true
	case KindString:
		return n.str == o.str
	case KindBool:
		return n.b == o.b
	case KindNumber:
		return n.num == o.num
	}
	if len(n.keys) != len(o.keys) {
		return false
	}
	for i, k := range n.keys {
		if o.keys[i] != k || !n.children[k].Equal(o.children[k]) {
			return false
		}
	}
	return true
}

