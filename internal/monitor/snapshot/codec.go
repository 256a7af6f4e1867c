package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Decode parses JSON into a Node, keeping object keys in document order.
// Arrays become objects keyed "0", "1", ... which is how the realtime store represents them.
// Empty or whitespace-only input decodes to null.
func Decode(data []byte) (*Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("snapshot: trailing data after top-level value")
	}
	return n, nil
}

func decodeValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	switch v := tok.(type) {
	case nil:
		return nil, nil
	case string:
		return Str(v), nil
	case json.Number:
		return Num(v), nil
	case bool:
		return Bool(v), nil
	case json.Delim:
		switch v {
		case '{':
			obj := Object()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("snapshot: %w", err)
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("snapshot: object key is %T", kt)
				}
				child, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.set(key, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("snapshot: %w", err)
			}
			return obj, nil
		case '[':
			obj := Object()
			for i := 0; dec.More(); i++ {
				child, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.set(strconv.Itoa(i), child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("snapshot: %w", err)
			}
			return obj, nil
		}
	}
	return nil, fmt.Errorf("snapshot: unexpected token %v", tok)
}

// MarshalJSON writes the node with object keys in store order.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	switch n.Kind() {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(n.b))
	case KindNumber:
		buf.WriteString(n.num.String())
	case KindString:
		b, err := json.Marshal(n.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindObject:
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := n.children[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON lets a Node be embedded in larger JSON documents.
func (n *Node) UnmarshalJSON(data []byte) error {
	d, err := Decode(data)
	if err != nil {
		return err
	}
	if d == nil {
		*n = Node{}
		return nil
	}
	*n = *d
	return nil
}
