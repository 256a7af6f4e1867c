package snapshot

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeKeepsKeyOrder(t *testing.T) {
	n, err := Decode([]byte(`{"zeta":1,"alpha":{"b":true,"a":"x"},"mid":null}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, n.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b", "a"}, n.Child("alpha").Keys()); diff != "" {
		t.Errorf("nested keys mismatch (-want +got):\n%s", diff)
	}
	if !n.Has("mid") || !n.Child("mid").IsNull() {
		t.Errorf("mid should be present and null")
	}
	if s, ok := n.Get("alpha", "a").Text(); !ok || s != "x" {
		t.Errorf("alpha.a = %q, %v", s, ok)
	}
}

func TestDecodeEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		kind    Kind
		wantErr bool
	}{
		{"empty", "", KindNull, false},
		{"whitespace", "  \n", KindNull, false},
		{"null", "null", KindNull, false},
		{"string", `"hi"`, KindString, false},
		{"number", "17", KindNumber, false},
		{"array becomes object", `[1,2]`, KindObject, false},
		{"trailing data", `{} {}`, KindNull, true},
		{"truncated", `{"a":`, KindNull, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Decode([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && n.Kind() != tt.kind {
				t.Errorf("kind = %v, want %v", n.Kind(), tt.kind)
			}
		})
	}
}

func TestInt64(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"1700000000000", 1700000000000, true},
		{"1.7e12", 1700000000000, true},
		{"5.0", 5, true},
		{"5.5", 0, false},
		{"9223372036854775807", math.MaxInt64, true},
		{"-9223372036854775808", math.MinInt64, true},
		{"9223372036854775808", 0, false},
		{"9.223372036854775808e18", 0, false},
		{"1e19", 0, false},
		{`"5"`, 0, false},
		{"true", 0, false},
	}
	for _, tt := range tests {
		n, err := Decode([]byte(tt.in))
		if err != nil {
			t.Fatalf("Decode(%s): %v", tt.in, err)
		}
		got, ok := n.Int64()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Int64(%s) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMarshalRoundTripPreservesOrder(t *testing.T) {
	in := `{"k3":{"timestamp":3,"violence":true},"k1":{"weapon":"knife"},"k2":[1,"a"]}`
	n, err := Decode([]byte(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out, err := n.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"k3":{"timestamp":3,"violence":true},"k1":{"weapon":"knife"},"k2":{"0":1,"1":"a"}}`
	if string(out) != want {
		t.Errorf("got %s\nwant %s", out, want)
	}
}

func TestCopyOnWrite(t *testing.T) {
	base := Object(Field("a", Int(1)), Field("b", Int(2)))

	pushed := base.Prepend("c", Int(3))
	if diff := cmp.Diff([]string{"c", "a", "b"}, pushed.Keys()); diff != "" {
		t.Errorf("Prepend keys (-want +got):\n%s", diff)
	}

	replaced := base.With("a", Str("x"))
	if diff := cmp.Diff([]string{"a", "b"}, replaced.Keys()); diff != "" {
		t.Errorf("With keys (-want +got):\n%s", diff)
	}
	if s, _ := replaced.Child("a").Text(); s != "x" {
		t.Errorf("With did not replace value")
	}

	removed := base.Without("a")
	if diff := cmp.Diff([]string{"b"}, removed.Keys()); diff != "" {
		t.Errorf("Without keys (-want +got):\n%s", diff)
	}

	if !base.Equal(Object(Field("a", Int(1)), Field("b", Int(2)))) {
		t.Errorf("base was mutated: %s", mustJSON(t, base))
	}
}

func TestNilNodeIsNull(t *testing.T) {
	var n *Node
	if !n.IsNull() || n.IsObject() || n.Len() != 0 || n.Keys() != nil || n.Child("x") != nil {
		t.Fatal("nil node should behave as null")
	}
	if _, ok := n.Text(); ok {
		t.Error("nil node has no text")
	}
	b, _ := n.MarshalJSON()
	if string(b) != "null" {
		t.Errorf("nil marshals to %s", b)
	}
}

func mustJSON(t *testing.T, n *Node) string {
	t.Helper()
	b, err := n.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
