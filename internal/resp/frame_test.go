package resp

import (
	"bufio"
	"bytes"
	"testing"
)

func encode(t *testing.T, f Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := WriteTo(w, f); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	msgs := []Frame{
		Simple("OK"),
		Error("ERR something went wrong"),
		Integer(0),
		Integer(42),
		BulkString("hello"),
		BulkBytes([]byte{}),
		Null(),
		func() Frame {
			f := NewArray()
			f.PushBulk([]byte("subscribe"))
			f.PushBulk([]byte("chat"))
			f.PushInt(1)
			return f
		}(),
	}

	for _, want := range msgs {
		wire := encode(t, want)
		dec := NewDecoder()
		dec.Append(wire)
		got, ok, err := dec.Decode()
		if err != nil {
			t.Fatalf("Decode(%q): %v", wire, err)
		}
		if !ok {
			t.Fatalf("Decode(%q): not ok, want complete frame", wire)
		}
		if !got.Equal(want) {
			t.Errorf("Decode(%q) = %v, want %v", wire, got, want)
		}
		if dec.Buffered() != 0 {
			t.Errorf("Decode(%q) left %d bytes buffered", wire, dec.Buffered())
		}
	}
}

func TestDecodeIncompleteAtEverySplit(t *testing.T) {
	f := NewArray()
	f.PushBulk([]byte("set"))
	f.PushBulk([]byte("key"))
	f.PushBulk([]byte("value"))
	wire := encode(t, f)

	for i := 1; i < len(wire); i++ {
		dec := NewDecoder()
		dec.Append(wire[:i])
		_, ok, err := dec.Decode()
		if err != nil {
			t.Fatalf("split %d: unexpected error: %v", i, err)
		}
		if ok {
			t.Fatalf("split %d: got a complete frame from a partial buffer", i)
		}
	}

	dec := NewDecoder()
	dec.Append(wire)
	got, ok, err := dec.Decode()
	if err != nil || !ok {
		t.Fatalf("full buffer: Decode() = %v, %v, %v", got, ok, err)
	}
}

func TestDecodeInvalidFrame(t *testing.T) {
	cases := []string{
		"x\r\n",
		"$abc\r\nhi\r\n",
	}
	for _, wire := range cases {
		dec := NewDecoder()
		dec.Append([]byte(wire))
		_, ok, err := dec.Decode()
		if err == nil {
			t.Errorf("Decode(%q): expected a protocol error, got ok=%v err=nil", wire, ok)
		}
	}
}

func TestDecodeStreamsMultipleFrames(t *testing.T) {
	dec := NewDecoder()
	dec.Append(encode(t, Simple("OK")))
	dec.Append(encode(t, Integer(7)))

	first, ok, err := dec.Decode()
	if err != nil || !ok || first.Kind != KindSimple {
		t.Fatalf("first Decode() = %v, %v, %v", first, ok, err)
	}
	second, ok, err := dec.Decode()
	if err != nil || !ok || second.Kind != KindInteger || second.Int != 7 {
		t.Fatalf("second Decode() = %v, %v, %v", second, ok, err)
	}
}
