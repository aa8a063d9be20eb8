package core

import "testing"

func TestCanonicalEncodeDecodeRoundTrip(t *testing.T) {
	values := []Value{
		NilValue(),
		BoolValue(true),
		NumberValue(-42),
		StringValue("hello"),
		ListValue([]Value{NumberValue(1), NumberValue(2), StringValue("x")}),
		MapValue(map[string]Value{"b": NumberValue(2), "a": NumberValue(1)}),
		RecordValue(map[string]Value{"name": StringValue("Alice")}),
		RefValue(HashValue([]byte("ref-target"))),
		LambdaVal([]string{"x", "y"}, HashValue([]byte("body")), map[string]Value{"z": NumberValue(3)}),
	}
	for _, v := range values {
		enc := NewCanonicalEncoder()
		v.EncodeCanonical(enc)
		dec := NewCanonicalDecoder(enc.Bytes())
		got, err := DecodeValue(dec)
		if err != nil {
			t.Fatalf("decode error for %+v: %v", v, err)
		}
		if err := dec.ExpectEnd(); err != nil {
			t.Fatalf("trailing bytes after decode of %+v: %v", v, err)
		}
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch: encoded %+v, decoded %+v", v, got)
		}
	}
}

func TestCanonicalDecodeRejectsUnknownTag(t *testing.T) {
	dec := NewCanonicalDecoder([]byte{0xff})
	if _, err := DecodeValue(dec); err == nil || !IsKind(err, ErrSerialization) {
		t.Fatalf("expected ErrSerialization for unknown tag, got %v", err)
	}
}

func TestCanonicalDecodeRejectsTruncatedInput(t *testing.T) {
	enc := NewCanonicalEncoder()
	StringValue("truncate-me").EncodeCanonical(enc)
	truncated := enc.Bytes()[:len(enc.Bytes())-2]
	dec := NewCanonicalDecoder(truncated)
	if _, err := DecodeValue(dec); err == nil {
		t.Fatal("expected an error decoding truncated input, got nil")
	}
}

func TestCanonicalMapAndRecordOrderIndependent(t *testing.T) {
	a := MapValue(map[string]Value{"z": NumberValue(1), "a": NumberValue(2)})
	b := MapValue(map[string]Value{"a": NumberValue(2), "z": NumberValue(1)})
	if !a.Equal(b) {
		t.Fatal("expected map encoding to be independent of Go map iteration order")
	}
}

func TestContentIDDeterministicAndSensitive(t *testing.T) {
	v1 := RecordValue(map[string]Value{"name": StringValue("Alice"), "age": NumberValue(30)})
	v2 := RecordValue(map[string]Value{"name": StringValue("Alice"), "age": NumberValue(30)})
	if ContentID(v1) != ContentID(v2) {
		t.Fatal("expected identical content to hash identically")
	}
	v3 := RecordValue(map[string]Value{"name": StringValue("Alice"), "age": NumberValue(31)})
	if ContentID(v1) == ContentID(v3) {
		t.Fatal("expected differing content to hash differently")
	}
}

func TestHashAlgorithmsDiffer(t *testing.T) {
	data := []byte("same input, different algorithm")
	b3 := Hash(HashBLAKE3, data)
	sha := Hash(HashSHA256, data)
	if b3 == sha {
		t.Fatal("expected BLAKE3 and SHA-256 digests to differ")
	}
	if Hash(HashBLAKE3, data) != b3 {
		t.Fatal("expected Hash to be a pure function of its input")
	}
}
