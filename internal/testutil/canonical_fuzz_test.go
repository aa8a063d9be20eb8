package testutil

import (
	"testing"

	"causality/core"
)

// FuzzCanonicalStringRoundTrip exercises the round-trip property of §8:
// decode(encode(v)) == v, narrowed to string-valued Values since the fuzzer
// only knows how to mutate a single string seed.
func FuzzCanonicalStringRoundTrip(f *testing.F) {
	for _, seed := range []string{"", "a", "hello world", "\x00\x01\xff", "unicode: é中"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		v := core.StringValue(s)
		enc := core.NewCanonicalEncoder()
		v.EncodeCanonical(enc)

		dec := core.NewCanonicalDecoder(enc.Bytes())
		got, err := core.DecodeValue(dec)
		if err != nil {
			t.Fatalf("decode failed for %q: %v", s, err)
		}
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch: encoded %q, decoded %+v", s, got)
		}
	})
}
