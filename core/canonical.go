package core

import (
	"encoding/binary"
	"sort"
)

// maxCanonicalLen bounds any single length-prefixed field during decoding.
// The decoder rejects anything larger as a defence against corrupt or
// adversarial input; it is not a domain limit.
const maxCanonicalLen = 64 << 20 // 64MiB

// Variant tags for the canonical encoding. Each sum-type payload is preceded
// by exactly one of these bytes; unknown tags are a decode error, and
// decoding never panics on malformed input.
type variantTag byte

const (
	tagNil variantTag = iota
	tagBool
	tagNumber
	tagString
	tagList
	tagMap
	tagRecord
	tagRef
	tagLambda
)

// CanonicalEncoder builds a deterministic, length-prefixed byte stream.
// Integers are little-endian; every length prefix is a u32; every sum-type
// payload is preceded by a single variant-tag byte. Maps and sets are always
// written in sorted key order so that encoding is independent of iteration
// order.
type CanonicalEncoder struct {
	buf []byte
}

// NewCanonicalEncoder returns an empty encoder.
func NewCanonicalEncoder() *CanonicalEncoder {
	return &CanonicalEncoder{buf: make([]byte, 0, 64)}
}

// Bytes returns the accumulated encoding.
func (e *CanonicalEncoder) Bytes() []byte { return e.buf }

// Tag writes a single variant tag byte.
func (e *CanonicalEncoder) Tag(t variantTag) { e.buf = append(e.buf, byte(t)) }

// U8 writes a single byte.
func (e *CanonicalEncoder) U8(b byte) { e.buf = append(e.buf, b) }

// U32 writes a little-endian uint32.
func (e *CanonicalEncoder) U32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// I64 writes a little-endian int64, the representation used for Number
// literals.
func (e *CanonicalEncoder) I64(v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	e.buf = append(e.buf, tmp[:]...)
}

// Bytes32 writes exactly 32 raw bytes with no length prefix (used for
// EntityID fields, whose length is fixed by type).
func (e *CanonicalEncoder) Bytes32(b [32]byte) { e.buf = append(e.buf, b[:]...) }

// Bytes writes a u32 length prefix followed by the raw bytes.
func (e *CanonicalEncoder) Bytes(b []byte) {
	e.U32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// Str writes a length-prefixed UTF-8 string.
func (e *CanonicalEncoder) Str(s string) { e.Bytes([]byte(s)) }

// Bool writes a single-byte boolean.
func (e *CanonicalEncoder) Bool(b bool) {
	if b {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// SortedStrings returns a lexicographically sorted copy of keys, the
// canonical order for encoding any set/map of string keys. It writes
// nothing itself; callers encode the length and each string.
func SortedStrings(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	return out
}

// CanonicalDecoder consumes a canonical byte stream produced by
// CanonicalEncoder. Every read method returns an error rather than panicking
// on truncated or oversize input; decoding is total.
type CanonicalDecoder struct {
	buf []byte
	pos int
}

// NewCanonicalDecoder wraps buf for sequential decoding.
func NewCanonicalDecoder(buf []byte) *CanonicalDecoder {
	return &CanonicalDecoder{buf: buf}
}

// Remaining reports how many bytes are left to read.
func (d *CanonicalDecoder) Remaining() int { return len(d.buf) - d.pos }

func (d *CanonicalDecoder) need(n int) error {
	if n < 0 || d.pos+n > len(d.buf) {
		return NewError(ErrSerialization, "truncated canonical encoding: need %d bytes, have %d", n, d.Remaining())
	}
	return nil
}

// Tag reads a single variant tag byte.
func (d *CanonicalDecoder) Tag() (variantTag, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	t := variantTag(d.buf[d.pos])
	d.pos++
	if t > tagLambda {
		return 0, NewError(ErrSerialization, "unknown variant tag %d", t)
	}
	return t, nil
}

// U8 reads a single byte.
func (d *CanonicalDecoder) U8() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// U32 reads a little-endian uint32.
func (d *CanonicalDecoder) U32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

// I64 reads a little-endian int64.
func (d *CanonicalDecoder) I64() (int64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return int64(v), nil
}

// Bytes32 reads exactly 32 raw bytes.
func (d *CanonicalDecoder) Bytes32() ([32]byte, error) {
	var out [32]byte
	if err := d.need(32); err != nil {
		return out, err
	}
	copy(out[:], d.buf[d.pos:d.pos+32])
	d.pos += 32
	return out, nil
}

// Bytes reads a u32-length-prefixed byte slice, rejecting oversize lengths.
func (d *CanonicalDecoder) Bytes() ([]byte, error) {
	n, err := d.U32()
	if err != nil {
		return nil, err
	}
	if n > maxCanonicalLen {
		return nil, NewError(ErrSerialization, "canonical length %d exceeds maximum %d", n, maxCanonicalLen)
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return out, nil
}

// Str reads a length-prefixed UTF-8 string.
func (d *CanonicalDecoder) Str() (string, error) {
	b, err := d.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bool reads a single-byte boolean.
func (d *CanonicalDecoder) Bool() (bool, error) {
	b, err := d.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, NewError(ErrSerialization, "invalid boolean byte %d", b)
	}
}

// ExpectEnd returns an error if any bytes remain unconsumed. Canonical
// decoders call this at the top level so that trailing garbage is rejected
// rather than silently ignored.
func (d *CanonicalDecoder) ExpectEnd() error {
	if d.Remaining() != 0 {
		return NewError(ErrSerialization, "%d trailing bytes after canonical decode", d.Remaining())
	}
	return nil
}

// CanonicalEncode is implemented by every type whose EntityID is derived
// from its own canonical byte form (C1+C2).
type CanonicalEncode interface {
	EncodeCanonical(e *CanonicalEncoder)
}

// EncodeToBytes runs x's canonical encoding to completion and returns the
// resulting byte slice.
func EncodeToBytes(x CanonicalEncode) []byte {
	e := NewCanonicalEncoder()
	x.EncodeCanonical(e)
	return e.Bytes()
}

// ContentID computes the EntityID of x under the default hash algorithm by
// hashing its canonical encoding. encode(x) == encode(y) for structurally
// equal x, y (they are built from the same deterministic sequence of writes),
// so ContentID(x) == ContentID(y) follows directly.
func ContentID(x CanonicalEncode) EntityID {
	return HashValue(EncodeToBytes(x))
}
