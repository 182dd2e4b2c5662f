// Package leb128 provides the ULEB128 reader/writer shared by the Move
// bytecode table directory and its per-table records. The algorithm mirrors
// wasm.ReadLEB128u/WriteLEB128u; Move bytecode uses the same variable-length
// encoding for table sizes and handle indices.
package leb128

import (
	"bytes"
	"errors"
	"io"
)

// ErrOverflow is returned when a ULEB128 value exceeds 32 bits (ReadU32) or
// 64 bits (ReadU64).
var ErrOverflow = errors.New("leb128: overflow")

// ReadU32 reads an unsigned ULEB128 value.
func ReadU32(r io.ByteReader) (uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 35 {
			return 0, ErrOverflow
		}
	}
}

// ReadU64 reads an unsigned 64-bit ULEB128 value.
func ReadU64(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 70 {
			return 0, ErrOverflow
		}
	}
}

// WriteU32 writes an unsigned ULEB128 value.
func WriteU32(w *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// WriteU64 writes an unsigned 64-bit ULEB128 value.
func WriteU64(w *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if v == 0 {
			return
		}
	}
}
