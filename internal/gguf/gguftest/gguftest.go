// Package gguftest builds minimal in-memory GGUF v3 files for tests.
package gguftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

const alignment = 32

type KV struct {
	Key   string
	Value interface{}
}

type Tensor struct {
	Name string
	Dims []uint64 // ne order: contiguous dimension first
	Type uint32
	Data []byte
}

// F32Data encodes float32 values little-endian.
func F32Data(vals []float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// Encode serializes a GGUF v3 file with the given metadata and tensors.
func Encode(kvs []KV, tensors []Tensor) []byte {
	var buf bytes.Buffer

	writeU32 := func(v uint32) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	writeU64 := func(v uint64) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	writeStr := func(s string) {
		writeU64(uint64(len(s)))
		buf.WriteString(s)
	}

	writeU32(0x46554747) // magic
	writeU32(3)          // version
	writeU64(uint64(len(tensors)))
	writeU64(uint64(len(kvs)))

	for _, kv := range kvs {
		writeStr(kv.Key)
		switch v := kv.Value.(type) {
		case string:
			writeU32(8)
			writeStr(v)
		case uint32:
			writeU32(4)
			writeU32(v)
		case int32:
			writeU32(5)
			writeU32(uint32(v))
		case float32:
			writeU32(6)
			writeU32(math.Float32bits(v))
		case bool:
			writeU32(7)
			if v {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		case uint64:
			writeU32(10)
			writeU64(v)
		default:
			panic(fmt.Sprintf("gguftest: unsupported kv type %T", v))
		}
	}

	// Tensor infos with 32-aligned offsets into the data section.
	offset := uint64(0)
	for _, t := range tensors {
		writeStr(t.Name)
		writeU32(uint32(len(t.Dims)))
		for _, d := range t.Dims {
			writeU64(d)
		}
		writeU32(t.Type)
		writeU64(offset)
		offset += uint64(len(t.Data))
		if rem := offset % alignment; rem != 0 {
			offset += alignment - rem
		}
	}

	// Pad to the aligned data section start, then emit tensor data.
	for buf.Len()%alignment != 0 {
		buf.WriteByte(0)
	}
	for _, t := range tensors {
		buf.Write(t.Data)
		for buf.Len()%alignment != 0 {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// WriteFile encodes and writes the file to path.
func WriteFile(path string, kvs []KV, tensors []Tensor) error {
	return os.WriteFile(path, Encode(kvs, tensors), 0o644)
}
