package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// appendULEB128 appends v to dst as unsigned LEB128.
func appendULEB128(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// valType returns the binary encoding of a wazero value type. Unknown
// types encode as i32.
func valType(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	}
	return 0x7f
}

func appendName(dst []byte, name string) []byte {
	dst = appendULEB128(dst, uint32(len(name)))
	return append(dst, name...)
}

func appendSection(dst []byte, id byte, body []byte) []byte {
	dst = append(dst, id)
	dst = appendULEB128(dst, uint32(len(body)))
	return append(dst, body...)
}
