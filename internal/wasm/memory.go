// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wasm

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// readCStr reads from addr forward to the first zero byte (exclusive) in
// mem, failing if addr is out of bounds or no terminator is found.
func readCStr(mem api.Memory, addr int32) ([]byte, error) {
	size := mem.Size()
	if uint32(addr) >= size {
		return nil, fmt.Errorf("wasm: address %d out of bounds (memory size %d)", addr, size)
	}
	for end := uint32(addr); end < size; end++ {
		b, ok := mem.ReadByte(end)
		if !ok {
			return nil, fmt.Errorf("wasm: address %d out of bounds", end)
		}
		if b == 0 {
			out, ok := mem.Read(uint32(addr), end-uint32(addr))
			if !ok {
				return nil, fmt.Errorf("wasm: failed reading [%d, %d)", addr, end)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("wasm: no NUL terminator found starting at %d", addr)
}

// writeMem writes data into mem starting at addr, growing the backing
// memory first if [addr, addr+len(data)) would otherwise run past its
// current size.
func writeMem(mem api.Memory, addr int32, data []byte) error {
	need := uint32(addr) + uint32(len(data))
	if need > mem.Size() {
		if _, ok := growMem(mem, need); !ok {
			return fmt.Errorf("wasm: failed to grow memory to cover [%d, %d)", addr, need)
		}
	}
	if !mem.Write(uint32(addr), data) {
		return fmt.Errorf("wasm: write [%d, %d) out of bounds", addr, need)
	}
	return nil
}

// growMem grows mem by however many pages are needed to reach at least
// byteSize total bytes, returning the previous page count.
func growMem(mem api.Memory, byteSize uint32) (uint32, bool) {
	have := Pages(mem.Size())
	want := Pages(byteSize)
	if want <= have {
		return mem.Grow(0)
	}
	return mem.Grow(want - have)
}
