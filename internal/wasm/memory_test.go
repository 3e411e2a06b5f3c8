// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wasm

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
)

func TestReadCStrAndWriteMemRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.NewHostModuleBuilder("memtest").ExportMemoryWithMax("memory", 1, 2).Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	mem := mod.Memory()

	payload := append([]byte("hello world"), 0)
	if err := writeMem(mem, 100, payload); err != nil {
		t.Fatalf("writeMem: %v", err)
	}
	got, err := readCStr(mem, 100)
	if err != nil {
		t.Fatalf("readCStr: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
}

func TestWriteMemGrowsMemoryWhenNeeded(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.NewHostModuleBuilder("memtest").ExportMemoryWithMax("memory", 1, 4).Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	mem := mod.Memory()

	before := mem.Size()
	addr := int32(before) + 10 // past current single page
	if err := writeMem(mem, addr, []byte{1, 2, 3, 0}); err != nil {
		t.Fatalf("writeMem: %v", err)
	}
	if mem.Size() <= before {
		t.Fatalf("expected memory to grow past %d, got %d", before, mem.Size())
	}
}

func TestReadCStrMissingTerminatorErrors(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.NewHostModuleBuilder("memtest").ExportMemory("memory", 1).Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	mem := mod.Memory()

	tailAddr := mem.Size() - 3
	if !mem.Write(tailAddr, []byte{1, 2, 3}) {
		t.Fatal("seeding memory failed")
	}
	if _, err := readCStr(mem, uint32ToInt32(tailAddr)); err == nil {
		t.Fatal("expected error for missing NUL terminator")
	}
}

func uint32ToInt32(v uint32) int32 { return int32(v) }
