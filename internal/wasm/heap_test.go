// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wasm

import "testing"

func TestHeapEndAndPages(t *testing.T) {
	h := newHeap(10, 20)
	if h.Ptr() != 10 || h.Len() != 20 {
		t.Fatalf("unexpected ptr/len: %d/%d", h.Ptr(), h.Len())
	}
	if h.End() != 30 {
		t.Fatalf("expected End()=30, got %d", h.End())
	}
	if h.Pages() != 1 {
		t.Fatalf("expected a single page to cover 30 bytes, got %d", h.Pages())
	}
}

func TestHeapPagesSpansMultiplePages(t *testing.T) {
	h := newHeap(0, PageSize+1)
	if h.Pages() != 2 {
		t.Fatalf("expected 2 pages for %d bytes, got %d", PageSize+1, h.Pages())
	}
}

func TestHeapMarkFreedIsIdempotentToCall(t *testing.T) {
	h := newHeap(0, 8)
	h.markFreed()
	if !h.freed {
		t.Fatal("expected freed to be true after markFreed")
	}
	h.markFreed()
}

func TestPagesRoundsUp(t *testing.T) {
	if Pages(0) != 0 {
		t.Fatalf("expected 0 pages for 0 bytes, got %d", Pages(0))
	}
	if Pages(1) != 1 {
		t.Fatalf("expected 1 page for 1 byte, got %d", Pages(1))
	}
	if Pages(PageSize) != 1 {
		t.Fatalf("expected 1 page for exactly PageSize bytes, got %d", Pages(PageSize))
	}
	if Pages(PageSize+1) != 2 {
		t.Fatalf("expected 2 pages for PageSize+1 bytes, got %d", Pages(PageSize+1))
	}
}
