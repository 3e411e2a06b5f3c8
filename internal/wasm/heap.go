// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wasm

import (
	"runtime"

	"github.com/sirupsen/logrus"
)

// Heap is a scoped handle over a single guest allocation obtained through
// opa_malloc. It must be passed to opa_free before it goes out of scope;
// forgetting to do so is logged as a defect rather than treated as fatal.
type Heap struct {
	ptr   int32
	len   int32
	freed bool
}

func newHeap(ptr, length int32) *Heap {
	h := &Heap{ptr: ptr, len: length}
	runtime.SetFinalizer(h, func(h *Heap) {
		if !h.freed {
			logrus.WithFields(logrus.Fields{
				"ptr": h.ptr,
				"len": h.len,
			}).Warn("wasm: heap allocation dropped without being freed")
		}
	})
	return h
}

// Ptr is the guest address of the allocation.
func (h *Heap) Ptr() int32 { return h.ptr }

// Len is the size, in bytes, of the allocation.
func (h *Heap) Len() int32 { return h.len }

// End returns ptr+len, the first address past the allocation.
func (h *Heap) End() int32 { return h.ptr + h.len }

// Pages returns the number of 64 KiB pages needed to cover [0, End()).
func (h *Heap) Pages() uint32 {
	if h.End() <= 0 {
		return 0
	}
	return Pages(uint32(h.End()))
}

// markFreed records that the guest's free routine has run for this
// allocation. It does not itself call opa_free -- callers do that and then
// mark the handle, mirroring the original source's explicit drop(heap)
// after the free call completes.
func (h *Heap) markFreed() {
	h.freed = true
	runtime.SetFinalizer(h, nil)
}
