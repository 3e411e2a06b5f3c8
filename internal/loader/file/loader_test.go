// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package file

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
)

type recordingPolicyData struct {
	mu     sync.Mutex
	policy []byte
	data   interface{}
	calls  int
}

func (r *recordingPolicyData) SetPolicyData(_ context.Context, policy []byte, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = policy
	r.data = data
	r.calls++
	return nil
}

func (r *recordingPolicyData) snapshot() (int, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.policy
}

func writeTestBundle(t *testing.T, dir string, policy []byte, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, "bundle.tar.gz")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create bundle: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	if policy != nil {
		if err := tw.WriteHeader(&tar.Header{Name: "policy.wasm", Size: int64(len(policy)), Mode: 0o644}); err != nil {
			t.Fatalf("header: %v", err)
		}
		if _, err := tw.Write(policy); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if data != nil {
		if err := tw.WriteHeader(&tar.Header{Name: "data.json", Size: int64(len(data)), Mode: 0o644}); err != nil {
			t.Fatalf("header: %v", err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return p
}

func TestLoaderLoadsPolicyAndData(t *testing.T) {
	dir := t.TempDir()
	path := writeTestBundle(t, dir, []byte("\x00asm..."), []byte(`{"x":1}`))

	pd := &recordingPolicyData{}
	l, err := New(pd).WithFile(path).Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(pd.policy, []byte("\x00asm...")) {
		t.Fatalf("unexpected policy bytes: %q", pd.policy)
	}
	m, ok := pd.data.(map[string]interface{})
	if !ok || m["x"] != float64(1) {
		t.Fatalf("unexpected data: %#v", pd.data)
	}
}

func TestLoaderMissingPolicyIsInvalidBundle(t *testing.T) {
	dir := t.TempDir()
	path := writeTestBundle(t, dir, nil, []byte(`{}`))

	pd := &recordingPolicyData{}
	l, err := New(pd).WithFile(path).Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := l.Load(context.Background()); !errors.Is(err, ErrInvalidBundle) {
		t.Fatalf("expected ErrInvalidBundle, got %v", err)
	}
}

func TestLoaderInitRequiresFilename(t *testing.T) {
	if _, err := New(&recordingPolicyData{}).Init(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoaderStartAndClosePolls(t *testing.T) {
	defer leaktest.Check(t)()

	dir := t.TempDir()
	path := writeTestBundle(t, dir, []byte("\x00asm"), nil)

	pd := &recordingPolicyData{}
	l, err := New(pd).WithFile(path).WithInterval(10).WithWatch(false).Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Close()

	if calls, _ := pd.snapshot(); calls == 0 {
		t.Fatal("expected at least one load from Start")
	}
}

func TestLoaderReloadsOnFileWrite(t *testing.T) {
	defer leaktest.Check(t)()

	dir := t.TempDir()
	path := writeTestBundle(t, dir, []byte("\x00asm-v1"), nil)

	pd := &recordingPolicyData{}
	l, err := New(pd).WithFile(path).WithInterval(time.Hour).Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Close()

	initialCalls, _ := pd.snapshot()
	writeTestBundle(t, dir, []byte("\x00asm-v2"), nil)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if calls, policy := pd.snapshot(); calls > initialCalls && bytes.Equal(policy, []byte("\x00asm-v2")) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	calls, policy := pd.snapshot()
	t.Fatalf("expected a reload triggered by the file write within the deadline, got %d calls, policy %q", calls, policy)
}
