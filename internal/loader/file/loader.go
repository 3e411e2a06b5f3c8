// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package file loads an OPA bundle (gzipped tar, with a policy.wasm and
// optional data.json at its root) from the local filesystem, periodically
// reloading it until closed.
package file

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultInterval is how often a started Loader re-reads the bundle file.
const DefaultInterval = time.Minute

var (
	// ErrInvalidConfig is returned if the loader's configuration is invalid.
	ErrInvalidConfig = fmt.Errorf("invalid config")
	// ErrInvalidBundle is returned if the bundle cannot be opened or parsed.
	ErrInvalidBundle = fmt.Errorf("invalid bundle")
	// ErrNotReady is returned if the loader has not been initialized.
	ErrNotReady = fmt.Errorf("not ready")
)

// PolicyData receives the policy and data extracted from a loaded bundle.
type PolicyData interface {
	SetPolicyData(ctx context.Context, policy []byte, data interface{}) error
}

// Loader polls a local bundle file and pushes its contents to a PolicyData.
// It also watches the file for writes/renames via fsnotify, so edits are
// picked up promptly instead of waiting out the full poll interval -- the
// interval remains a backstop for filesystems or editors whose save pattern
// fsnotify misses (e.g. an atomic rename from outside the watched directory).
type Loader struct {
	configErr   error
	initialized bool
	pd          PolicyData
	filename    string
	interval    time.Duration
	watch       bool
	closing     chan struct{}
	closed      chan struct{}
	logError    func(error)
	mutex       sync.Mutex
}

// New constructs a Loader delivering bundle updates to pd.
func New(pd PolicyData) *Loader {
	return &Loader{
		pd:       pd,
		interval: DefaultInterval,
		watch:    true,
		logError: func(error) {},
	}
}

// WithWatch enables or disables fsnotify-based reload-on-write. Enabled by
// default; disable it on filesystems where fsnotify is unsupported (e.g.
// some network mounts) and rely solely on the poll interval.
func (l *Loader) WithWatch(watch bool) *Loader {
	l.watch = watch
	return l
}

// WithFile configures the bundle file path to load.
func (l *Loader) WithFile(filename string) *Loader {
	l.filename = filename
	return l
}

// WithInterval configures the reload interval used by Start.
func (l *Loader) WithInterval(interval time.Duration) *Loader {
	if interval <= 0 {
		l.configErr = fmt.Errorf("interval: %w", ErrInvalidConfig)
		return l
	}
	l.interval = interval
	return l
}

// WithErrorLogger configures a callback invoked with errors from the poller.
func (l *Loader) WithErrorLogger(logger func(error)) *Loader {
	l.logError = logger
	return l
}

// Init validates configuration after construction.
func (l *Loader) Init() (*Loader, error) {
	if l.configErr != nil {
		return nil, l.configErr
	}
	if l.filename == "" {
		return nil, fmt.Errorf("filename: %w", ErrInvalidConfig)
	}
	l.initialized = true
	return l, nil
}

// Start loads the bundle once and then begins polling at the configured
// interval, plus (if enabled) watching the file for writes, until Close is
// called.
func (l *Loader) Start(ctx context.Context) error {
	if !l.initialized {
		return ErrNotReady
	}
	if err := l.Load(ctx); err != nil {
		return err
	}

	var watcher *fsnotify.Watcher
	if l.watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			l.logError(fmt.Errorf("file watch disabled: %w", err))
		} else if err := w.Add(path.Dir(l.filename)); err != nil {
			l.logError(fmt.Errorf("file watch disabled: %w", err))
			_ = w.Close()
		} else {
			watcher = w
		}
	}

	l.closing = make(chan struct{})
	l.closed = make(chan struct{})
	go l.poller(watcher)
	return nil
}

// Close stops the poller, if running, and waits for it to exit.
func (l *Loader) Close() {
	if !l.initialized || l.closing == nil {
		return
	}
	close(l.closing)
	<-l.closed
	l.closing, l.closed = nil, nil
}

// Load reads the bundle file once and installs it via PolicyData.
func (l *Loader) Load(ctx context.Context) error {
	if !l.initialized {
		return ErrNotReady
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	f, err := os.Open(l.filename)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidBundle)
	}
	defer f.Close()

	policy, data, err := readBundle(f)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidBundle)
	}
	if policy == nil {
		return fmt.Errorf("missing policy.wasm: %w", ErrInvalidBundle)
	}

	return l.pd.SetPolicyData(ctx, policy, data)
}

// readBundle unwraps a gzipped tar stream, returning the bytes of the
// top-level policy.wasm entry and the parsed top-level data.json entry, if
// present.
func readBundle(r io.Reader) ([]byte, interface{}, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	var policy []byte
	var data interface{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading tar entry: %w", err)
		}

		switch path.Clean("/" + hdr.Name) {
		case "/policy.wasm":
			raw, err := io.ReadAll(tr)
			if err != nil {
				return nil, nil, fmt.Errorf("reading policy.wasm: %w", err)
			}
			policy = raw
		case "/data.json":
			if err := json.NewDecoder(tr).Decode(&data); err != nil {
				return nil, nil, fmt.Errorf("decoding data.json: %w", err)
			}
		}
	}
	return policy, data, nil
}

// poller reloads the bundle at the configured interval, or immediately on a
// relevant fsnotify event if watcher is non-nil, until closing is signalled.
func (l *Loader) poller(watcher *fsnotify.Watcher) {
	defer close(l.closed)
	if watcher != nil {
		defer watcher.Close()
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events, errs = watcher.Events, watcher.Errors
	}

	for {
		select {
		case <-time.After(l.interval):
			if err := l.Load(context.Background()); err != nil {
				l.logError(err)
			}
		case evt := <-events:
			if path.Clean(evt.Name) != path.Clean(l.filename) {
				continue
			}
			const mask = fsnotify.Create | fsnotify.Write | fsnotify.Rename
			if evt.Op&mask == 0 {
				continue
			}
			if err := l.Load(context.Background()); err != nil {
				l.logError(err)
			}
		case err := <-errs:
			if err != nil {
				l.logError(fmt.Errorf("file watch: %w", err))
			}
		case <-l.closing:
			return
		}
	}
}
