// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

//go:build !race

package builtins

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foxcpp/go-mockdns"

	"github.com/open-policy-agent/opa-wasm-host/internal/evalctx"
)

// TestHTTPSendResolvesHostnameViaMockDNS exercises http.send end to end
// against the real DefaultContext, proving the builtin goes through normal
// DNS resolution rather than some test-only shortcut: a mocked DNS zone
// points a made-up hostname at 127.0.0.1, where an httptest server answers.
func TestHTTPSendResolvesHostnameViaMockDNS(t *testing.T) {
	srv, err := mockdns.NewServer(map[string]mockdns.Zone{
		"opawasmtest.internal.": {A: []string{"127.0.0.1"}},
	}, false)
	if err != nil {
		t.Fatalf("mockdns.NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	srv.PatchNet(net.DefaultResolver)
	t.Cleanup(func() { mockdns.UnpatchNet(net.DefaultResolver) })

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(backend.Close)

	_, port, err := net.SplitHostPort(backend.Listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}

	ec := evalctx.NewDefaultContext()
	req := map[string]interface{}{
		"url":    "http://opawasmtest.internal:" + port + "/",
		"method": "GET",
	}

	resp, err := httpSend(context.Background(), ec, req)
	if err != nil {
		t.Fatalf("httpSend: %v", err)
	}
	if code, _ := resp["status_code"].(int); code != http.StatusOK {
		t.Fatalf("expected status 200, got %v", resp["status_code"])
	}
	body, ok := resp["body"].(map[string]interface{})
	if !ok || body["ok"] != true {
		t.Fatalf("unexpected decoded body: %#v", resp["body"])
	}
}
