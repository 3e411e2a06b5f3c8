package builtins

import (
	"context"
	"runtime"

	"github.com/open-policy-agent/opa-wasm-host/internal/evalctx"
)

// Version is the host module's own semantic version, reported through
// opa.runtime(). Set at build time in a real release; left as a constant
// placeholder here.
var Version = "0.1.0"

// Commit is the VCS commit the binary was built from, overridden via
// -ldflags in a release build.
var Commit = "unknown"

// opaRuntime returns host environment and build information, mirroring the
// shape of OPA's own opa.runtime() builtin: {env, version, commit}. Bundle
// and config fields are omitted since this host has no policy bundle
// manifest or REST config surface of its own.
func opaRuntime(_ context.Context, _ evalctx.EvaluationContext) (map[string]interface{}, error) {
	return map[string]interface{}{
		"version": Version,
		"commit":  Commit,
		"env":     map[string]interface{}{"GOOS": runtime.GOOS, "GOARCH": runtime.GOARCH},
	}, nil
}

// trace appends note to the evaluation's decision log trace. The host
// keeps no trace buffer of its own, so this is a no-op that always reports
// success.
func trace(note string) (bool, error) {
	_ = note
	return true, nil
}
