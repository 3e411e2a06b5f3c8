package evalctx

import (
	"context"
	"math/rand"
	"net/http"
	"time"
)

// TestContext is the EvaluationContext used in tests: a frozen clock, a
// seeded deterministic RNG, and HTTP delegated to an embedded
// DefaultContext (so tests can still hit a mock server).
type TestContext struct {
	inner *DefaultContext

	// Clock is the fixed instant returned by Now. Defaults to
	// 2020-07-14T12:53:22Z, matching the original source's test fixture.
	Clock time.Time

	// Seed seeds the deterministic RNG returned by Rand.
	Seed int64
}

// NewTestContext constructs a TestContext with the conventional frozen
// clock and a zero seed.
func NewTestContext() *TestContext {
	return &TestContext{
		inner: NewDefaultContext(),
		Clock: time.Date(2020, 7, 14, 12, 53, 22, 0, time.UTC),
		Seed:  0,
	}
}

func (t *TestContext) Now() time.Time { return t.Clock }

func (t *TestContext) Rand() *rand.Rand {
	return rand.New(rand.NewSource(t.Seed))
}

func (t *TestContext) SendHTTP(ctx context.Context, req *http.Request, timeout time.Duration, enableRedirect bool) (*http.Response, error) {
	return t.inner.SendHTTP(ctx, req, timeout, enableRedirect)
}

func (t *TestContext) EvaluationStart() {
	t.inner.EvaluationStart()
}

func (t *TestContext) CacheGet(key string, out interface{}) (bool, error) {
	return t.inner.CacheGet(key, out)
}

func (t *TestContext) CacheSet(key string, val interface{}) error {
	return t.inner.CacheSet(key, val)
}

var _ EvaluationContext = (*TestContext)(nil)
