package evalctx

import "testing"

func TestDefaultContextCacheRoundTrip(t *testing.T) {
	ctx := NewDefaultContext()
	ctx.EvaluationStart()

	if err := ctx.CacheSet("k", 42); err != nil {
		t.Fatalf("CacheSet: %v", err)
	}

	var v int
	ok, err := ctx.CacheGet("k", &v)
	if err != nil {
		t.Fatalf("CacheGet: %v", err)
	}
	if !ok || v != 42 {
		t.Fatalf("CacheGet = (%v, %v), want (true, 42)", ok, v)
	}
}

func TestDefaultContextEvaluationStartClearsCache(t *testing.T) {
	ctx := NewDefaultContext()
	ctx.EvaluationStart()
	if err := ctx.CacheSet("k", 1); err != nil {
		t.Fatalf("CacheSet: %v", err)
	}

	ctx.EvaluationStart()

	var v int
	ok, err := ctx.CacheGet("k", &v)
	if err != nil {
		t.Fatalf("CacheGet: %v", err)
	}
	if ok {
		t.Fatalf("CacheGet found stale entry %v after EvaluationStart", v)
	}
}

func TestTestContextClockIsFrozen(t *testing.T) {
	ctx := NewTestContext()
	first := ctx.Now()
	ctx.EvaluationStart()
	second := ctx.Now()
	if !first.Equal(second) {
		t.Fatalf("Now() changed across EvaluationStart: %v != %v", first, second)
	}
}

func TestTestContextRandIsDeterministic(t *testing.T) {
	ctx := NewTestContext()
	ctx.Seed = 7

	a := ctx.Rand().Intn(1_000_000)
	b := ctx.Rand().Intn(1_000_000)
	if a != b {
		t.Fatalf("Rand() with fixed seed produced %d then %d, want equal", a, b)
	}
}
