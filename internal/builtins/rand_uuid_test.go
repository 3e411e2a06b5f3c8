package builtins

import (
	"context"
	"testing"

	"github.com/open-policy-agent/opa-wasm-host/internal/evalctx"
)

func TestRandIntnMemoisedWithinEvaluation(t *testing.T) {
	ec := evalctx.NewTestContext()
	ctx := context.Background()

	first, err := randIntn(ctx, ec, "key", 100)
	if err != nil {
		t.Fatalf("randIntn: %v", err)
	}
	second, err := randIntn(ctx, ec, "key", 100)
	if err != nil {
		t.Fatalf("randIntn: %v", err)
	}
	if first != second {
		t.Fatalf("expected memoised value, got %d then %d", first, second)
	}
}

func TestRandIntnZeroIsAlwaysZero(t *testing.T) {
	ec := evalctx.NewTestContext()
	v, err := randIntn(context.Background(), ec, "whatever", 0)
	if err != nil {
		t.Fatalf("randIntn: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected 0, got %d", v)
	}
}

func TestRandIntnNegativeIsError(t *testing.T) {
	ec := evalctx.NewTestContext()
	if _, err := randIntn(context.Background(), ec, "k", -1); err == nil {
		t.Fatal("expected error for negative n")
	}
}

func TestUUIDRFC4122MemoisedWithinEvaluation(t *testing.T) {
	ec := evalctx.NewTestContext()
	ctx := context.Background()

	first, err := uuidRFC4122(ctx, ec, "a")
	if err != nil {
		t.Fatalf("uuidRFC4122: %v", err)
	}
	second, err := uuidRFC4122(ctx, ec, "a")
	if err != nil {
		t.Fatalf("uuidRFC4122: %v", err)
	}
	if first != second {
		t.Fatalf("expected memoised uuid, got %q then %q", first, second)
	}

	other, err := uuidRFC4122(ctx, ec, "b")
	if err != nil {
		t.Fatalf("uuidRFC4122: %v", err)
	}
	if other == first {
		t.Fatal("expected different keys to produce different uuids")
	}
}

func TestUUIDRFC4122DiffersAcrossEvaluations(t *testing.T) {
	ec := evalctx.NewTestContext()
	ctx := context.Background()

	first, err := uuidRFC4122(ctx, ec, "a")
	if err != nil {
		t.Fatalf("uuidRFC4122: %v", err)
	}
	ec.EvaluationStart()
	second, err := uuidRFC4122(ctx, ec, "a")
	if err != nil {
		t.Fatalf("uuidRFC4122: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh evaluation to produce a different uuid")
	}
}
