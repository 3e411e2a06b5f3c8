package builtins

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/open-policy-agent/opa-wasm-host/internal/evalctx"
)

// randIntn returns a random integer in [0, n), consistent for a given
// (str, n) pair throughout one evaluation (invariant 3). n == 0 always
// yields 0; n < 0 is an error.
func randIntn(_ context.Context, ec evalctx.EvaluationContext, str string, n int64) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	if n < 0 {
		return 0, fmt.Errorf("rand.intn: n must be a positive integer")
	}

	key := fmt.Sprintf("rand.intn:%s:%d", str, n)
	var cached int64
	if ok, err := ec.CacheGet(key, &cached); err != nil {
		return 0, err
	} else if ok {
		return cached, nil
	}

	val := ec.Rand().Int63n(n)
	if err := ec.CacheSet(key, val); err != nil {
		return 0, err
	}
	return val, nil
}

// uuidRFC4122 returns a new UUIDv4, memoised per key for the life of one
// evaluation: repeated calls with the same key within one evaluation return
// the same UUID, but different evaluations see different values.
func uuidRFC4122(_ context.Context, ec evalctx.EvaluationContext, key string) (string, error) {
	cacheKey := "uuid.rfc4122:" + key

	var cached string
	if ok, err := ec.CacheGet(cacheKey, &cached); err != nil {
		return "", err
	} else if ok {
		return cached, nil
	}

	id := uuid.New().String()
	if err := ec.CacheSet(cacheKey, id); err != nil {
		return "", err
	}
	return id, nil
}
