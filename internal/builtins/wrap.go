package builtins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa-wasm-host/internal/evalctx"
)

// unmarshalArg decodes the i'th JSON argument into an A.
func unmarshalArg[A any](args [][]byte, i int) (A, error) {
	var a A
	if i >= len(args) {
		return a, fmt.Errorf("builtin: expected at least %d argument(s), got %d", i+1, len(args))
	}
	if err := json.Unmarshal(args[i], &a); err != nil {
		return a, fmt.Errorf("builtin: argument %d: %w", i, err)
	}
	return a, nil
}

func marshalResult[R any](r R) (json.RawMessage, error) {
	out, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("builtin: result: %w", err)
	}
	return out, nil
}

// --- pure (no evaluation-context access) ---------------------------------

// Wrap0 adapts a nullary builtin.
func Wrap0[R any](f func() (R, error)) Func {
	return func(_ context.Context, _ evalctx.EvaluationContext, args [][]byte) (json.RawMessage, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("builtin: expected 0 arguments, got %d", len(args))
		}
		r, err := f()
		if err != nil {
			return nil, err
		}
		return marshalResult(r)
	}
}

// Wrap1 adapts a unary builtin.
func Wrap1[A, R any](f func(A) (R, error)) Func {
	return func(_ context.Context, _ evalctx.EvaluationContext, args [][]byte) (json.RawMessage, error) {
		a, err := unmarshalArg[A](args, 0)
		if err != nil {
			return nil, err
		}
		r, err := f(a)
		if err != nil {
			return nil, err
		}
		return marshalResult(r)
	}
}

// Wrap2 adapts a binary builtin.
func Wrap2[A, B, R any](f func(A, B) (R, error)) Func {
	return func(_ context.Context, _ evalctx.EvaluationContext, args [][]byte) (json.RawMessage, error) {
		a, err := unmarshalArg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := unmarshalArg[B](args, 1)
		if err != nil {
			return nil, err
		}
		r, err := f(a, b)
		if err != nil {
			return nil, err
		}
		return marshalResult(r)
	}
}

// Wrap3 adapts a ternary builtin.
func Wrap3[A, B, C, R any](f func(A, B, C) (R, error)) Func {
	return func(_ context.Context, _ evalctx.EvaluationContext, args [][]byte) (json.RawMessage, error) {
		a, err := unmarshalArg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := unmarshalArg[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := unmarshalArg[C](args, 2)
		if err != nil {
			return nil, err
		}
		r, err := f(a, b, c)
		if err != nil {
			return nil, err
		}
		return marshalResult(r)
	}
}

// Wrap4 adapts a quaternary builtin.
func Wrap4[A, B, C, D, R any](f func(A, B, C, D) (R, error)) Func {
	return func(_ context.Context, _ evalctx.EvaluationContext, args [][]byte) (json.RawMessage, error) {
		a, err := unmarshalArg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := unmarshalArg[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := unmarshalArg[C](args, 2)
		if err != nil {
			return nil, err
		}
		d, err := unmarshalArg[D](args, 3)
		if err != nil {
			return nil, err
		}
		r, err := f(a, b, c, d)
		if err != nil {
			return nil, err
		}
		return marshalResult(r)
	}
}

// --- context-taking (evaluation-context and/or cancellation access) -----

// WrapCtx0 adapts a nullary builtin that needs the evaluation context, e.g.
// time.now_ns reading the frozen evaluation clock.
func WrapCtx0[R any](f func(context.Context, evalctx.EvaluationContext) (R, error)) Func {
	return func(ctx context.Context, ec evalctx.EvaluationContext, args [][]byte) (json.RawMessage, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("builtin: expected 0 arguments, got %d", len(args))
		}
		r, err := f(ctx, ec)
		if err != nil {
			return nil, err
		}
		return marshalResult(r)
	}
}

// WrapCtx1 adapts a unary builtin that needs the evaluation context, e.g.
// uuid.rfc4122's cache lookups or http.send's client pool.
func WrapCtx1[A, R any](f func(context.Context, evalctx.EvaluationContext, A) (R, error)) Func {
	return func(ctx context.Context, ec evalctx.EvaluationContext, args [][]byte) (json.RawMessage, error) {
		a, err := unmarshalArg[A](args, 0)
		if err != nil {
			return nil, err
		}
		r, err := f(ctx, ec, a)
		if err != nil {
			return nil, err
		}
		return marshalResult(r)
	}
}

// WrapCtx2 adapts a binary builtin that needs the evaluation context.
func WrapCtx2[A, B, R any](f func(context.Context, evalctx.EvaluationContext, A, B) (R, error)) Func {
	return func(ctx context.Context, ec evalctx.EvaluationContext, args [][]byte) (json.RawMessage, error) {
		a, err := unmarshalArg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := unmarshalArg[B](args, 1)
		if err != nil {
			return nil, err
		}
		r, err := f(ctx, ec, a, b)
		if err != nil {
			return nil, err
		}
		return marshalResult(r)
	}
}

// stub produces a Func that always fails with "not implemented", for the
// builtin families the design notes explicitly sanction shipping as named
// contracts (certificate parsing, some JWT/GraphQL/network operations).
func stub(name string) Func {
	return func(context.Context, evalctx.EvaluationContext, [][]byte) (json.RawMessage, error) {
		return nil, fmt.Errorf("%s: not implemented", name)
	}
}
