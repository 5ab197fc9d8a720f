package scenario

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/l7mp/incremental/pkg/reactive"
)

// Function expressions have the form "name" or "name:arg", where arg is an integer literal or a
// "$variable" reference. Variables are reactive values: a function reading one becomes dependent
// on it and the stage re-evaluates when the variable is set.

type (
	projection = func(ctx context.Context, x int) int
	predicate  = func(ctx context.Context, x int) bool
	expander   = func(x int) []int
)

// argument resolves a function argument against the context.
type argument func(ctx context.Context) int

type function struct {
	name string
	arg  argument
	// reactive is set when the argument is a variable reference.
	reactive bool
}

func parseFunction(expr string, vars map[string]*reactive.Value[int]) (function, error) {
	name, raw, hasArg := strings.Cut(strings.TrimSpace(expr), ":")
	f := function{name: name}
	if !hasArg {
		return f, nil
	}

	raw = strings.TrimSpace(raw)
	if varName, ok := strings.CutPrefix(raw, "$"); ok {
		v, ok := vars[varName]
		if !ok {
			return f, fmt.Errorf("%w: %q in %q", ErrUnknownVariable, varName, expr)
		}
		f.arg = func(ctx context.Context) int { return v.GetValue(ctx) }
		f.reactive = true
		return f, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return f, fmt.Errorf("invalid argument in %q: %w", expr, err)
	}
	f.arg = func(context.Context) int { return n }
	return f, nil
}

func (f function) requireArg(expr string) error {
	if f.arg == nil {
		return fmt.Errorf("function %q requires an argument", expr)
	}
	return nil
}

func parseProjection(expr string, vars map[string]*reactive.Value[int]) (projection, bool, error) {
	f, err := parseFunction(expr, vars)
	if err != nil {
		return nil, false, err
	}

	switch f.name {
	case "identity":
		return func(_ context.Context, x int) int { return x }, false, nil
	case "double":
		return func(_ context.Context, x int) int { return 2 * x }, false, nil
	case "square":
		return func(_ context.Context, x int) int { return x * x }, false, nil
	case "negate":
		return func(_ context.Context, x int) int { return -x }, false, nil
	case "add":
		if err := f.requireArg(expr); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, x int) int { return x + f.arg(ctx) }, f.reactive, nil
	case "mul":
		if err := f.requireArg(expr); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, x int) int { return x * f.arg(ctx) }, f.reactive, nil
	case "mod":
		if err := f.requireArg(expr); err != nil {
			return nil, false, err
		}
		return func(ctx context.Context, x int) int {
			m := f.arg(ctx)
			if m == 0 {
				return x
			}
			return ((x % m) + m) % m
		}, f.reactive, nil
	}

	return nil, false, fmt.Errorf("%w: projection %q", ErrUnknownFunction, expr)
}

func parsePredicate(expr string, vars map[string]*reactive.Value[int]) (predicate, bool, error) {
	f, err := parseFunction(expr, vars)
	if err != nil {
		return nil, false, err
	}

	var cmp func(x, y int) bool
	switch f.name {
	case "even":
		return func(_ context.Context, x int) bool { return x%2 == 0 }, false, nil
	case "odd":
		return func(_ context.Context, x int) bool { return x%2 != 0 }, false, nil
	case "positive":
		return func(_ context.Context, x int) bool { return x > 0 }, false, nil
	case "negative":
		return func(_ context.Context, x int) bool { return x < 0 }, false, nil
	case "gt":
		cmp = func(x, y int) bool { return x > y }
	case "ge":
		cmp = func(x, y int) bool { return x >= y }
	case "lt":
		cmp = func(x, y int) bool { return x < y }
	case "le":
		cmp = func(x, y int) bool { return x <= y }
	case "eq":
		cmp = func(x, y int) bool { return x == y }
	case "ne":
		cmp = func(x, y int) bool { return x != y }
	case "divisible":
		cmp = func(x, y int) bool { return y != 0 && x%y == 0 }
	default:
		return nil, false, fmt.Errorf("%w: predicate %q", ErrUnknownFunction, expr)
	}

	if err := f.requireArg(expr); err != nil {
		return nil, false, err
	}
	return func(ctx context.Context, x int) bool { return cmp(x, f.arg(ctx)) }, f.reactive, nil
}

func parseExpander(expr string) (expander, error) {
	f, err := parseFunction(expr, nil)
	if err != nil {
		return nil, err
	}

	switch f.name {
	case "pair":
		return func(x int) []int { return []int{x, -x} }, nil
	case "repeat":
		if err := f.requireArg(expr); err != nil {
			return nil, err
		}
		n := f.arg(context.Background())
		return func(x int) []int {
			ret := make([]int, 0, max(n, 0))
			for range n {
				ret = append(ret, x)
			}
			return ret
		}, nil
	case "upto":
		return func(x int) []int {
			ret := []int{}
			for i := range x {
				ret = append(ret, i)
			}
			return ret
		}, nil
	}

	return nil, fmt.Errorf("%w: expander %q", ErrUnknownFunction, expr)
}
