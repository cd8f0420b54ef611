package statemachine

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprEnv is what a guard expression sees: the event payload and the
// machine's context value.
type exprEnv struct {
	Payload any `expr:"payload"`
	Context any `expr:"context"`
}

// Expression is a compiled guard expression, for example:
//
//	payload.amount < 1000
//	context.status == 'open' && !context.locked
//	(payload.retries ?? 0) < 3
//
// Expressions use the expr language. Structs are read by field name or by an
// `expr` struct tag; maps by key. A missing map key reads as nil.
type Expression struct {
	source  string
	program *vm.Program
}

// ParseExpression compiles a guard expression. Names other than payload and
// context are rejected.
func ParseExpression(src string) (*Expression, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	program, err := expr.Compile(src, expr.Env(exprEnv{}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, err)
	}

	return &Expression{source: src, program: program}, nil
}

func (e *Expression) String() string {
	return e.source
}

// Eval runs the expression against a context value and an event. Runtime
// errors, such as ordering a nil or a string against a number, and non-bool
// results are reported as ErrInvalidExpression.
func (e *Expression) Eval(value any, ev Event) (bool, error) {
	out, err := expr.Run(e.program, exprEnv{Payload: ev.Payload, Context: value})
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrInvalidExpression, e.source, err)
	}

	pass, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s returned %T, not bool", ErrInvalidExpression, e.source, out)
	}

	return pass, nil
}

// ExpressionGuard builds a guard from an expression. The guard is named after
// the expression source.
func ExpressionGuard[C any](src string) (*Guard[C], error) {
	parsed, err := ParseExpression(src)
	if err != nil {
		return nil, err
	}

	return NewGuard("expr:"+parsed.String(), func(_ context.Context, c C, ev Event) (bool, error) {
		return parsed.Eval(c, ev)
	}), nil
}
