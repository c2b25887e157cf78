package formula

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/shopspring/decimal"
)

var functionNames = map[string]bool{
	"round": true,
	"abs":   true,
	"min":   true,
	"max":   true,
	"sum":   true,
}

// operatorFunctions maps the operators rewritten by decimalPatcher to the
// functions that evaluate them.
var operatorFunctions = map[string]string{
	"+":  "op_add",
	"-":  "op_sub",
	"*":  "op_mul",
	"/":  "op_div",
	"%":  "op_mod",
	"**": "op_pow",
	"^":  "op_pow",
	"<":  "op_lt",
	"<=": "op_le",
	">":  "op_gt",
	">=": "op_ge",
	"==": "op_eq",
	"!=": "op_ne",
}

const negFunction = "op_neg"

// powPrecision is the number of decimal places kept for fractional or
// negative exponents.
const powPrecision = 16

func functionOptions() []expr.Option {
	return []expr.Option{
		expr.Patch(&decimalPatcher{}),
		expr.Function("round", roundFunc),
		expr.Function("abs", absFunc),
		expr.Function("min", minFunc),
		expr.Function("max", maxFunc),
		expr.Function("sum", sumFunc),
		expr.Function("op_add", arithmetic("+", func(a, b decimal.Decimal) (decimal.Decimal, error) { return a.Add(b), nil })),
		expr.Function("op_sub", arithmetic("-", func(a, b decimal.Decimal) (decimal.Decimal, error) { return a.Sub(b), nil })),
		expr.Function("op_mul", arithmetic("*", func(a, b decimal.Decimal) (decimal.Decimal, error) { return a.Mul(b), nil })),
		expr.Function("op_div", arithmetic("/", divide)),
		expr.Function("op_mod", arithmetic("%", modulo)),
		expr.Function("op_pow", arithmetic("**", power)),
		expr.Function("op_lt", comparison("<", func(c int) bool { return c < 0 })),
		expr.Function("op_le", comparison("<=", func(c int) bool { return c <= 0 })),
		expr.Function("op_gt", comparison(">", func(c int) bool { return c > 0 })),
		expr.Function("op_ge", comparison(">=", func(c int) bool { return c >= 0 })),
		expr.Function("op_eq", comparison("==", func(c int) bool { return c == 0 })),
		expr.Function("op_ne", comparison("!=", func(c int) bool { return c != 0 })),
		expr.Function(negFunction, negFunc),
	}
}

// decimalPatcher rewrites arithmetic and comparison operators into calls of
// the op_ functions so that every intermediate value is a decimal.
type decimalPatcher struct{}

func (p *decimalPatcher) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.BinaryNode:
		fn, ok := operatorFunctions[n.Operator]
		if !ok {
			return
		}
		ast.Patch(node, &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: fn},
			Arguments: []ast.Node{n.Left, n.Right},
		})
	case *ast.UnaryNode:
		switch n.Operator {
		case "-":
			ast.Patch(node, &ast.CallNode{
				Callee:    &ast.IdentifierNode{Value: negFunction},
				Arguments: []ast.Node{n.Node},
			})
		case "+":
			ast.Patch(node, n.Node)
		}
	}
}

// toDecimal converts a VM value into a decimal. Float literals and float
// variables convert through their shortest representation, so 0.29 stays
// exactly 0.29.
func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return decimal.Zero, ErrNotFinite
		}
		return decimal.NewFromFloat(n), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
}

func decimals(fn string, args []any) ([]decimal.Decimal, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: expects at least one argument", fn)
	}
	out := make([]decimal.Decimal, len(args))
	for i, arg := range args {
		d, err := toDecimal(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn, err)
		}
		out[i] = d
	}
	return out, nil
}

func arithmetic(op string, apply func(a, b decimal.Decimal) (decimal.Decimal, error)) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: expects 2 operands, got %d", op, len(args))
		}
		values, err := decimals(op, args)
		if err != nil {
			return nil, err
		}
		out, err := apply(values[0], values[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return out, nil
	}
}

func comparison(op string, test func(cmp int) bool) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: expects 2 operands, got %d", op, len(args))
		}
		values, err := decimals(op, args)
		if err != nil {
			return nil, err
		}
		return test(values[0].Cmp(values[1])), nil
	}
}

func divide(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: division by zero", ErrNotFinite)
	}
	return a.Div(b), nil
}

func modulo(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: modulo by zero", ErrNotFinite)
	}
	return a.Mod(b), nil
}

func power(a, b decimal.Decimal) (decimal.Decimal, error) {
	out, err := a.PowWithPrecision(b, powPrecision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrNotFinite, err)
	}
	return out, nil
}

func negFunc(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("-: expects 1 operand, got %d", len(args))
	}
	v, err := toDecimal(args[0])
	if err != nil {
		return nil, fmt.Errorf("-: %w", err)
	}
	return v.Neg(), nil
}

// roundFunc rounds half away from zero: round(x) or round(x, places).
func roundFunc(args ...any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("round: expects 1 or 2 arguments, got %d", len(args))
	}
	values, err := decimals("round", args)
	if err != nil {
		return nil, err
	}
	places := int32(0)
	if len(values) == 2 {
		places = int32(values[1].IntPart())
	}
	return values[0].Round(places), nil
}

func absFunc(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("abs: expects 1 argument, got %d", len(args))
	}
	v, err := toDecimal(args[0])
	if err != nil {
		return nil, fmt.Errorf("abs: %w", err)
	}
	return v.Abs(), nil
}

func minFunc(args ...any) (any, error) {
	values, err := decimals("min", args)
	if err != nil {
		return nil, err
	}
	return decimal.Min(values[0], values[1:]...), nil
}

func maxFunc(args ...any) (any, error) {
	values, err := decimals("max", args)
	if err != nil {
		return nil, err
	}
	return decimal.Max(values[0], values[1:]...), nil
}

func sumFunc(args ...any) (any, error) {
	values, err := decimals("sum", args)
	if err != nil {
		return nil, err
	}
	return decimal.Sum(values[0], values[1:]...), nil
}
