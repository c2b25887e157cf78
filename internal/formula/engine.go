// Package formula compiles and evaluates the arithmetic expressions that
// drive computed ledger columns.
package formula

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
)

// Prefix may lead a formula, as typed in a spreadsheet cell.
const Prefix = "="

// Evaluation errors.
var (
	ErrSyntax            = errors.New("formula syntax error")
	ErrEmptyFormula      = errors.New("formula is empty")
	ErrNotNumeric        = errors.New("formula result is not a number")
	ErrNotFinite         = errors.New("formula result is not finite")
	ErrUnknownVariable   = errors.New("unknown variable")
	ErrCircularReference = errors.New("circular reference detected")
)

// Formula is a compiled expression together with the variables it reads.
type Formula struct {
	program   *vm.Program
	Source    string
	Variables []string
}

// Engine compiles formulas once and runs them on pooled virtual machines.
type Engine struct {
	programs map[string]*Formula
	vmPool   sync.Pool
	options  []expr.Option
	mu       sync.RWMutex
}

// NewEngine creates an engine with the ledger's function set.
func NewEngine() *Engine {
	options := []expr.Option{
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.DisableAllBuiltins(),
	}
	options = append(options, functionOptions()...)

	return &Engine{
		programs: make(map[string]*Formula),
		options:  options,
		vmPool: sync.Pool{
			New: func() any {
				return new(vm.VM)
			},
		},
	}
}

// Compile parses and compiles an expression. Results are cached by source.
func (e *Engine) Compile(expression string) (*Formula, error) {
	source := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(expression), Prefix))
	if source == "" {
		return nil, ErrEmptyFormula
	}

	e.mu.RLock()
	f, ok := e.programs[source]
	e.mu.RUnlock()
	if ok {
		return f, nil
	}

	tree, err := parser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	program, err := expr.Compile(source, e.options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	f = &Formula{
		Source:    source,
		Variables: variablesOf(tree.Node),
		program:   program,
	}

	e.mu.Lock()
	e.programs[source] = f
	e.mu.Unlock()

	return f, nil
}

// Evaluate runs f with vars bound by name and returns its numeric result.
// Arithmetic runs on decimals; float and integer variables are converted
// on first use.
func (e *Engine) Evaluate(f *Formula, vars map[string]any) (decimal.Decimal, error) {
	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}

	machine := e.vmPool.Get().(*vm.VM)
	out, err := machine.Run(f.program, env)
	e.vmPool.Put(machine)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", f.Source, err)
	}

	value, err := toDecimal(out)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", f.Source, err)
	}
	return value, nil
}

type variableVisitor struct {
	callees map[ast.Node]bool
	names   map[string]bool
}

func (v *variableVisitor) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.CallNode:
		v.callees[n.Callee] = true
	case *ast.IdentifierNode:
		v.names[n.Value] = true
	}
}

// variablesOf lists the identifiers an expression reads, skipping the
// names of called functions.
func variablesOf(node ast.Node) []string {
	visitor := &variableVisitor{
		callees: make(map[ast.Node]bool),
		names:   make(map[string]bool),
	}
	ast.Walk(&node, visitor)

	for callee := range visitor.callees {
		if id, ok := callee.(*ast.IdentifierNode); ok && functionNames[id.Value] {
			delete(visitor.names, id.Value)
		}
	}

	vars := make([]string, 0, len(visitor.names))
	for name := range visitor.names {
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return vars
}
