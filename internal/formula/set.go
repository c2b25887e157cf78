package formula

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type resolveState int

const (
	stateUnresolved resolveState = iota
	stateInProgress
	stateResolved
)

// Set is the group of formulas of one sheet, keyed by target column.
// Targets may read other targets; inputs are everything else.
type Set struct {
	engine   *Engine
	formulas map[string]*Formula
	scales   map[string]int32
}

// NewSet compiles expressions (target -> source) into a set. Results of
// each target are rounded to scales[target] decimal places.
func (e *Engine) NewSet(expressions map[string]string, scales map[string]int32) (*Set, error) {
	set := &Set{
		engine:   e,
		formulas: make(map[string]*Formula, len(expressions)),
		scales:   scales,
	}
	for target, source := range expressions {
		f, err := e.Compile(source)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", target, err)
		}
		set.formulas[target] = f
	}
	return set, nil
}

// Targets returns the target columns in sorted order.
func (s *Set) Targets() []string {
	targets := make([]string, 0, len(s.formulas))
	for t := range s.formulas {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Formula returns the compiled formula for a target.
func (s *Set) Formula(target string) (*Formula, bool) {
	f, ok := s.formulas[target]
	return f, ok
}

// Order returns targets so that every target comes after the targets it
// reads. A cycle yields ErrCircularReference.
func (s *Set) Order() ([]string, error) {
	state := make(map[string]resolveState, len(s.formulas))
	order := make([]string, 0, len(s.formulas))

	var visit func(target string, path []string) error
	visit = func(target string, path []string) error {
		switch state[target] {
		case stateResolved:
			return nil
		case stateInProgress:
			return fmt.Errorf("%w: %v", ErrCircularReference, append(path, target))
		}
		state[target] = stateInProgress
		for _, v := range s.formulas[target].Variables {
			if _, ok := s.formulas[v]; ok {
				if err := visit(v, append(path, target)); err != nil {
					return err
				}
			}
		}
		state[target] = stateResolved
		order = append(order, target)
		return nil
	}

	for _, target := range s.Targets() {
		if err := visit(target, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Validate checks that every variable is either a target or one of known,
// and that targets do not form a cycle.
func (s *Set) Validate(known []string) error {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	for _, target := range s.Targets() {
		for _, v := range s.formulas[target].Variables {
			if _, isTarget := s.formulas[v]; !isTarget && !allowed[v] {
				return fmt.Errorf("%s: %w: %s", target, ErrUnknownVariable, v)
			}
		}
	}
	_, err := s.Order()
	return err
}

// Result holds the outcome of resolving a set against one row.
type Result struct {
	Values map[string]decimal.NullDecimal
	Errors map[string]error
}

// Resolve evaluates every target using inputs for non-target variables.
// A target reading a missing input, or a target that resolved blank or
// failed, resolves blank. Evaluation failures are reported per target in
// Result.Errors; only a cycle aborts resolution.
func (s *Set) Resolve(inputs map[string]decimal.Decimal) (*Result, error) {
	result := &Result{
		Values: make(map[string]decimal.NullDecimal, len(s.formulas)),
		Errors: make(map[string]error),
	}
	state := make(map[string]resolveState, len(s.formulas))

	var resolve func(target string) error
	resolve = func(target string) error {
		switch state[target] {
		case stateResolved:
			return nil
		case stateInProgress:
			return fmt.Errorf("%s: %w", target, ErrCircularReference)
		}
		state[target] = stateInProgress

		f := s.formulas[target]
		vars := make(map[string]any, len(f.Variables))
		blank := false
		for _, v := range f.Variables {
			if _, isTarget := s.formulas[v]; isTarget {
				if err := resolve(v); err != nil {
					return err
				}
				dep := result.Values[v]
				if !dep.Valid {
					blank = true
					continue
				}
				vars[v] = dep.Decimal
				continue
			}
			in, ok := inputs[v]
			if !ok {
				blank = true
				continue
			}
			vars[v] = in
		}

		state[target] = stateResolved
		if blank {
			result.Values[target] = decimal.NullDecimal{}
			return nil
		}

		value, err := s.engine.Evaluate(f, vars)
		if err != nil {
			result.Values[target] = decimal.NullDecimal{}
			result.Errors[target] = err
			return nil
		}
		if scale, ok := s.scales[target]; ok {
			value = value.Round(scale)
		}
		result.Values[target] = decimal.NullDecimal{Decimal: value, Valid: true}
		return nil
	}

	for _, target := range s.Targets() {
		if err := resolve(target); err != nil {
			return nil, err
		}
	}
	return result, nil
}
