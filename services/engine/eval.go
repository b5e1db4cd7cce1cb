package engine

import (
	"fmt"
	"math"

	"github.com/Helambe-vaibhav/BACKTest/services/marketdata"
)

// Evaluation runs a resolved expression elementwise over a window. Rows
// without enough lookback history carry NaN operands, and any comparison
// against NaN is false, so short history never raises.

// EvalBulk evaluates the expressions over every row and OR-combines them.
// OR-combination of a leg's conditions is a fixed contract, not a per-call
// choice.
func EvalBulk(exprs []Expr, w *marketdata.Window) ([]bool, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("no conditions to evaluate")
	}
	combined, err := evalBool(exprs[0], w)
	if err != nil {
		return nil, err
	}
	for _, e := range exprs[1:] {
		next, err := evalBool(e, w)
		if err != nil {
			return nil, err
		}
		for i := range combined {
			combined[i] = combined[i] || next[i]
		}
	}
	return combined, nil
}

// EvalLast evaluates only the final row, the mode used for entry
// confirmation at the candidate instant.
func EvalLast(exprs []Expr, w *marketdata.Window) (bool, error) {
	if w.Empty() {
		return false, nil
	}
	series, err := EvalBulk(exprs, w)
	if err != nil {
		return false, err
	}
	return series[len(series)-1], nil
}

func evalBool(e Expr, w *marketdata.Window) ([]bool, error) {
	switch n := e.(type) {
	case Compare:
		left, err := evalNumeric(n.Left, w)
		if err != nil {
			return nil, err
		}
		right, err := evalNumeric(n.Right, w)
		if err != nil {
			return nil, err
		}
		out := make([]bool, w.Len())
		for i := range out {
			l, r := left[i], right[i]
			if math.IsNaN(l) || math.IsNaN(r) {
				continue
			}
			switch n.Op {
			case OpGt:
				out[i] = l > r
			case OpLt:
				out[i] = l < r
			case OpEq:
				out[i] = l == r
			}
		}
		return out, nil
	case And:
		left, err := evalBool(n.Left, w)
		if err != nil {
			return nil, err
		}
		right, err := evalBool(n.Right, w)
		if err != nil {
			return nil, err
		}
		for i := range left {
			left[i] = left[i] && right[i]
		}
		return left, nil
	case Or:
		left, err := evalBool(n.Left, w)
		if err != nil {
			return nil, err
		}
		right, err := evalBool(n.Right, w)
		if err != nil {
			return nil, err
		}
		for i := range left {
			left[i] = left[i] || right[i]
		}
		return left, nil
	case Not:
		inner, err := evalBool(n.Expr, w)
		if err != nil {
			return nil, err
		}
		for i := range inner {
			inner[i] = !inner[i]
		}
		return inner, nil
	default:
		return nil, fmt.Errorf("expression node %T is not boolean", e)
	}
}

func evalNumeric(e Expr, w *marketdata.Window) ([]float64, error) {
	n := w.Len()
	switch node := e.(type) {
	case Literal:
		out := make([]float64, n)
		for i := range out {
			out[i] = node.Value
		}
		return out, nil
	case ColumnRef:
		col, ok := w.Col(node.Name)
		if !ok {
			return nil, &TranslationError{Name: node.Name}
		}
		return col, nil
	case ShiftedColumnRef:
		col, ok := w.Col(node.Name)
		if !ok {
			return nil, &TranslationError{Name: node.Name}
		}
		out := make([]float64, n)
		for i := range out {
			if i < node.Shift {
				out[i] = math.NaN()
			} else {
				out[i] = col[i-node.Shift]
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expression node %T is not numeric", e)
	}
}
