package tools

import (
	"fmt"
	"strconv"
)

// calculate evaluates a binary arithmetic expression. Division by zero and
// malformed operands come back as failed results, never panics.
func calculate(op1Str, operator, op2Str string) Result {
	op1, err := strconv.ParseFloat(op1Str, 64)
	if err != nil {
		return Result{Message: "I couldn't read the first number in that expression.", Err: "bad operand: " + op1Str}
	}
	op2, err := strconv.ParseFloat(op2Str, 64)
	if err != nil {
		return Result{Message: "I couldn't read the second number in that expression.", Err: "bad operand: " + op2Str}
	}

	var value float64
	switch operator {
	case "+":
		value = op1 + op2
	case "-":
		value = op1 - op2
	case "*":
		value = op1 * op2
	case "/":
		if op2 == 0 {
			return Result{Message: "Error: Cannot divide by zero", Err: "division by zero"}
		}
		value = op1 / op2
	default:
		return Result{Message: "Error: Unsupported operator", Err: "unsupported operator: " + operator}
	}

	return Result{
		OK:      true,
		Value:   value,
		Message: fmt.Sprintf("%s %s %s = %s", formatNumber(op1), operator, formatNumber(op2), formatNumber(value)),
	}
}

// formatNumber renders floats without trailing zeros (8, not 8.000000).
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
