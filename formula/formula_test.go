package formula

import (
	"errors"
	"math"
	"testing"
)

func TestEvalArithmetic(t *testing.T) {
	cases := []struct {
		name     string
		src      string
		bindings []float64
		want     float64
	}{
		{name: "addition", src: "Q1 + Q2", bindings: []float64{3, 4}, want: 7},
		{name: "grouping", src: "(Q1 + Q2) * 2", bindings: []float64{3, 4}, want: 14},
		{name: "precedence", src: "Q1 + Q2 * 2", bindings: []float64{3, 4}, want: 11},
		{name: "left associative division", src: "8 / 4 / 2", bindings: nil, want: 1},
		{name: "left associative subtraction", src: "10 - 4 - 3", bindings: nil, want: 3},
		{name: "unary minus", src: "-Q1 + 5", bindings: []float64{2}, want: 3},
		{name: "double unary", src: "--Q1", bindings: []float64{2}, want: 2},
		{name: "decimal literals", src: "0.1 + 0.2", bindings: nil, want: 0.3},
		{name: "nested parens", src: "((Q1) * (Q2 - 1))", bindings: []float64{5, 3}, want: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Eval(tc.src, tc.bindings)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tc.src, err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Eval(%q) = %v, want %v", tc.src, got, tc.want)
			}
		})
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	_, err := Eval("Q1 / Q2", []float64{5, 0})
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestEvalUnboundVariable(t *testing.T) {
	_, err := Eval("Q5", []float64{1, 2})
	if !errors.Is(err, ErrUnboundVariable) {
		t.Fatalf("expected ErrUnboundVariable, got %v", err)
	}
}

func TestCompileSyntaxErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"Q1 +",
		"* Q1",
		"(Q1 + Q2",
		"Q1 Q2",
		"Q",
		"Q0",
		"1.2.3",
		"Q1 % Q2",
	} {
		if _, err := Compile(src); err == nil {
			t.Fatalf("Compile(%q) succeeded, expected error", src)
		}
	}
}

func TestVariables(t *testing.T) {
	program, err := Compile("Q3 + Q1 * (Q3 - 2)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := program.Variables()
	want := []int{1, 3}
	if len(got) != len(want) {
		t.Fatalf("Variables() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Variables() = %v, want %v", got, want)
		}
	}
}

func TestEvalDecimalStability(t *testing.T) {
	// Classic float drift case: summing tenths must stay exact.
	got, err := Eval("Q1 + Q1 + Q1", []float64{0.1})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != 0.3 {
		t.Fatalf("Eval = %v, want exactly 0.3", got)
	}
}
