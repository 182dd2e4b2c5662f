package errors

import (
	"errors"
	"testing"
)

func containsSubstring(s, substr string) bool {
	return len(s) >= len(substr) && (substr == "" || indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseLoad,
				Kind:     KindBadBytecode,
				Module:   "counter",
				Function: "increment",
				Detail:   "truncated struct handle table",
			},
			contains: []string{"[load]", "bad_bytecode", "counter:increment", "truncated struct handle table"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseCodegen,
				Kind:  KindLayoutOverflow,
			},
			contains: []string{"[codegen]", "layout_overflow"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindArithmeticOverflow,
				Detail: "u256 add",
				Cause:  errors.New("operand exceeds width"),
			},
			contains: []string{"[runtime]", "arithmetic_overflow", "u256 add", "caused by", "operand exceeds width"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !containsSubstring(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Phase: PhaseLoad, Kind: KindUnresolvedHandle, Cause: cause}

	if got := err.Unwrap(); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestError_Is(t *testing.T) {
	a := &Error{Phase: PhaseMono, Kind: KindInternalInvariant}
	b := &Error{Phase: PhaseMono, Kind: KindInternalInvariant, Detail: "different detail"}
	c := &Error{Phase: PhaseLoad, Kind: KindInternalInvariant}

	if !a.Is(b) {
		t.Error("errors with same phase/kind should match")
	}
	if a.Is(c) {
		t.Error("errors with different phase should not match")
	}
	if a.Is(errors.New("plain error")) {
		t.Error("should not match a non-*Error")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseLoad, KindBadInit).
		Module("coin").
		Function("init").
		Detail("expected %s, got %s", "(OTW, &mut TxContext)", "(u64)").
		Build()

	if err.Phase != PhaseLoad || err.Kind != KindBadInit {
		t.Fatalf("unexpected phase/kind: %v/%v", err.Phase, err.Kind)
	}
	if err.Module != "coin" || err.Function != "init" {
		t.Fatalf("unexpected module/function: %v/%v", err.Module, err.Function)
	}
	want := "expected (OTW, &mut TxContext), got (u64)"
	if err.Detail != want {
		t.Fatalf("Detail = %q, want %q", err.Detail, want)
	}
}

func TestUnsupported(t *testing.T) {
	err := Unsupported(PhaseLayout, "events", "enum variant shape not supported")
	if err.Kind != KindUnsupportedFeature {
		t.Fatalf("Kind = %v, want KindUnsupportedFeature", err.Kind)
	}
	if err.Module != "events" {
		t.Fatalf("Module = %v, want events", err.Module)
	}
}

func TestBadInit(t *testing.T) {
	err := BadInit("constructor_bad_args_1", "first parameter is not a one-time witness")
	if err.Kind != KindBadInit || err.Function != "init" {
		t.Fatalf("unexpected error: %+v", err)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("eof")
	err := Wrap(PhaseLoad, KindBadBytecode, cause, "truncated header")
	if err.Cause != cause {
		t.Fatalf("Cause not preserved")
	}
	if err.Detail != "truncated header" {
		t.Fatalf("Detail = %q", err.Detail)
	}
}
