package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which pipeline stage raised the error.
type Phase string

const (
	PhaseLoad    Phase = "load"    // L — bytecode table parsing and interning
	PhaseLayout  Phase = "layout"  // T — type layout and ABI classification
	PhaseMono    Phase = "mono"    // M — monomorphization
	PhaseCodegen Phase = "codegen" // C — structured WASM emission
	PhaseRoute   Phase = "route"   // R — entrypoint/ABI codec/selector synthesis
	PhaseLink    Phase = "link"    // R — runtime splicing
	PhaseRuntime Phase = "runtime" // diagnostics about the generated program itself
)

// Kind categorizes the error.
type Kind string

const (
	// Compile-time kinds, per spec §7.
	KindBadBytecode              Kind = "bad_bytecode"
	KindUnresolvedHandle         Kind = "unresolved_handle"
	KindUnsupportedFeature       Kind = "unsupported_feature"
	KindBadInit                  Kind = "bad_init"
	KindLayoutOverflow           Kind = "layout_overflow"
	KindInternalInvariant        Kind = "internal_invariant_violated"

	// Generated-program abort classes, reused as diagnostic Kinds when the
	// compiler itself proves an abort is unconditional (e.g. dead code after
	// a MoveLoc sentinel) and wants to report it at compile time.
	KindArithmeticOverflow       Kind = "arithmetic_overflow"
	KindDivisionByZero           Kind = "division_by_zero"
	KindVectorOOB                Kind = "vector_oob"
	KindEnumVariantMismatch      Kind = "enum_variant_mismatch"
	KindReferenceInvalidated     Kind = "reference_invalidated_after_move"
	KindStorageRuleViolation     Kind = "storage_rule_violation"
)

// Error is the structured error type used throughout the compiler.
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Module   string
	Function string
	Detail   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" || e.Function != "" {
		b.WriteString(" at ")
		if e.Module != "" {
			b.WriteString(e.Module)
		}
		if e.Function != "" {
			if e.Module != "" {
				b.WriteByte(':')
			}
			b.WriteString(e.Function)
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by Phase and Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New creates a new error builder.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

// Module sets the source module name.
func (b *Builder) Module(name string) *Builder {
	b.err.Module = name
	return b
}

// Function sets the source function name.
func (b *Builder) Function(name string) *Builder {
	b.err.Function = name
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	return &b.err
}

// Unsupported creates an UnsupportedFeature error with the given detail.
func Unsupported(phase Phase, module, detail string) *Error {
	return New(phase, KindUnsupportedFeature).Module(module).Detail(detail).Build()
}

// BadInit creates a BadInit error describing why a candidate init function
// was rejected as a constructor.
func BadInit(module, reason string) *Error {
	return New(PhaseLoad, KindBadInit).Module(module).Function("init").Detail(reason).Build()
}

// Wrap wraps an existing error with additional phase/kind context.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{Phase: phase, Kind: kind, Detail: detail, Cause: cause}
}
