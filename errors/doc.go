// Package errors provides the structured error type used throughout the
// move-stylus compiler.
//
// Errors are categorized by Phase (which pipeline stage raised the error)
// and Kind (error category). The Error type carries rich context: the
// source module/function, a human detail message, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindBadBytecode).
//		Module("counter").
//		Detail("truncated struct handle table").
//		Build()
//
// All errors implement the standard error interface and support
// errors.Is/As.
package errors
