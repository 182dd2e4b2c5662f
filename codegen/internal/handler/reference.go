package handler

import (
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/typelayout"
	"github.com/movestylus/compiler/wasm"
)

// RegisterReferenceHandlers registers Move's borrow/field/reference family.
// A reference is a linear-memory pointer (i32) into the heap arena, so
// BorrowField just adds the field's static byte offset to the struct
// pointer already on the stack (spec §4.2 "FieldOffs"); ReadRef/WriteRef
// load/store through that pointer at the pointee's native WASM width.
func RegisterReferenceHandlers(r *Registry) {
	r.RegisterFunc(bytecode.OpBorrowField, borrowField)
	r.RegisterFunc(bytecode.OpBorrowFieldGeneric, borrowField)
	r.RegisterFunc(bytecode.OpReadRef, readRef)
	r.RegisterFunc(bytecode.OpWriteRef, writeRef)
	r.RegisterFunc(bytecode.OpFreezeRef, func(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
		// Freezing a reference is a borrow-checker-only transition (mutable
		// ref -> immutable ref); the pointer value is unchanged.
		if _, err := ctx.Stack.Apply(instr); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

func borrowField(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	ref := ctx.Stack.Peek()
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	if ref.Elem == nil {
		return nil, unsupported(ctx, instr, "BorrowField of a non-reference")
	}
	structLayout, err := ctx.Layouts.Calculate(*ref.Elem)
	if err != nil {
		return nil, err
	}
	if int(instr.Arg) >= len(structLayout.FieldOffs) {
		return nil, unsupported(ctx, instr, "field index out of range")
	}
	offset := structLayout.FieldOffs[instr.Arg]
	if offset == 0 {
		return nil, nil
	}
	return []wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(offset)}},
		{Opcode: wasm.OpI32Add},
	}, nil
}

func readRef(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	ref := ctx.Stack.Peek()
	if ref.Elem == nil {
		return nil, unsupported(ctx, instr, "ReadRef of a non-reference")
	}
	pointee := *ref.Elem
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	layout, err := ctx.Layouts.Calculate(pointee)
	if err != nil {
		return nil, err
	}
	return []wasm.Instruction{{Opcode: loadOpcode(layout.Repr), Imm: wasm.MemoryImm{Align: 0}}}, nil
}

func writeRef(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	ref := ctx.Stack.PeekN(1)
	pointee := *ref.Elem
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	layout, err := ctx.Layouts.Calculate(pointee)
	if err != nil {
		return nil, err
	}
	// Stack order (bottom to top) per spec: ..., ref, value. WASM store
	// instructions want address then value already in that order, so no
	// reshuffling is needed — the Move stack discipline happens to match.
	return []wasm.Instruction{{Opcode: storeOpcode(layout.Repr), Imm: wasm.MemoryImm{Align: 0}}}, nil
}

func loadOpcode(repr typelayout.Repr) byte {
	switch repr {
	case typelayout.ReprI64:
		return wasm.OpI64Load
	default:
		return wasm.OpI32Load
	}
}

func storeOpcode(repr typelayout.Repr) byte {
	switch repr {
	case typelayout.ReprI64:
		return wasm.OpI64Store
	default:
		return wasm.OpI32Store
	}
}
