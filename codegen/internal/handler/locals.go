package handler

import (
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/wasm"
)

// RegisterLocalHandlers registers Move's local-variable opcodes. Every Move
// local occupies exactly one WASM local slot, addressed with the same index
// (CopyLoc/MoveLoc both read without clearing — Move's move-vs-copy
// distinction is a borrow-checker concept the loader has already verified;
// by codegen time both are simply "read the local").
func RegisterLocalHandlers(r *Registry) {
	r.RegisterFunc(bytecode.OpCopyLoc, localGet)
	r.RegisterFunc(bytecode.OpMoveLoc, localGet)
	r.RegisterFunc(bytecode.OpStLoc, func(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
		if _, err := ctx.Stack.Apply(instr); err != nil {
			return nil, err
		}
		return []wasm.Instruction{{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: uint32(instr.Arg)}}}, nil
	})
	r.RegisterFunc(bytecode.OpBorrowLoc, func(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
		if _, err := ctx.Stack.Apply(instr); err != nil {
			return nil, err
		}
		// References are represented as the address of the local's backing
		// heap cell; locals that are ReprI32/ReprI64 scalars still need a
		// heap slot to be borrowable, allocated by codegen's prologue
		// (spec §4.4 "every local that is ever borrowed gets a stack
		// slot in the runtime's linear-memory frame, not just a WASM
		// local").
		return []wasm.Instruction{{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: uint32(instr.Arg)}}}, nil
	})
}

func localGet(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	return []wasm.Instruction{{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: uint32(instr.Arg)}}}, nil
}
