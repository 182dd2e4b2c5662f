package handler

import (
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/wasm"
)

// RegisterControlHandlers registers the non-branching control opcodes.
// OpBranch/OpBranchTrue/OpBranchFalse/OpVariantSwitch never reach a
// handler — the relooper (codegen/reloop.go) converts those directly into
// ir.Br/ir.BrIf/ir.BrTable nodes before Emit ever walks into handler
// dispatch.
func RegisterControlHandlers(r *Registry) {
	r.RegisterFunc(bytecode.OpNop, func(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
		_, err := ctx.Stack.Apply(instr)
		return nil, err
	})
	r.RegisterFunc(bytecode.OpPop, popOp)
	r.RegisterFunc(bytecode.OpRet, retOp)
	r.RegisterFunc(bytecode.OpAbort, abortOp)
}

func popOp(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	return []wasm.Instruction{{Opcode: wasm.OpDrop}}, nil
}

// retOp emits a bare WASM return: by the time Ret executes, the function's
// live return values are already sitting on the stack in declaration order
// (Stack.Apply leaves them, per its own doc comment), exactly what WASM's
// implicit multi-value return wants.
func retOp(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	return []wasm.Instruction{{Opcode: wasm.OpReturn}}, nil
}

// abortOp pops the u64 abort code and calls the runtime's abort helper,
// which encodes MoveAbort(code, location) into the return data and traps
// (spec §7 "Runtime errors... abort is final"). The trailing unreachable
// keeps WASM's validator happy about the (unreachable) fallthrough.
func abortOp(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	out := []wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(locationOf(ctx))}},
	}
	call, err := ctx.CallRuntime("rt_abort")
	if err != nil {
		return nil, err
	}
	out = append(out, call...)
	out = append(out, wasm.Instruction{Opcode: wasm.OpUnreachable})
	return out, nil
}

// locationOf encodes the aborting function's source id as the "location"
// half of MoveAbort, so a revert can be traced back to the Move function
// that raised it without carrying a string table into the WASM binary.
func locationOf(ctx *Context) uint32 {
	return uint32(ctx.Fn.Source)
}
