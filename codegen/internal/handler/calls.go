package handler

import (
	"github.com/movestylus/compiler/bytecode"
	wasmerrors "github.com/movestylus/compiler/errors"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/wasm"
)

// RegisterCallHandlers registers Move's Call/CallGeneric. mono has already
// resolved every call site to a concrete instantiation key (CalleeKey); the
// handler's only job is to look up that instantiation's arity and drive
// the shadow stack, since Stack.Apply itself is a documented no-op for
// calls.
func RegisterCallHandlers(r *Registry) {
	r.RegisterFunc(bytecode.OpCall, callOp)
	r.RegisterFunc(bytecode.OpCallGeneric, callOp)
}

func callOp(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	callee, ok := ctx.Mono.Functions[instr.CalleeKey]
	if !ok {
		return nil, wasmerrors.New(wasmerrors.PhaseCodegen, wasmerrors.KindUnresolvedHandle).
			Function(ctx.Fn.Name).Detail("call site references unmonomorphized callee %q", instr.CalleeKey).Build()
	}
	if callee.Native {
		// The stylus-framework natives each have their own dedicated
		// opcode (OpObjectNew, OpTransfer, ...) rather than arriving as an
		// ordinary call (spec §9); any other native function declaration
		// has no compiled body to call and no recognized lowering.
		return nil, wasmerrors.New(wasmerrors.PhaseCodegen, wasmerrors.KindUnsupportedFeature).
			Function(ctx.Fn.Name).Detail("unrecognized native function %q", callee.Name).Build()
	}

	ctx.Stack.PopN(len(callee.Params))
	for _, ret := range callee.Returns {
		ctx.Stack.Push(ret)
	}
	return ctx.CallFunction(instr.CalleeKey)
}
