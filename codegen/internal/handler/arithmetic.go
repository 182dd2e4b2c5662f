package handler

import (
	wasmerrors "github.com/movestylus/compiler/errors"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/typelayout"
	"github.com/movestylus/compiler/wasm"

	"github.com/movestylus/compiler/bytecode"
)

// wideOp names the runtime helper a wide (u128/u256) arithmetic/comparison
// opcode lowers to, per width. Both operands are passed by pointer into the
// bump arena and the result is returned the same way (spec §4.4 "Wide
// arithmetic").
type wideOp struct {
	u128, u256 string
}

var arithWide = map[bytecode.Opcode]wideOp{
	bytecode.OpAdd:    {"rt_add_u128", "rt_add_u256"},
	bytecode.OpSub:    {"rt_sub_u128", "rt_sub_u256"},
	bytecode.OpMul:    {"rt_mul_u128", "rt_mul_u256"},
	bytecode.OpDiv:    {"rt_div_u128", "rt_div_u256"},
	bytecode.OpMod:    {"rt_mod_u128", "rt_mod_u256"},
	bytecode.OpBitOr:  {"rt_or_u128", "rt_or_u256"},
	bytecode.OpBitAnd: {"rt_and_u128", "rt_and_u256"},
	bytecode.OpXor:    {"rt_xor_u128", "rt_xor_u256"},
	bytecode.OpShl:    {"rt_shl_u128", "rt_shl_u256"},
	bytecode.OpShr:    {"rt_shr_u128", "rt_shr_u256"},
	bytecode.OpLt:     {"rt_lt_u128", "rt_lt_u256"},
	bytecode.OpGt:     {"rt_gt_u128", "rt_gt_u256"},
	bytecode.OpLe:     {"rt_le_u128", "rt_le_u256"},
	bytecode.OpGe:     {"rt_ge_u128", "rt_ge_u256"},
	bytecode.OpEq:     {"rt_eq_u128", "rt_eq_u256"},
	bytecode.OpNeq:    {"rt_ne_u128", "rt_ne_u256"},
}

var arithNativeI32 = map[bytecode.Opcode]byte{
	bytecode.OpAdd:    wasm.OpI32Add,
	bytecode.OpSub:    wasm.OpI32Sub,
	bytecode.OpMul:    wasm.OpI32Mul,
	bytecode.OpDiv:    wasm.OpI32DivU,
	bytecode.OpMod:    wasm.OpI32RemU,
	bytecode.OpBitOr:  wasm.OpI32Or,
	bytecode.OpBitAnd: wasm.OpI32And,
	bytecode.OpXor:    wasm.OpI32Xor,
	bytecode.OpShl:    wasm.OpI32Shl,
	bytecode.OpShr:    wasm.OpI32ShrU,
	bytecode.OpLt:     wasm.OpI32LtU,
	bytecode.OpGt:     wasm.OpI32GtU,
	bytecode.OpLe:     wasm.OpI32LeU,
	bytecode.OpGe:     wasm.OpI32GeU,
	bytecode.OpEq:     wasm.OpI32Eq,
	bytecode.OpNeq:    wasm.OpI32Ne,
}

var arithNativeI64 = map[bytecode.Opcode]byte{
	bytecode.OpAdd:    wasm.OpI64Add,
	bytecode.OpSub:    wasm.OpI64Sub,
	bytecode.OpMul:    wasm.OpI64Mul,
	bytecode.OpDiv:    wasm.OpI64DivU,
	bytecode.OpMod:    wasm.OpI64RemU,
	bytecode.OpBitOr:  wasm.OpI64Or,
	bytecode.OpBitAnd: wasm.OpI64And,
	bytecode.OpXor:    wasm.OpI64Xor,
	bytecode.OpShl:    wasm.OpI64Shl,
	bytecode.OpShr:    wasm.OpI64ShrU,
	bytecode.OpLt:     wasm.OpI64LtU,
	bytecode.OpGt:     wasm.OpI64GtU,
	bytecode.OpLe:     wasm.OpI64LeU,
	bytecode.OpGe:     wasm.OpI64GeU,
	bytecode.OpEq:     wasm.OpI64Eq,
	bytecode.OpNeq:    wasm.OpI64Ne,
}

// RegisterArithmeticHandlers registers Move's arithmetic, bitwise, and
// comparison family, dispatching per operand width (spec §4.4 "Wide
// arithmetic"): i32 for U8/U16/U32/Bool-producing ops, i64 for U64, a
// runtime call for U128/U256.
func RegisterArithmeticHandlers(r *Registry) {
	ops := []bytecode.Opcode{
		bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
		bytecode.OpBitOr, bytecode.OpBitAnd, bytecode.OpXor, bytecode.OpShl, bytecode.OpShr,
		bytecode.OpLt, bytecode.OpGt, bytecode.OpLe, bytecode.OpGe, bytecode.OpEq, bytecode.OpNeq,
	}
	r.RegisterBulk(ops, Func(handleArith))

	r.RegisterFunc(bytecode.OpNot, func(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
		if _, err := ctx.Stack.Apply(instr); err != nil {
			return nil, err
		}
		return []wasm.Instruction{{Opcode: wasm.OpI32Eqz}}, nil
	})
	r.RegisterFunc(bytecode.OpAnd, func(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
		if _, err := ctx.Stack.Apply(instr); err != nil {
			return nil, err
		}
		return []wasm.Instruction{{Opcode: wasm.OpI32And}}, nil
	})
	r.RegisterFunc(bytecode.OpOr, func(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
		if _, err := ctx.Stack.Apply(instr); err != nil {
			return nil, err
		}
		return []wasm.Instruction{{Opcode: wasm.OpI32Or}}, nil
	})
}

func handleArith(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	operand, err := ctx.Stack.Apply(instr)
	if err != nil {
		return nil, err
	}

	layout, err := ctx.Layouts.Calculate(operand)
	if err != nil {
		return nil, err
	}

	switch layout.Repr {
	case typelayout.ReprI32:
		op, ok := arithNativeI32[instr.Op]
		if !ok {
			return nil, unsupported(ctx, instr, "no i32 lowering")
		}
		return []wasm.Instruction{{Opcode: op}}, nil
	case typelayout.ReprI64:
		op, ok := arithNativeI64[instr.Op]
		if !ok {
			return nil, unsupported(ctx, instr, "no i64 lowering")
		}
		return []wasm.Instruction{{Opcode: op}}, nil
	case typelayout.ReprHeapPtr:
		wide, ok := arithWide[instr.Op]
		if !ok {
			return nil, unsupported(ctx, instr, "no wide lowering")
		}
		name := wide.u128
		if operand.Kind == loader.KindU256 {
			name = wide.u256
		}
		return ctx.CallRuntime(name)
	}
	return nil, unsupported(ctx, instr, "unreachable operand representation")
}

func unsupported(ctx *Context, instr loader.Instruction, detail string) error {
	return wasmerrors.New(wasmerrors.PhaseCodegen, wasmerrors.KindUnsupportedFeature).
		Function(ctx.Fn.Name).Detail("opcode %d: %s", instr.Op, detail).Build()
}
