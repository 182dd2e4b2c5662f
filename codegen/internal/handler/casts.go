package handler

import (
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/typelayout"
	"github.com/movestylus/compiler/wasm"
)

// castDest names the destination width for each cast opcode, paired with
// the runtime helper used whenever either side of the conversion is a wide
// (u128/u256) type and can't go through a native WASM numeric instruction.
var castDest = map[bytecode.Opcode]struct {
	typ  loader.Type
	name string
}{
	bytecode.OpCastU8:   {loader.U8(), "rt_cast_u8"},
	bytecode.OpCastU16:  {loader.U16(), "rt_cast_u16"},
	bytecode.OpCastU32:  {loader.U32(), "rt_cast_u32"},
	bytecode.OpCastU64:  {loader.U64(), "rt_cast_u64"},
	bytecode.OpCastU128: {loader.U128(), "rt_cast_u128"},
	bytecode.OpCastU256: {loader.U256(), "rt_cast_u256"},
}

// RegisterCastHandlers registers Move's CastU8..CastU256 family. Casts
// between two native-width types (narrowing/widening among U8/U16/U32/U64)
// lower directly to WASM's wrap/extend instructions; any cast touching
// U128 or U256 goes through a named runtime helper, since the wide
// representation lives behind a heap pointer rather than a WASM value
// (spec §4.4 "Wide arithmetic").
func RegisterCastHandlers(r *Registry) {
	for op := range castDest {
		r.RegisterFunc(op, castOp)
	}
}

func castOp(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	src, err := ctx.Stack.Apply(instr)
	if err != nil {
		return nil, err
	}
	dest := castDest[instr.Op]

	srcLayout, err := ctx.Layouts.Calculate(src)
	if err != nil {
		return nil, err
	}
	dstLayout, err := ctx.Layouts.Calculate(dest.typ)
	if err != nil {
		return nil, err
	}

	if srcLayout.Repr != typelayout.ReprHeapPtr && dstLayout.Repr != typelayout.ReprHeapPtr {
		return nativeCast(srcLayout.Repr, dstLayout.Repr)
	}
	return ctx.CallRuntime(dest.name + "_from_" + kindSuffix(src.Kind))
}

// nativeCast lowers a cast between two native (non-wide) representations.
// Widening U32->U64 zero-extends; narrowing U64->U32 wraps; same-width
// casts (the i32 family among themselves) are a no-op since Move's
// bytecode verifier already guarantees the source fits a WASM i32 slot.
func nativeCast(src, dst typelayout.Repr) ([]wasm.Instruction, error) {
	switch {
	case src == typelayout.ReprI32 && dst == typelayout.ReprI64:
		return []wasm.Instruction{{Opcode: wasm.OpI64ExtendI32U}}, nil
	case src == typelayout.ReprI64 && dst == typelayout.ReprI32:
		return []wasm.Instruction{{Opcode: wasm.OpI32WrapI64}}, nil
	default:
		return nil, nil
	}
}

func kindSuffix(k loader.Kind) string {
	switch k {
	case loader.KindU8:
		return "u8"
	case loader.KindU16:
		return "u16"
	case loader.KindU32:
		return "u32"
	case loader.KindU64:
		return "u64"
	case loader.KindU128:
		return "u128"
	case loader.KindU256:
		return "u256"
	default:
		return "u64"
	}
}
