package handler

import (
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/wasm"
)

// RegisterConstantHandlers registers Move's literal-push opcodes. U8/U16/U32
// and Bool literals are carried directly in Arg and fit a WASM i32; U64
// needs i64; U128/U256 literals don't fit an immediate at all, so the
// loader leaves them as a constant-pool index (bytecode/opcodes.go: "Arg:
// constant pool index (width doesn't fit an immediate)") resolved the same
// way as OpLdConst.
func RegisterConstantHandlers(r *Registry) {
	r.RegisterFunc(bytecode.OpLdTrue, constI32(1))
	r.RegisterFunc(bytecode.OpLdFalse, constI32(0))
	r.RegisterFunc(bytecode.OpLdU8, constArgI32)
	r.RegisterFunc(bytecode.OpLdU16, constArgI32)
	r.RegisterFunc(bytecode.OpLdU32, constArgI32)
	r.RegisterFunc(bytecode.OpLdU64, constArgI64)
	r.RegisterFunc(bytecode.OpLdU128, constPool)
	r.RegisterFunc(bytecode.OpLdU256, constPool)
	r.RegisterFunc(bytecode.OpLdConst, constPool)
}

func constI32(v int32) Func {
	return func(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
		if _, err := ctx.Stack.Apply(instr); err != nil {
			return nil, err
		}
		return []wasm.Instruction{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}}, nil
	}
}

func constArgI32(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	return []wasm.Instruction{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(instr.Arg)}}}, nil
}

func constArgI64(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	return []wasm.Instruction{{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: int64(instr.Arg)}}}, nil
}

// constPool resolves a constant-pool literal by its recorded TypeTag
// (plumbed through from the raw module rather than re-derived here).
func constPool(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	c := ctx.Prog.Modules[ctx.Fn.Module].Constants[instr.Arg]
	switch c.Type {
	case bytecode.TagBool, bytecode.TagU8, bytecode.TagU16, bytecode.TagU32:
		ctx.Stack.Push(constTagType(c.Type))
		return []wasm.Instruction{{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(decodeLE(c.Data))}}}, nil
	case bytecode.TagU64:
		ctx.Stack.Push(loader.U64())
		return []wasm.Instruction{{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: int64(decodeLE(c.Data))}}}, nil
	case bytecode.TagU128:
		ctx.Stack.Push(loader.U128())
		return constDataBlob(ctx, "rt_const_u128_bytes", c.Data)
	case bytecode.TagU256:
		ctx.Stack.Push(loader.U256())
		return constDataBlob(ctx, "rt_const_u256_bytes", c.Data)
	case bytecode.TagAddress:
		ctx.Stack.Push(loader.Address())
		return constDataBlob(ctx, "rt_const_address_bytes", c.Data)
	case bytecode.TagVector:
		ctx.Stack.Push(loader.Vector(loader.U8()))
		return constDataBlob(ctx, "rt_const_bytes_vector", c.Data)
	}
	return nil, unsupported(ctx, instr, "unhandled constant pool type tag")
}

func constTagType(tag bytecode.TypeTag) loader.Type {
	switch tag {
	case bytecode.TagBool:
		return loader.Bool()
	case bytecode.TagU8:
		return loader.U8()
	case bytecode.TagU16:
		return loader.U16()
	default:
		return loader.U32()
	}
}

func decodeLE(data []byte) uint64 {
	var v uint64
	for i, b := range data {
		v |= uint64(b) << (8 * uint(i))
	}
	return v
}

// constDataBlob interns the constant's raw bytes as a data segment via
// ctx.InternData, pushes the segment's offset and length, and calls the
// runtime helper that copies them into a freshly bump-allocated cell and
// returns its pointer.
func constDataBlob(ctx *Context, name string, data []byte) ([]wasm.Instruction, error) {
	call, err := ctx.CallRuntime(name)
	if err != nil {
		return nil, err
	}
	offset, length := ctx.InternData(data)
	out := []wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(offset)}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(length)}},
	}
	return append(out, call...), nil
}
