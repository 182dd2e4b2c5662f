package handler

import (
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/typelayout"
	"github.com/movestylus/compiler/wasm"
)

// RegisterVectorHandlers registers Move's vector family. A vector value is
// a pointer to the runtime's 16-byte heap header {len: u32, cap: u32,
// elem_size: u32, elems_ptr: i32}; growth on push and the initial
// allocation are owned by runtime, since capacity bookkeeping doesn't
// belong in per-call-site generated code (spec §4.4 "vector operations with
// growable backing storage"). Borrow and swap also lower to runtime calls
// (rt_vec_elem_ptr, rt_vec_swap).
func RegisterVectorHandlers(r *Registry) {
	r.RegisterFunc(bytecode.OpVecPack, vecPack)
	r.RegisterFunc(bytecode.OpVecLen, vecLen)
	r.RegisterFunc(bytecode.OpVecImmBorrow, vecBorrow)
	r.RegisterFunc(bytecode.OpVecMutBorrow, vecBorrow)
	r.RegisterFunc(bytecode.OpVecPushBack, vecPushBack)
	r.RegisterFunc(bytecode.OpVecPopBack, vecPopBack)
	r.RegisterFunc(bytecode.OpVecSwap, vecSwap)
	r.RegisterFunc(bytecode.OpVecUnpack, vecUnpack)
}

func vecElemType(instr loader.Instruction) loader.Type {
	if len(instr.TypeArgs) > 0 {
		return instr.TypeArgs[0]
	}
	return loader.U8()
}

// vecPack spills the count literal elements (pushed in declaration order),
// asks rt_vec_pack(elemSize, count) to allocate the header plus a tight
// elements buffer, then writes each element back via rt_vec_set_elem(
// elemSize, ptr, idx, value). value is always widened to i64 at the call
// site (rt_vec_set_elem has one fixed signature; the runtime helper
// truncates back to elemSize bytes before storing) since Move vectors can
// hold either i32- or i64-represented elements.
func vecPack(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	elemType := vecElemType(instr)
	elemLayout, err := ctx.Layouts.Calculate(elemType)
	if err != nil {
		return nil, err
	}
	count := int(instr.Arg2)

	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}

	spills := make([]uint32, count)
	var out []wasm.Instruction
	for i := count - 1; i >= 0; i-- {
		tmp := ctx.AllocSpill(elemType)
		spills[i] = tmp
		out = append(out, wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: tmp}})
	}

	out = append(out,
		wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(elemLayout.MemSize)}},
		wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(count)}},
	)
	call, err := ctx.CallRuntime("rt_vec_pack")
	if err != nil {
		return nil, err
	}
	out = append(out, call...)
	ptr := ctx.AllocSpill(loader.Vector(elemType))
	out = append(out, wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: ptr}})

	for i, tmp := range spills {
		out = append(out,
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(elemLayout.MemSize)}},
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: ptr}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(i)}},
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: tmp}},
		)
		if elemLayout.Repr != typelayout.ReprI64 {
			out = append(out, wasm.Instruction{Opcode: wasm.OpI64ExtendI32U})
		}
		setCall, err := ctx.CallRuntime("rt_vec_set_elem")
		if err != nil {
			return nil, err
		}
		out = append(out, setCall...)
	}
	out = append(out, wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: ptr}})
	return out, nil
}

func vecLen(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	return []wasm.Instruction{{Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{Offset: 0}}}, nil
}

// vecBorrow pushes elemSize and calls rt_vec_elem_ptr(vec, idx, elemSize):
// the vector pointer and index are already on the stack in (vec, idx) order
// (Move evaluates left to right), which matches runtime's helper argument
// order.
func vecBorrow(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	vec := ctx.Stack.PeekN(1)
	elemType := *vec.Elem
	elemLayout, err := ctx.Layouts.Calculate(elemType)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	out := []wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(elemLayout.MemSize)}},
	}
	call, err := ctx.CallRuntime("rt_vec_elem_ptr")
	if err != nil {
		return nil, err
	}
	return append(out, call...), nil
}

// vecPushBack widens the pushed element to i64 at the call site for the
// same reason vecPack does (rt_vec_push_back has one fixed signature
// covering every element width): elem_size travels alongside so the
// runtime knows how many bytes of the widened value to actually store.
func vecPushBack(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	vec := ctx.Stack.PeekN(1)
	elemType := *vec.Elem
	elemLayout, err := ctx.Layouts.Calculate(elemType)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}

	tmp := ctx.AllocSpill(elemType)
	out := []wasm.Instruction{
		{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: tmp}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(elemLayout.MemSize)}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: tmp}},
	}
	if elemLayout.Repr != typelayout.ReprI64 {
		out = append(out, wasm.Instruction{Opcode: wasm.OpI64ExtendI32U})
	}
	call, err := ctx.CallRuntime("rt_vec_push_back")
	if err != nil {
		return nil, err
	}
	return append(out, call...), nil
}

func vecPopBack(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	vec := ctx.Stack.Peek()
	elemLayout, err := ctx.Layouts.Calculate(*vec.Elem)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	call, err := ctx.CallRuntime("rt_vec_pop_back")
	if err != nil {
		return nil, err
	}
	return append(call, wasm.Instruction{Opcode: loadOpcode(elemLayout.Repr), Imm: wasm.MemoryImm{Offset: 0}}), nil
}

func vecSwap(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}
	return ctx.CallRuntime("rt_vec_swap")
}

// vecUnpack destructures a literal-count vector back into its elements,
// top-to-bottom becoming last-pushed first, mirroring OpUnpack's ordering.
func vecUnpack(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	vec := ctx.Stack.Peek()
	elemType := *vec.Elem
	elemLayout, err := ctx.Layouts.Calculate(elemType)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}

	ptr := ctx.AllocSpill(loader.Vector(elemType))
	out := []wasm.Instruction{{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: ptr}}}
	for i := 0; i < int(instr.Arg); i++ {
		out = append(out,
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: ptr}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(i)}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(elemLayout.MemSize)}},
		)
		call, err := ctx.CallRuntime("rt_vec_elem_ptr")
		if err != nil {
			return nil, err
		}
		out = append(out, call...)
		out = append(out, wasm.Instruction{Opcode: loadOpcode(elemLayout.Repr), Imm: wasm.MemoryImm{Offset: 0}})
	}
	return out, nil
}
