package handler

import (
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/wasm"
)

// RegisterAggregateHandlers registers struct and enum pack/unpack. A
// struct/enum value is a heap record: Pack bump-allocates MemSize bytes and
// stores each already-evaluated field operand into its FieldOffs slot (in
// reverse pop order, since the stack yields fields last-pushed-first);
// Unpack loads each field back out by offset and discards the record
// pointer. Both route the allocation itself through runtime's bump
// allocator (spec §4.5 "allocator"), not emitted inline, so codegen doesn't
// need to know the arena's internal layout.
func RegisterAggregateHandlers(r *Registry) {
	r.RegisterFunc(bytecode.OpPack, packStruct)
	r.RegisterFunc(bytecode.OpPackGeneric, packStruct)
	r.RegisterFunc(bytecode.OpUnpack, unpackStruct)
	r.RegisterFunc(bytecode.OpUnpackGeneric, unpackStruct)
	r.RegisterFunc(bytecode.OpPackVariant, packVariant)
	r.RegisterFunc(bytecode.OpUnpackVariant, unpackVariant)
}

func packStruct(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	st := loader.Struct(loader.StructID(instr.Arg), instr.TypeArgs...)
	si := ctx.Prog.Struct(st.StructID)
	fieldTypes := make([]loader.Type, len(si.Fields))
	for i, f := range si.Fields {
		fieldTypes[i] = f.Type.Substitute(st.TypeArgs)
	}

	layout, err := ctx.Layouts.Calculate(st)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}

	// Operands are on the WASM stack in field-declaration order already
	// (Move evaluates pack arguments left to right); spill them to fresh
	// locals so they can be stored in declaration order after the
	// allocation call, since WASM can't reorder an existing stack.
	spills := make([]uint32, len(fieldTypes))
	var out []wasm.Instruction
	for i := len(fieldTypes) - 1; i >= 0; i-- {
		tmp := ctx.AllocSpill(fieldTypes[i])
		spills[i] = tmp
		out = append(out, wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: tmp}})
	}

	alloc, err := ctx.CallRuntime("rt_alloc")
	if err != nil {
		return nil, err
	}
	out = append(out, wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(layout.MemSize)}})
	out = append(out, alloc...)
	ptr := ctx.AllocSpill(st)
	out = append(out, wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: ptr}})

	for i, ft := range fieldTypes {
		fl, err := ctx.Layouts.Calculate(ft)
		if err != nil {
			return nil, err
		}
		out = append(out,
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: ptr}},
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: spills[i]}},
			wasm.Instruction{Opcode: storeOpcode(fl.Repr), Imm: wasm.MemoryImm{Offset: uint64(layout.FieldOffs[i])}},
		)
	}
	out = append(out, wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: ptr}})
	return out, nil
}

func unpackStruct(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	st := ctx.Stack.Peek()
	si := ctx.Prog.Struct(st.StructID)
	layout, err := ctx.Layouts.Calculate(st)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}

	ptr := ctx.AllocSpill(st)
	out := []wasm.Instruction{{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: ptr}}}
	for i, f := range si.Fields {
		ft := f.Type.Substitute(st.TypeArgs)
		fl, err := ctx.Layouts.Calculate(ft)
		if err != nil {
			return nil, err
		}
		out = append(out,
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: ptr}},
			wasm.Instruction{Opcode: loadOpcode(fl.Repr), Imm: wasm.MemoryImm{Offset: uint64(layout.FieldOffs[i])}},
		)
	}
	return out, nil
}

// packVariant/unpackVariant follow the same pattern as packStruct/unpackStruct
// with an extra tag byte written/read at offset 0 (spec §3 invariant 5 "tag
// always exactly one byte").

// variantFieldTypes resolves a variant's field types, substituted for et's
// type arguments.
func variantFieldTypes(ei *loader.EnumInfo, et loader.Type, variant uint64) []loader.Type {
	v := ei.Variants[variant]
	out := make([]loader.Type, len(v.Fields))
	for i, f := range v.Fields {
		out[i] = f.Type.Substitute(et.TypeArgs)
	}
	return out
}

// variantPayloadLayout reuses typelayout's tuple layout algorithm (the same
// one calculateEnum itself uses per-variant) to get each field's byte
// offset within the variant's payload region, which starts right after the
// one-byte tag (spec §3 invariant 5).
func variantPayloadLayout(ctx *Context, fieldTypes []loader.Type) ([]uint32, error) {
	info, err := ctx.Layouts.Calculate(loader.Tuple(fieldTypes...))
	if err != nil {
		return nil, err
	}
	return info.FieldOffs, nil
}

const enumTagSize = 1

func packVariant(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	et := loader.Enum(loader.EnumID(instr.Arg), instr.TypeArgs...)
	ei := ctx.Prog.Enum(et.EnumID)
	fieldTypes := variantFieldTypes(ei, et, instr.Arg2)

	enumLayout, err := ctx.Layouts.Calculate(et)
	if err != nil {
		return nil, err
	}
	offsets, err := variantPayloadLayout(ctx, fieldTypes)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}

	spills := make([]uint32, len(fieldTypes))
	var out []wasm.Instruction
	for i := len(fieldTypes) - 1; i >= 0; i-- {
		tmp := ctx.AllocSpill(fieldTypes[i])
		spills[i] = tmp
		out = append(out, wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: tmp}})
	}

	alloc, err := ctx.CallRuntime("rt_alloc")
	if err != nil {
		return nil, err
	}
	out = append(out, wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(enumLayout.MemSize)}})
	out = append(out, alloc...)
	ptr := ctx.AllocSpill(et)
	out = append(out, wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: ptr}})

	out = append(out,
		wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: ptr}},
		wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(instr.Arg2)}},
		wasm.Instruction{Opcode: wasm.OpI32Store8, Imm: wasm.MemoryImm{Offset: 0}},
	)

	for i, ft := range fieldTypes {
		fl, err := ctx.Layouts.Calculate(ft)
		if err != nil {
			return nil, err
		}
		out = append(out,
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: ptr}},
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: spills[i]}},
			wasm.Instruction{Opcode: storeOpcode(fl.Repr), Imm: wasm.MemoryImm{Offset: enumTagSize + uint64(offsets[i])}},
		)
	}
	out = append(out, wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: ptr}})
	return out, nil
}

func unpackVariant(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	et := ctx.Stack.Peek()
	ei := ctx.Prog.Enum(et.EnumID)
	fieldTypes := variantFieldTypes(ei, et, instr.Arg2)
	offsets, err := variantPayloadLayout(ctx, fieldTypes)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.Stack.Apply(instr); err != nil {
		return nil, err
	}

	ptr := ctx.AllocSpill(et)
	out := []wasm.Instruction{{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: ptr}}}
	for i, ft := range fieldTypes {
		fl, err := ctx.Layouts.Calculate(ft)
		if err != nil {
			return nil, err
		}
		out = append(out,
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: ptr}},
			wasm.Instruction{Opcode: loadOpcode(fl.Repr), Imm: wasm.MemoryImm{Offset: enumTagSize + uint64(offsets[i])}},
		)
	}
	return out, nil
}
