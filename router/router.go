// Package router implements pipeline stage R's selector dispatch: it turns
// the set of a Move program's public functions into a Solidity-style
// 4-byte-selector lookup table (spec §4.5/§6.3) and synthesizes the single
// WASM function every Stylus contract must export, user_entrypoint, the
// same way the teacher's linker/internal/bridge package turns a set of
// cross-module imports into one resolved call table — generalized here
// from "resolve a host import by name" to "resolve an ABI selector to a
// monomorphized Move function".
package router

import (
	"sort"

	"github.com/movestylus/compiler/abi"
	wasmerrors "github.com/movestylus/compiler/errors"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/mono"
	"github.com/movestylus/compiler/typelayout"
	"github.com/movestylus/compiler/wasm"
)

// Entry is one externally callable Move function: its derived selector and
// the monomorphized definition codegen assigned a function index to.
type Entry struct {
	Selector    [4]byte
	SelectorU32 uint32
	Fn          *mono.FunctionDef
}

// Table is the compiled selector dispatch table plus the module's optional
// one-time-witness constructor (spec §4.5), which bypasses selector
// dispatch entirely and is invoked once at deployment instead.
type Table struct {
	Entries []Entry
	Init    *mono.FunctionDef
}

// Build derives Table from every monomorphized entry point, sorted by
// ascending selector so the generated if/eq chain (and any two builds of
// the same program) is deterministic (spec §6.3).
func Build(prog *loader.Program, mp *mono.Program) (*Table, error) {
	t := &Table{}
	for _, key := range mp.EntryKeys {
		if mp.HasInit && key == mp.InitKey {
			t.Init = mp.Functions[key]
			continue
		}
		fn := mp.Functions[key]
		sel, err := abi.Selector(prog, fn.Name, fn.Params)
		if err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, Entry{Selector: sel, SelectorU32: abi.SelectorUint32(sel), Fn: fn})
	}
	sort.Slice(t.Entries, func(i, j int) bool { return t.Entries[i].SelectorU32 < t.Entries[j].SelectorU32 })
	return t, nil
}

// FuncSignatures renders every entry's diagnostic signature, for the CLI's
// -list flag.
func (t *Table) FuncSignatures(prog *loader.Program) []string {
	out := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = abi.FuncSignature(prog, e.Fn.Name, e.Fn.Params)
	}
	return out
}

// abiWord is the byte width of one Solidity ABI calldata "head" slot: every
// scalar parameter and return value occupies one, right-aligned and
// big-endian (spec §6.3). Struct, tuple, and dynamic (vector/bytes)
// parameters are not decoded by the generated entrypoint in this pass —
// only scalar-only signatures are fully supported end to end (see
// DESIGN.md).
const abiWord = 32

// builder assembles user_entrypoint's body: a flat sequence of raw
// wasm.Instruction, not structured control flow beyond the per-entry
// if/then blocks, since there's no Move basic-block graph here to reloop
// (unlike codegen/emit.go, which reloops an actual Move CFG).
type builder struct {
	layouts  *typelayout.Calculator
	funcs    map[string]uint32
	instrs   []wasm.Instruction
	locals   []wasm.ValType
	nextLoc  uint32
}

func newBuilder(layouts *typelayout.Calculator, funcs map[string]uint32, firstLocal uint32) *builder {
	return &builder{layouts: layouts, funcs: funcs, nextLoc: firstLocal}
}

func (b *builder) emit(is ...wasm.Instruction) { b.instrs = append(b.instrs, is...) }

func (b *builder) newLocal(vt wasm.ValType) uint32 {
	idx := b.nextLoc
	b.nextLoc++
	b.locals = append(b.locals, vt)
	return idx
}

func (b *builder) call(name string) (wasm.Instruction, error) {
	idx, ok := b.funcs[name]
	if !ok {
		return wasm.Instruction{}, wasmerrors.New(wasmerrors.PhaseRoute, wasmerrors.KindUnresolvedHandle).
			Detail("runtime function %q is not linked", name).Build()
	}
	return wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: idx}}, nil
}

// BuildEntrypoint synthesizes user_entrypoint(args_len: i32) -> i32, the
// single export the Stylus VM drives (spec §6.5): read the raw calldata,
// assemble its first 4 bytes into a selector (big-endian, matching
// abi.SelectorUint32), and compare it against every entry in order,
// calling and returning on the first match. No match falls through to a
// revert return code.
func BuildEntrypoint(table *Table, layouts *typelayout.Calculator, funcs, funcIndex map[string]uint32) (*wasm.FuncBody, wasm.FuncType, error) {
	b := newBuilder(layouts, funcs, 1)
	buf := b.newLocal(wasm.ValI32)
	sel := b.newLocal(wasm.ValI32)

	allocArgs, err := b.call("rt_alloc")
	if err != nil {
		return nil, wasm.FuncType{}, err
	}
	readArgs, err := b.call("read_args")
	if err != nil {
		return nil, wasm.FuncType{}, err
	}
	b.emit(
		wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		allocArgs,
		wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: buf}},
		wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: buf}},
		readArgs,
	)
	if err := b.loadSelector(buf, sel); err != nil {
		return nil, wasm.FuncType{}, err
	}

	for _, e := range table.Entries {
		if err := b.emitDispatch(e, buf, sel, funcIndex); err != nil {
			return nil, wasm.FuncType{}, err
		}
	}

	// No selector matched: revert with a nonzero status and no data.
	b.emit(
		wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 1}},
		wasm.Instruction{Opcode: wasm.OpEnd},
	)

	ft := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}
	return &wasm.FuncBody{Locals: localEntries(b.locals), Code: wasm.EncodeInstructions(b.instrs)}, ft, nil
}

// loadSelector assembles calldata's first 4 bytes into sel, big-endian, the
// same formula abi.SelectorUint32 uses on the Go side so compile-time and
// run-time selector derivation agree bit for bit.
func (b *builder) loadSelector(buf, sel uint32) error {
	b.emit(load8(buf, 0)...)
	b.emit(constI32(24), shl())
	b.emit(load8(buf, 1)...)
	b.emit(constI32(16), shl(), or32())
	b.emit(load8(buf, 2)...)
	b.emit(constI32(8), shl(), or32())
	b.emit(load8(buf, 3)...)
	b.emit(or32())
	b.emit(wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: sel}})
	return nil
}

// emitDispatch appends one entry's match-and-call block: if sel equals this
// entry's selector, decode its scalar parameters out of the calldata word
// array (one 32-byte word per parameter, immediately following the 4-byte
// selector), call it, ABI-encode any single scalar return value, surface it
// via write_result, and return success.
func (b *builder) emitDispatch(e Entry, buf, sel uint32, funcIndex map[string]uint32) error {
	fnIdx, ok := funcIndex[e.Fn.Key]
	if !ok {
		return wasmerrors.New(wasmerrors.PhaseRoute, wasmerrors.KindUnresolvedHandle).
			Detail("entry function %q (%s) was not assigned a function index", e.Fn.Name, e.Fn.Key).Build()
	}

	b.emit(
		wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: sel}},
		wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(e.SelectorU32)}},
		wasm.Instruction{Opcode: wasm.OpI32Eq},
		wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
	)

	for i, p := range e.Fn.Params {
		wordAddr := b.newLocal(wasm.ValI32)
		b.emit(
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: buf}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(4 + i*abiWord)}},
			wasm.Instruction{Opcode: wasm.OpI32Add},
			wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: wordAddr}},
		)
		if err := b.decodeParam(p, wordAddr); err != nil {
			return err
		}
	}

	b.emit(wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: fnIdx}})

	if err := b.encodeAndReturn(e.Fn.Returns); err != nil {
		return err
	}

	b.emit(wasm.Instruction{Opcode: wasm.OpEnd})
	return nil
}

// decodeParam leaves t's native WASM representation on the stack, read
// from the 32-byte ABI word at wordAddr (spec §6.3).
func (b *builder) decodeParam(t loader.Type, wordAddr uint32) error {
	info, err := b.layouts.Calculate(t)
	if err != nil {
		return err
	}
	switch {
	case t.Kind == loader.KindBool || t.Kind == loader.KindU8:
		b.emit(load8(wordAddr, abiWord-1)...)
	case t.Kind == loader.KindU16:
		b.emit(beNarrow(wordAddr, abiWord-2, 2)...)
	case t.Kind == loader.KindU32:
		b.emit(beNarrow(wordAddr, abiWord-4, 4)...)
	case t.Kind == loader.KindU64:
		b.emit(beNarrow64(wordAddr, abiWord-8)...)
	case t.Kind == loader.KindAddress:
		alloc, err := b.call("rt_alloc")
		if err != nil {
			return err
		}
		b.emit(
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: typelayout.AddressSize}},
			alloc,
		)
		dst := b.newLocal(wasm.ValI32)
		b.emit(wasm.Instruction{Opcode: wasm.OpLocalTee, Imm: wasm.LocalImm{LocalIdx: dst}})
		b.emit(
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: wordAddr}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: abiWord - typelayout.AddressSize}},
			wasm.Instruction{Opcode: wasm.OpI32Add},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: typelayout.AddressSize}},
			wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscMemoryCopy, Operands: []uint32{0, 0}}},
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: dst}},
		)
	case t.Kind == loader.KindU128 || t.Kind == loader.KindU256:
		decode, err := b.call("rt_abi_decode_wide")
		if err != nil {
			return err
		}
		b.emit(
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: wordAddr}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(info.MemSize)}},
			decode,
		)
	default:
		return wasmerrors.New(wasmerrors.PhaseRoute, wasmerrors.KindUnsupportedFeature).
			Detail("entrypoint parameters of kind %d are not ABI-decodable (struct/vector args are out of scope)", t.Kind).Build()
	}
	return nil
}

// encodeAndReturn ABI-encodes at most one scalar return value into a fresh
// 32-byte word, surfaces it through write_result, and returns status 0.
// Multi-value and struct/vector returns are out of scope for this pass —
// see DESIGN.md.
func (b *builder) encodeAndReturn(returns []loader.Type) error {
	switch len(returns) {
	case 0:
		writeResult, err := b.call("write_result")
		if err != nil {
			return err
		}
		b.emit(
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}},
			writeResult,
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}},
			wasm.Instruction{Opcode: wasm.OpReturn},
		)
		return nil
	case 1:
		return b.encodeScalarReturn(returns[0])
	default:
		return wasmerrors.New(wasmerrors.PhaseRoute, wasmerrors.KindUnsupportedFeature).
			Detail("multi-value returns (%d values) are not ABI-encodable by the generated entrypoint", len(returns)).Build()
	}
}

func (b *builder) encodeScalarReturn(t loader.Type) error {
	info, err := b.layouts.Calculate(t)
	if err != nil {
		return err
	}
	alloc, err := b.call("rt_alloc")
	if err != nil {
		return err
	}
	valType := wasm.ValI32
	if info.Repr == typelayout.ReprI64 {
		valType = wasm.ValI64
	}
	value := b.newLocal(valType)
	word := b.newLocal(wasm.ValI32)
	b.emit(wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: value}})
	b.emit(
		wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: abiWord}},
		alloc,
		wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: word}},
	)

	switch {
	case t.Kind == loader.KindU128 || t.Kind == loader.KindU256:
		encode, err := b.call("rt_abi_encode_wide")
		if err != nil {
			return err
		}
		b.emit(
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: word}},
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: value}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(info.MemSize)}},
			encode,
		)
	case t.Kind == loader.KindAddress:
		b.emit(
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: word}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: abiWord - typelayout.AddressSize}},
			wasm.Instruction{Opcode: wasm.OpI32Add},
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: value}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: typelayout.AddressSize}},
			wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscMemoryCopy, Operands: []uint32{0, 0}}},
		)
	case info.Repr == typelayout.ReprI64:
		b.emit(storeBE64(word, abiWord-8, value)...)
	default:
		n := int32(info.MemSize)
		if t.Kind == loader.KindBool {
			n = 1
		}
		b.emit(storeBE32(word, abiWord-int(n), value, n)...)
	}

	writeResult, err := b.call("write_result")
	if err != nil {
		return err
	}
	b.emit(
		wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: word}},
		wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: abiWord}},
		writeResult,
		wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}},
		wasm.Instruction{Opcode: wasm.OpReturn},
	)
	return nil
}

func localEntries(types []wasm.ValType) []wasm.LocalEntry {
	var out []wasm.LocalEntry
	for _, t := range types {
		if n := len(out); n > 0 && out[n-1].ValType == t {
			out[n-1].Count++
			continue
		}
		out = append(out, wasm.LocalEntry{Count: 1, ValType: t})
	}
	return out
}

func constI32(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}
}

// load8 pushes base's value then loads the byte at base+off, zero-extended
// to i32 (i32.load8_u needs its address operand on the stack; the offset
// itself travels as a static immediate).
func load8(base uint32, off int32) []wasm.Instruction {
	return []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: base}},
		{Opcode: wasm.OpI32Load8U, Imm: wasm.MemoryImm{Offset: uint64(off)}},
	}
}

func shl() wasm.Instruction { return wasm.Instruction{Opcode: wasm.OpI32Shl} }
func or32() wasm.Instruction { return wasm.Instruction{Opcode: wasm.OpI32Or} }

// beNarrow assembles an n-byte (n<=4) big-endian field starting at
// base+off into a native i32, the same shift-and-or ladder loadSelector
// uses for the 4-byte selector.
func beNarrow(base uint32, off int32, n int) []wasm.Instruction {
	var out []wasm.Instruction
	for i := 0; i < n; i++ {
		out = append(out, load8(base, off+int32(i))...)
		if shift := (n - 1 - i) * 8; shift > 0 {
			out = append(out, constI32(int32(shift)), shl())
		}
		if i > 0 {
			out = append(out, or32())
		}
	}
	return out
}

// beNarrow64 is beNarrow's 8-byte form, producing an i64 (for Move's u64,
// whose WASM representation is a native i64 per typelayout.ReprI64).
func beNarrow64(base uint32, off int32) []wasm.Instruction {
	var out []wasm.Instruction
	for i := 0; i < 8; i++ {
		out = append(out, load8(base, off+int32(i))...)
		out = append(out, wasm.Instruction{Opcode: wasm.OpI64ExtendI32U})
		if shift := (8 - 1 - i) * 8; shift > 0 {
			out = append(out, wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: int64(shift)}}, wasm.Instruction{Opcode: wasm.OpI64Shl})
		}
		if i > 0 {
			out = append(out, wasm.Instruction{Opcode: wasm.OpI64Or})
		}
	}
	return out
}

// storeBE32 writes value's low n bytes (n<=4) into a 32-byte ABI word at
// word+off, big-endian.
func storeBE32(word uint32, off int, value uint32, n int32) []wasm.Instruction {
	var out []wasm.Instruction
	for i := int32(0); i < n; i++ {
		shift := (n - 1 - i) * 8
		out = append(out,
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: word}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(off) + i}},
			wasm.Instruction{Opcode: wasm.OpI32Add},
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: value}},
		)
		if shift > 0 {
			out = append(out, constI32(shift), wasm.Instruction{Opcode: wasm.OpI32ShrU})
		}
		out = append(out, wasm.Instruction{Opcode: wasm.OpI32Store8})
	}
	return out
}

// storeBE64 is storeBE32's 8-byte i64 form, for Move's u64.
func storeBE64(word uint32, off int, value uint32) []wasm.Instruction {
	var out []wasm.Instruction
	for i := 0; i < 8; i++ {
		shift := (8 - 1 - i) * 8
		out = append(out,
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: word}},
			wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(off + i)}},
			wasm.Instruction{Opcode: wasm.OpI32Add},
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: value}},
		)
		if shift > 0 {
			out = append(out, wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: int64(shift)}}, wasm.Instruction{Opcode: wasm.OpI64ShrU})
		}
		out = append(out, wasm.Instruction{Opcode: wasm.OpI32WrapI64}, wasm.Instruction{Opcode: wasm.OpI32Store8})
	}
	return out
}

// rt_alloc hands back memory straight from a monotonic bump arena (never
// reused), so a fresh word is already zero; only the bytes this function
// actually writes need touching.
