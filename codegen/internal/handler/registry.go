// Package handler dispatches Move opcodes to the WASM instruction sequences
// that implement them, one family per file (arithmetic, locals,
// references/fields, calls, struct/enum pack-unpack, vectors, casts,
// natives) — directly grounded on the teacher's asyncify/internal/handler
// package (arithmetic.go, memory.go, variable.go, reference.go,
// constant.go, conversion.go, passthrough.go, registry.go), re-keyed from
// wasm opcodes (rewriting WASM to WASM) to Move opcodes (lowering Move to
// WASM).
package handler

import (
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/codegen/internal/stack"
	wasmerrors "github.com/movestylus/compiler/errors"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/mono"
	"github.com/movestylus/compiler/typelayout"
	"github.com/movestylus/compiler/wasm"
)

// Context carries everything a handler needs to lower one Move instruction:
// the program for handle lookups, the function being compiled, the layout
// calculator for width decisions, and the shadow operand-type stack.
type Context struct {
	Prog    *loader.Program
	Mono    *mono.Program
	Fn      *mono.FunctionDef
	Layouts *typelayout.Calculator
	Stack   *stack.Stack

	// LocalBase is the WASM local index where spill temporaries begin:
	// every Move local (fn.Locals, params included) maps directly onto the
	// identically-indexed WASM local, so spills — needed only to reorder
	// pack/unpack operands (aggregate.go, vector.go) — start right after
	// the last declared Move local, at len(fn.Locals).
	LocalBase uint32

	// RuntimeFuncs resolves a runtime helper's name (e.g. "rt_add_u128") to
	// its function index in the final module, taken from runtime.Link's
	// result before any function that calls into it is emitted (spec §4.5
	// "splice the compiled runtime module into the codegen-produced one").
	RuntimeFuncs map[string]uint32

	// FuncIndex resolves a monomorphized Move function's mono.FunctionDef.Key
	// to its WASM function index, populated by codegen.CompileProgramFrom once
	// every reachable instantiation has been assigned a slot (a function may call
	// one monomorphized after it in program order, so this must be built
	// before any function body is emitted).
	FuncIndex map[string]uint32

	// dataSegments accumulates constant byte blobs (wide-literal bytes,
	// address bytes, byte-vector literals) this function's body references,
	// each placed at the final linear-memory address InternData returned;
	// codegen.CompileProgramFrom collects them into the program's data
	// segments once the function is emitted.
	dataBase     uint32
	dataSegments [][]byte

	// spillLocals records the WASM value type of every spill temporary
	// AllocSpill has handed out so far, in allocation order; EmitFunction
	// appends these to the function's local declarations at LocalBase
	// (mirrors the teacher's Locals.Alloc in asyncify/internal/handler).
	spillLocals []wasm.ValType
	lastSpill   uint32
}

// AllocSpill reserves a fresh WASM local to hold a Move value of type t
// while pack/unpack handlers reorder operands from pop order into
// declaration order (aggregate.go). Its WASM value type follows t's
// typelayout.Repr: heap pointers and 32-bit-or-narrower scalars get an i32
// local, 64-bit scalars get an i64 local.
func (ctx *Context) AllocSpill(t loader.Type) uint32 {
	idx := ctx.LocalBase + uint32(len(ctx.spillLocals))
	valType := wasm.ValI32
	if info, err := ctx.Layouts.Calculate(t); err == nil && info.Repr == typelayout.ReprI64 {
		valType = wasm.ValI64
	}
	ctx.spillLocals = append(ctx.spillLocals, valType)
	ctx.lastSpill = idx
	return idx
}

// LastSpill returns the local index most recently handed out by AllocSpill.
func (ctx *Context) LastSpill() uint32 { return ctx.lastSpill }

// SpillLocals returns the WASM value type of every spill temporary
// allocated so far, in allocation order.
func (ctx *Context) SpillLocals() []wasm.ValType { return ctx.spillLocals }

// InternData records data for later placement in the module's data
// section and returns its final (offset, length): the offset is the current
// data base set by SetDataBase, which then advances past the blob.
func (ctx *Context) InternData(data []byte) (offset, length uint32) {
	offset = ctx.dataBase
	ctx.dataSegments = append(ctx.dataSegments, data)
	ctx.dataBase += uint32(len(data))
	return offset, uint32(len(data))
}

// DataSegments returns every blob interned so far, in placement order.
func (ctx *Context) DataSegments() [][]byte { return ctx.dataSegments }

// SetDataBase sets the linear-memory address the next InternData call will
// return; codegen.CompileProgramFrom gives each function a fresh Context
// seeded with the running total so numbering continues across functions.
func (ctx *Context) SetDataBase(base uint32) { ctx.dataBase = base }

// CallRuntime emits a direct call to a named runtime helper.
func (ctx *Context) CallRuntime(name string) ([]wasm.Instruction, error) {
	idx, ok := ctx.RuntimeFuncs[name]
	if !ok {
		return nil, wasmerrors.New(wasmerrors.PhaseCodegen, wasmerrors.KindUnresolvedHandle).
			Function(ctx.Fn.Name).Detail("runtime function %q is not linked", name).Build()
	}
	return []wasm.Instruction{{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: idx}}}, nil
}

// CallFunction emits a direct call to a monomorphized Move function by its
// mono.FunctionDef.Key.
func (ctx *Context) CallFunction(key string) ([]wasm.Instruction, error) {
	idx, ok := ctx.FuncIndex[key]
	if !ok {
		return nil, wasmerrors.New(wasmerrors.PhaseCodegen, wasmerrors.KindUnresolvedHandle).
			Function(ctx.Fn.Name).Detail("callee %q was not assigned a function index", key).Build()
	}
	return []wasm.Instruction{{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: idx}}}, nil
}

// Handler lowers a single Move instruction into zero or more WASM
// instructions.
type Handler interface {
	Handle(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error)
}

// Func adapts an ordinary function to Handler, mirroring the teacher's
// handler.Func adapter.
type Func func(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error)

func (f Func) Handle(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	return f(ctx, instr)
}

// Registry maps Move opcodes to their handlers, O(1) lookup like the
// teacher's [256]Handler table.
type Registry struct {
	handlers [256]Handler
}

// NewRegistry builds the full dispatch table for every Move opcode handler
// family.
func NewRegistry() *Registry {
	r := &Registry{}
	RegisterArithmeticHandlers(r)
	RegisterLocalHandlers(r)
	RegisterConstantHandlers(r)
	RegisterReferenceHandlers(r)
	RegisterAggregateHandlers(r)
	RegisterVectorHandlers(r)
	RegisterCastHandlers(r)
	RegisterCallHandlers(r)
	RegisterNativeHandlers(r)
	RegisterControlHandlers(r)
	return r
}

func (r *Registry) Register(op bytecode.Opcode, h Handler) { r.handlers[op] = h }

func (r *Registry) RegisterFunc(op bytecode.Opcode, fn Func) { r.handlers[op] = fn }

func (r *Registry) RegisterBulk(ops []bytecode.Opcode, h Handler) {
	for _, op := range ops {
		r.handlers[op] = h
	}
}

func (r *Registry) Get(op bytecode.Opcode) Handler { return r.handlers[op] }

func (r *Registry) Has(op bytecode.Opcode) bool { return r.handlers[op] != nil }
