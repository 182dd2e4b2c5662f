package codegen

import (
	"sort"

	"github.com/movestylus/compiler/codegen/internal/handler"
	"github.com/movestylus/compiler/codegen/internal/stack"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/mono"
	"github.com/movestylus/compiler/typelayout"
	"github.com/movestylus/compiler/wasm"
)

// NewContext builds the per-function handler.Context that EmitFunction
// needs: a fresh operand-type shadow stack seeded for fn, and the shared
// name/key resolution tables (runtimeFuncs, funcIndex) R's linker
// (runtime.Link) and this package's own cross-function numbering populate
// before any function body is emitted.
func NewContext(
	prog *loader.Program,
	monoProg *mono.Program,
	fn *mono.FunctionDef,
	layouts *typelayout.Calculator,
	runtimeFuncs map[string]uint32,
	funcIndex map[string]uint32,
) *handler.Context {
	return &handler.Context{
		Prog:         prog,
		Mono:         monoProg,
		Fn:           fn,
		Layouts:      layouts,
		Stack:        stack.NewStack(prog, fn),
		LocalBase:    uint32(len(fn.Locals)),
		RuntimeFuncs: runtimeFuncs,
		FuncIndex:    funcIndex,
	}
}

// CompileFunction runs the full per-function pipeline and returns the
// finished WASM function body. Registry is shared across every function in
// a program (it carries no per-function state).
func CompileFunction(ctx *handler.Context, registry *handler.Registry) (*wasm.FuncBody, error) {
	return EmitFunction(ctx, registry)
}

// CompiledProgram is the result of compiling every reachable instantiation
// in a mono.Program: one FuncType/FuncBody pair per function, in the order
// their WASM indices were assigned, plus the key->index table the router
// (stage R) needs to find entry points and the OTW/init function.
type CompiledProgram struct {
	Types     []wasm.FuncType
	Bodies    []*wasm.FuncBody
	FuncIndex map[string]uint32

	// DataSegments holds every constant blob interned across every function,
	// in compile order, each already placed at its final linear-memory
	// address starting at dataBase (the CompileProgramFrom argument). R
	// (movestylus) lays these out verbatim as the module's data section.
	DataSegments [][]byte

	// DataLimit is the first linear-memory address past the last interned
	// constant — where the bump allocator's arena begins.
	DataLimit uint32
}

// CompileProgram numbers every function in monoProg.Functions, then compiles
// each body in that order. firstLocalFuncIndex is the WASM function index
// the first of these local functions receives — non-zero whenever the
// final module also imports host functions (spec §4.5: Stylus vm_hooks are
// imports, numbered before any local function), since WASM numbers imported
// and local functions in one shared index space. Interned constants are
// placed from linear-memory address 0 (see CompileProgramFrom).
//
// Numbering every function before compiling any of them is required because
// a Move function can call another one that sorts after it in program
// order (mono.Program.Functions has no topological guarantee); codegen's
// own CallFunction handler needs every reachable callee's index resolved up
// front (registry.go's FuncIndex field).
func CompileProgram(
	prog *loader.Program,
	monoProg *mono.Program,
	layouts *typelayout.Calculator,
	runtimeFuncs map[string]uint32,
	firstLocalFuncIndex uint32,
) (*CompiledProgram, error) {
	return CompileProgramFrom(prog, monoProg, layouts, runtimeFuncs, firstLocalFuncIndex, 0)
}

// CompileProgramFrom is CompileProgram with an explicit starting data base.
// dataBase is the linear memory address the first interned constant lands
// at; every function shares one running counter from there so
// CompiledProgram.DataSegments can be laid out as a single contiguous data
// section.
func CompileProgramFrom(
	prog *loader.Program,
	monoProg *mono.Program,
	layouts *typelayout.Calculator,
	runtimeFuncs map[string]uint32,
	firstLocalFuncIndex uint32,
	dataBase uint32,
) (*CompiledProgram, error) {
	// Natives (object::new, transfer, ...) never get a callable WASM body —
	// codegen/internal/handler/natives.go lowers their bytecode opcodes
	// directly to runtime calls, so nothing ever resolves a CalleeKey to
	// one. Leaving them out of the numbering keeps the emitted function
	// index space contiguous with CompiledProgram.Bodies/Types.
	keys := make([]string, 0, len(monoProg.Functions))
	for key, fn := range monoProg.Functions {
		if fn.Native {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	funcIndex := make(map[string]uint32, len(keys))
	for i, key := range keys {
		funcIndex[key] = firstLocalFuncIndex + uint32(i)
	}

	registry := handler.NewRegistry()
	out := &CompiledProgram{
		Types:     make([]wasm.FuncType, len(keys)),
		Bodies:    make([]*wasm.FuncBody, len(keys)),
		FuncIndex: funcIndex,
	}

	running := dataBase
	for i, key := range keys {
		fn := monoProg.Functions[key]

		ft, err := funcType(layouts, fn)
		if err != nil {
			return nil, err
		}
		out.Types[i] = ft

		ctx := NewContext(prog, monoProg, fn, layouts, runtimeFuncs, funcIndex)
		ctx.SetDataBase(running)
		body, err := CompileFunction(ctx, registry)
		if err != nil {
			return nil, err
		}
		out.Bodies[i] = body
		out.DataSegments = append(out.DataSegments, ctx.DataSegments()...)
		for _, blob := range ctx.DataSegments() {
			running += uint32(len(blob))
		}
	}
	out.DataLimit = running
	return out, nil
}

// funcType derives a function's WASM signature from its Move params/returns,
// one WASM value slot per parameter/return following the same
// typelayout.Repr mapping AllocSpill uses for locals (spec §4.4: every Move
// value is either a native i32/i64 operand or a heap pointer represented as
// i32).
func funcType(layouts *typelayout.Calculator, fn *mono.FunctionDef) (wasm.FuncType, error) {
	params, err := valTypes(layouts, fn.Params)
	if err != nil {
		return wasm.FuncType{}, err
	}
	results, err := valTypes(layouts, fn.Returns)
	if err != nil {
		return wasm.FuncType{}, err
	}
	return wasm.FuncType{Params: params, Results: results}, nil
}

func valTypes(layouts *typelayout.Calculator, types []loader.Type) ([]wasm.ValType, error) {
	out := make([]wasm.ValType, len(types))
	for i, t := range types {
		info, err := layouts.Calculate(t)
		if err != nil {
			return nil, err
		}
		if info.Repr == typelayout.ReprI64 {
			out[i] = wasm.ValI64
		} else {
			out[i] = wasm.ValI32
		}
	}
	return out, nil
}
