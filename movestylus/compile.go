// Package movestylus is the compiler's single external entrypoint (spec
// §6): given a root Move bytecode module and its dependency closure,
// produce a self-contained Stylus-deployable WASM binary. It wires
// together every pipeline stage — L (bytecode/loader), T (typelayout), M
// (mono), C (codegen), and R (router/runtime) — the way the teacher's own
// top-level component package threads decode -> validate -> resolve ->
// instantiate into one call.
package movestylus

import (
	"os"

	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/codegen"
	"github.com/movestylus/compiler/config"
	"github.com/movestylus/compiler/errors"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/mono"
	"github.com/movestylus/compiler/router"
	"github.com/movestylus/compiler/runtime"
	"github.com/movestylus/compiler/typelayout"
	"github.com/movestylus/compiler/wasm"
	"go.uber.org/zap"
)

// align rounds n up to the next multiple of to.
func align(n, to uint32) uint32 {
	if rem := n % to; rem != 0 {
		n += to - rem
	}
	return n
}

// Compile reads a Move bytecode module and its dependencies from disk and
// produces the finished WASM binary Stylus deploys.
func Compile(modulePath string, dependencyPaths []string, opts ...config.Option) ([]byte, error) {
	root, err := readModule(modulePath)
	if err != nil {
		return nil, err
	}
	deps := make([]*bytecode.Module, len(dependencyPaths))
	for i, p := range dependencyPaths {
		dep, err := readModule(p)
		if err != nil {
			return nil, err
		}
		deps[i] = dep
	}
	return CompileModules(root, deps, opts...)
}

func readModule(path string) (*bytecode.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindBadBytecode).
			Detail("reading %s: %v", path, err).Build()
	}
	mod, err := bytecode.Read(data)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindBadBytecode).
			Detail("parsing %s: %v", path, err).Build()
	}
	return mod, nil
}

// CompileModules is Compile's in-memory form, taking already-decoded
// bytecode modules — the seam tests drive directly, the way the teacher's
// component.DecodeAndValidate separates parsing from file I/O.
func CompileModules(root *bytecode.Module, deps []*bytecode.Module, opts ...config.Option) ([]byte, error) {
	log := zap.NewNop()
	cfg := config.New(opts...)

	prog, err := loader.Load(log, root, deps)
	if err != nil {
		return nil, err
	}

	layouts := typelayout.NewCalculator(prog, cfg)

	monoProg, err := mono.Specialize(log, prog)
	if err != nil {
		return nil, err
	}

	// Pass 1: link the runtime at a placeholder bump base purely to learn
	// its function/type/import layout (function indices are stable
	// regardless of bumpBase — only the $bump global's init expression
	// differs between passes).
	probe, err := runtime.Link(0)
	if err != nil {
		return nil, err
	}

	compiled, err := codegen.CompileProgramFrom(prog, monoProg, layouts, probe.Funcs, probe.FirstLocalFuncIndex, 0)
	if err != nil {
		return nil, err
	}

	// Pass 2: now that the program's constant data is known, link the
	// runtime again with the bump allocator seeded just past it.
	bumpBase := align(compiled.DataLimit, 8)
	linked, err := runtime.Link(bumpBase)
	if err != nil {
		return nil, err
	}

	table, err := router.Build(prog, monoProg)
	if err != nil {
		return nil, err
	}

	mod := linked.Module
	configureMemory(mod, cfg)

	for _, ft := range compiled.Types {
		typeIdx := mod.AddType(ft)
		mod.Funcs = append(mod.Funcs, typeIdx)
	}
	mod.Code = append(mod.Code, compiled.Bodies...)

	entryBody, entryType, err := router.BuildEntrypoint(table, layouts, linked.Funcs, compiled.FuncIndex)
	if err != nil {
		return nil, err
	}
	entryTypeIdx := mod.AddType(entryType)
	entryFuncIdx := uint32(len(mod.Funcs))
	mod.Funcs = append(mod.Funcs, entryTypeIdx)
	mod.Code = append(mod.Code, entryBody)
	mod.Exports = append(mod.Exports, wasm.Export{Name: "user_entrypoint", Kind: wasm.KindFunc, Idx: entryFuncIdx})

	if table.Init != nil {
		initBody, initType, err := buildInit(table.Init, compiled.FuncIndex)
		if err != nil {
			return nil, err
		}
		initTypeIdx := mod.AddType(initType)
		initFuncIdx := uint32(len(mod.Funcs))
		mod.Funcs = append(mod.Funcs, initTypeIdx)
		mod.Code = append(mod.Code, initBody)
		mod.Exports = append(mod.Exports, wasm.Export{Name: "stylus_constructor", Kind: wasm.KindFunc, Idx: initFuncIdx})
	}

	mod.Data = append(mod.Data, dataSegments(compiled.DataSegments)...)

	return mod.Encode(), nil
}

// configureMemory applies the resolved config's memory bounds to the
// runtime module's single linear memory declaration.
func configureMemory(mod *wasm.Module, cfg config.Config) {
	if len(mod.Memories) == 0 {
		mod.Memories = append(mod.Memories, wasm.MemoryType{})
	}
	mod.Memories[0].Limits.Min = uint64(cfg.InitialMemoryPages)
	if cfg.MemoryLimitPages > 0 {
		max := uint64(cfg.MemoryLimitPages)
		mod.Memories[0].Limits.Max = &max
	}
}

// dataSegments lays out codegen's interned constant blobs as one active
// data segment each, starting at address 0 (spec §4.5: constants occupy
// the lowest addresses, with the bump arena starting past them).
func dataSegments(blobs [][]byte) []wasm.DataSegment {
	out := make([]wasm.DataSegment, 0, len(blobs))
	offset := uint32(0)
	for _, blob := range blobs {
		out = append(out, wasm.DataSegment{
			Init:   blob,
			Offset: offsetExpr(offset),
		})
		offset += uint32(len(blob))
	}
	return out
}

// offsetExpr encodes a constant i32 WASM init expression: i32.const
// offset, end.
func offsetExpr(offset uint32) []byte {
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(offset)}},
		{Opcode: wasm.OpEnd},
	}
	return wasm.EncodeInstructions(instrs)
}

// buildInit synthesizes the one-time-witness constructor wrapper: it calls
// the recognized init function directly, with zeroed arguments for any
// parameters (no ABI decoding — the constructor runs once at deployment
// with no calldata to decode from, spec §4.5 "Module initializers").
func buildInit(fn *mono.FunctionDef, funcIndex map[string]uint32) (*wasm.FuncBody, wasm.FuncType, error) {
	fnIdx, ok := funcIndex[fn.Key]
	if !ok {
		return nil, wasm.FuncType{}, errors.New(errors.PhaseRoute, errors.KindUnresolvedHandle).
			Detail("init function %q was not assigned a function index", fn.Name).Build()
	}

	var instrs []wasm.Instruction
	for range fn.Params {
		// Every init parameter (&mut TxContext, or the OTW struct pointer)
		// is an i32; passing a zero i32 is a valid (if semantically inert)
		// placeholder for a constructor that takes no externally supplied
		// arguments.
		instrs = append(instrs, wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}})
	}
	instrs = append(instrs, wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: fnIdx}})
	for range fn.Returns {
		instrs = append(instrs, wasm.Instruction{Opcode: wasm.OpDrop})
	}
	instrs = append(instrs, wasm.Instruction{Opcode: wasm.OpEnd})

	return &wasm.FuncBody{Code: wasm.EncodeInstructions(instrs)}, wasm.FuncType{}, nil
}
