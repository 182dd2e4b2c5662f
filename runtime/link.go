package runtime

import (
	"github.com/movestylus/compiler/errors"
	"github.com/movestylus/compiler/wasm"
	"github.com/movestylus/compiler/wat"
)

// Linked is the runtime support module after compilation and parsing: its
// full wasm.Module plus a name-to-index lookup spanning both the vm_hooks
// host imports and the rt_* functions defined in Source, so later stages
// never need to care which side of that split a call target is on.
type Linked struct {
	Module *wasm.Module

	// Funcs maps every import and export function name to its function
	// index in Module, imports first (spec §6.2 "vm_hooks"), exports
	// (the rt_* support functions) after. Callers never collide on name:
	// vm_hooks names never start with "rt_".
	Funcs map[string]uint32

	// Globals maps the runtime's three mutable globals by their export
	// name ("bump", "obj_ctr", "obj_reg", without the WAT "$" sigil).
	Globals map[string]uint32

	// FirstLocalFuncIndex is the function index codegen's own,
	// compiler-generated functions must start assigning from once spliced
	// after the runtime's imports and locally defined functions.
	FirstLocalFuncIndex uint32
}

// Link compiles the hand-authored WAT runtime (Source) and parses it back
// into a wasm.Module, the way the teacher's linker package resolves a set
// of named imports into concrete indices before final module assembly.
// bumpBase is the byte offset the $bump allocator global starts at — callers
// pass 0 for a first pass to discover function/type layout, then the actual
// post-codegen data limit for the real build (movestylus.Compile's two-pass
// resolution), since only the $bump global's init-expression constant
// differs between the two calls.
func Link(bumpBase uint32) (*Linked, error) {
	bin, err := wat.Compile(Source(bumpBase))
	if err != nil {
		return nil, errors.New(errors.PhaseLink, errors.KindBadBytecode).
			Detail("compiling runtime WAT source: %v", err).Build()
	}
	mod, err := wasm.ParseModule(bin)
	if err != nil {
		return nil, errors.New(errors.PhaseLink, errors.KindBadBytecode).
			Detail("parsing compiled runtime module: %v", err).Build()
	}

	funcs := map[string]uint32{}
	var idx uint32
	for _, imp := range mod.Imports {
		if imp.Desc.Kind == wasm.KindFunc {
			funcs[imp.Name] = idx
			idx++
		}
	}
	for _, exp := range mod.Exports {
		if exp.Kind == wasm.KindFunc {
			funcs[exp.Name] = exp.Idx
		}
	}

	globals := map[string]uint32{}
	for _, exp := range mod.Exports {
		if exp.Kind == wasm.KindGlobal {
			globals[exp.Name] = exp.Idx
		}
	}

	return &Linked{
		Module:              mod,
		Funcs:               funcs,
		Globals:             globals,
		FirstLocalFuncIndex: uint32(mod.NumImportedFuncs() + len(mod.Funcs)),
	}, nil
}
