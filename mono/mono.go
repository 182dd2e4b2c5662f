// Package mono implements pipeline stage M: eager monomorphization of every
// reachable generic instantiation (spec §4.3), grounded on the teacher's
// instantiation-cache pattern (component.CanonRegistry's Lifts/Lowers keyed
// by resolved type identity, not name) generalized to Move's
// (FunctionID, []ConcreteType) pairs.
package mono

import (
	"fmt"
	"strings"

	"github.com/movestylus/compiler/bytecode"
	wasmerrors "github.com/movestylus/compiler/errors"
	"github.com/movestylus/compiler/loader"
	"go.uber.org/zap"
)

// FunctionDef is a fully concrete, monomorphic function: every TypeParam has
// been substituted and no unresolved generic call sites remain.
type FunctionDef struct {
	Key     string // cache key: FunctionID + type args, for codegen/router lookups
	Source  loader.FunctionID
	Name    string
	Module  loader.ModuleID
	Params  []loader.Type
	Returns []loader.Type
	Locals  []loader.Type
	Code    []loader.Instruction
	IsEntry bool
	Native  bool
}

// Program is the monomorphization output: one FunctionDef per reachable
// instantiation, plus the entrypoint keys R needs to build its selector
// table.
type Program struct {
	Functions  map[string]*FunctionDef
	EntryKeys  []string
	InitKey    string
	HasInit    bool
}

// Specializer walks the entrypoint set and produces concrete FunctionDefs.
type Specializer struct {
	prog  *loader.Program
	log   *zap.Logger
	cache map[string]*FunctionDef
	queue []work
}

type work struct {
	fn       loader.FunctionID
	typeArgs []loader.Type
}

// Specialize runs monomorphization over prog, starting from every non-generic
// public function and the root module's init (spec §4.3). A generic public
// function is specialized only at the type arguments its callers use.
func Specialize(log *zap.Logger, prog *loader.Program) (*Program, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Specializer{prog: prog, log: log, cache: make(map[string]*FunctionDef)}

	out := &Program{Functions: make(map[string]*FunctionDef)}

	for _, fid := range prog.EntryPoints() {
		if prog.Function(fid).TypeParamCount > 0 {
			continue
		}
		key, err := s.specialize(fid, nil)
		if err != nil {
			return nil, err
		}
		out.EntryKeys = append(out.EntryKeys, key)
		if root := prog.Modules[prog.Root]; root.HasInit && fid == root.Init {
			out.InitKey = key
			out.HasInit = true
		}
	}

	for len(s.queue) > 0 {
		w := s.queue[0]
		s.queue = s.queue[1:]
		if _, err := s.specialize(w.fn, w.typeArgs); err != nil {
			return nil, err
		}
	}

	for k, v := range s.cache {
		out.Functions[k] = v
	}
	return out, nil
}

// Key renders a structural cache key for (fn, typeArgs): the function's
// interned ID plus each type argument's structural Key() (spec §9 "keyed by
// structural type equality, not by source spelling").
func Key(fn loader.FunctionID, typeArgs []loader.Type) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", fn)
	for _, t := range typeArgs {
		b.WriteByte('/')
		b.WriteString(t.Key())
	}
	return b.String()
}

func (s *Specializer) specialize(fid loader.FunctionID, typeArgs []loader.Type) (string, error) {
	key := Key(fid, typeArgs)
	if _, ok := s.cache[key]; ok {
		return key, nil
	}

	info := s.prog.Function(fid)
	if info.TypeParamCount != len(typeArgs) {
		return "", wasmerrors.New(wasmerrors.PhaseMono, wasmerrors.KindInternalInvariant).
			Function(info.Name).
			Detail("expected %d type arguments, got %d", info.TypeParamCount, len(typeArgs)).
			Build()
	}

	fd := &FunctionDef{
		Key:     key,
		Source:  fid,
		Name:    info.Name,
		Module:  info.Module,
		Params:  substituteAll(info.Params, typeArgs),
		Returns: substituteAll(info.Returns, typeArgs),
		Locals:  substituteAll(info.Locals, typeArgs),
		IsEntry: info.IsEntry,
		Native:  info.Native,
	}
	// Reserve the cache slot before recursing so mutually/self-recursive
	// calls at this instantiation find it instead of looping forever.
	s.cache[key] = fd

	if info.Native {
		s.log.Debug("monomorphized native", zap.String("key", key), zap.String("fn", info.Name))
		return key, nil
	}

	code := make([]loader.Instruction, len(info.Code))
	for i, instr := range info.Code {
		resolved := instr
		resolved.TypeArgs = substituteAll(instr.TypeArgs, typeArgs)

		if isCallOpcode(instr.Op) {
			calleeID := loader.FunctionID(instr.Arg)
			callee := s.prog.Function(calleeID)
			var calleeTypeArgs []loader.Type
			if callee.TypeParamCount > 0 {
				calleeTypeArgs = resolved.TypeArgs
			}
			calleeKey := Key(calleeID, calleeTypeArgs)
			s.enqueue(calleeID, calleeTypeArgs)
			resolved.Arg = 0 // codegen resolves via CalleeKey, not a raw index
			resolved.CalleeKey = calleeKey
		}

		code[i] = resolved
	}
	fd.Code = code

	s.log.Debug("monomorphized function",
		zap.String("key", key), zap.String("fn", info.Name), zap.Int("type_args", len(typeArgs)))
	return key, nil
}

func (s *Specializer) enqueue(fn loader.FunctionID, typeArgs []loader.Type) {
	key := Key(fn, typeArgs)
	if _, ok := s.cache[key]; ok {
		return
	}
	s.queue = append(s.queue, work{fn: fn, typeArgs: typeArgs})
}

func isCallOpcode(op bytecode.Opcode) bool {
	return op == bytecode.OpCall || op == bytecode.OpCallGeneric
}

func substituteAll(types []loader.Type, args []loader.Type) []loader.Type {
	if len(args) == 0 {
		return types
	}
	out := make([]loader.Type, len(types))
	for i, t := range types {
		out[i] = t.Substitute(args)
	}
	return out
}
