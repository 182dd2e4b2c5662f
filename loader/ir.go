package loader

import "github.com/movestylus/compiler/bytecode"

// FieldInfo is one resolved field of a struct or enum variant.
type FieldInfo struct {
	Name string
	Type Type
}

// StructInfo is the interned, resolved form of a bytecode.StructDef (or a
// struct that is only ever referenced by handle from elsewhere, in which
// case Fields is nil and IsHandleOnly is true).
type StructInfo struct {
	ID             StructID
	Module         ModuleID
	Name           string
	Abilities      bytecode.Ability
	TypeParamCount int
	Fields         []FieldInfo
	IsHandleOnly   bool
	Native         bool
}

// VariantInfo is one resolved enum variant.
type VariantInfo struct {
	Name   string
	Fields []FieldInfo
}

// EnumInfo is the interned, resolved form of a bytecode.EnumDef.
type EnumInfo struct {
	ID             EnumID
	Module         ModuleID
	Name           string
	Abilities      bytecode.Ability
	TypeParamCount int
	Variants       []VariantInfo
}

// Instruction is a resolved bytecode instruction: every handle the raw
// bytecode.Instruction carried has been replaced with an interned ID, and
// every SignatureToken has been replaced with a resolved Type.
type Instruction struct {
	Op       bytecode.Opcode
	Arg      uint64
	Arg2     uint64
	TypeArgs []Type
	Targets  []uint32

	// CalleeKey is set by mono on OpCall/OpCallGeneric instructions once
	// the callee has been resolved to a concrete monomorphized instance;
	// Arg is meaningless for calls after that point.
	CalleeKey string
}

// FunctionInfo is the interned, resolved form of a bytecode.FunctionDef.
type FunctionInfo struct {
	ID             FunctionID
	Module         ModuleID
	Name           string
	Visibility     bytecode.Visibility
	IsEntry        bool
	TypeParamCount int
	Params         []Type
	Returns        []Type
	Locals         []Type // full local table, params first
	Code           []Instruction
	Native         bool

	// ConstructorKind is non-zero when this function was recognized as the
	// module's `init` constructor (spec §4.1 / §4.5).
	ConstructorKind ConstructorKind
}

// ConstructorKind classifies a module's init function, per spec §4.5.
type ConstructorKind int

const (
	NotConstructor ConstructorKind = iota
	ConstructorWithOTW
	ConstructorNoOTW
)

// Module is one interned module: its own declarations plus the set of
// modules it uses.
type Module struct {
	ID        ModuleID
	Address   bytecode.Address
	Name      string
	Functions []FunctionID
	Structs   []StructID
	Enums     []EnumID
	Constants []bytecode.Constant
	Uses      []ModuleID

	// Init is the recognized constructor function, or -1 if none.
	Init FunctionID
	HasInit bool

	// OTWWithoutInit records Open Question (b): the module declares an
	// OTW-shaped struct but no init. Loader warns rather than rejects.
	OTWWithoutInit bool
}

// Program is the loader's output: an interning arena of Modules plus
// deduplicated function/struct/enum tables and per-module constant pools.
// Built once by L; immutable thereafter (spec §3 "Lifecycle").
type Program struct {
	Root ModuleID

	Modules   map[ModuleID]*Module
	Functions []*FunctionInfo
	Structs   []*StructInfo
	Enums     []*EnumInfo

	// Warnings accumulates non-fatal diagnostics (Open Question (b)).
	Warnings []string
}

// Function returns the interned function for id.
func (p *Program) Function(id FunctionID) *FunctionInfo { return p.Functions[id] }

// Struct returns the interned struct for id.
func (p *Program) Struct(id StructID) *StructInfo { return p.Structs[id] }

// Enum returns the interned enum for id.
func (p *Program) Enum(id EnumID) *EnumInfo { return p.Enums[id] }

// EntryPoints returns every public function plus the root module's init,
// the monomorphization walk's starting set (spec §4.3).
func (p *Program) EntryPoints() []FunctionID {
	var out []FunctionID
	for _, fn := range p.Functions {
		if fn.Visibility == bytecode.VisibilityPublic {
			out = append(out, fn.ID)
		}
	}
	if root := p.Modules[p.Root]; root != nil && root.HasInit {
		out = append(out, root.Init)
	}
	return out
}
