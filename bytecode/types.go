// Package bytecode parses and builds the Move bytecode file format: the
// binary artifact the loader stage (L) consumes. This is the format
// described in spec §6 "Input — Move bytecode file format": a magic
// header, a version number, ULEB128-encoded table sizes, and per-table
// records (module/struct/function handles, signatures, constant pool,
// struct/enum definitions, function definitions with a code unit).
//
// The reader mirrors wasm.ParseModule's shape: a cursor-based *Reader over
// the section/table directory, with the same ULEB128 helpers. Nothing here
// interprets the tables semantically — that's the loader package's job;
// this package only turns bytes into (and from) the table structures.
package bytecode

// Magic and Version identify the Move bytecode binary format.
const (
	Magic   uint32 = 0xA11CEB0B
	Version uint32 = 7
)

// AddressLen is the width of a Move account address, in bytes.
const AddressLen = 16

// Address is a 16-byte account address.
type Address [AddressLen]byte

// Ability is a single Move ability bit (copy, drop, store, key).
type Ability byte

const (
	AbilityCopy  Ability = 1 << 0
	AbilityDrop  Ability = 1 << 1
	AbilityStore Ability = 1 << 2
	AbilityKey   Ability = 1 << 3
)

// Has reports whether the ability set contains ability a.
func (a Ability) Has(b Ability) bool { return a&b != 0 }

// ModuleHandle names a module by its declaring address and identifier.
type ModuleHandle struct {
	Address    uint32 // index into AddressIdentifiers
	Name       uint32 // index into Identifiers
}

// StructHandle references a struct definition, possibly in another module.
type StructHandle struct {
	Module       uint32 // index into ModuleHandles
	Name         uint32 // index into Identifiers
	Abilities    Ability
	TypeParams   []Ability // one ability constraint set per generic parameter
}

// FunctionHandle references a function definition, possibly in another
// module.
type FunctionHandle struct {
	Module     uint32 // index into ModuleHandles
	Name       uint32 // index into Identifiers
	Parameters uint32 // index into Signatures
	Returns    uint32 // index into Signatures
	TypeParams []Ability
}

// FieldHandle references a single field of a struct definition.
type FieldHandle struct {
	Owner uint32 // index into StructDefs
	Field uint32 // field position within the struct
}

// Constant is a single entry in the constant pool: a primitive or
// vector<u8> literal, type-tagged for the loader's benefit.
type Constant struct {
	Type TypeTag
	Data []byte // little-endian encoded payload
}

// StructDef is the body of a struct declaration: its handle plus field
// list (absent for a native or a handle-only forward declaration).
type StructDef struct {
	Handle uint32 // index into StructHandles
	Fields []FieldDef
	Native bool
}

// FieldDef is one declared field of a struct, in declaration order.
type FieldDef struct {
	Name uint32 // index into Identifiers
	Type SignatureToken
}

// EnumDef is the body of an enum declaration: its handle plus an ordered
// variant list. Tag width is always one byte; variants are numbered from 0
// in declaration order (spec §3 invariant 5).
type EnumDef struct {
	Handle   uint32 // index into StructHandles (enums share the handle table)
	Variants []VariantDef
}

// VariantDef is one declared variant of an enum, with its ordered field
// tuple.
type VariantDef struct {
	Name   uint32 // index into Identifiers
	Fields []FieldDef
}

// Visibility is a function's declared visibility.
type Visibility byte

const (
	VisibilityPrivate Visibility = iota
	VisibilityPublic
	VisibilityFriend
)

// FunctionDef is the body of a function declaration.
type FunctionDef struct {
	Handle       uint32 // index into FunctionHandles
	Visibility   Visibility
	IsEntry      bool
	TypeParams   []Ability
	Locals       uint32 // index into Signatures, local variable types (params + declared)
	Code         []Instruction
	Native       bool
}

// Module is the fully parsed, but not yet interned, contents of one Move
// bytecode file. Handles inside it are dense indices into the tables below;
// the loader stage replaces them with global interned IDs.
type Module struct {
	SelfModuleHandle uint32

	AddressIdentifiers []Address
	Identifiers        []string
	ModuleHandles      []ModuleHandle
	StructHandles      []StructHandle
	FunctionHandles    []FunctionHandle
	FieldHandles       []FieldHandle
	Signatures         []Signature
	ConstantPool       []Constant

	StructDefs   []StructDef
	EnumDefs     []EnumDef
	FunctionDefs []FunctionDef
}

// Name returns the module's own identifier string.
func (m *Module) Name() string {
	h := m.ModuleHandles[m.SelfModuleHandle]
	return m.Identifiers[h.Name]
}

// SelfAddress returns the module's own declaring address.
func (m *Module) SelfAddress() Address {
	h := m.ModuleHandles[m.SelfModuleHandle]
	return m.AddressIdentifiers[h.Address]
}
