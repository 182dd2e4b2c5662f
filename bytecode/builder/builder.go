// Package builder assembles bytecode.Module values programmatically.
//
// Move has no human-authored text format in this exercise's scope (unlike
// WASM's WAT, which the wat package compiles from text), so fixtures and
// higher-level loader/codegen/router tests construct modules directly
// through this fluent builder instead of hand-writing byte tables.
package builder

import "github.com/movestylus/compiler/bytecode"

// Module incrementally builds a bytecode.Module, interning identifiers and
// addresses as they are referenced.
type Module struct {
	m         bytecode.Module
	identIdx  map[string]uint32
	addrIdx   map[bytecode.Address]uint32
}

// New starts a module declared at address addr, named name.
func New(addr bytecode.Address, name string) *Module {
	b := &Module{
		identIdx: make(map[string]uint32),
		addrIdx:  make(map[bytecode.Address]uint32),
	}
	addrID := b.internAddress(addr)
	nameID := b.intern(name)
	b.m.SelfModuleHandle = uint32(len(b.m.ModuleHandles))
	b.m.ModuleHandles = append(b.m.ModuleHandles, bytecode.ModuleHandle{Address: addrID, Name: nameID})
	return b
}

func (b *Module) intern(s string) uint32 {
	if idx, ok := b.identIdx[s]; ok {
		return idx
	}
	idx := uint32(len(b.m.Identifiers))
	b.m.Identifiers = append(b.m.Identifiers, s)
	b.identIdx[s] = idx
	return idx
}

func (b *Module) internAddress(a bytecode.Address) uint32 {
	if idx, ok := b.addrIdx[a]; ok {
		return idx
	}
	idx := uint32(len(b.m.AddressIdentifiers))
	b.m.AddressIdentifiers = append(b.m.AddressIdentifiers, a)
	b.addrIdx[a] = idx
	return idx
}

// Signature interns a Signature and returns its table index.
func (b *Module) Signature(tokens ...bytecode.SignatureToken) uint32 {
	idx := uint32(len(b.m.Signatures))
	b.m.Signatures = append(b.m.Signatures, bytecode.Signature{Tokens: tokens})
	return idx
}

// Constant appends a constant pool entry and returns its index.
func (b *Module) Constant(tag bytecode.TypeTag, data []byte) uint32 {
	idx := uint32(len(b.m.ConstantPool))
	b.m.ConstantPool = append(b.m.ConstantPool, bytecode.Constant{Type: tag, Data: data})
	return idx
}

// FieldHandle declares a handle to one field of a previously built struct
// def, for use as a BorrowField / BorrowFieldGeneric instruction operand.
func (b *Module) FieldHandle(structDef uint32, field uint32) uint32 {
	idx := uint32(len(b.m.FieldHandles))
	b.m.FieldHandles = append(b.m.FieldHandles, bytecode.FieldHandle{Owner: structDef, Field: field})
	return idx
}

// ForeignModule declares a ModuleHandle for a dependency module (one this
// module references but does not itself define), returning its index for
// use with StructHandleIn / FunctionHandleIn.
func (b *Module) ForeignModule(addr bytecode.Address, name string) uint32 {
	idx := uint32(len(b.m.ModuleHandles))
	b.m.ModuleHandles = append(b.m.ModuleHandles, bytecode.ModuleHandle{
		Address: b.internAddress(addr),
		Name:    b.intern(name),
	})
	return idx
}

// StructHandle declares a struct handle owned by this module and returns
// its index.
func (b *Module) StructHandle(name string, abilities bytecode.Ability, typeParams ...bytecode.Ability) uint32 {
	return b.StructHandleIn(b.m.SelfModuleHandle, name, abilities, typeParams...)
}

// StructHandleIn declares a struct handle owned by moduleHandle, which may
// name a foreign module previously declared via ForeignModule.
func (b *Module) StructHandleIn(moduleHandle uint32, name string, abilities bytecode.Ability, typeParams ...bytecode.Ability) uint32 {
	idx := uint32(len(b.m.StructHandles))
	b.m.StructHandles = append(b.m.StructHandles, bytecode.StructHandle{
		Module:     moduleHandle,
		Name:       b.intern(name),
		Abilities:  abilities,
		TypeParams: typeParams,
	})
	return idx
}

// StructDef attaches fields to a previously declared struct handle.
func (b *Module) StructDef(handle uint32, fields ...bytecode.FieldDef) uint32 {
	idx := uint32(len(b.m.StructDefs))
	b.m.StructDefs = append(b.m.StructDefs, bytecode.StructDef{Handle: handle, Fields: fields})
	return idx
}

// Field builds a FieldDef, interning its name.
func (b *Module) Field(name string, typ bytecode.SignatureToken) bytecode.FieldDef {
	return bytecode.FieldDef{Name: b.intern(name), Type: typ}
}

// EnumDef declares an enum definition over a fresh struct handle slot
// (enums share the handle table, per spec's data model).
func (b *Module) EnumDef(name string, abilities bytecode.Ability, variants ...bytecode.VariantDef) uint32 {
	handle := b.StructHandle(name, abilities)
	idx := uint32(len(b.m.EnumDefs))
	b.m.EnumDefs = append(b.m.EnumDefs, bytecode.EnumDef{Handle: handle, Variants: variants})
	return idx
}

// Variant builds a VariantDef, interning its name.
func (b *Module) Variant(name string, fields ...bytecode.FieldDef) bytecode.VariantDef {
	return bytecode.VariantDef{Name: b.intern(name), Fields: fields}
}

// FunctionHandle declares a function handle owned by this module.
func (b *Module) FunctionHandle(name string, params, returns uint32, typeParams ...bytecode.Ability) uint32 {
	return b.FunctionHandleIn(b.m.SelfModuleHandle, name, params, returns, typeParams...)
}

// FunctionHandleIn declares a function handle owned by moduleHandle, which
// may name a foreign module previously declared via ForeignModule.
func (b *Module) FunctionHandleIn(moduleHandle uint32, name string, params, returns uint32, typeParams ...bytecode.Ability) uint32 {
	idx := uint32(len(b.m.FunctionHandles))
	b.m.FunctionHandles = append(b.m.FunctionHandles, bytecode.FunctionHandle{
		Module:     moduleHandle,
		Name:       b.intern(name),
		Parameters: params,
		Returns:    returns,
		TypeParams: typeParams,
	})
	return idx
}

// FunctionDef attaches a visibility, local signature and code body to a
// previously declared function handle.
func (b *Module) FunctionDef(handle uint32, vis bytecode.Visibility, isEntry bool, locals uint32, code ...bytecode.Instruction) uint32 {
	idx := uint32(len(b.m.FunctionDefs))
	b.m.FunctionDefs = append(b.m.FunctionDefs, bytecode.FunctionDef{
		Handle:     handle,
		Visibility: vis,
		IsEntry:    isEntry,
		Locals:     locals,
		Code:       code,
	})
	return idx
}

// Build returns the assembled module.
func (b *Module) Build() *bytecode.Module {
	return &b.m
}

// Bool, U8, ..., constructors for primitive SignatureTokens, generalized
// shorthands used throughout tests and fixtures.
func Bool() bytecode.SignatureToken    { return bytecode.SignatureToken{Tag: bytecode.TagBool} }
func U8() bytecode.SignatureToken      { return bytecode.SignatureToken{Tag: bytecode.TagU8} }
func U16() bytecode.SignatureToken     { return bytecode.SignatureToken{Tag: bytecode.TagU16} }
func U32() bytecode.SignatureToken     { return bytecode.SignatureToken{Tag: bytecode.TagU32} }
func U64() bytecode.SignatureToken     { return bytecode.SignatureToken{Tag: bytecode.TagU64} }
func U128() bytecode.SignatureToken    { return bytecode.SignatureToken{Tag: bytecode.TagU128} }
func U256() bytecode.SignatureToken    { return bytecode.SignatureToken{Tag: bytecode.TagU256} }
func Address() bytecode.SignatureToken { return bytecode.SignatureToken{Tag: bytecode.TagAddress} }
func Signer() bytecode.SignatureToken  { return bytecode.SignatureToken{Tag: bytecode.TagSigner} }

func Vector(elem bytecode.SignatureToken) bytecode.SignatureToken {
	return bytecode.SignatureToken{Tag: bytecode.TagVector, Elem: &elem}
}

func Ref(elem bytecode.SignatureToken) bytecode.SignatureToken {
	return bytecode.SignatureToken{Tag: bytecode.TagReference, Elem: &elem}
}

func MutRef(elem bytecode.SignatureToken) bytecode.SignatureToken {
	return bytecode.SignatureToken{Tag: bytecode.TagMutableReference, Elem: &elem}
}

func Struct(handle uint32) bytecode.SignatureToken {
	return bytecode.SignatureToken{Tag: bytecode.TagStruct, StructHandle: handle}
}

func StructInst(handle uint32, args ...bytecode.SignatureToken) bytecode.SignatureToken {
	return bytecode.SignatureToken{Tag: bytecode.TagStructInst, StructHandle: handle, TypeArgs: args}
}

func TypeParam(idx uint32) bytecode.SignatureToken {
	return bytecode.SignatureToken{Tag: bytecode.TagTypeParam, TypeParamIdx: idx}
}
