package loader

// Kind tags the Move type universe, per spec §3 "Types".
type Kind byte

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindAddress
	KindSigner
	KindVector
	KindStruct
	KindEnum
	KindRef
	KindTypeParam
	KindTuple
)

// ModuleID, StructID, EnumID, FunctionID are dense indices into a Program's
// interned tables. Handles inside raw bytecode are replaced by these so
// later stages never re-resolve a handle.
type (
	ModuleID   uint32
	StructID   uint32
	EnumID     uint32
	FunctionID uint32
)

// Type is the tagged variant described in spec §3: primitives, Vector(T),
// Struct(StructId,[T]), Enum(EnumId,[T]), Ref(T,mutability), TypeParam(n)
// (only present pre-monomorphization), and Tuple([T]) (function-return
// shape only).
type Type struct {
	Elem         *Type // Vector element, or Ref referent
	TypeArgs     []Type
	Tuple        []Type
	Kind         Kind
	StructID     StructID // valid when Kind == KindStruct
	EnumID       EnumID   // valid when Kind == KindEnum
	TypeParamIdx uint32   // valid when Kind == KindTypeParam
	Mutable      bool     // valid when Kind == KindRef
}

// HasTypeParam reports whether t (or anything nested in it) still contains
// an unresolved TypeParam. Post-monomorphization types must always report
// false (spec §3 invariant 3).
func (t Type) HasTypeParam() bool {
	switch t.Kind {
	case KindTypeParam:
		return true
	case KindVector, KindRef:
		return t.Elem != nil && t.Elem.HasTypeParam()
	case KindStruct, KindEnum:
		for _, a := range t.TypeArgs {
			if a.HasTypeParam() {
				return true
			}
		}
		return false
	case KindTuple:
		for _, a := range t.Tuple {
			if a.HasTypeParam() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Equal reports structural equality, the basis for the monomorphization
// instantiation cache key (spec §9: "keyed by structural type equality,
// not by source spelling").
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindVector:
		return t.Elem.Equal(*o.Elem)
	case KindRef:
		return t.Mutable == o.Mutable && t.Elem.Equal(*o.Elem)
	case KindStruct:
		return t.StructID == o.StructID && equalTypeSlices(t.TypeArgs, o.TypeArgs)
	case KindEnum:
		return t.EnumID == o.EnumID && equalTypeSlices(t.TypeArgs, o.TypeArgs)
	case KindTypeParam:
		return t.TypeParamIdx == o.TypeParamIdx
	case KindTuple:
		return equalTypeSlices(t.Tuple, o.Tuple)
	default:
		return true
	}
}

func equalTypeSlices(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Key returns a string uniquely identifying t under structural equality,
// suitable as a map key for the monomorphization cache.
func (t Type) Key() string {
	var b []byte
	b = t.appendKey(b)
	return string(b)
}

func (t Type) appendKey(b []byte) []byte {
	b = append(b, byte(t.Kind))
	switch t.Kind {
	case KindVector:
		b = t.Elem.appendKey(b)
	case KindRef:
		if t.Mutable {
			b = append(b, 1)
		} else {
			b = append(b, 0)
		}
		b = t.Elem.appendKey(b)
	case KindStruct:
		b = appendUint32(b, uint32(t.StructID))
		for _, a := range t.TypeArgs {
			b = a.appendKey(b)
		}
	case KindEnum:
		b = appendUint32(b, uint32(t.EnumID))
		for _, a := range t.TypeArgs {
			b = a.appendKey(b)
		}
	case KindTypeParam:
		b = appendUint32(b, t.TypeParamIdx)
	case KindTuple:
		for _, a := range t.Tuple {
			b = a.appendKey(b)
		}
	}
	return b
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// Substitute replaces every TypeParam(n) in t with args[n], returning a new
// Type free of TypeParam (spec §3 invariant 3, assuming args themselves are
// already concrete — monomorphization's job).
func (t Type) Substitute(args []Type) Type {
	switch t.Kind {
	case KindTypeParam:
		if int(t.TypeParamIdx) < len(args) {
			return args[t.TypeParamIdx]
		}
		return t
	case KindVector:
		elem := t.Elem.Substitute(args)
		return Type{Kind: KindVector, Elem: &elem}
	case KindRef:
		elem := t.Elem.Substitute(args)
		return Type{Kind: KindRef, Mutable: t.Mutable, Elem: &elem}
	case KindStruct:
		return Type{Kind: KindStruct, StructID: t.StructID, TypeArgs: substituteAll(t.TypeArgs, args)}
	case KindEnum:
		return Type{Kind: KindEnum, EnumID: t.EnumID, TypeArgs: substituteAll(t.TypeArgs, args)}
	case KindTuple:
		return Type{Kind: KindTuple, Tuple: substituteAll(t.Tuple, args)}
	default:
		return t
	}
}

func substituteAll(types []Type, args []Type) []Type {
	out := make([]Type, len(types))
	for i, t := range types {
		out[i] = t.Substitute(args)
	}
	return out
}

// Primitive type constructors, used pervasively by the loader and by tests.
func Bool() Type    { return Type{Kind: KindBool} }
func U8() Type      { return Type{Kind: KindU8} }
func U16() Type     { return Type{Kind: KindU16} }
func U32() Type     { return Type{Kind: KindU32} }
func U64() Type     { return Type{Kind: KindU64} }
func U128() Type    { return Type{Kind: KindU128} }
func U256() Type    { return Type{Kind: KindU256} }
func Address() Type { return Type{Kind: KindAddress} }
func Signer() Type  { return Type{Kind: KindSigner} }

func Vector(elem Type) Type { return Type{Kind: KindVector, Elem: &elem} }
func Ref(elem Type, mutable bool) Type {
	return Type{Kind: KindRef, Elem: &elem, Mutable: mutable}
}
func Struct(id StructID, args ...Type) Type { return Type{Kind: KindStruct, StructID: id, TypeArgs: args} }
func Enum(id EnumID, args ...Type) Type     { return Type{Kind: KindEnum, EnumID: id, TypeArgs: args} }
func TypeParam(idx uint32) Type             { return Type{Kind: KindTypeParam, TypeParamIdx: idx} }
func Tuple(elems ...Type) Type              { return Type{Kind: KindTuple, Tuple: elems} }
