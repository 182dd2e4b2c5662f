package bytecode

// TypeTag identifies the shape of a SignatureToken, per spec §6's wire
// format. Values match the upstream Move bytecode file format exactly.
type TypeTag byte

const (
	TagMutableReference TypeTag = 3
	TagReference        TypeTag = 4
	TagAddress          TypeTag = 5
	TagU64              TypeTag = 6
	TagU128             TypeTag = 7
	TagTypeParam        TypeTag = 8
	TagVector           TypeTag = 9
	TagSigner           TypeTag = 10
	TagStruct           TypeTag = 11
	TagU16              TypeTag = 12
	TagU32              TypeTag = 13
	TagU256             TypeTag = 14
	TagStructInst       TypeTag = 15
	TagBool             TypeTag = 1
	TagU8               TypeTag = 2
)

// SignatureToken is a single entry in a Signature table: a recursively
// structured type reference as it appears in bytecode, prior to handle
// resolution by the loader.
type SignatureToken struct {
	// Elem is the referent for Vector, Reference, and MutableReference.
	Elem *SignatureToken

	// TypeArgs are the generic instantiation arguments for StructInst.
	TypeArgs []SignatureToken

	Tag TypeTag

	// StructHandle indexes into the module's struct handle table, valid for
	// Struct and StructInst.
	StructHandle uint32

	// TypeParamIdx is the function/struct generic parameter index, valid
	// for TypeParam.
	TypeParamIdx uint32
}

// IsPrimitive reports whether the token denotes a scalar with no nested
// structure (everything except Vector, Struct(Inst), Reference).
func (t SignatureToken) IsPrimitive() bool {
	switch t.Tag {
	case TagBool, TagU8, TagU16, TagU32, TagU64, TagU128, TagU256, TagAddress, TagSigner:
		return true
	default:
		return false
	}
}

// Signature is a sequence of SignatureTokens, used for function
// parameter/return shapes and for local variable tables.
type Signature struct {
	Tokens []SignatureToken
}
