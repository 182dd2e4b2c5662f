package bytecode

// Opcode enumerates the Move bytecode stack-machine instructions that
// codegen (C) must translate, per spec §4.4. The numbering is internal to
// this module (it need not match upstream Move exactly — the loader is the
// only reader of raw bytes, and it owns this table).
type Opcode byte

const (
	OpNop Opcode = iota

	// Constants and literals.
	OpLdConst // Arg: constant pool index
	OpLdTrue
	OpLdFalse
	OpLdU8   // Arg: literal value
	OpLdU16
	OpLdU32
	OpLdU64
	OpLdU128 // Arg: constant pool index (width doesn't fit an immediate)
	OpLdU256 // Arg: constant pool index

	// Locals.
	OpCopyLoc  // Arg: local index
	OpMoveLoc  // Arg: local index
	OpStLoc    // Arg: local index
	OpBorrowLoc // Arg: local index

	// References and fields.
	OpBorrowField        // Arg: field handle index
	OpBorrowFieldGeneric // Arg: field handle index; TypeArgs from instantiation
	OpReadRef
	OpWriteRef
	OpFreezeRef

	// Calls.
	OpCall        // Arg: function handle index
	OpCallGeneric // Arg: function handle index; TypeArgs from instantiation

	// Struct pack/unpack.
	OpPack            // Arg: struct def index
	OpPackGeneric      // Arg: struct def index; TypeArgs
	OpUnpack
	OpUnpackGeneric

	// Enum pack/unpack/dispatch.
	OpPackVariant    // Arg: enum def index, variant index
	OpUnpackVariant  // Arg: enum def index, variant index
	OpVariantSwitch  // Arg: jump table of (code offset) per variant

	// Vectors.
	OpVecPack      // Arg: element type, literal count (consumes count operands)
	OpVecLen
	OpVecImmBorrow
	OpVecMutBorrow
	OpVecPushBack
	OpVecPopBack
	OpVecSwap
	OpVecUnpack // Arg: literal count (produces count operands)

	// Arithmetic (widths carried on the operand's inferred type via T).
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitOr
	OpBitAnd
	OpXor
	OpShl
	OpShr
	OpLt
	OpGt
	OpLe
	OpGe
	OpEq
	OpNeq
	OpNot
	OpAnd
	OpOr

	// Casts.
	OpCastU8
	OpCastU16
	OpCastU32
	OpCastU64
	OpCastU128
	OpCastU256

	// Control flow.
	OpBranch      // Arg: code offset, unconditional
	OpBranchTrue  // Arg: code offset, pops bool
	OpBranchFalse // Arg: code offset, pops bool
	OpAbort       // pops u64 abort code
	OpRet
	OpPop

	// Stylus-framework natives, recognized and lowered directly by codegen
	// rather than treated as ordinary calls (spec §9 "Object model and
	// storage").
	OpObjectNew
	OpTransfer
	OpShareObject
	OpFreezeObject
	OpDeleteObject
	OpTxContextSender
	OpEventEmit
)

// Instruction is one bytecode instruction plus its immediate operands.
// TypeArgs carries the instantiation for *Generic opcodes and for natives
// that are themselves generic (object::new<T>, transfer::transfer<T>, ...).
type Instruction struct {
	Op       Opcode
	Arg      uint64
	Arg2     uint64
	TypeArgs []SignatureToken
	Targets  []uint32 // branch table targets, for OpVariantSwitch
}
