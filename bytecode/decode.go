package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/movestylus/compiler/bytecode/internal/leb128"
	wasmerrors "github.com/movestylus/compiler/errors"
)

// reader is a cursor over bytecode bytes, mirroring the shape of
// wasm/internal/binary.Reader: a *bytes.Reader plus contextual error
// wrapping so a truncated table reports which table it was reading.
type reader struct {
	r *bytes.Reader
}

func newReader(data []byte) *reader {
	return &reader{r: bytes.NewReader(data)}
}

func (r *reader) wrap(where string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", where, err)
}

func (r *reader) byte() (byte, error) {
	return r.r.ReadByte()
}

func (r *reader) u32() (uint32, error) {
	return leb128.ReadU32(r.r)
}

func (r *reader) u64() (uint64, error) {
	return leb128.ReadU64(r.r)
}

func (r *reader) bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// str reads a ULEB128-prefixed UTF-8 string.
func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	buf, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (r *reader) address() (Address, error) {
	var a Address
	buf, err := r.bytes(AddressLen)
	if err != nil {
		return a, err
	}
	copy(a[:], buf)
	return a, nil
}

// Read parses a Move bytecode file (header, table directory, pool and body
// tables) into a *Module. It does not resolve or validate cross-table
// indices — that is the loader stage's job (spec §4.1).
func Read(data []byte) (*Module, error) {
	r := newReader(data)

	magic, err := r.u32leRaw()
	if err != nil {
		return nil, r.wrap("header", err)
	}
	if magic != Magic {
		return nil, wasmerrors.New(wasmerrors.PhaseLoad, wasmerrors.KindBadBytecode).
			Detail("invalid magic number %#x", magic).Build()
	}

	version, err := r.u32leRaw()
	if err != nil {
		return nil, r.wrap("header", err)
	}
	if version != Version {
		return nil, wasmerrors.New(wasmerrors.PhaseLoad, wasmerrors.KindBadBytecode).
			Detail("unsupported bytecode version %d", version).Build()
	}

	m := &Module{}

	selfHandle, err := r.u32()
	if err != nil {
		return nil, r.wrap("self module handle", err)
	}
	m.SelfModuleHandle = selfHandle

	if m.AddressIdentifiers, err = readAddresses(r); err != nil {
		return nil, r.wrap("address identifiers", err)
	}
	if m.Identifiers, err = readIdentifiers(r); err != nil {
		return nil, r.wrap("identifiers", err)
	}
	if m.ModuleHandles, err = readModuleHandles(r); err != nil {
		return nil, r.wrap("module handles", err)
	}
	if m.StructHandles, err = readStructHandles(r); err != nil {
		return nil, r.wrap("struct handles", err)
	}
	if m.FunctionHandles, err = readFunctionHandles(r); err != nil {
		return nil, r.wrap("function handles", err)
	}
	if m.FieldHandles, err = readFieldHandles(r); err != nil {
		return nil, r.wrap("field handles", err)
	}
	if m.Signatures, err = readSignatures(r); err != nil {
		return nil, r.wrap("signatures", err)
	}
	if m.ConstantPool, err = readConstants(r); err != nil {
		return nil, r.wrap("constant pool", err)
	}
	if m.StructDefs, err = readStructDefs(r); err != nil {
		return nil, r.wrap("struct defs", err)
	}
	if m.EnumDefs, err = readEnumDefs(r); err != nil {
		return nil, r.wrap("enum defs", err)
	}
	if m.FunctionDefs, err = readFunctionDefs(r); err != nil {
		return nil, r.wrap("function defs", err)
	}

	return m, nil
}

// u32leRaw reads a fixed 4-byte little-endian integer (used only for the
// magic/version header fields, which are not ULEB128-encoded).
func (r *reader) u32leRaw() (uint32, error) {
	buf, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func readAddresses(r *reader) ([]Address, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]Address, n)
	for i := range out {
		if out[i], err = r.address(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readIdentifiers(r *reader) ([]string, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = r.str(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readModuleHandles(r *reader) ([]ModuleHandle, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]ModuleHandle, n)
	for i := range out {
		addr, err := r.u32()
		if err != nil {
			return nil, err
		}
		name, err := r.u32()
		if err != nil {
			return nil, err
		}
		out[i] = ModuleHandle{Address: addr, Name: name}
	}
	return out, nil
}

func readAbilitySet(r *reader) (Ability, error) {
	b, err := r.byte()
	return Ability(b), err
}

func readAbilitySets(r *reader) ([]Ability, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]Ability, n)
	for i := range out {
		if out[i], err = readAbilitySet(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readStructHandles(r *reader) ([]StructHandle, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]StructHandle, n)
	for i := range out {
		mod, err := r.u32()
		if err != nil {
			return nil, err
		}
		name, err := r.u32()
		if err != nil {
			return nil, err
		}
		abilities, err := readAbilitySet(r)
		if err != nil {
			return nil, err
		}
		typeParams, err := readAbilitySets(r)
		if err != nil {
			return nil, err
		}
		out[i] = StructHandle{Module: mod, Name: name, Abilities: abilities, TypeParams: typeParams}
	}
	return out, nil
}

func readFunctionHandles(r *reader) ([]FunctionHandle, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]FunctionHandle, n)
	for i := range out {
		mod, err := r.u32()
		if err != nil {
			return nil, err
		}
		name, err := r.u32()
		if err != nil {
			return nil, err
		}
		params, err := r.u32()
		if err != nil {
			return nil, err
		}
		returns, err := r.u32()
		if err != nil {
			return nil, err
		}
		typeParams, err := readAbilitySets(r)
		if err != nil {
			return nil, err
		}
		out[i] = FunctionHandle{Module: mod, Name: name, Parameters: params, Returns: returns, TypeParams: typeParams}
	}
	return out, nil
}

func readFieldHandles(r *reader) ([]FieldHandle, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]FieldHandle, n)
	for i := range out {
		owner, err := r.u32()
		if err != nil {
			return nil, err
		}
		field, err := r.u32()
		if err != nil {
			return nil, err
		}
		out[i] = FieldHandle{Owner: owner, Field: field}
	}
	return out, nil
}

func readSignatureToken(r *reader) (SignatureToken, error) {
	tagByte, err := r.byte()
	if err != nil {
		return SignatureToken{}, err
	}
	tag := TypeTag(tagByte)

	switch tag {
	case TagVector, TagReference, TagMutableReference:
		elem, err := readSignatureToken(r)
		if err != nil {
			return SignatureToken{}, err
		}
		return SignatureToken{Tag: tag, Elem: &elem}, nil
	case TagStruct:
		h, err := r.u32()
		if err != nil {
			return SignatureToken{}, err
		}
		return SignatureToken{Tag: tag, StructHandle: h}, nil
	case TagStructInst:
		h, err := r.u32()
		if err != nil {
			return SignatureToken{}, err
		}
		n, err := r.u32()
		if err != nil {
			return SignatureToken{}, err
		}
		args := make([]SignatureToken, n)
		for i := range args {
			if args[i], err = readSignatureToken(r); err != nil {
				return SignatureToken{}, err
			}
		}
		return SignatureToken{Tag: tag, StructHandle: h, TypeArgs: args}, nil
	case TagTypeParam:
		idx, err := r.u32()
		if err != nil {
			return SignatureToken{}, err
		}
		return SignatureToken{Tag: tag, TypeParamIdx: idx}, nil
	case TagBool, TagU8, TagU16, TagU32, TagU64, TagU128, TagU256, TagAddress, TagSigner:
		return SignatureToken{Tag: tag}, nil
	default:
		return SignatureToken{}, wasmerrors.New(wasmerrors.PhaseLoad, wasmerrors.KindBadBytecode).
			Detail("unknown signature tag %d", tagByte).Build()
	}
}

func readSignatures(r *reader) ([]Signature, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]Signature, n)
	for i := range out {
		count, err := r.u32()
		if err != nil {
			return nil, err
		}
		toks := make([]SignatureToken, count)
		for j := range toks {
			if toks[j], err = readSignatureToken(r); err != nil {
				return nil, err
			}
		}
		out[i] = Signature{Tokens: toks}
	}
	return out, nil
}

func readConstants(r *reader) ([]Constant, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]Constant, n)
	for i := range out {
		tagByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		length, err := r.u32()
		if err != nil {
			return nil, err
		}
		data, err := r.bytes(int(length))
		if err != nil {
			return nil, err
		}
		out[i] = Constant{Type: TypeTag(tagByte), Data: data}
	}
	return out, nil
}

func readFieldDefs(r *reader) ([]FieldDef, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]FieldDef, n)
	for i := range out {
		name, err := r.u32()
		if err != nil {
			return nil, err
		}
		typ, err := readSignatureToken(r)
		if err != nil {
			return nil, err
		}
		out[i] = FieldDef{Name: name, Type: typ}
	}
	return out, nil
}

func readStructDefs(r *reader) ([]StructDef, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]StructDef, n)
	for i := range out {
		handle, err := r.u32()
		if err != nil {
			return nil, err
		}
		native, err := r.byte()
		if err != nil {
			return nil, err
		}
		var fields []FieldDef
		if native == 0 {
			if fields, err = readFieldDefs(r); err != nil {
				return nil, err
			}
		}
		out[i] = StructDef{Handle: handle, Fields: fields, Native: native != 0}
	}
	return out, nil
}

func readEnumDefs(r *reader) ([]EnumDef, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]EnumDef, n)
	for i := range out {
		handle, err := r.u32()
		if err != nil {
			return nil, err
		}
		nvariants, err := r.u32()
		if err != nil {
			return nil, err
		}
		variants := make([]VariantDef, nvariants)
		for j := range variants {
			name, err := r.u32()
			if err != nil {
				return nil, err
			}
			fields, err := readFieldDefs(r)
			if err != nil {
				return nil, err
			}
			variants[j] = VariantDef{Name: name, Fields: fields}
		}
		out[i] = EnumDef{Handle: handle, Variants: variants}
	}
	return out, nil
}

func readTypeArgs(r *reader) ([]SignatureToken, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]SignatureToken, n)
	for i := range out {
		if out[i], err = readSignatureToken(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readCode(r *reader) ([]Instruction, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]Instruction, n)
	for i := range out {
		opByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		instr := Instruction{Op: Opcode(opByte)}
		switch instr.Op {
		case OpVariantSwitch:
			ntargets, err := r.u32()
			if err != nil {
				return nil, err
			}
			targets := make([]uint32, ntargets)
			for j := range targets {
				if targets[j], err = r.u32(); err != nil {
					return nil, err
				}
			}
			instr.Targets = targets
		case OpCallGeneric, OpPackGeneric, OpUnpackGeneric, OpBorrowFieldGeneric:
			arg, err := r.u32()
			if err != nil {
				return nil, err
			}
			targs, err := readTypeArgs(r)
			if err != nil {
				return nil, err
			}
			instr.Arg = uint64(arg)
			instr.TypeArgs = targs
		case OpPackVariant, OpUnpackVariant:
			a1, err := r.u32()
			if err != nil {
				return nil, err
			}
			a2, err := r.u32()
			if err != nil {
				return nil, err
			}
			instr.Arg, instr.Arg2 = uint64(a1), uint64(a2)
		case OpLdU64, OpLdU128, OpLdU256, OpLdConst:
			arg, err := r.u64()
			if err != nil {
				return nil, err
			}
			instr.Arg = arg
		default:
			arg, err := r.u32()
			if err != nil {
				return nil, err
			}
			instr.Arg = uint64(arg)
		}
		out[i] = instr
	}
	return out, nil
}

func readFunctionDefs(r *reader) ([]FunctionDef, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]FunctionDef, n)
	for i := range out {
		handle, err := r.u32()
		if err != nil {
			return nil, err
		}
		vis, err := r.byte()
		if err != nil {
			return nil, err
		}
		flags, err := r.byte()
		if err != nil {
			return nil, err
		}
		typeParams, err := readAbilitySets(r)
		if err != nil {
			return nil, err
		}

		isEntry := flags&0x1 != 0
		isNative := flags&0x2 != 0

		var locals uint32
		var code []Instruction
		if !isNative {
			if locals, err = r.u32(); err != nil {
				return nil, err
			}
			if code, err = readCode(r); err != nil {
				return nil, err
			}
		}

		out[i] = FunctionDef{
			Handle:     handle,
			Visibility: Visibility(vis),
			IsEntry:    isEntry,
			TypeParams: typeParams,
			Locals:     locals,
			Code:       code,
			Native:     isNative,
		}
	}
	return out, nil
}
