package bytecode

import (
	"bytes"
	"encoding/binary"

	"github.com/movestylus/compiler/bytecode/internal/leb128"
)

// writer accumulates bytecode bytes, the mirror of reader.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) byte(b byte)        { w.buf.WriteByte(b) }
func (w *writer) u32(v uint32)       { leb128.WriteU32(&w.buf, v) }
func (w *writer) u64(v uint64)       { leb128.WriteU64(&w.buf, v) }
func (w *writer) raw(b []byte)       { w.buf.Write(b) }
func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.raw([]byte(s))
}
func (w *writer) address(a Address) { w.raw(a[:]) }

func (w *writer) u32leRaw(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.raw(buf[:])
}

// Write serializes m into the Move bytecode binary format readable by Read.
func Write(m *Module) []byte {
	w := &writer{}

	w.u32leRaw(Magic)
	w.u32leRaw(Version)
	w.u32(m.SelfModuleHandle)

	w.u32(uint32(len(m.AddressIdentifiers)))
	for _, a := range m.AddressIdentifiers {
		w.address(a)
	}

	w.u32(uint32(len(m.Identifiers)))
	for _, s := range m.Identifiers {
		w.str(s)
	}

	w.u32(uint32(len(m.ModuleHandles)))
	for _, h := range m.ModuleHandles {
		w.u32(h.Address)
		w.u32(h.Name)
	}

	w.u32(uint32(len(m.StructHandles)))
	for _, h := range m.StructHandles {
		w.u32(h.Module)
		w.u32(h.Name)
		w.byte(byte(h.Abilities))
		writeAbilitySets(w, h.TypeParams)
	}

	w.u32(uint32(len(m.FunctionHandles)))
	for _, h := range m.FunctionHandles {
		w.u32(h.Module)
		w.u32(h.Name)
		w.u32(h.Parameters)
		w.u32(h.Returns)
		writeAbilitySets(w, h.TypeParams)
	}

	w.u32(uint32(len(m.FieldHandles)))
	for _, h := range m.FieldHandles {
		w.u32(h.Owner)
		w.u32(h.Field)
	}

	w.u32(uint32(len(m.Signatures)))
	for _, s := range m.Signatures {
		w.u32(uint32(len(s.Tokens)))
		for _, t := range s.Tokens {
			writeSignatureToken(w, t)
		}
	}

	w.u32(uint32(len(m.ConstantPool)))
	for _, c := range m.ConstantPool {
		w.byte(byte(c.Type))
		w.u32(uint32(len(c.Data)))
		w.raw(c.Data)
	}

	w.u32(uint32(len(m.StructDefs)))
	for _, d := range m.StructDefs {
		w.u32(d.Handle)
		if d.Native {
			w.byte(1)
		} else {
			w.byte(0)
			writeFieldDefs(w, d.Fields)
		}
	}

	w.u32(uint32(len(m.EnumDefs)))
	for _, d := range m.EnumDefs {
		w.u32(d.Handle)
		w.u32(uint32(len(d.Variants)))
		for _, v := range d.Variants {
			w.u32(v.Name)
			writeFieldDefs(w, v.Fields)
		}
	}

	w.u32(uint32(len(m.FunctionDefs)))
	for _, d := range m.FunctionDefs {
		w.u32(d.Handle)
		w.byte(byte(d.Visibility))
		var flags byte
		if d.IsEntry {
			flags |= 0x1
		}
		if d.Native {
			flags |= 0x2
		}
		w.byte(flags)
		writeAbilitySets(w, d.TypeParams)
		if !d.Native {
			w.u32(d.Locals)
			writeCode(w, d.Code)
		}
	}

	return w.buf.Bytes()
}

func writeAbilitySets(w *writer, sets []Ability) {
	w.u32(uint32(len(sets)))
	for _, s := range sets {
		w.byte(byte(s))
	}
}

func writeSignatureToken(w *writer, t SignatureToken) {
	w.byte(byte(t.Tag))
	switch t.Tag {
	case TagVector, TagReference, TagMutableReference:
		writeSignatureToken(w, *t.Elem)
	case TagStruct:
		w.u32(t.StructHandle)
	case TagStructInst:
		w.u32(t.StructHandle)
		w.u32(uint32(len(t.TypeArgs)))
		for _, a := range t.TypeArgs {
			writeSignatureToken(w, a)
		}
	case TagTypeParam:
		w.u32(t.TypeParamIdx)
	}
}

func writeFieldDefs(w *writer, fields []FieldDef) {
	w.u32(uint32(len(fields)))
	for _, f := range fields {
		w.u32(f.Name)
		writeSignatureToken(w, f.Type)
	}
}

func writeCode(w *writer, code []Instruction) {
	w.u32(uint32(len(code)))
	for _, instr := range code {
		w.byte(byte(instr.Op))
		switch instr.Op {
		case OpVariantSwitch:
			w.u32(uint32(len(instr.Targets)))
			for _, t := range instr.Targets {
				w.u32(t)
			}
		case OpCallGeneric, OpPackGeneric, OpUnpackGeneric, OpBorrowFieldGeneric:
			w.u32(uint32(instr.Arg))
			w.u32(uint32(len(instr.TypeArgs)))
			for _, a := range instr.TypeArgs {
				writeSignatureToken(w, a)
			}
		case OpPackVariant, OpUnpackVariant:
			w.u32(uint32(instr.Arg))
			w.u32(uint32(instr.Arg2))
		case OpLdU64, OpLdU128, OpLdU256, OpLdConst:
			w.u64(instr.Arg)
		default:
			w.u32(uint32(instr.Arg))
		}
	}
}
