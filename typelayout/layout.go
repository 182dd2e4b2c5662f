// Package typelayout implements pipeline stage T: given a concrete
// loader.Type, it computes the WASM-addressable representation (spec §4.2)
// — wasm_repr, mem_size/mem_align, abi_class, copyable — memoized by
// structural type equality the same way the teacher's
// transcoder/internal/layout.Calculator memoizes by *wit.TypeDef.
package typelayout

import (
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/config"
	wasmerrors "github.com/movestylus/compiler/errors"
	"github.com/movestylus/compiler/loader"
)

// Repr is a type's WASM value-stack representation.
type Repr byte

const (
	ReprI32 Repr = iota
	ReprI64
	ReprHeapPtr
)

// Class is a type's Solidity ABI encoding class.
type Class byte

const (
	ClassStatic Class = iota
	ClassDynamic
)

// VectorHeaderSize is the size in bytes of the heap record backing every
// Move vector: {len: u32, cap: u32, elems_ptr: i32} (spec §3 "Vectors").
const VectorHeaderSize = 12

// AddressSize is the byte width of the Move `address` value type (spec §3:
// "Address (20-byte)"), distinct from bytecode.AddressLen which sizes the
// module-identifying account address inside the bytecode file format.
const AddressSize = 20

// Info is the computed layout of one concrete type.
type Info struct {
	Repr      Repr
	MemSize   uint32
	MemAlign  uint32
	Class     Class
	Copyable  bool
	FieldOffs []uint32 // struct/tuple field byte offsets, declaration order
}

// Calculator computes and memoizes Info for concrete types drawn from a
// single loader.Program.
type Calculator struct {
	prog  *loader.Program
	cfg   config.Config
	cache map[string]Info
}

// NewCalculator creates a Calculator over prog's struct/enum tables.
func NewCalculator(prog *loader.Program, cfg config.Config) *Calculator {
	return &Calculator{prog: prog, cfg: cfg, cache: make(map[string]Info)}
}

// Calculate returns t's layout, computing and caching it on first request.
// t must be free of TypeParam (spec §3 invariant 3); monomorphization
// guarantees this for every type Calculate is called with.
func (c *Calculator) Calculate(t loader.Type) (Info, error) {
	if t.HasTypeParam() {
		return Info{}, wasmerrors.New(wasmerrors.PhaseLayout, wasmerrors.KindInternalInvariant).
			Detail("typelayout given a type still containing a type parameter").Build()
	}

	key := t.Key()
	if info, ok := c.cache[key]; ok {
		return info, nil
	}

	info, err := c.calculate(t)
	if err != nil {
		return Info{}, err
	}
	c.cache[key] = info
	return info, nil
}

func (c *Calculator) calculate(t loader.Type) (Info, error) {
	switch t.Kind {
	case loader.KindBool, loader.KindU8:
		return Info{Repr: ReprI32, MemSize: 1, MemAlign: 1, Class: ClassStatic, Copyable: true}, nil
	case loader.KindU16:
		return Info{Repr: ReprI32, MemSize: 2, MemAlign: 2, Class: ClassStatic, Copyable: true}, nil
	case loader.KindU32:
		return Info{Repr: ReprI32, MemSize: 4, MemAlign: 4, Class: ClassStatic, Copyable: true}, nil
	case loader.KindU64:
		return Info{Repr: ReprI64, MemSize: 8, MemAlign: 8, Class: ClassStatic, Copyable: true}, nil
	case loader.KindU128:
		return Info{Repr: ReprHeapPtr, MemSize: 16, MemAlign: 8, Class: ClassStatic, Copyable: true}, nil
	case loader.KindU256:
		return Info{Repr: ReprHeapPtr, MemSize: 32, MemAlign: 8, Class: ClassStatic, Copyable: true}, nil
	case loader.KindAddress, loader.KindSigner:
		return Info{Repr: ReprHeapPtr, MemSize: AddressSize, MemAlign: 4, Class: ClassStatic, Copyable: true}, nil
	case loader.KindVector:
		return Info{Repr: ReprHeapPtr, MemSize: 4, MemAlign: 4, Class: ClassDynamic, Copyable: false}, nil
	case loader.KindRef:
		return Info{Repr: ReprHeapPtr, MemSize: 4, MemAlign: 4, Class: ClassStatic, Copyable: true}, nil
	case loader.KindStruct:
		return c.calculateStruct(t)
	case loader.KindEnum:
		return c.calculateEnum(t)
	case loader.KindTuple:
		return c.calculateTuple(t.Tuple)
	default:
		return Info{}, wasmerrors.New(wasmerrors.PhaseLayout, wasmerrors.KindInternalInvariant).
			Detail("unhandled type kind %d", t.Kind).Build()
	}
}

func (c *Calculator) calculateStruct(t loader.Type) (Info, error) {
	s := c.prog.Struct(t.StructID)
	if len(s.Fields) == 0 {
		return Info{Repr: ReprHeapPtr, MemSize: 0, MemAlign: 1, Class: ClassStatic, Copyable: s.Abilities.Has(bytecode.AbilityCopy)}, nil
	}

	offsets := make([]uint32, len(s.Fields))
	offset := uint32(0)
	maxAlign := uint32(1)
	class := ClassStatic

	for i, f := range s.Fields {
		ft := f.Type.Substitute(t.TypeArgs)
		fl, err := c.Calculate(ft)
		if err != nil {
			return Info{}, err
		}
		offset = AlignTo(offset, fl.MemAlign)
		offsets[i] = offset
		var ok bool
		if offset, ok = safeAdd(offset, fl.MemSize); !ok {
			return Info{}, c.overflow(s.Name)
		}
		if fl.MemAlign > maxAlign {
			maxAlign = fl.MemAlign
		}
		if fl.Class == ClassDynamic {
			class = ClassDynamic
		}
	}

	total := AlignTo(offset, maxAlign)
	repr := ReprHeapPtr
	if len(s.Fields) == 1 {
		single, err := c.Calculate(s.Fields[0].Type.Substitute(t.TypeArgs))
		if err != nil {
			return Info{}, err
		}
		if single.Repr != ReprHeapPtr {
			repr = single.Repr
		}
	}

	return Info{
		Repr:      repr,
		MemSize:   total,
		MemAlign:  maxAlign,
		Class:     class,
		Copyable:  s.Abilities.Has(bytecode.AbilityCopy),
		FieldOffs: offsets,
	}, nil
}

// calculateEnum lays out an enum as {tag: u8, payload: max(variant tuple)},
// the tag always exactly one byte (spec §3 invariant 5). Enum shape
// validation (Open Question (a)) happens in ValidateEnum, not here — layout
// computation and shape acceptance are separate concerns.
func (c *Calculator) calculateEnum(t loader.Type) (Info, error) {
	e := c.prog.Enum(t.EnumID)

	const tagSize = 1
	maxAlign := uint32(1)
	maxSize := uint32(0)
	class := ClassStatic

	for _, v := range e.Variants {
		tupleTypes := make([]loader.Type, len(v.Fields))
		for i, f := range v.Fields {
			tupleTypes[i] = f.Type.Substitute(t.TypeArgs)
		}
		vi, err := c.calculateTuple(tupleTypes)
		if err != nil {
			return Info{}, err
		}
		if vi.MemAlign > maxAlign {
			maxAlign = vi.MemAlign
		}
		if vi.MemSize > maxSize {
			maxSize = vi.MemSize
		}
		if vi.Class == ClassDynamic {
			class = ClassDynamic
		}
	}

	payloadOffset := AlignTo(tagSize, maxAlign)
	total, ok := safeAdd(payloadOffset, maxSize)
	if !ok {
		return Info{}, c.overflow(e.Name)
	}
	total = AlignTo(total, maxAlign)

	return Info{
		Repr:     ReprHeapPtr,
		MemSize:  total,
		MemAlign: maxAlign,
		Class:    class,
		Copyable: e.Abilities.Has(bytecode.AbilityCopy),
	}, nil
}

func (c *Calculator) calculateTuple(types []loader.Type) (Info, error) {
	if len(types) == 0 {
		return Info{Repr: ReprHeapPtr, MemSize: 0, MemAlign: 1, Class: ClassStatic, Copyable: true}, nil
	}

	offsets := make([]uint32, len(types))
	offset := uint32(0)
	maxAlign := uint32(1)
	class := ClassStatic
	copyable := true

	for i, elemT := range types {
		fl, err := c.Calculate(elemT)
		if err != nil {
			return Info{}, err
		}
		offset = AlignTo(offset, fl.MemAlign)
		offsets[i] = offset
		var ok bool
		if offset, ok = safeAdd(offset, fl.MemSize); !ok {
			return Info{}, c.overflow("<tuple>")
		}
		if fl.MemAlign > maxAlign {
			maxAlign = fl.MemAlign
		}
		if fl.Class == ClassDynamic {
			class = ClassDynamic
		}
		if !fl.Copyable {
			copyable = false
		}
	}

	total := AlignTo(offset, maxAlign)
	return Info{Repr: ReprHeapPtr, MemSize: total, MemAlign: maxAlign, Class: class, Copyable: copyable, FieldOffs: offsets}, nil
}

// ValidateEnum implements Open Question (a): when cfg.StrictEnums is set,
// an enum is accepted only if it is drop-only (abilities exactly {drop})
// and every variant's field types are themselves classifiable by Calculate
// — i.e. no TypeParam survives monomorphization and no nested type fails
// layout computation. Non-strict mode skips the drop-only check but still
// requires every variant to be classifiable.
func (c *Calculator) ValidateEnum(eid loader.EnumID, typeArgs []loader.Type) error {
	e := c.prog.Enum(eid)
	if c.cfg.StrictEnums && e.Abilities != bytecode.AbilityDrop {
		return wasmerrors.New(wasmerrors.PhaseLayout, wasmerrors.KindUnsupportedFeature).
			Detail("enum %s must be drop-only", e.Name).Build()
	}
	for _, v := range e.Variants {
		for _, f := range v.Fields {
			ft := f.Type.Substitute(typeArgs)
			if _, err := c.Calculate(ft); err != nil {
				return wasmerrors.New(wasmerrors.PhaseLayout, wasmerrors.KindUnsupportedFeature).
					Detail("enum %s variant %s has an unclassifiable field: %v", e.Name, v.Name, err).Build()
			}
		}
	}
	return nil
}

func (c *Calculator) overflow(name string) error {
	return wasmerrors.New(wasmerrors.PhaseLayout, wasmerrors.KindLayoutOverflow).
		Detail("layout of %s exceeds representable size", name).Build()
}
