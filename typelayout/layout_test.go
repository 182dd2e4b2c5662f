package typelayout_test

import (
	"testing"

	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/bytecode/builder"
	"github.com/movestylus/compiler/config"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/typelayout"
	"go.uber.org/zap"
)

func addr(b byte) bytecode.Address {
	var a bytecode.Address
	a[bytecode.AddressLen-1] = b
	return a
}

func TestCalculatePrimitives(t *testing.T) {
	b := builder.New(addr(0xC0), "m")
	prog, err := loader.Load(zap.NewNop(), b.Build(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := typelayout.NewCalculator(prog, config.Default())

	cases := []struct {
		name  string
		typ   loader.Type
		size  uint32
		align uint32
		repr  typelayout.Repr
	}{
		{"bool", loader.Bool(), 1, 1, typelayout.ReprI32},
		{"u8", loader.U8(), 1, 1, typelayout.ReprI32},
		{"u16", loader.U16(), 2, 2, typelayout.ReprI32},
		{"u32", loader.U32(), 4, 4, typelayout.ReprI32},
		{"u64", loader.U64(), 8, 8, typelayout.ReprI64},
		{"u128", loader.U128(), 16, 8, typelayout.ReprHeapPtr},
		{"u256", loader.U256(), 32, 8, typelayout.ReprHeapPtr},
		{"address", loader.Address(), 20, 4, typelayout.ReprHeapPtr},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info, err := c.Calculate(tc.typ)
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			if info.MemSize != tc.size {
				t.Errorf("MemSize = %d, want %d", info.MemSize, tc.size)
			}
			if info.MemAlign != tc.align {
				t.Errorf("MemAlign = %d, want %d", info.MemAlign, tc.align)
			}
			if info.Repr != tc.repr {
				t.Errorf("Repr = %v, want %v", info.Repr, tc.repr)
			}
			if info.Class != typelayout.ClassStatic {
				t.Errorf("Class = %v, want Static", info.Class)
			}
		})
	}
}

func TestCalculateVectorIsAlwaysDynamic(t *testing.T) {
	b := builder.New(addr(0xC0), "m")
	prog, _ := loader.Load(zap.NewNop(), b.Build(), nil)
	c := typelayout.NewCalculator(prog, config.Default())

	info, err := c.Calculate(loader.Vector(loader.U8()))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if info.Class != typelayout.ClassDynamic {
		t.Errorf("vector Class = %v, want Dynamic", info.Class)
	}
	if info.Copyable {
		t.Error("vector should not be copyable")
	}
}

func buildProgramWithStruct(t *testing.T) (*loader.Program, uint32) {
	t.Helper()
	b := builder.New(addr(0xC0), "m")
	h := b.StructHandle("Mixed", bytecode.AbilityDrop)
	b.StructDef(h,
		b.Field("a", builder.U8()),
		b.Field("b", builder.U32()),
		b.Field("c", builder.U8()),
	)
	prog, err := loader.Load(zap.NewNop(), b.Build(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return prog, h
}

func TestCalculateStructFieldOffsetsAndPadding(t *testing.T) {
	prog, _ := buildProgramWithStruct(t)
	c := typelayout.NewCalculator(prog, config.Default())

	var sid loader.StructID
	for _, s := range prog.Structs {
		if s.Name == "Mixed" {
			sid = s.ID
		}
	}

	info, err := c.Calculate(loader.Struct(sid))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	want := []uint32{0, 4, 8}
	for i, off := range want {
		if info.FieldOffs[i] != off {
			t.Errorf("field %d offset = %d, want %d", i, info.FieldOffs[i], off)
		}
	}
	if info.MemSize != 12 {
		t.Errorf("MemSize = %d, want 12", info.MemSize)
	}
	if info.MemAlign != 4 {
		t.Errorf("MemAlign = %d, want 4", info.MemAlign)
	}
	if info.Repr != typelayout.ReprHeapPtr {
		t.Errorf("Repr = %v, want HeapPtr (3 fields)", info.Repr)
	}
}

func TestCalculateSingleFieldStructUnwrapsScalarRepr(t *testing.T) {
	b := builder.New(addr(0xC0), "m")
	h := b.StructHandle("Wrapper", bytecode.AbilityDrop, bytecode.AbilityCopy)
	b.StructDef(h, b.Field("inner", builder.U64()))
	prog, err := loader.Load(zap.NewNop(), b.Build(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := typelayout.NewCalculator(prog, config.Default())

	var sid loader.StructID
	for _, s := range prog.Structs {
		if s.Name == "Wrapper" {
			sid = s.ID
		}
	}
	info, err := c.Calculate(loader.Struct(sid))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if info.Repr != typelayout.ReprI64 {
		t.Errorf("Repr = %v, want I64 (single u64 field)", info.Repr)
	}
}

func TestCalculateStructWithDynamicFieldIsDynamic(t *testing.T) {
	b := builder.New(addr(0xC0), "m")
	h := b.StructHandle("Bag", bytecode.AbilityDrop)
	b.StructDef(h, b.Field("items", builder.Vector(builder.U8())))
	prog, err := loader.Load(zap.NewNop(), b.Build(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := typelayout.NewCalculator(prog, config.Default())

	var sid loader.StructID
	for _, s := range prog.Structs {
		if s.Name == "Bag" {
			sid = s.ID
		}
	}
	info, err := c.Calculate(loader.Struct(sid))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if info.Class != typelayout.ClassDynamic {
		t.Errorf("Class = %v, want Dynamic", info.Class)
	}
}

func TestValidateEnumRejectsNonDropOnlyUnderStrictMode(t *testing.T) {
	b := builder.New(addr(0xC0), "m")
	b.EnumDef("Status", bytecode.AbilityDrop|bytecode.AbilityCopy,
		b.Variant("Active"),
		b.Variant("Inactive"),
	)
	prog, err := loader.Load(zap.NewNop(), b.Build(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := typelayout.NewCalculator(prog, config.Default())

	var enumID loader.EnumID
	for _, e := range prog.Enums {
		if e.Name == "Status" {
			enumID = e.ID
		}
	}

	if err := c.ValidateEnum(enumID, nil); err == nil {
		t.Fatal("expected rejection of a copy+drop enum under StrictEnums")
	}
}

func TestValidateEnumAcceptsDropOnly(t *testing.T) {
	b := builder.New(addr(0xC0), "m")
	b.EnumDef("Status", bytecode.AbilityDrop,
		b.Variant("Active", b.Field("since", builder.U64())),
		b.Variant("Inactive"),
	)
	prog, err := loader.Load(zap.NewNop(), b.Build(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := typelayout.NewCalculator(prog, config.Default())

	var enumID loader.EnumID
	for _, e := range prog.Enums {
		if e.Name == "Status" {
			enumID = e.ID
		}
	}

	if err := c.ValidateEnum(enumID, nil); err != nil {
		t.Fatalf("ValidateEnum: %v", err)
	}

	info, err := c.Calculate(loader.Enum(enumID))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	// tag (1 byte) aligned to 8 (u64 payload), then 8 bytes payload.
	if info.MemSize != 16 {
		t.Errorf("MemSize = %d, want 16", info.MemSize)
	}
}
