package loader_test

import (
	"testing"

	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/bytecode/builder"
	"github.com/movestylus/compiler/loader"
	"go.uber.org/zap"
)

func addr(b byte) bytecode.Address {
	var a bytecode.Address
	a[bytecode.AddressLen-1] = b
	return a
}

func txContextHandle(b *builder.Module) uint32 {
	h := b.StructHandle("TxContext", bytecode.AbilityKey)
	b.StructDef(h, b.Field("epoch", builder.U64()))
	return h
}

func TestLoad_SimpleModule(t *testing.T) {
	b := builder.New(addr(0xC0), "counter")
	ctr := b.StructHandle("Counter", bytecode.AbilityKey)
	b.StructDef(ctr, b.Field("id", builder.U64()), b.Field("value", builder.U64()))

	sig := b.Signature(builder.U64())
	fn := b.FunctionHandle("read", sig, sig)
	b.FunctionDef(fn, bytecode.VisibilityPublic, false, sig,
		bytecode.Instruction{Op: bytecode.OpCopyLoc, Arg: 0},
		bytecode.Instruction{Op: bytecode.OpRet},
	)

	prog, err := loader.Load(zap.NewNop(), b.Build(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(prog.Structs) != 1 {
		t.Fatalf("Structs = %d, want 1", len(prog.Structs))
	}
	if prog.Structs[0].Name != "Counter" || !prog.Structs[0].Abilities.Has(bytecode.AbilityKey) {
		t.Errorf("unexpected struct: %+v", prog.Structs[0])
	}

	entries := prog.EntryPoints()
	if len(entries) != 1 {
		t.Fatalf("EntryPoints = %d, want 1", len(entries))
	}
	fnInfo := prog.Function(entries[0])
	if fnInfo.Name != "read" || len(fnInfo.Code) != 2 {
		t.Errorf("unexpected entry point: %+v", fnInfo)
	}
}

func TestLoad_CrossModuleStructReference(t *testing.T) {
	frameworkAddr := addr(0x02)
	fb := builder.New(frameworkAddr, "object")
	uidHandle := fb.StructHandle("UID", bytecode.AbilityStore)
	fb.StructDef(uidHandle, fb.Field("id", builder.Address()))
	framework := fb.Build()

	rb := builder.New(addr(0xC0), "shop")
	foreignMod := rb.ForeignModule(frameworkAddr, "object")
	foreignUID := rb.StructHandleIn(foreignMod, "UID", bytecode.AbilityStore)

	itemHandle := rb.StructHandle("Item", bytecode.AbilityKey, bytecode.AbilityStore)
	rb.StructDef(itemHandle,
		rb.Field("id", builder.Struct(foreignUID)),
		rb.Field("price", builder.U64()),
	)

	sig := rb.Signature(builder.Struct(itemHandle))
	fn := rb.FunctionHandle("price_of", sig, rb.Signature(builder.U64()))
	rb.FunctionDef(fn, bytecode.VisibilityPublic, false, sig,
		bytecode.Instruction{Op: bytecode.OpPop},
		bytecode.Instruction{Op: bytecode.OpLdU64, Arg: 0},
		bytecode.Instruction{Op: bytecode.OpRet},
	)
	root := rb.Build()

	prog, err := loader.Load(zap.NewNop(), root, []*bytecode.Module{framework})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var item *loader.StructInfo
	for _, s := range prog.Structs {
		if s.Name == "Item" {
			item = s
		}
	}
	if item == nil {
		t.Fatal("Item struct not interned")
	}
	if item.Fields[0].Type.Kind != loader.KindStruct {
		t.Fatalf("Item.id field not resolved to a struct type: %+v", item.Fields[0])
	}
	uidStruct := prog.Struct(item.Fields[0].Type.StructID)
	if uidStruct.Name != "UID" || uidStruct.Module == item.Module {
		t.Errorf("Item.id did not resolve to the foreign UID struct: %+v", uidStruct)
	}
}

func TestLoad_UnresolvedModuleHandle(t *testing.T) {
	rb := builder.New(addr(0xC0), "lonely")
	missing := rb.ForeignModule(addr(0x99), "nowhere")
	ghostHandle := rb.StructHandleIn(missing, "Ghost", bytecode.AbilityDrop)
	// Force resolution of the handle by referencing it from a signature.
	sig := rb.Signature(builder.Struct(ghostHandle))
	fn := rb.FunctionHandle("noop", sig, sig)
	rb.FunctionDef(fn, bytecode.VisibilityPrivate, false, sig)

	_, err := loader.Load(zap.NewNop(), rb.Build(), nil)
	if err == nil {
		t.Fatal("expected unresolved handle error")
	}
}

func TestLoad_InitWithoutOTW(t *testing.T) {
	b := builder.New(addr(0xC0), "vault")
	ctxHandle := txContextHandle(b)
	ctxSig := b.Signature(builder.MutRef(builder.Struct(ctxHandle)))
	initFn := b.FunctionHandle("init", ctxSig, b.Signature())
	b.FunctionDef(initFn, bytecode.VisibilityPrivate, false, b.Signature(),
		bytecode.Instruction{Op: bytecode.OpRet},
	)

	prog, err := loader.Load(zap.NewNop(), b.Build(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mod := prog.Modules[prog.Root]
	if !mod.HasInit {
		t.Fatal("expected init to be recognized")
	}
	fn := prog.Function(mod.Init)
	if fn.ConstructorKind != loader.ConstructorNoOTW {
		t.Errorf("ConstructorKind = %v, want ConstructorNoOTW", fn.ConstructorKind)
	}
}

func TestLoad_InitWithOTW(t *testing.T) {
	b := builder.New(addr(0xC0), "vault")
	otwHandle := b.StructHandle("VAULT", bytecode.AbilityDrop)
	b.StructDef(otwHandle)
	ctxHandle := txContextHandle(b)

	sig := b.Signature(builder.Struct(otwHandle), builder.MutRef(builder.Struct(ctxHandle)))
	initFn := b.FunctionHandle("init", sig, b.Signature())
	b.FunctionDef(initFn, bytecode.VisibilityPrivate, false, sig,
		bytecode.Instruction{Op: bytecode.OpPop},
		bytecode.Instruction{Op: bytecode.OpPop},
		bytecode.Instruction{Op: bytecode.OpRet},
	)

	prog, err := loader.Load(zap.NewNop(), b.Build(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	fn := prog.Function(prog.Modules[prog.Root].Init)
	if fn.ConstructorKind != loader.ConstructorWithOTW {
		t.Errorf("ConstructorKind = %v, want ConstructorWithOTW", fn.ConstructorKind)
	}
}

func TestLoad_BadInitSignatureRejected(t *testing.T) {
	b := builder.New(addr(0xC0), "broken")
	sig := b.Signature(builder.U64())
	initFn := b.FunctionHandle("init", sig, b.Signature())
	b.FunctionDef(initFn, bytecode.VisibilityPrivate, false, sig,
		bytecode.Instruction{Op: bytecode.OpPop},
		bytecode.Instruction{Op: bytecode.OpRet},
	)

	_, err := loader.Load(zap.NewNop(), b.Build(), nil)
	if err == nil {
		t.Fatal("expected BadInit error for a u64-parameter init")
	}
}

func TestLoad_OTWWithoutInitWarns(t *testing.T) {
	b := builder.New(addr(0xC0), "coin")
	otwHandle := b.StructHandle("COIN", bytecode.AbilityDrop)
	b.StructDef(otwHandle)

	prog, err := loader.Load(zap.NewNop(), b.Build(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mod := prog.Modules[prog.Root]
	if !mod.OTWWithoutInit {
		t.Error("expected OTWWithoutInit to be set")
	}
	if len(prog.Warnings) != 1 {
		t.Errorf("Warnings = %d, want 1", len(prog.Warnings))
	}
}

func TestLoad_NativeCallRecognized(t *testing.T) {
	fb := builder.New(addr(0x02), "transfer")
	sig := fb.Signature(builder.Address())
	fb.FunctionHandle("transfer", sig, fb.Signature())
	framework := fb.Build()

	rb := builder.New(addr(0xC0), "shop")
	foreignMod := rb.ForeignModule(addr(0x02), "transfer")
	fnSig := rb.Signature(builder.Address())
	foreignFn := rb.FunctionHandleIn(foreignMod, "transfer", fnSig, rb.Signature())

	sig2 := rb.Signature()
	callerFn := rb.FunctionHandle("send", sig2, sig2)
	rb.FunctionDef(callerFn, bytecode.VisibilityPublic, true, sig2,
		bytecode.Instruction{Op: bytecode.OpCall, Arg: uint64(foreignFn)},
		bytecode.Instruction{Op: bytecode.OpRet},
	)

	prog, err := loader.Load(zap.NewNop(), rb.Build(), []*bytecode.Module{framework})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	entries := prog.EntryPoints()
	var send *loader.FunctionInfo
	for _, id := range entries {
		if fn := prog.Function(id); fn.Name == "send" {
			send = fn
		}
	}
	if send == nil {
		t.Fatal("send function not found")
	}
	if send.Code[0].Op != bytecode.OpTransfer {
		t.Errorf("native call not lowered: Op = %v", send.Code[0].Op)
	}
}
