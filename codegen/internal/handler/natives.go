package handler

import (
	"github.com/movestylus/compiler/abi"
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/wasm"
)

// RegisterNativeHandlers registers the seven stylus-framework natives (spec
// §9 "must be recognized by the compiler and lowered to direct runtime
// calls rather than ordinary function calls — they have no Move body").
// Unlike every other opcode family these have no generic stack-effect rule
// in internal/stack — each handler drives Pop/Push itself against the
// fixed signature the native is known to have.
func RegisterNativeHandlers(r *Registry) {
	r.RegisterFunc(bytecode.OpObjectNew, objectNew)
	r.RegisterFunc(bytecode.OpTransfer, transfer)
	r.RegisterFunc(bytecode.OpShareObject, shareObject)
	r.RegisterFunc(bytecode.OpFreezeObject, freezeObject)
	r.RegisterFunc(bytecode.OpDeleteObject, deleteObject)
	r.RegisterFunc(bytecode.OpTxContextSender, txContextSender)
	r.RegisterFunc(bytecode.OpEventEmit, eventEmit)
}

// objectNew: object::new(&mut TxContext) -> UID. Runtime derives the new
// object's stable ID from the per-transaction counter seeded by the
// transaction hash (spec §3 "Objects") and writes it into a freshly
// allocated 32-byte cell.
func objectNew(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	ctx.Stack.Pop() // &mut TxContext
	ctx.Stack.Push(loader.Address())
	return ctx.CallRuntime("rt_object_new")
}

// transfer: transfer<T>(obj: T, recipient: address). Runtime stamps the
// object header with its new owner.
func transfer(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	ctx.Stack.Pop() // recipient
	ctx.Stack.Pop() // object
	return ctx.CallRuntime("rt_transfer")
}

// shareObject: share_object<T>(obj: T). Runtime marks the object header
// globally readable/writable.
func shareObject(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	ctx.Stack.Pop()
	return ctx.CallRuntime("rt_share_object")
}

// freezeObject: freeze_object<T>(obj: T). Runtime marks the object header
// read-only.
func freezeObject(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	ctx.Stack.Pop()
	return ctx.CallRuntime("rt_freeze_object")
}

// deleteObject: delete(obj: T). Runtime asserts ownership, then releases
// the object's storage slots.
func deleteObject(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	ctx.Stack.Pop()
	return ctx.CallRuntime("rt_delete_object")
}

// txContextSender: tx_context::sender(&TxContext) -> address, reading the
// msg_sender host import runtime already cached at entry.
func txContextSender(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	ctx.Stack.Pop()
	ctx.Stack.Push(loader.Address())
	return ctx.CallRuntime("rt_tx_context_sender")
}

// eventEmit: event::emit<T>(event: T). topic0 is derived at compile time
// from keccak256 of the event struct's own field signature (spec §4.5
// "Event emission") and interned as constant data; the event value itself
// travels as a raw memory span, ABI-encoding being the caller's job at the
// struct layout level.
func eventEmit(ctx *Context, instr loader.Instruction) ([]wasm.Instruction, error) {
	eventType := ctx.Stack.Peek()
	ctx.Stack.Pop()

	layout, err := ctx.Layouts.Calculate(eventType)
	if err != nil {
		return nil, err
	}
	topic, err := abi.EventTopic0(ctx.Prog, eventType)
	if err != nil {
		return nil, err
	}
	offset, _ := ctx.InternData(topic[:])

	out := []wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(offset)}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: int32(layout.MemSize)}},
	}
	call, err := ctx.CallRuntime("rt_event_emit")
	if err != nil {
		return nil, err
	}
	return append(out, call...), nil
}
