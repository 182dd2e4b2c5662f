package codegen

import (
	"github.com/movestylus/compiler/codegen/internal/handler"
	"github.com/movestylus/compiler/codegen/internal/ir"
	wasmerrors "github.com/movestylus/compiler/errors"
	"github.com/movestylus/compiler/wasm"
)

// emitter walks an ir.Node tree into flat WASM instructions, resolving
// Br/BrIf/BrTable basic-block labels to relative branch depths via a label
// stack built while descending Block/Loop nodes — the same "walk the
// structured tree, track enclosing label depth" shape as the teacher's
// asyncify/internal/engine transform pass, generalized from "rewrite an
// existing structured function" to "build one from a reloop tree".
type emitter struct {
	ctx      *handler.Context
	registry *handler.Registry
	labels   []int // enclosing Block/Loop labels, outermost first
}

// EmitFunction lowers one monomorphic function body to a structured WASM
// FuncBody: build its CFG (cfg.go), reloop it into an ir.Node tree
// (reloop.go), walk that tree through the handler registry, and declare
// any spill locals the walk allocated along the way.
func EmitFunction(ctx *handler.Context, registry *handler.Registry) (*wasm.FuncBody, error) {
	cfg := BuildCFG(ctx.Fn.Code)
	tree := Reloop(cfg)

	e := &emitter{ctx: ctx, registry: registry}
	body, err := e.walk(tree)
	if err != nil {
		return nil, err
	}
	body = append(body, wasm.Instruction{Opcode: wasm.OpEnd})

	return &wasm.FuncBody{
		Locals: localEntries(ctx.SpillLocals()),
		Code:   wasm.EncodeInstructions(body),
	}, nil
}

// localEntries run-length-encodes consecutive same-typed spill locals into
// WASM's {count, type} local declaration groups.
func localEntries(types []wasm.ValType) []wasm.LocalEntry {
	var out []wasm.LocalEntry
	for _, t := range types {
		if n := len(out); n > 0 && out[n-1].ValType == t {
			out[n-1].Count++
			continue
		}
		out = append(out, wasm.LocalEntry{Count: 1, ValType: t})
	}
	return out
}

func (e *emitter) walk(n ir.Node) ([]wasm.Instruction, error) {
	switch node := n.(type) {
	case *ir.Seq:
		var out []wasm.Instruction
		for _, item := range node.Items {
			sub, err := e.walk(item)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil

	case *ir.Block:
		return e.walkScoped(wasm.OpBlock, node.Label, node.Body)

	case *ir.Loop:
		return e.walkScoped(wasm.OpLoop, node.Label, node.Body)

	case *ir.Br:
		depth, err := e.depthOf(node.Label)
		if err != nil {
			return nil, err
		}
		return []wasm.Instruction{{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: depth}}}, nil

	case *ir.BrIf:
		depth, err := e.depthOf(node.Label)
		if err != nil {
			return nil, err
		}
		var out []wasm.Instruction
		if node.Negate {
			out = append(out, wasm.Instruction{Opcode: wasm.OpI32Eqz})
		}
		out = append(out, wasm.Instruction{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: depth}})
		return out, nil

	case *ir.BrTable:
		labels := make([]uint32, len(node.Labels))
		for i, l := range node.Labels {
			depth, err := e.depthOf(l)
			if err != nil {
				return nil, err
			}
			labels[i] = depth
		}
		defaultDepth, err := e.depthOf(node.Default)
		if err != nil {
			return nil, err
		}
		return []wasm.Instruction{{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: labels, Default: defaultDepth}}}, nil

	case *ir.Instr:
		h := e.registry.Get(node.Source.Op)
		if h == nil {
			return nil, wasmerrors.New(wasmerrors.PhaseCodegen, wasmerrors.KindUnsupportedFeature).
				Function(e.ctx.Fn.Name).Detail("no handler registered for opcode %d", node.Source.Op).Build()
		}
		return h.Handle(e.ctx, node.Source)
	}
	return nil, wasmerrors.New(wasmerrors.PhaseCodegen, wasmerrors.KindInternalInvariant).
		Function(e.ctx.Fn.Name).Detail("unhandled ir node type").Build()
}

// walkScoped pushes label for the duration of body, emits the wrapping
// WASM block/loop around the walked body, and pops label again — every
// WASM structured instruction here is void-typed since Move's stack
// discipline is tracked separately by internal/stack, not by WASM's
// block-result types.
func (e *emitter) walkScoped(opcode byte, label int, body ir.Node) ([]wasm.Instruction, error) {
	e.labels = append(e.labels, label)
	inner, err := e.walk(body)
	e.labels = e.labels[:len(e.labels)-1]
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Instruction, 0, len(inner)+2)
	out = append(out, wasm.Instruction{Opcode: opcode, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}})
	out = append(out, inner...)
	out = append(out, wasm.Instruction{Opcode: wasm.OpEnd})
	return out, nil
}

// depthOf resolves a basic-block-index label to its WASM relative branch
// depth: the number of enclosing Block/Loop scopes between the branch site
// and the scope that label tags, counting the innermost enclosing scope as
// depth 0.
func (e *emitter) depthOf(label int) (uint32, error) {
	for i := len(e.labels) - 1; i >= 0; i-- {
		if e.labels[i] == label {
			return uint32(len(e.labels) - 1 - i), nil
		}
	}
	return 0, wasmerrors.New(wasmerrors.PhaseCodegen, wasmerrors.KindInternalInvariant).
		Function(e.ctx.Fn.Name).Detail("branch target block %d has no enclosing scope", label).Build()
}
