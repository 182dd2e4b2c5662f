package codegen

import (
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/codegen/internal/ir"
	"github.com/movestylus/compiler/loader"
)

// Reloop turns a CFG into a structured control-flow tree (spec §4.4
// "Structured control flow"). It assumes Move's bytecode compiler only ever
// emits the basic blocks of a loop body or an if/else arm as a contiguous
// range of block indices — true for any CFG compiled from structured Move
// source (if/else, while, labeled loop) — so a dominance-based general
// relooper is unnecessary; DESIGN.md records this as a documented
// simplification, not a soundness gap, since Move has no goto and no
// irreducible control flow.
func Reloop(cfg *CFG) ir.Node {
	return buildRange(cfg, 0, len(cfg.Blocks))
}

// buildRange builds the structured tree for basic blocks [lo, hi). It looks
// for the furthest forward branch target strictly inside the range; if one
// exists at index T, every block in [lo, T) that needs to branch past its
// own local scope to reach something at or after T does so by branching to
// a wasm `block` labeled T, so blocks [lo, T) are wrapped in that block and
// [T, hi) follows after it (the branch lands exactly at the start of the
// continuation, which is what a WASM `block` exit does).
func buildRange(cfg *CFG, lo, hi int) ir.Node {
	target, ok := maxForwardTarget(cfg, lo, hi)
	if !ok {
		return buildBlocks(cfg, lo, hi)
	}
	return &ir.Seq{Items: []ir.Node{
		&ir.Block{Label: target, Body: buildRange(cfg, lo, target)},
		buildRange(cfg, target, hi),
	}}
}

// maxForwardTarget scans every branch instruction terminating a block in
// [lo, hi) and returns the largest forward target T with lo < T < hi, the
// innermost single block wrap that subsumes every forward branch in range
// (a smaller target would leave a larger one dangling with nothing to
// branch to).
func maxForwardTarget(cfg *CFG, lo, hi int) (int, bool) {
	best := -1
	for b := lo; b < hi; b++ {
		term, ok := cfg.Terminator(b)
		if !ok {
			continue
		}
		for _, t := range branchTargets(term) {
			if t > lo && t < hi && t > best {
				best = t
			}
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// buildBlocks is the base case: [lo, hi) contains no forward branch that
// needs a wrapping block. It still needs to detect loop headers (a block
// targeted by a backward branch originating inside the range) and wrap
// their bodies in an ir.Loop.
func buildBlocks(cfg *CFG, lo, hi int) ir.Node {
	var items []ir.Node
	b := lo
	for b < hi {
		extent, isLoop := loopExtent(cfg, b, hi)
		if isLoop {
			items = append(items, &ir.Loop{Label: b, Body: buildRange(cfg, b, extent)})
			b = extent
			continue
		}
		items = append(items, blockInstrs(cfg, b))
		b++
	}
	if len(items) == 1 {
		return items[0]
	}
	return &ir.Seq{Items: items}
}

// loopExtent reports whether block b is a loop header (some block in
// [b, hi) branches back to b) and, if so, the exclusive end of the loop
// body: one past the furthest backward-branch source.
func loopExtent(cfg *CFG, b, hi int) (int, bool) {
	extent := -1
	for i := b; i < hi; i++ {
		term, ok := cfg.Terminator(i)
		if !ok {
			continue
		}
		for _, t := range branchTargets(term) {
			if t == b && i >= extent {
				extent = i + 1
			}
		}
	}
	if extent < 0 {
		return 0, false
	}
	return extent, true
}

// blockInstrs emits a single basic block's instructions as a flat Seq of
// ir.Instr leaves; its terminating branch (if any) becomes a Br/BrIf/BrTable
// node addressed by basic-block index, resolved against the label stack
// later by Emit.
func blockInstrs(cfg *CFG, b int) ir.Node {
	blk := cfg.Blocks[b]
	var items []ir.Node
	for i := blk.Start; i < blk.End; i++ {
		instr := cfg.Code[i]
		if i == blk.End-1 {
			if node, ok := terminatorNode(cfg, instr); ok {
				items = append(items, node)
				continue
			}
		}
		items = append(items, &ir.Instr{Source: instr})
	}
	return &ir.Seq{Items: items}
}

// terminatorNode converts a block-ending branch instruction into its ir
// control node. Non-branch terminators (OpRet, OpAbort, or plain
// fallthrough) are left as a regular ir.Instr (or omitted entirely for pure
// fallthrough, since structured nesting already lands execution in the
// right place).
func terminatorNode(cfg *CFG, instr loader.Instruction) (ir.Node, bool) {
	switch instr.Op {
	case bytecode.OpBranch:
		return &ir.Br{Label: cfg.BlockOf(int(instr.Arg))}, true
	case bytecode.OpBranchTrue:
		// pops bool, branches if true; the false-fallthrough path is
		// modeled by simply continuing to the next Seq item (the next
		// basic block in program order), so only the taken edge needs a
		// node here.
		return &ir.BrIf{Label: cfg.BlockOf(int(instr.Arg))}, true
	case bytecode.OpBranchFalse:
		return &ir.BrIf{Label: cfg.BlockOf(int(instr.Arg)), Negate: true}, true
	case bytecode.OpVariantSwitch:
		labels := make([]int, len(instr.Targets))
		for i, t := range instr.Targets {
			labels[i] = cfg.BlockOf(int(t))
		}
		// Variant dispatch is exhaustive (every enum variant has an arm), so
		// WASM's required br_table default slot just repeats the last arm;
		// it is unreachable in practice.
		return &ir.BrTable{Labels: labels, Default: labels[len(labels)-1]}, true
	}
	return nil, false
}

func branchTargets(instr loader.Instruction) []int {
	switch instr.Op {
	case bytecode.OpBranch, bytecode.OpBranchTrue, bytecode.OpBranchFalse:
		return []int{int(instr.Arg)}
	case bytecode.OpVariantSwitch:
		out := make([]int, len(instr.Targets))
		for i, t := range instr.Targets {
			out[i] = int(t)
		}
		return out
	}
	return nil
}
