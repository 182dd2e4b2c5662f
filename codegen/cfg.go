// Package codegen implements pipeline stage C: translation of a monomorphic
// Move function body into structured WASM, per spec §4.4. This is the
// direct generalization of the teacher's asyncify pipeline
// (asyncify/internal/ir tree + asyncify/internal/engine transform/handler
// machinery) from "linearize async call sites in an existing structured
// WASM function" to "reloop an arbitrary Move CFG into structured WASM from
// scratch".
package codegen

import (
	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/loader"
)

// BasicBlock is a maximal straight-line run of instructions: falls into the
// next block unless its last instruction is a branch, return, or abort.
type BasicBlock struct {
	// Start/End are instruction indices into the owning function's Code,
	// End exclusive.
	Start, End int
}

// CFG is a Move function body split into basic blocks, indexed by position
// (Blocks[i] always starts at or after Blocks[i-1].End — Move's compiler
// emits structured source in program order, so block index order always
// matches instruction order; spec §4.4 / DESIGN.md documents this as the
// assumption that lets codegen use a contiguous-range relooper instead of a
// fully general dominance-based one).
type CFG struct {
	Code   []loader.Instruction
	Blocks []BasicBlock

	// offsetToBlock maps a leader instruction index to its BasicBlock index.
	offsetToBlock map[int]int
}

// BuildCFG splits code into basic blocks at every branch target and every
// instruction immediately following a branch/return/abort.
func BuildCFG(code []loader.Instruction) *CFG {
	leaders := map[int]bool{0: true}
	for i, instr := range code {
		switch instr.Op {
		case bytecode.OpBranch, bytecode.OpBranchTrue, bytecode.OpBranchFalse:
			leaders[int(instr.Arg)] = true
			if i+1 < len(code) {
				leaders[i+1] = true
			}
		case bytecode.OpVariantSwitch:
			for _, t := range instr.Targets {
				leaders[int(t)] = true
			}
			if i+1 < len(code) {
				leaders[i+1] = true
			}
		case bytecode.OpRet, bytecode.OpAbort:
			if i+1 < len(code) {
				leaders[i+1] = true
			}
		}
	}

	var starts []int
	for l := range leaders {
		starts = append(starts, l)
	}
	sortInts(starts)

	cfg := &CFG{Code: code, offsetToBlock: make(map[int]int, len(starts))}
	for i, s := range starts {
		end := len(code)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		cfg.offsetToBlock[s] = len(cfg.Blocks)
		cfg.Blocks = append(cfg.Blocks, BasicBlock{Start: s, End: end})
	}
	return cfg
}

// BlockOf returns the basic-block index whose Start equals the given
// instruction offset (a branch target).
func (c *CFG) BlockOf(offset int) int { return c.offsetToBlock[offset] }

// Terminator returns the last instruction of block b, or false if the block
// is empty (can happen for a trailing zero-length block).
func (c *CFG) Terminator(b int) (loader.Instruction, bool) {
	blk := c.Blocks[b]
	if blk.End <= blk.Start {
		return loader.Instruction{}, false
	}
	return c.Code[blk.End-1], true
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
