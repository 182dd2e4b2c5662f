// Package ir is the structured control-flow tree codegen's relooper builds,
// copied-and-extended from the teacher's asyncify/internal/ir node set
// (which already models Seq/Block/If/Instr for linearizing async call
// sites) with the two additions Move's CFG needs: Loop (labeled loops) and
// BrTable (dense `match` dispatch via OpVariantSwitch).
//
// Labels on Block/Loop are basic-block indices from the codegen CFG, not
// WASM relative depths — codegen.Emit resolves a Br/BrIf/BrTable's Label to
// a depth by walking the label stack it builds as it descends the tree.
package ir

import "github.com/movestylus/compiler/loader"

// Node is one node of the structured control-flow tree.
type Node interface{ isNode() }

// Seq is an ordered sequence of nodes executed one after another.
type Seq struct{ Items []Node }

// Block wraps Body in a WASM `block`; branching to Label resumes execution
// immediately after the block (spec §4.4 "forward branch" case).
type Block struct {
	Label int
	Body  Node
}

// Loop wraps Body in a WASM `loop`; branching to Label re-enters the loop at
// its start (spec §4.4 "backward branch" case).
type Loop struct {
	Label int
	Body  Node
}

// Br is an unconditional branch to the scope labeled Label.
type Br struct{ Label int }

// BrIf is a conditional branch: pops an i32, branches to Label if nonzero,
// or if zero when Negate is set (OpBranchFalse: WASM has no native
// branch-if-zero, so codegen's emitter inserts an i32.eqz before the br_if).
type BrIf struct {
	Label  int
	Negate bool
}

// BrTable dispatches on a popped i32 index into Labels, falling back to
// Default when out of range (OpVariantSwitch).
type BrTable struct {
	Labels  []int
	Default int
}

// Instr is a single non-control Move instruction, translated to WASM by
// codegen's handler registry during emission.
type Instr struct{ Source loader.Instruction }

func (*Seq) isNode()     {}
func (*Block) isNode()   {}
func (*Loop) isNode()    {}
func (*Br) isNode()      {}
func (*BrIf) isNode()    {}
func (*BrTable) isNode() {}
func (*Instr) isNode()   {}
