package runtime

import (
	"fmt"
	"strings"
)

// vmHooks lists the Stylus host imports (spec §6.5), each declared against
// module "vm_hooks" the way the teacher declares WASI preview2 imports in
// wasi/preview2 — one (module, name, signature) triple per host call the
// generated program can reach.
var vmHooks = []struct {
	name   string
	params string
	result string
}{
	{"read_args", "(param i32)", ""},
	{"write_result", "(param i32 i32)", ""},
	{"storage_load_bytes32", "(param i32 i32)", ""},
	{"storage_store_bytes32", "(param i32 i32)", ""},
	{"emit_log", "(param i32 i32 i32)", ""},
	{"msg_sender", "(param i32)", ""},
	{"msg_value", "(param i32)", ""},
	{"block_number", "", "(result i64)"},
	{"block_basefee", "(param i32)", ""},
	{"block_gas_limit", "", "(result i64)"},
	{"block_timestamp", "", "(result i64)"},
	{"chain_id", "", "(result i64)"},
	{"tx_gas_price", "(param i32)", ""},
	{"native_keccak256", "(param i32 i32 i32)", ""},
}

// widths is every wide integer size the runtime's big-number helpers are
// generic over (spec §4.4: u128 and u256 share one byte-buffer
// representation differing only in length).
var widths = []struct {
	name string
	n    int
}{
	{"u128", 16},
	{"u256", 32},
}

// wideOps lists the arithmetic/bitwise opcode names whose wide wrappers
// call a generic helper taking (a, b, out, n), paired with that helper and
// whether the result is an i32 boolean rather than a fresh pointer. div/mod
// (via $big_divmod) and the comparisons are emitted separately in
// wideWrappers.
var wideOps = []struct {
	op     string
	helper string
	isBool bool
}{
	{"add", "big_add", false},
	{"sub", "big_sub", false},
	{"mul", "big_mul", false},
	{"or", "big_or", false},
	{"and", "big_and", false},
	{"xor", "big_xor", false},
}

// narrowSizes maps each non-wide cast width to its byte size, used to build
// the cast-wrapper table.
var narrowSizes = []struct {
	name string
	n    int
	i64  bool
}{
	{"u8", 1, false},
	{"u16", 2, false},
	{"u32", 4, false},
	{"u64", 8, true},
}

// Source renders the complete hand-authored runtime support module as WAT
// text (spec §4.5/§6.4), parameterized by bumpBase — the first linear
// memory address past the program's own constant pool (codegen's
// CompiledProgram.DataLimit), where the bump allocator's arena begins.
// Everything else here is static: the allocator, wide-integer arithmetic,
// vector/object/event helpers, casts, storage, and abort encoding described
// in SPEC_FULL.md §4.5/§6, grounded on the teacher's runtime package (the
// same concern — a WASM-side support layer backing generated code — though
// there it bridges asyncify-rewritten coroutines rather than Move's value
// model) and linker/internal/bridge (cross-module host-call wiring,
// generalized here from "call into the host at runtime" to "call into a
// statically linked sibling module").
func Source(bumpBase uint32) string {
	var b strings.Builder
	b.WriteString("(module\n")
	b.WriteString("  (memory 1)\n")
	fmt.Fprintf(&b, "  (global $bump (mut i32) (i32.const %d))\n", bumpBase)
	b.WriteString("  (global $obj_ctr (mut i32) (i32.const 0))\n")
	b.WriteString("  (global $obj_reg (mut i32) (i32.const 0))\n")
	b.WriteString("  (export \"bump\" (global $bump))\n")
	b.WriteString("  (export \"obj_ctr\" (global $obj_ctr))\n")
	b.WriteString("  (export \"obj_reg\" (global $obj_reg))\n")
	b.WriteString("  (export \"memory\" (memory 0))\n")

	for _, h := range vmHooks {
		fmt.Fprintf(&b, "  (import \"vm_hooks\" \"%s\" (func $%s %s %s))\n", h.name, h.name, h.params, h.result)
	}

	b.WriteString(allocSource())
	b.WriteString(bigIntSource())
	for _, w := range widths {
		b.WriteString(wideWrappers(w.name, w.n))
	}
	b.WriteString(castSource())
	b.WriteString(vectorSource())
	b.WriteString(objectSource())
	b.WriteString(storageSource())
	b.WriteString(abortSource())
	b.WriteString(abiSource())

	b.WriteString(")\n")
	return b.String()
}

// allocSource is the bump allocator: rt_alloc grows linear memory with
// memory.grow whenever the arena runs past the current page count, the way
// a freestanding WASM runtime without a host malloc must (spec §4.5
// "allocator").
func allocSource() string {
	return `
  (func $rt_alloc (export "rt_alloc") (param $size i32) (result i32)
    (local $base i32) (local $need i32) (local $have i32) (local $grow i32)
    (local.set $base (global.get $bump))
    (local.set $need (i32.add (local.get $base) (local.get $size)))
    (local.set $have (i32.mul (memory.size) (i32.const 65536)))
    (if (i32.gt_u (local.get $need) (local.get $have))
      (then
        (local.set $grow
          (i32.div_u
            (i32.add (i32.sub (local.get $need) (local.get $have)) (i32.const 65535))
            (i32.const 65536)))
        (drop (memory.grow (local.get $grow)))))
    (global.set $bump (local.get $need))
    (local.get $base))
`
}

// bigIntSource defines the generic little-endian byte-buffer big-integer
// helpers every u128/u256 operation is built from, parameterized by byte
// count n so u128 and u256 share one implementation (spec §4.4 "Wide
// arithmetic"). Multiplication wraps modulo 2^(8n) rather than trapping on
// overflow (Move's checked-arithmetic semantics for wide types are
// approximated here, not exactly reproduced — see DESIGN.md).
func bigIntSource() string {
	return `
  (func $big_cmp (param $a i32) (param $b i32) (param $n i32) (result i32)
    (local $i i32) (local $av i32) (local $bv i32)
    (local.set $i (local.get $n))
    (block $done
      (loop $next
        (br_if $done (i32.eqz (local.get $i)))
        (local.set $i (i32.sub (local.get $i) (i32.const 1)))
        (local.set $av (i32.load8_u (i32.add (local.get $a) (local.get $i))))
        (local.set $bv (i32.load8_u (i32.add (local.get $b) (local.get $i))))
        (if (i32.ne (local.get $av) (local.get $bv))
          (then
            (if (i32.lt_u (local.get $av) (local.get $bv))
              (then (return (i32.const -1)))
              (else (return (i32.const 1))))))
        (br $next)))
    (i32.const 0))

  (func $big_add (param $a i32) (param $b i32) (param $n i32) (result i32)
    (local $out i32) (local $i i32) (local $carry i32) (local $sum i32)
    (local.set $out (call $rt_alloc (local.get $n)))
    (local.set $i (i32.const 0))
    (loop $next
      (if (i32.lt_u (local.get $i) (local.get $n))
        (then
          (local.set $sum
            (i32.add
              (i32.add
                (i32.load8_u (i32.add (local.get $a) (local.get $i)))
                (i32.load8_u (i32.add (local.get $b) (local.get $i))))
              (local.get $carry)))
          (i32.store8 (i32.add (local.get $out) (local.get $i)) (local.get $sum))
          (local.set $carry (i32.shr_u (local.get $sum) (i32.const 8)))
          (local.set $i (i32.add (local.get $i) (i32.const 1)))
          (br $next))))
    (local.get $out))

  (func $big_sub (param $a i32) (param $b i32) (param $n i32) (result i32)
    (local $out i32) (local $i i32) (local $borrow i32) (local $diff i32)
    (local.set $out (call $rt_alloc (local.get $n)))
    (local.set $i (i32.const 0))
    (loop $next
      (if (i32.lt_u (local.get $i) (local.get $n))
        (then
          (local.set $diff
            (i32.sub
              (i32.sub
                (i32.load8_u (i32.add (local.get $a) (local.get $i)))
                (i32.load8_u (i32.add (local.get $b) (local.get $i))))
              (local.get $borrow)))
          (local.set $borrow (i32.const 0))
          (if (i32.lt_s (local.get $diff) (i32.const 0))
            (then
              (local.set $diff (i32.add (local.get $diff) (i32.const 256)))
              (local.set $borrow (i32.const 1))))
          (i32.store8 (i32.add (local.get $out) (local.get $i)) (local.get $diff))
          (local.set $i (i32.add (local.get $i) (i32.const 1)))
          (br $next))))
    (local.get $out))

  (func $big_bitwise (param $a i32) (param $b i32) (param $n i32) (param $op i32) (result i32)
    (local $out i32) (local $i i32) (local $av i32) (local $bv i32) (local $r i32)
    (local.set $out (call $rt_alloc (local.get $n)))
    (local.set $i (i32.const 0))
    (loop $next
      (if (i32.lt_u (local.get $i) (local.get $n))
        (then
          (local.set $av (i32.load8_u (i32.add (local.get $a) (local.get $i))))
          (local.set $bv (i32.load8_u (i32.add (local.get $b) (local.get $i))))
          (if (i32.eq (local.get $op) (i32.const 0)) (then (local.set $r (i32.and (local.get $av) (local.get $bv)))))
          (if (i32.eq (local.get $op) (i32.const 1)) (then (local.set $r (i32.or (local.get $av) (local.get $bv)))))
          (if (i32.eq (local.get $op) (i32.const 2)) (then (local.set $r (i32.xor (local.get $av) (local.get $bv)))))
          (i32.store8 (i32.add (local.get $out) (local.get $i)) (local.get $r))
          (local.set $i (i32.add (local.get $i) (i32.const 1)))
          (br $next))))
    (local.get $out))

  (func $big_and (param $a i32) (param $b i32) (param $n i32) (result i32)
    (call $big_bitwise (local.get $a) (local.get $b) (local.get $n) (i32.const 0)))
  (func $big_or (param $a i32) (param $b i32) (param $n i32) (result i32)
    (call $big_bitwise (local.get $a) (local.get $b) (local.get $n) (i32.const 1)))
  (func $big_xor (param $a i32) (param $b i32) (param $n i32) (result i32)
    (call $big_bitwise (local.get $a) (local.get $b) (local.get $n) (i32.const 2)))

  (func $big_is_zero (param $a i32) (param $n i32) (result i32)
    (local $i i32)
    (local.set $i (i32.const 0))
    (block $done
      (loop $next
        (br_if $done (i32.ge_u (local.get $i) (local.get $n)))
        (br_if $done (i32.ne (i32.load8_u (i32.add (local.get $a) (local.get $i))) (i32.const 0)))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $next)))
    (i32.eq (local.get $i) (local.get $n)))

  ;; big_shl1 shifts the n-byte buffer at $a left by one bit in place,
  ;; shifting in $carry_in at bit 0 and returning the bit shifted out of the
  ;; top byte; used by both big_mul and big_divmod's bit-serial algorithms.
  (func $big_shl1 (param $a i32) (param $n i32) (param $carry_in i32) (result i32)
    (local $i i32) (local $v i32) (local $carry_out i32) (local $new_carry i32)
    (local.set $i (i32.const 0))
    (local.set $carry_out (i32.const 0))
    (loop $next
      (if (i32.lt_u (local.get $i) (local.get $n))
        (then
          (local.set $v (i32.load8_u (i32.add (local.get $a) (local.get $i))))
          (local.set $new_carry (i32.shr_u (local.get $v) (i32.const 7)))
          (i32.store8 (i32.add (local.get $a) (local.get $i))
            (i32.and (i32.or (i32.shl (local.get $v) (i32.const 1)) (local.get $carry_in)) (i32.const 255)))
          (local.set $carry_in (local.get $new_carry))
          (local.set $carry_out (local.get $new_carry))
          (local.set $i (i32.add (local.get $i) (i32.const 1)))
          (br $next))))
    (local.get $carry_out))

  (func $big_shl (param $a i32) (param $shift i32) (param $n i32) (result i32)
    (local $out i32) (local $i i32)
    (local.set $out (call $rt_alloc (local.get $n)))
    (memory.copy (local.get $out) (local.get $a) (local.get $n))
    (local.set $i (i32.const 0))
    (loop $next
      (if (i32.lt_u (local.get $i) (local.get $shift))
        (then
          (drop (call $big_shl1 (local.get $out) (local.get $n) (i32.const 0)))
          (local.set $i (i32.add (local.get $i) (i32.const 1)))
          (br $next))))
    (local.get $out))

  (func $big_shr1 (param $a i32) (param $n i32) (result i32)
    (local $i i32) (local $v i32) (local $carry i32) (local $new_carry i32)
    (local.set $i (local.get $n))
    (local.set $carry (i32.const 0))
    (block $done
      (loop $next
        (br_if $done (i32.eqz (local.get $i)))
        (local.set $i (i32.sub (local.get $i) (i32.const 1)))
        (local.set $v (i32.load8_u (i32.add (local.get $a) (local.get $i))))
        (local.set $new_carry (i32.and (local.get $v) (i32.const 1)))
        (i32.store8 (i32.add (local.get $a) (local.get $i))
          (i32.or (i32.shr_u (local.get $v) (i32.const 1)) (i32.shl (local.get $carry) (i32.const 7))))
        (local.set $carry (local.get $new_carry))
        (br $next)))
    (local.get $carry))

  (func $big_shr (param $a i32) (param $shift i32) (param $n i32) (result i32)
    (local $out i32) (local $i i32)
    (local.set $out (call $rt_alloc (local.get $n)))
    (memory.copy (local.get $out) (local.get $a) (local.get $n))
    (local.set $i (i32.const 0))
    (loop $next
      (if (i32.lt_u (local.get $i) (local.get $shift))
        (then
          (drop (call $big_shr1 (local.get $out) (local.get $n)))
          (local.set $i (i32.add (local.get $i) (i32.const 1)))
          (br $next))))
    (local.get $out))

  ;; big_mul: schoolbook shift-and-add over bits of $b, wrapping modulo
  ;; 2^(8n) (extra bits shifted out of the top byte are simply discarded).
  (func $big_mul (param $a i32) (param $b i32) (param $n i32) (result i32)
    (local $out i32) (local $shifted i32) (local $bit i32) (local $byte i32) (local $bitpos i32) (local $v i32)
    (local.set $out (call $rt_alloc (local.get $n)))
    (local.set $shifted (call $rt_alloc (local.get $n)))
    (memory.copy (local.get $shifted) (local.get $a) (local.get $n))
    (local.set $bit (i32.const 0))
    (loop $bits
      (if (i32.lt_u (local.get $bit) (i32.mul (local.get $n) (i32.const 8)))
        (then
          (local.set $byte (i32.div_u (local.get $bit) (i32.const 8)))
          (local.set $bitpos (i32.rem_u (local.get $bit) (i32.const 8)))
          (local.set $v (i32.load8_u (i32.add (local.get $b) (local.get $byte))))
          (if (i32.and (i32.shr_u (local.get $v) (local.get $bitpos)) (i32.const 1))
            (then
              (local.set $out (call $big_add (local.get $out) (local.get $shifted) (local.get $n)))))
          (drop (call $big_shl1 (local.get $shifted) (local.get $n) (i32.const 0)))
          (local.set $bit (i32.add (local.get $bit) (i32.const 1)))
          (br $bits))))
    (local.get $out))

  ;; big_divmod: bit-serial restoring long division, MSB to LSB of $a.
  ;; Traps (unreachable) on division by zero (spec §7 "division_by_zero").
  ;; $rem_out must already point at an n-byte zeroed buffer; returns the
  ;; quotient, and leaves the remainder in $rem_out.
  (func $big_divmod (param $a i32) (param $b i32) (param $n i32) (param $rem_out i32) (result i32)
    (local $quot i32) (local $bit i32) (local $byte i32) (local $bitpos i32) (local $srcbit i32) (local $diff i32)
    (if (call $big_is_zero (local.get $b) (local.get $n)) (then unreachable))
    (local.set $quot (call $rt_alloc (local.get $n)))
    (local.set $bit (i32.mul (local.get $n) (i32.const 8)))
    (block $done
      (loop $next
        (br_if $done (i32.eqz (local.get $bit)))
        (local.set $bit (i32.sub (local.get $bit) (i32.const 1)))
        (local.set $byte (i32.div_u (local.get $bit) (i32.const 8)))
        (local.set $bitpos (i32.rem_u (local.get $bit) (i32.const 8)))
        (local.set $srcbit
          (i32.and
            (i32.shr_u (i32.load8_u (i32.add (local.get $a) (local.get $byte))) (local.get $bitpos))
            (i32.const 1)))
        (drop (call $big_shl1 (local.get $rem_out) (local.get $n) (local.get $srcbit)))
        (if (i32.ge_s (call $big_cmp (local.get $rem_out) (local.get $b) (local.get $n)) (i32.const 0))
          (then
            (local.set $diff (call $big_sub (local.get $rem_out) (local.get $b) (local.get $n)))
            (memory.copy (local.get $rem_out) (local.get $diff) (local.get $n))
            (i32.store8 (i32.add (local.get $quot) (local.get $byte))
              (i32.or (i32.load8_u (i32.add (local.get $quot) (local.get $byte)))
                (i32.shl (i32.const 1) (local.get $bitpos))))))
        (br $next)))
    (local.get $quot))
`
}

// wideWrappers emits the named rt_<op>_<width> family arithmetic.go's
// arithWide table dispatches to for one width: arithmetic/bitwise ops return
// a fresh pointer, shl/shr take a native i32 shift count rather than a
// pointer (Move's shift amount is always a narrow integer), comparisons
// return an i32 boolean (spec §4.4).
func wideWrappers(name string, n int) string {
	var b strings.Builder
	for _, op := range wideOps {
		fmt.Fprintf(&b, `
  (func $rt_%s_%s (export "rt_%s_%s") (param $a i32) (param $b i32) (result i32)
    (call $%s (local.get $a) (local.get $b) (i32.const %d)))
`, op.op, name, op.op, name, op.helper, n)
	}

	fmt.Fprintf(&b, `
  (func $rt_div_%s (export "rt_div_%s") (param $a i32) (param $b i32) (result i32)
    (call $big_divmod (local.get $a) (local.get $b) (i32.const %d) (call $rt_alloc (i32.const %d))))

  (func $rt_mod_%s (export "rt_mod_%s") (param $a i32) (param $b i32) (result i32)
    (local $rem i32)
    (local.set $rem (call $rt_alloc (i32.const %d)))
    (drop (call $big_divmod (local.get $a) (local.get $b) (i32.const %d) (local.get $rem)))
    (local.get $rem))

  (func $rt_shl_%s (export "rt_shl_%s") (param $a i32) (param $shift i32) (result i32)
    (call $big_shl (local.get $a) (local.get $shift) (i32.const %d)))

  (func $rt_shr_%s (export "rt_shr_%s") (param $a i32) (param $shift i32) (result i32)
    (call $big_shr (local.get $a) (local.get $shift) (i32.const %d)))
`, name, name, n, n, name, name, n, n, name, name, n, name, name, n)

	cmp := []struct{ op, test string }{
		{"lt", "(i32.lt_s (call $big_cmp (local.get $a) (local.get $b) (i32.const %d)) (i32.const 0))"},
		{"gt", "(i32.gt_s (call $big_cmp (local.get $a) (local.get $b) (i32.const %d)) (i32.const 0))"},
		{"le", "(i32.le_s (call $big_cmp (local.get $a) (local.get $b) (i32.const %d)) (i32.const 0))"},
		{"ge", "(i32.ge_s (call $big_cmp (local.get $a) (local.get $b) (i32.const %d)) (i32.const 0))"},
		{"eq", "(i32.eq (call $big_cmp (local.get $a) (local.get $b) (i32.const %d)) (i32.const 0))"},
		{"ne", "(i32.ne (call $big_cmp (local.get $a) (local.get $b) (i32.const %d)) (i32.const 0))"},
	}
	for _, c := range cmp {
		fmt.Fprintf(&b, `
  (func $rt_%s_%s (export "rt_%s_%s") (param $a i32) (param $b i32) (result i32)
    `+c.test+`)
`, c.op, name, c.op, name, n)
	}
	return b.String()
}

// castSource emits every rt_cast_<dest>_from_<src> helper casts.go reaches
// for whenever either side of a Move cast is a wide (u128/u256) type (spec
// §4.4). Narrow<->wide conversions use raw stores/loads rather than a
// dedicated widen/narrow routine: the buffer's little-endian byte order
// matches a native i32/i64 load or store exactly, so reading/writing the low
// bytes of a zero-initialized rt_alloc buffer is sufficient.
func castSource() string {
	var b strings.Builder
	for _, w := range widths {
		for _, s := range narrowSizes {
			b.WriteString(wideFromNarrowCast(w.name, w.n, s.name, s.i64))
		}
		for _, o := range widths {
			if w.name == o.name {
				continue
			}
			b.WriteString(wideFromWideCast(w.name, w.n, o.name, o.n))
		}
	}
	for _, s := range narrowSizes {
		for _, w := range widths {
			b.WriteString(narrowFromWideCast(s.name, s.i64, w.name))
		}
	}
	return b.String()
}

func wideFromNarrowCast(dest string, destN int, src string, srcIsI64 bool) string {
	paramTy := "i32"
	store := "i32.store8"
	switch {
	case srcIsI64:
		paramTy = "i64"
		store = "i64.store"
	case src == "u16":
		store = "i32.store16"
	case src == "u32":
		store = "i32.store"
	}
	return fmt.Sprintf(`
  (func $rt_cast_%s_from_%s (export "rt_cast_%s_from_%s") (param $v %s) (result i32)
    (local $out i32)
    (local.set $out (call $rt_alloc (i32.const %d)))
    (%s (local.get $out) (local.get $v))
    (local.get $out))
`, dest, src, dest, src, paramTy, destN, store)
}

// wideFromWideCast truncates or zero-extends between u128 and u256: the
// destination buffer is already zero (fresh from rt_alloc), so extension
// needs no explicit padding, only the copy of whichever length is smaller.
func wideFromWideCast(dest string, destN int, src string, srcN int) string {
	copyLen := destN
	if srcN < copyLen {
		copyLen = srcN
	}
	return fmt.Sprintf(`
  (func $rt_cast_%s_from_%s (export "rt_cast_%s_from_%s") (param $v i32) (result i32)
    (local $out i32)
    (local.set $out (call $rt_alloc (i32.const %d)))
    (memory.copy (local.get $out) (local.get $v) (i32.const %d))
    (local.get $out))
`, dest, src, dest, src, destN, copyLen)
}

func narrowFromWideCast(dest string, destIsI64 bool, src string) string {
	resultTy, load := "i32", "i32.load"
	if destIsI64 {
		resultTy, load = "i64", "i64.load"
	} else if dest == "u8" {
		load = "i32.load8_u"
	} else if dest == "u16" {
		load = "i32.load16_u"
	}
	return fmt.Sprintf(`
  (func $rt_cast_%s_from_%s (export "rt_cast_%s_from_%s") (param $v i32) (result %s)
    (%s (local.get $v)))
`, dest, src, dest, src, resultTy, load)
}

// vectorSource implements Move vectors as a 16-byte header {len, cap,
// elem_size, elems_ptr} over a tight, growable elements buffer (spec §4.4
// "vector operations with growable backing storage"). elem_size rides in
// the header itself rather than being threaded through every call, since
// OpVecPopBack and OpVecSwap's stack effects carry no type argument (only
// the vector pointer, per Move's bytecode rules) and still need it to
// compute an element's address.
func vectorSource() string {
	return `
  (func $vec_store_elem (param $addr i32) (param $elem_size i32) (param $value i64)
    (if (i32.eq (local.get $elem_size) (i32.const 1))
      (then (i32.store8 (local.get $addr) (i32.wrap_i64 (local.get $value)))
            (return)))
    (if (i32.eq (local.get $elem_size) (i32.const 2))
      (then (i32.store16 (local.get $addr) (i32.wrap_i64 (local.get $value)))
            (return)))
    (if (i32.eq (local.get $elem_size) (i32.const 4))
      (then (i32.store (local.get $addr) (i32.wrap_i64 (local.get $value)))
            (return)))
    (i64.store (local.get $addr) (local.get $value)))

  (func $rt_vec_pack (export "rt_vec_pack") (param $elem_size i32) (param $count i32) (result i32)
    (local $hdr i32) (local $elems i32)
    (local.set $hdr (call $rt_alloc (i32.const 16)))
    (local.set $elems (call $rt_alloc (i32.mul (local.get $elem_size) (local.get $count))))
    (i32.store (local.get $hdr) (local.get $count))
    (i32.store (i32.add (local.get $hdr) (i32.const 4)) (local.get $count))
    (i32.store (i32.add (local.get $hdr) (i32.const 8)) (local.get $elem_size))
    (i32.store (i32.add (local.get $hdr) (i32.const 12)) (local.get $elems))
    (local.get $hdr))

  (func $rt_vec_set_elem (export "rt_vec_set_elem") (param $elem_size i32) (param $vec i32) (param $idx i32) (param $value i64)
    (local $elems i32)
    (local.set $elems (i32.load (i32.add (local.get $vec) (i32.const 12))))
    (call $vec_store_elem
      (i32.add (local.get $elems) (i32.mul (local.get $idx) (local.get $elem_size)))
      (local.get $elem_size) (local.get $value)))

  (func $rt_vec_elem_ptr (export "rt_vec_elem_ptr") (param $vec i32) (param $idx i32) (param $elem_size i32) (result i32)
    (local $elems i32)
    (local.set $elems (i32.load (i32.add (local.get $vec) (i32.const 12))))
    (i32.add (local.get $elems) (i32.mul (local.get $idx) (local.get $elem_size))))

  (func $rt_vec_push_back (export "rt_vec_push_back") (param $vec i32) (param $elem_size i32) (param $value i64)
    (local $len i32) (local $cap i32) (local $elems i32) (local $newcap i32) (local $newelems i32)
    (local.set $len (i32.load (local.get $vec)))
    (local.set $cap (i32.load (i32.add (local.get $vec) (i32.const 4))))
    (local.set $elems (i32.load (i32.add (local.get $vec) (i32.const 12))))
    (if (i32.ge_u (local.get $len) (local.get $cap))
      (then
        (local.set $newcap (if (result i32) (i32.eqz (local.get $cap)) (then (i32.const 1)) (else (i32.mul (local.get $cap) (i32.const 2)))))
        (local.set $newelems (call $rt_alloc (i32.mul (local.get $newcap) (local.get $elem_size))))
        (memory.copy (local.get $newelems) (local.get $elems) (i32.mul (local.get $len) (local.get $elem_size)))
        (local.set $elems (local.get $newelems))
        (i32.store (i32.add (local.get $vec) (i32.const 4)) (local.get $newcap))
        (i32.store (i32.add (local.get $vec) (i32.const 12)) (local.get $elems))))
    (call $vec_store_elem
      (i32.add (local.get $elems) (i32.mul (local.get $len) (local.get $elem_size)))
      (local.get $elem_size) (local.get $value))
    (i32.store (local.get $vec) (i32.add (local.get $len) (i32.const 1))))

  (func $rt_vec_pop_back (export "rt_vec_pop_back") (param $vec i32) (result i32)
    (local $len i32) (local $elem_size i32) (local $elems i32)
    (local.set $len (i32.sub (i32.load (local.get $vec)) (i32.const 1)))
    (local.set $elem_size (i32.load (i32.add (local.get $vec) (i32.const 8))))
    (local.set $elems (i32.load (i32.add (local.get $vec) (i32.const 12))))
    (i32.store (local.get $vec) (local.get $len))
    (i32.add (local.get $elems) (i32.mul (local.get $len) (local.get $elem_size))))

  (func $rt_vec_swap (export "rt_vec_swap") (param $vec i32) (param $idx_a i32) (param $idx_b i32)
    (local $elem_size i32) (local $elems i32) (local $addr_a i32) (local $addr_b i32) (local $tmp i32)
    (local.set $elem_size (i32.load (i32.add (local.get $vec) (i32.const 8))))
    (local.set $elems (i32.load (i32.add (local.get $vec) (i32.const 12))))
    (local.set $addr_a (i32.add (local.get $elems) (i32.mul (local.get $idx_a) (local.get $elem_size))))
    (local.set $addr_b (i32.add (local.get $elems) (i32.mul (local.get $idx_b) (local.get $elem_size))))
    (local.set $tmp (call $rt_alloc (local.get $elem_size)))
    (memory.copy (local.get $tmp) (local.get $addr_a) (local.get $elem_size))
    (memory.copy (local.get $addr_a) (local.get $addr_b) (local.get $elem_size))
    (memory.copy (local.get $addr_b) (local.get $tmp) (local.get $elem_size)))
`
}

// objectSource backs the seven Stylus natives (natives.go) with a simple
// append-only object registry: one 32-byte record {uid_ptr, owner[20],
// status} per live object (status 0 owned, 1 shared, 2 frozen, 3 deleted).
// A Move object struct's first declared field is always its id: UID (spec
// §3 "Objects"), so the pointer rt_object_new returns is also the value
// found at offset 0 of any struct built around it — that's the key every
// other native looks up by. Linear scan is adequate here since a single
// transaction only ever touches a handful of objects.
func objectSource() string {
	return `
  (func $obj_reg_ensure
    (if (i32.eqz (global.get $obj_reg))
      (then (global.set $obj_reg (call $rt_alloc (i32.const 12)))
            (i32.store (i32.add (global.get $obj_reg) (i32.const 8)) (i32.const 0)))))

  (func $obj_reg_find (param $uid i32) (result i32)
    (local $i i32) (local $count i32) (local $arr i32)
    (call $obj_reg_ensure)
    (local.set $count (i32.load (global.get $obj_reg)))
    (local.set $arr (i32.load (i32.add (global.get $obj_reg) (i32.const 8))))
    (local.set $i (i32.const 0))
    (block $done
      (loop $next
        (br_if $done (i32.ge_u (local.get $i) (local.get $count)))
        (if (i32.eq (i32.load (i32.add (local.get $arr) (i32.mul (local.get $i) (i32.const 32)))) (local.get $uid))
          (then (return (i32.add (local.get $arr) (i32.mul (local.get $i) (i32.const 32))))))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $next)))
    (i32.const 0))

  (func $obj_reg_append (param $uid i32) (result i32)
    (local $count i32) (local $cap i32) (local $arr i32) (local $newarr i32) (local $rec i32)
    (call $obj_reg_ensure)
    (local.set $count (i32.load (global.get $obj_reg)))
    (local.set $cap (i32.load (i32.add (global.get $obj_reg) (i32.const 4))))
    (local.set $arr (i32.load (i32.add (global.get $obj_reg) (i32.const 8))))
    (if (i32.ge_u (local.get $count) (local.get $cap))
      (then
        (local.set $cap (if (result i32) (i32.eqz (local.get $cap)) (then (i32.const 4)) (else (i32.mul (local.get $cap) (i32.const 2)))))
        (local.set $newarr (call $rt_alloc (i32.mul (local.get $cap) (i32.const 32))))
        (memory.copy (local.get $newarr) (local.get $arr) (i32.mul (local.get $count) (i32.const 32)))
        (local.set $arr (local.get $newarr))
        (i32.store (i32.add (global.get $obj_reg) (i32.const 4)) (local.get $cap))
        (i32.store (i32.add (global.get $obj_reg) (i32.const 8)) (local.get $arr))))
    (local.set $rec (i32.add (local.get $arr) (i32.mul (local.get $count) (i32.const 32))))
    (i32.store (local.get $rec) (local.get $uid))
    (i32.store (i32.add (local.get $rec) (i32.const 28)) (i32.const 0))
    (i32.store (global.get $obj_reg) (i32.add (local.get $count) (i32.const 1)))
    (local.get $rec))

  (func $obj_reg_lookup_or_append (param $obj i32) (result i32)
    (local $uid i32) (local $rec i32)
    (local.set $uid (i32.load (local.get $obj)))
    (local.set $rec (call $obj_reg_find (local.get $uid)))
    (if (i32.eqz (local.get $rec)) (then (local.set $rec (call $obj_reg_append (local.get $uid)))))
    (local.get $rec))

  (func $rt_object_new (export "rt_object_new") (param $txctx i32) (result i32)
    (local $uid i32) (local $rec i32)
    (local.set $uid (call $rt_alloc (i32.const 20)))
    (i32.store (i32.add (local.get $uid) (i32.const 16)) (global.get $obj_ctr))
    (global.set $obj_ctr (i32.add (global.get $obj_ctr) (i32.const 1)))
    (local.set $rec (call $obj_reg_append (local.get $uid)))
    (call $msg_sender (i32.add (local.get $rec) (i32.const 4)))
    (local.get $uid))

  (func $rt_transfer (export "rt_transfer") (param $obj i32) (param $recipient i32)
    (local $rec i32)
    (local.set $rec (call $obj_reg_lookup_or_append (local.get $obj)))
    (memory.copy (i32.add (local.get $rec) (i32.const 4)) (local.get $recipient) (i32.const 20))
    (i32.store (i32.add (local.get $rec) (i32.const 28)) (i32.const 0)))

  (func $rt_share_object (export "rt_share_object") (param $obj i32)
    (i32.store (i32.add (call $obj_reg_lookup_or_append (local.get $obj)) (i32.const 28)) (i32.const 1)))

  (func $rt_freeze_object (export "rt_freeze_object") (param $obj i32)
    (i32.store (i32.add (call $obj_reg_lookup_or_append (local.get $obj)) (i32.const 28)) (i32.const 2)))

  (func $rt_delete_object (export "rt_delete_object") (param $obj i32)
    (i32.store (i32.add (call $obj_reg_lookup_or_append (local.get $obj)) (i32.const 28)) (i32.const 3)))

  (func $rt_tx_context_sender (export "rt_tx_context_sender") (param $txctx i32) (result i32)
    (local $out i32)
    (local.set $out (call $rt_alloc (i32.const 20)))
    (call $msg_sender (local.get $out))
    (local.get $out))

  ;; event, topic, event_len: the event pointer is already on the real
  ;; operand stack from the Move value being emitted, so the extra
  ;; arguments natives.go appends (topic address, encoded length) follow it
  ;; rather than leading, unlike every other native here.
  (func $rt_event_emit (export "rt_event_emit") (param $event i32) (param $topic i32) (param $event_len i32)
    (call $emit_log (local.get $event) (local.get $event_len) (local.get $topic)))
`
}

// storageSource implements a simplified Solidity-style packed-slot model:
// one 32-byte value per numbered slot, key-derived by right-aligning the
// slot index into a zeroed 32-byte big-endian buffer (spec §4.5 "Storage").
// Nested/dynamic slot derivation (mappings, array layout per EVM's
// keccak(slot) scheme) is out of scope for this pass — see DESIGN.md.
func storageSource() string {
	return `
  (func $rt_storage_load (export "rt_storage_load") (param $slot i32) (result i32)
    (local $key i32) (local $out i32)
    (local.set $key (call $rt_alloc (i32.const 32)))
    (i32.store8 (i32.add (local.get $key) (i32.const 28)) (i32.shr_u (local.get $slot) (i32.const 24)))
    (i32.store8 (i32.add (local.get $key) (i32.const 29)) (i32.shr_u (local.get $slot) (i32.const 16)))
    (i32.store8 (i32.add (local.get $key) (i32.const 30)) (i32.shr_u (local.get $slot) (i32.const 8)))
    (i32.store8 (i32.add (local.get $key) (i32.const 31)) (local.get $slot))
    (local.set $out (call $rt_alloc (i32.const 32)))
    (call $storage_load_bytes32 (local.get $key) (local.get $out))
    (local.get $out))

  (func $rt_storage_store (export "rt_storage_store") (param $slot i32) (param $value i32)
    (local $key i32)
    (local.set $key (call $rt_alloc (i32.const 32)))
    (i32.store8 (i32.add (local.get $key) (i32.const 28)) (i32.shr_u (local.get $slot) (i32.const 24)))
    (i32.store8 (i32.add (local.get $key) (i32.const 29)) (i32.shr_u (local.get $slot) (i32.const 16)))
    (i32.store8 (i32.add (local.get $key) (i32.const 30)) (i32.shr_u (local.get $slot) (i32.const 8)))
    (i32.store8 (i32.add (local.get $key) (i32.const 31)) (local.get $slot))
    (call $storage_store_bytes32 (local.get $key) (local.get $value)))
`
}

// abortSource backs Move's Abort instruction (control.go's abortOp, which
// pushes the location constant and then emits unreachable itself): the
// abort code and location are written to a scratch buffer and surfaced via
// write_result as best-effort revert data before the trap unwinds the
// module. Propagating an abort as a catchable exception across nested Move
// calls is not implemented — see DESIGN.md.
func abortSource() string {
	return `
  (func $rt_abort (export "rt_abort") (param $code i64) (param $location i32)
    (local $buf i32)
    (local.set $buf (call $rt_alloc (i32.const 12)))
    (i64.store (local.get $buf) (local.get $code))
    (i32.store (i32.add (local.get $buf) (i32.const 8)) (local.get $location))
    (call $write_result (local.get $buf) (i32.const 12)))
`
}

// abiSource holds the two helpers router's generated entrypoint needs for
// u128/u256 parameters and return values: Solidity ABI words are 32-byte
// big-endian, but every wide value elsewhere in this runtime is a
// little-endian byte buffer (bigIntSource), so crossing the boundary always
// means a reversing copy, not a straight one.
func abiSource() string {
	return `
  (func $rt_abi_decode_wide (export "rt_abi_decode_wide") (param $word i32) (param $n i32) (result i32)
    (local $out i32) (local $i i32) (local $src i32)
    (local.set $out (call $rt_alloc (local.get $n)))
    (local.set $src (i32.add (local.get $word) (i32.sub (i32.const 32) (local.get $n))))
    (local.set $i (i32.const 0))
    (loop $next
      (if (i32.lt_u (local.get $i) (local.get $n))
        (then
          (i32.store8
            (i32.add (local.get $out) (local.get $i))
            (i32.load8_u (i32.add (local.get $src) (i32.sub (i32.sub (local.get $n) (i32.const 1)) (local.get $i)))))
          (local.set $i (i32.add (local.get $i) (i32.const 1)))
          (br $next))))
    (local.get $out))

  (func $rt_abi_encode_wide (export "rt_abi_encode_wide") (param $word i32) (param $value i32) (param $n i32)
    (local $i i32) (local $dst i32)
    (local.set $i (i32.const 0))
    (loop $zero
      (if (i32.lt_u (local.get $i) (i32.const 32))
        (then (i32.store8 (i32.add (local.get $word) (local.get $i)) (i32.const 0))
              (local.set $i (i32.add (local.get $i) (i32.const 1)))
              (br $zero))))
    (local.set $dst (i32.add (local.get $word) (i32.sub (i32.const 32) (local.get $n))))
    (local.set $i (i32.const 0))
    (loop $next
      (if (i32.lt_u (local.get $i) (local.get $n))
        (then
          (i32.store8
            (i32.add (local.get $dst) (i32.sub (i32.sub (local.get $n) (i32.const 1)) (local.get $i)))
            (i32.load8_u (i32.add (local.get $value) (local.get $i))))
          (local.set $i (i32.add (local.get $i) (i32.const 1)))
          (br $next)))))
`
}
