// Package abi renders Move types as canonical Solidity type strings and
// derives the 4-byte selectors router (stage R) dispatches on, grounded on
// the teacher's transcoder/internal/abi.TypeName canonicalization helper
// (there: reflect.TypeOf(v).String(), a runtime value to a canonical type
// name; here: a loader.Type to its canonical Solidity spelling), extended
// with Keccak-256 selector hashing the way go-ethereum's accounts/abi
// package derives a function selector from its canonical signature
// (reference only — that package is not part of this module's dependency
// graph).
package abi

import (
	"fmt"
	"strings"

	wasmerrors "github.com/movestylus/compiler/errors"
	"github.com/movestylus/compiler/loader"
	"golang.org/x/crypto/sha3"
)

// TypeString renders t as its canonical Solidity ABI type spelling (spec
// §6.3): unsigned integers by bit width, address/bool verbatim, vector<u8>
// as "bytes", any other vector<T> as "T[]", and structs/tuples as a
// parenthesized tuple of their field types in declaration order. Signer
// never appears in an external signature (spec §3: signer is
// compiler-synthesized, never a parameter type) and is rejected here if it
// somehow does.
func TypeString(prog *loader.Program, t loader.Type) (string, error) {
	switch t.Kind {
	case loader.KindBool:
		return "bool", nil
	case loader.KindU8:
		return "uint8", nil
	case loader.KindU16:
		return "uint16", nil
	case loader.KindU32:
		return "uint32", nil
	case loader.KindU64:
		return "uint64", nil
	case loader.KindU128:
		return "uint128", nil
	case loader.KindU256:
		return "uint256", nil
	case loader.KindAddress:
		return "address", nil
	case loader.KindVector:
		if t.Elem.Kind == loader.KindU8 {
			return "bytes", nil
		}
		elem, err := TypeString(prog, *t.Elem)
		if err != nil {
			return "", err
		}
		return elem + "[]", nil
	case loader.KindStruct:
		return tupleString(prog, fieldTypes(prog, t))
	case loader.KindTuple:
		return tupleString(prog, t.Tuple)
	case loader.KindRef:
		return TypeString(prog, *t.Elem)
	default:
		return "", wasmerrors.New(wasmerrors.PhaseRoute, wasmerrors.KindUnsupportedFeature).
			Detail("type kind %d has no external ABI representation", t.Kind).Build()
	}
}

func fieldTypes(prog *loader.Program, t loader.Type) []loader.Type {
	s := prog.Struct(t.StructID)
	out := make([]loader.Type, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Type.Substitute(t.TypeArgs)
	}
	return out
}

func tupleString(prog *loader.Program, types []loader.Type) (string, error) {
	parts := make([]string, len(types))
	for i, ft := range types {
		s, err := TypeString(prog, ft)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, ",") + ")", nil
}

// Signature renders name(type1,type2,...) — the canonical string Keccak-256
// is applied to, both for Solidity function selectors (spec §6.3) and for
// event topic0 derivation (spec §4.5 "Event emission").
func Signature(prog *loader.Program, name string, params []loader.Type) (string, error) {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		s, err := TypeString(prog, p)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteByte(')')
	return b.String(), nil
}

// Keccak256 hashes data with the Stylus/EVM Keccak-256 variant (distinct
// from NIST SHA3-256's padding), matching the host's native_keccak256
// import so compile-time selector derivation and runtime event topics agree
// bit-for-bit.
func Keccak256(data []byte) [32]byte {
	var out [32]byte
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	h.Sum(out[:0])
	return out
}

// Selector derives a function's 4-byte Solidity selector: the first four
// bytes of Keccak256(signature), big-endian (spec §4.5 "reads a 4-byte
// Keccak-256-derived selector").
func Selector(prog *loader.Program, name string, params []loader.Type) ([4]byte, error) {
	sig, err := Signature(prog, name, params)
	if err != nil {
		return [4]byte{}, err
	}
	digest := Keccak256([]byte(sig))
	var out [4]byte
	copy(out[:], digest[:4])
	return out, nil
}

// SelectorUint32 is Selector's big-endian integer form, the value router's
// generated dispatch compares against (see runtime's matching big-endian
// i32.load8_u assembly of the raw calldata selector bytes).
func SelectorUint32(sel [4]byte) uint32 {
	return uint32(sel[0])<<24 | uint32(sel[1])<<16 | uint32(sel[2])<<8 | uint32(sel[3])
}

// EventTopic0 derives an event struct's log topic0 the same way Selector
// derives a function selector, but over the struct's own field list with no
// function name prefix — just its declared name (spec §4.5).
func EventTopic0(prog *loader.Program, t loader.Type) ([32]byte, error) {
	s := prog.Struct(t.StructID)
	sig, err := Signature(prog, s.Name, fieldTypes(prog, t))
	if err != nil {
		return [32]byte{}, err
	}
	return Keccak256([]byte(sig)), nil
}

// FuncSignature is a convenience formatter for diagnostics and the CLI's
// -list flag.
func FuncSignature(prog *loader.Program, name string, params []loader.Type) string {
	sig, err := Signature(prog, name, params)
	if err != nil {
		return fmt.Sprintf("%s(<unrepresentable>)", name)
	}
	return sig
}
