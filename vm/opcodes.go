// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-clockwork
//
// go-clockwork is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-clockwork is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-clockwork.  If not, see <https://www.gnu.org/licenses/>.

package vm

import (
	"fmt"
	"strings"
)

// StackType describes the type of a stack value.
type StackType byte

const (
	// StackAny is either type.
	StackAny StackType = iota
	// StackUint64 is an unsigned integer.
	StackUint64
	// StackBytes is a byte string.
	StackBytes
)

func (st StackType) String() string {
	switch st {
	case StackUint64:
		return "uint64"
	case StackBytes:
		return "[]byte"
	}
	return "any"
}

// StackTypes is a list of stack types, in push order.
type StackTypes []StackType

func parseStackTypes(spec string) StackTypes {
	if spec == "" {
		return nil
	}
	types := make(StackTypes, len(spec))
	for i, letter := range spec {
		switch letter {
		case 'a':
			types[i] = StackAny
		case 'b':
			types[i] = StackBytes
		case 'i':
			types[i] = StackUint64
		default:
			panic(spec)
		}
	}
	return types
}

func opCompat(expected, got StackType) bool {
	if expected == StackAny {
		return true
	}
	return expected == got
}

// Proto describes what an opcode pops and pushes.
type Proto struct {
	Args    StackTypes
	Returns StackTypes
}

func proto(signature string) Proto {
	parts := strings.Split(signature, ":")
	if len(parts) != 2 {
		panic(signature)
	}
	return Proto{Args: parseStackTypes(parts[0]), Returns: parseStackTypes(parts[1])}
}

type immKind byte

const (
	immByte     immKind = iota // one byte
	immInt                     // uvarint
	immBytes                   // uvarint length, then bytes
	immLabel                   // big endian int16 branch offset
	immResource                // one byte resource kind
)

type immediate struct {
	Name string
	kind immKind
}

type evalFunc func(vm *VM) error
type checkFunc func(cs *checkState) error

// OpDetails records the layout of an opcode's immediates. Size is the full
// instruction length when it is fixed; when it is zero, check determines it.
type OpDetails struct {
	check      checkFunc
	Size       int
	Immediates []immediate
}

func opDefault() OpDetails {
	return OpDetails{Size: 1}
}

func immediates(kind immKind, name string) OpDetails {
	d := OpDetails{Immediates: []immediate{{name, kind}}}
	switch kind {
	case immByte:
		d.Size = 2
	case immResource:
		d.Size = 2
		d.check = checkTopic
	case immLabel:
		d.Size = 3
		d.check = checkBranch
	case immInt:
		d.check = checkPushInt
	case immBytes:
		d.check = checkPushBytes
	}
	return d
}

// OpSpec defines an opcode.
type OpSpec struct {
	Opcode byte
	Name   string
	op     evalFunc
	Proto
	Version   uint64
	OpDetails
}

// AlwaysExits is true iff the opcode always ends the program.
func (spec *OpSpec) AlwaysExits() bool {
	switch spec.Name {
	case "err", "halt", "exit":
		return true
	}
	return false
}

// OpSpecs is the table of operations that can be assembled and evaluated.
var OpSpecs = []OpSpec{
	{0x00, "err", opErr, proto(":"), 1, opDefault()},
	{0x01, "halt", opHalt, proto(":"), 1, opDefault()},
	{0x02, "pushint", opPushInt, proto(":i"), 1, immediates(immInt, "uint")},
	{0x03, "pushbytes", opPushBytes, proto(":b"), 1, immediates(immBytes, "bytes")},
	{0x04, "pop", opPop, proto("a:"), 1, opDefault()},
	{0x05, "dup", opDup, proto("a:aa"), 1, opDefault()},
	{0x06, "swap", opSwap, proto("aa:aa"), 1, opDefault()},
	{0x07, "==", opEq, proto("aa:i"), 1, opDefault()},
	{0x08, "!", opNot, proto("i:i"), 1, opDefault()},
	{0x09, "concat", opConcat, proto("bb:b"), 1, opDefault()},
	{0x0a, "b", opB, proto(":"), 1, immediates(immLabel, "target")},
	{0x0b, "bz", opBz, proto("i:"), 1, immediates(immLabel, "target")},
	{0x0c, "bnz", opBnz, proto("i:"), 1, immediates(immLabel, "target")},
	{0x0d, "load", opLoad, proto(":a"), 1, immediates(immByte, "slot")},
	{0x0e, "store", opStore, proto("a:"), 1, immediates(immByte, "slot")},
	{0x0f, "fact", opFact, proto("b:b"), 1, opDefault()},
	{0x10, "pragma", opPragma, proto("bb:"), 1, opDefault()},
	{0x11, "print", opPrint, proto("b:"), 1, opDefault()},
	{0x12, "log", opLog, proto("b:"), 1, opDefault()},
	{0x13, "topic", opTopic, proto("b:"), 1, immediates(immResource, "kind")},
	{0x14, "attr", opAttr, proto("bb:"), 1, opDefault()},
	{0x15, "enforce", opEnforce, proto(":i"), 1, opDefault()},
	{0x16, "remote.fetch", opRemoteFetch, proto("b:b"), 1, opDefault()},
	{0x17, "+", opPlus, proto("ii:i"), 1, opDefault()},
	{0x18, "<", opLt, proto("ii:i"), 1, opDefault()},
	{0x19, "match", opMatch, proto("bb:i"), 1, opDefault()},
	{0x1a, "itoa", opItoa, proto("i:b"), 1, opDefault()},
	{0x1b, "exit", opExit, proto("i:"), 1, opDefault()},
	{0x1c, "acl", opACL, proto("b:"), 1, opDefault()},
}

// aliases are alternative assembler names.
var aliases = map[string]string{
	"eq":    "==",
	"not":   "!",
	"add":   "+",
	"lt":    "<",
	"fetch": "remote.fetch",
}

// direct opcode bytes
var opsByOpcode [MaxVersion + 1][256]OpSpec

// OpsByName maps opcode names to specs, for each version.
var OpsByName [MaxVersion + 1]map[string]OpSpec

func init() {
	for v := uint64(1); v <= MaxVersion; v++ {
		OpsByName[v] = make(map[string]OpSpec, len(OpSpecs))
		if v > 1 {
			for name, oi := range OpsByName[v-1] {
				OpsByName[v][name] = oi
			}
			opsByOpcode[v] = opsByOpcode[v-1]
		}
		for _, oi := range OpSpecs {
			if oi.Version == v {
				opsByOpcode[v][oi.Opcode] = oi
				OpsByName[v][oi.Name] = oi
			}
		}
	}
}

// lookupOp finds a spec by name or alias.
func lookupOp(version uint64, name string) (OpSpec, bool) {
	if real, ok := aliases[name]; ok {
		name = real
	}
	spec, ok := OpsByName[version][name]
	return spec, ok
}

func (spec *OpSpec) String() string {
	return fmt.Sprintf("%s (0x%02x)", spec.Name, spec.Opcode)
}
