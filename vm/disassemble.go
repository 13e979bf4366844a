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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/algorand/go-clockwork/resource"
)

// disassembleOne renders the instruction at pc and returns its length.
// Branch targets use labels when they are given, pc numbers otherwise.
func disassembleOne(program []byte, pc int, version uint64, labels map[int]string) (string, int, error) {
	spec := &opsByOpcode[version][program[pc]]
	if spec.op == nil {
		return "", 0, fmt.Errorf("%d: illegal opcode 0x%02x", pc, program[pc])
	}
	if spec.Size != 0 && pc+spec.Size > len(program) {
		return "", 0, fmt.Errorf("%d: %s program ends short of immediate values", pc, spec.Name)
	}
	if len(spec.Immediates) == 0 {
		return spec.Name, spec.Size, nil
	}

	switch spec.Immediates[0].kind {
	case immByte:
		return fmt.Sprintf("%s %d", spec.Name, program[pc+1]), spec.Size, nil
	case immResource:
		return fmt.Sprintf("%s %s", spec.Name, resource.Kind(program[pc+1])), spec.Size, nil
	case immLabel:
		target := branchTarget(program, pc)
		if label, ok := labels[target]; ok {
			return fmt.Sprintf("%s %s", spec.Name, label), spec.Size, nil
		}
		return fmt.Sprintf("%s %d", spec.Name, target), spec.Size, nil
	case immInt:
		val, n := binary.Uvarint(program[pc+1:])
		if n <= 0 {
			return "", 0, fmt.Errorf("%d: bad uvarint immediate", pc)
		}
		return fmt.Sprintf("%s %d", spec.Name, val), 1 + n, nil
	case immBytes:
		length, n := binary.Uvarint(program[pc+1:])
		if n <= 0 || length > uint64(len(program)-pc-1-n) {
			return "", 0, fmt.Errorf("%d: bad bytes immediate", pc)
		}
		start := pc + 1 + n
		return fmt.Sprintf("%s %s", spec.Name, renderBytes(program[start:start+int(length)])), 1 + n + int(length), nil
	}
	return "", 0, fmt.Errorf("%d: %s has unknown immediate", pc, spec.Name)
}

// renderBytes quotes printable strings and hex encodes everything else.
func renderBytes(b []byte) string {
	if utf8.Valid(b) {
		s := string(b)
		printable := true
		for _, r := range s {
			if !strconv.IsPrint(r) && r != '\n' && r != '\t' {
				printable = false
				break
			}
		}
		if printable {
			return strconv.Quote(s)
		}
	}
	return "0x" + hex.EncodeToString(b)
}

// Disassemble renders a program image as assembler text.
func Disassemble(image []byte) (string, error) {
	version, start, err := versionCheck(image)
	if err != nil {
		return "", err
	}

	targets := make(map[int]bool)
	for pc := start; pc < len(image); {
		_, size, err := disassembleOne(image, pc, version, nil)
		if err != nil {
			return "", err
		}
		if spec := &opsByOpcode[version][image[pc]]; len(spec.Immediates) > 0 && spec.Immediates[0].kind == immLabel {
			targets[branchTarget(image, pc)] = true
		}
		pc += size
	}
	sorted := make([]int, 0, len(targets))
	for t := range targets {
		sorted = append(sorted, t)
	}
	sort.Ints(sorted)
	labels := make(map[int]string, len(sorted))
	for i, t := range sorted {
		labels[t] = fmt.Sprintf("label%d", i+1)
	}

	var out strings.Builder
	fmt.Fprintf(&out, "#pragma version %d\n", version)
	for pc := start; pc < len(image); {
		if label, ok := labels[pc]; ok {
			fmt.Fprintf(&out, "%s:\n", label)
		}
		line, size, err := disassembleOne(image, pc, version, labels)
		if err != nil {
			return "", err
		}
		out.WriteString(line)
		out.WriteByte('\n')
		pc += size
	}
	if label, ok := labels[len(image)]; ok {
		fmt.Fprintf(&out, "%s:\n", label)
	}
	return out.String(), nil
}

// Disasm writes the disassembly of the loaded program to w.
func (vm *VM) Disasm(w io.Writer) error {
	if vm.program == nil {
		return ErrNotLoaded
	}
	text, err := Disassemble(vm.program)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}
