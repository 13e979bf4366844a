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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/algorand/go-clockwork/resource"
)

// AssemblyError reports the source line an assembly problem was found on.
type AssemblyError struct {
	Line int
	Err  error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("%d: %v", e.Line, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

type asmInstruction struct {
	line int
	spec OpSpec
	args []string
	pc   int
	size int
}

// tokensFor splits a source line into fields, keeping quoted strings whole
// and dropping // comments.
func tokensFor(line string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(line) {
		switch c := line[i]; {
		case c == ' ' || c == '\t':
			i++
		case strings.HasPrefix(line[i:], "//"):
			return tokens, nil
		case c == '"':
			j := i + 1
			for ; j < len(line); j++ {
				if line[j] == '\\' {
					j++
					continue
				}
				if line[j] == '"' {
					break
				}
			}
			if j >= len(line) {
				return nil, errors.New("unterminated string")
			}
			tokens = append(tokens, line[i:j+1])
			i = j + 1
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' {
				j++
			}
			tokens = append(tokens, line[i:j])
			i = j
		}
	}
	return tokens, nil
}

func parseBytesImmediate(arg string) ([]byte, error) {
	switch {
	case strings.HasPrefix(arg, `"`):
		s, err := strconv.Unquote(arg)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	case strings.HasPrefix(arg, "0x"):
		return hex.DecodeString(arg[2:])
	}
	return nil, fmt.Errorf("bytes immediate %s must be a quoted string or 0x hex", arg)
}

// immediateSize returns the encoded length of an instruction.
func immediateSize(spec OpSpec, args []string) (int, error) {
	want := len(spec.Immediates)
	if len(args) != want {
		return 0, fmt.Errorf("%s expects %d immediate arguments", spec.Name, want)
	}
	if spec.Size != 0 {
		return spec.Size, nil
	}
	switch spec.Immediates[0].kind {
	case immInt:
		val, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", spec.Name, err)
		}
		return 1 + len(binary.AppendUvarint(nil, val)), nil
	case immBytes:
		b, err := parseBytesImmediate(args[0])
		if err != nil {
			return 0, fmt.Errorf("%s: %w", spec.Name, err)
		}
		return 1 + len(binary.AppendUvarint(nil, uint64(len(b)))) + len(b), nil
	}
	return 0, fmt.Errorf("%s has no size", spec.Name)
}

// Assemble translates assembler text, as produced by Disassemble, into a
// program image.
func Assemble(text string) ([]byte, error) {
	version := MaxVersion
	var program []asmInstruction
	labels := make(map[string]int)
	var pendingLabels []string

	for i, line := range strings.Split(text, "\n") {
		lineno := i + 1
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#pragma") {
			f := strings.Fields(trimmed)
			if len(f) != 3 || f[1] != "version" {
				return nil, &AssemblyError{lineno, fmt.Errorf("unknown directive %q", trimmed)}
			}
			if len(program) > 0 || len(pendingLabels) > 0 {
				return nil, &AssemblyError{lineno, errors.New("#pragma version is only allowed before instructions")}
			}
			v, err := strconv.ParseUint(f[2], 0, 64)
			if err != nil || v == 0 || v > MaxVersion {
				return nil, &AssemblyError{lineno, fmt.Errorf("unsupported version %s", f[2])}
			}
			version = v
			continue
		}
		tokens, err := tokensFor(line)
		if err != nil {
			return nil, &AssemblyError{lineno, err}
		}
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) == 1 && strings.HasSuffix(tokens[0], ":") {
			name := strings.TrimSuffix(tokens[0], ":")
			if _, dup := labels[name]; dup || contains(pendingLabels, name) {
				return nil, &AssemblyError{lineno, fmt.Errorf("duplicate label %s", name)}
			}
			pendingLabels = append(pendingLabels, name)
			continue
		}
		spec, ok := lookupOp(version, tokens[0])
		if !ok {
			return nil, &AssemblyError{lineno, fmt.Errorf("unknown opcode: %s", tokens[0])}
		}
		size, err := immediateSize(spec, tokens[1:])
		if err != nil {
			return nil, &AssemblyError{lineno, err}
		}
		program = append(program, asmInstruction{line: lineno, spec: spec, args: tokens[1:], size: size})
		// labels bind to this instruction; pcs are filled in below
		for _, name := range pendingLabels {
			labels[name] = len(program) - 1
		}
		pendingLabels = nil
	}
	for _, name := range pendingLabels {
		labels[name] = len(program)
	}

	header := Header(version)
	pcs := make([]int, len(program)+1)
	pc := len(header)
	for i := range program {
		program[i].pc = pc
		pcs[i] = pc
		pc += program[i].size
	}
	pcs[len(program)] = pc

	out := append([]byte(nil), header...)
	for _, ins := range program {
		out = append(out, ins.spec.Opcode)
		if len(ins.spec.Immediates) == 0 {
			continue
		}
		arg := ins.args[0]
		switch ins.spec.Immediates[0].kind {
		case immByte:
			v, err := strconv.ParseUint(arg, 0, 8)
			if err != nil {
				return nil, &AssemblyError{ins.line, fmt.Errorf("%s: %w", ins.spec.Name, err)}
			}
			out = append(out, byte(v))
		case immResource:
			kind, err := resource.ParseKind(arg)
			if err != nil {
				return nil, &AssemblyError{ins.line, err}
			}
			out = append(out, byte(kind))
		case immInt:
			v, _ := strconv.ParseUint(arg, 0, 64)
			out = binary.AppendUvarint(out, v)
		case immBytes:
			b, _ := parseBytesImmediate(arg)
			out = binary.AppendUvarint(out, uint64(len(b)))
			out = append(out, b...)
		case immLabel:
			idx, ok := labels[arg]
			if !ok {
				return nil, &AssemblyError{ins.line, fmt.Errorf("reference to undefined label %s", arg)}
			}
			offset := pcs[idx] - (ins.pc + 3)
			if offset > math.MaxInt16 || offset < math.MinInt16 {
				return nil, &AssemblyError{ins.line, fmt.Errorf("label %s is too far away", arg)}
			}
			out = binary.BigEndian.AppendUint16(out, uint16(int16(offset)))
		}
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
