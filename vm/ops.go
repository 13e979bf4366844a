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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/gobwas/glob"

	"github.com/algorand/go-clockwork/acl"
	"github.com/algorand/go-clockwork/resource"
)

func opErr(vm *VM) error {
	return errors.New("err opcode executed")
}

func opHalt(vm *VM) error {
	vm.halted = true
	return nil
}

func opExit(vm *VM) error {
	code := vm.pop().Uint
	if code > math.MaxInt32 {
		return fmt.Errorf("exit code %d out of range", code)
	}
	vm.exitCode, vm.exited, vm.halted = int(code), true, true
	return nil
}

func opPushInt(vm *VM) error {
	val, n := binary.Uvarint(vm.program[vm.pc+1:])
	vm.pushUint(val)
	vm.nextpc = vm.pc + 1 + n
	return nil
}

func opPushBytes(vm *VM) error {
	length, n := binary.Uvarint(vm.program[vm.pc+1:])
	pos := vm.pc + 1 + n
	end := pos + int(length)
	vm.pushBytes(append([]byte{}, vm.program[pos:end]...))
	vm.nextpc = end
	return nil
}

func opPop(vm *VM) error {
	vm.pop()
	return nil
}

func opDup(vm *VM) error {
	vm.push(vm.stack[len(vm.stack)-1])
	return nil
}

func opSwap(vm *VM) error {
	last := len(vm.stack) - 1
	vm.stack[last], vm.stack[last-1] = vm.stack[last-1], vm.stack[last]
	return nil
}

func opEq(vm *VM) error {
	b := vm.pop()
	a := vm.pop()
	if a.argType() != b.argType() {
		return fmt.Errorf("cannot compare %s to %s", a.argType(), b.argType())
	}
	if a.Bytes != nil {
		vm.pushUint(boolToUint(bytes.Equal(a.Bytes, b.Bytes)))
	} else {
		vm.pushUint(boolToUint(a.Uint == b.Uint))
	}
	return nil
}

func opNot(vm *VM) error {
	vm.pushUint(boolToUint(vm.pop().Uint == 0))
	return nil
}

func opConcat(vm *VM) error {
	b := vm.pop()
	a := vm.pop()
	out := make([]byte, 0, len(a.Bytes)+len(b.Bytes))
	vm.pushBytes(append(append(out, a.Bytes...), b.Bytes...))
	return nil
}

func opPlus(vm *VM) error {
	b := vm.pop().Uint
	a := vm.pop().Uint
	sum := a + b
	if sum < a {
		return errors.New("+ overflowed")
	}
	vm.pushUint(sum)
	return nil
}

func opLt(vm *VM) error {
	b := vm.pop().Uint
	a := vm.pop().Uint
	vm.pushUint(boolToUint(a < b))
	return nil
}

func opMatch(vm *VM) error {
	pattern := vm.pop()
	value := vm.pop()
	g, err := glob.Compile(string(pattern.Bytes))
	if err != nil {
		return fmt.Errorf("syntax error in pattern %q: %w", pattern.Bytes, err)
	}
	vm.pushUint(boolToUint(g.Match(string(value.Bytes))))
	return nil
}

func opItoa(vm *VM) error {
	vm.pushBytes([]byte(strconv.FormatUint(vm.pop().Uint, 10)))
	return nil
}

func opB(vm *VM) error {
	vm.nextpc = branchTarget(vm.program, vm.pc)
	return nil
}

func opBz(vm *VM) error {
	if vm.pop().Uint == 0 {
		vm.nextpc = branchTarget(vm.program, vm.pc)
	}
	return nil
}

func opBnz(vm *VM) error {
	if vm.pop().Uint != 0 {
		vm.nextpc = branchTarget(vm.program, vm.pc)
	}
	return nil
}

func opLoad(vm *VM) error {
	vm.push(vm.globals[vm.program[vm.pc+1]])
	return nil
}

func opStore(vm *VM) error {
	vm.globals[vm.program[vm.pc+1]] = vm.pop()
	return nil
}

func opFact(vm *VM) error {
	name := vm.pop()
	vm.pushBytes([]byte(vm.Facts[string(name.Bytes)]))
	return nil
}

func opACL(vm *VM) error {
	e, err := acl.ParseEntry(string(vm.pop().Bytes))
	if err != nil {
		return err
	}
	vm.acl = append(vm.acl, e)
	return nil
}

func opPragma(vm *VM) error {
	value := vm.pop()
	name := vm.pop()
	vm.SetPragma(string(name.Bytes), string(value.Bytes))
	return nil
}

func opPrint(vm *VM) error {
	msg := vm.pop()
	if vm.Output == nil {
		return nil
	}
	_, err := vm.Output.Write(msg.Bytes)
	return err
}

func opLog(vm *VM) error {
	vm.log().Info(string(vm.pop().Bytes))
	return nil
}

func opRemoteFetch(vm *VM) error {
	key := vm.pop()
	if vm.env.Remote == nil {
		return errNoRemote
	}
	content, err := vm.env.Remote.Fetch(vm.ctx, string(key.Bytes))
	if err != nil {
		return err
	}
	vm.pushBytes(content)
	return nil
}

func opTopic(vm *VM) error {
	key := vm.pop()
	res, err := resource.New(resource.Kind(vm.program[vm.pc+1]), string(key.Bytes))
	if err != nil {
		return err
	}
	vm.topic = &topicState{res: res}
	vm.topics[res.Key()] = true
	return nil
}

func opAttr(vm *VM) error {
	value := vm.pop()
	name := vm.pop()
	if vm.topic == nil {
		return errNoTopic
	}
	if vm.topic.failed != nil {
		return nil
	}
	if err := vm.topic.res.Set(string(name.Bytes), string(value.Bytes)); err != nil {
		vm.topic.failed = err
		vm.log().Warnf("%s: %v", vm.topic.res.Key(), err)
	}
	return nil
}

func (vm *VM) recordFailure(res resource.Resource, err error) {
	vm.failures = append(vm.failures, Failure{Kind: res.Kind(), Key: res.Key(), Err: err})
	vm.log().Errorf("%s: %v", res.Key(), err)
}

// opEnforce converges the open topic and pushes 1 when anything changed.
func opEnforce(vm *VM) error {
	t := vm.topic
	if t == nil {
		return errNoTopic
	}
	vm.topic = nil

	if t.failed != nil {
		vm.recordFailure(t.res, t.failed)
		vm.pushUint(0)
		return nil
	}
	err := t.res.Stat(vm.ctx, vm.env)
	var rep resource.Report
	if err == nil {
		rep, err = t.res.Remediate(vm.ctx, vm.env)
	}
	if err != nil {
		vm.recordFailure(t.res, err)
		vm.pushUint(0)
		return nil
	}
	vm.reports = append(vm.reports, rep)
	if !rep.Compliant() {
		vm.log().Info(rep.String())
	}
	vm.pushUint(boolToUint(!rep.Compliant()))
	return nil
}
