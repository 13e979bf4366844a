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
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/algorand/go-clockwork/acl"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/resource"
)

// MaxStackDepth should not change without considering the memory a long
// running program may hold.
const MaxStackDepth = 1000

// NumGlobals is the number of global slots.
const NumGlobals = 256

// Remote supplies content from the policy master.
type Remote = resource.Remote

var (
	// ErrNotLoaded is returned by Exec and Disasm before a successful Load.
	ErrNotLoaded = errors.New("no program loaded")
	// ErrStackUnderflow is wrapped by EvalError when an opcode needs more
	// values than the stack holds.
	ErrStackUnderflow = errors.New("stack underflow")

	errNoTopic  = errors.New("no topic open")
	errNoRemote = errors.New("no remote configured")
)

// EvalError is a runtime fault that aborted execution.
type EvalError struct {
	PC  int
	Op  string
	Err error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("pc=%3d %s: %v", e.PC, e.Op, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// PanicError wraps a recover() catching a panic()
type PanicError struct {
	PanicValue interface{}
	StackTrace string
}

func (pe PanicError) Error() string {
	return fmt.Sprintf("panic in policy Exec: %v\n%s", pe.PanicValue, pe.StackTrace)
}

// Failure is a topic that could not be enforced.
type Failure struct {
	Kind resource.Kind
	Key  string
	Err  error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s:%s: %v", f.Kind, f.Key, f.Err)
}

// stackValue is a uint64 when Bytes is nil, otherwise a byte string.
type stackValue struct {
	Uint  uint64
	Bytes []byte
}

func (sv stackValue) argType() StackType {
	if sv.Bytes != nil {
		return StackBytes
	}
	return StackUint64
}

func (sv stackValue) String() string {
	if sv.Bytes != nil {
		return fmt.Sprintf("%q", sv.Bytes)
	}
	return fmt.Sprintf("%d", sv.Uint)
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

type topicState struct {
	res    resource.Resource
	failed error
}

// VM holds one loaded program and the state of its execution. A VM is not
// safe for concurrent use.
type VM struct {
	// Facts are read by the fact opcode.
	Facts map[string]string
	// Env is handed to resources; nil means the live system.
	Env *resource.Env
	// Remote backs remote.fetch and file content when Env has none.
	Remote Remote
	Log    logging.Logger
	// Output receives print; nil discards.
	Output io.Writer
	// Trace, when set, receives one line per executed instruction.
	Trace io.Writer

	program []byte
	version uint64
	start   int

	pc       int
	nextpc   int
	stack    []stackValue
	globals  [NumGlobals]stackValue
	pragmas  map[string]string
	halted   bool
	exited   bool
	exitCode int

	ctx      context.Context
	env      *resource.Env
	topic    *topicState
	topics   map[string]bool
	reports  []resource.Report
	failures []Failure
	acl      acl.List
}

// New returns an empty VM; Load a program before executing it.
func New() *VM {
	return &VM{pragmas: make(map[string]string)}
}

// Load validates an image and makes it the current program.
func (vm *VM) Load(image []byte) error {
	version, start, err := versionCheck(image)
	if err != nil {
		return err
	}
	if err := check(image, version, start); err != nil {
		return err
	}
	vm.program = append([]byte(nil), image...)
	vm.version = version
	vm.start = start
	vm.Reset()
	return nil
}

// Reset clears execution state: stack, globals, topics and failures.
// The program and pragmas are kept.
func (vm *VM) Reset() {
	vm.pc, vm.nextpc = vm.start, 0
	vm.stack = vm.stack[:0]
	vm.globals = [NumGlobals]stackValue{}
	vm.halted, vm.exited, vm.exitCode = false, false, 0
	vm.topic = nil
	vm.topics = make(map[string]bool)
	vm.reports = nil
	vm.failures = nil
	vm.acl = nil
	if vm.pragmas == nil {
		vm.pragmas = make(map[string]string)
	}
}

// Done releases the program and all state.
func (vm *VM) Done() {
	vm.program, vm.version, vm.start = nil, 0, 0
	vm.pragmas = make(map[string]string)
	vm.Reset()
	vm.stack = nil
}

// Loaded reports whether a program is loaded.
func (vm *VM) Loaded() bool {
	return vm.program != nil
}

// Version is the version of the loaded program.
func (vm *VM) Version() uint64 {
	return vm.version
}

// SetPragma sets a pragma before or during execution.
func (vm *VM) SetPragma(name, value string) {
	if vm.pragmas == nil {
		vm.pragmas = make(map[string]string)
	}
	vm.pragmas[name] = value
	if name == "diff.tool" && vm.env != nil {
		vm.env.DiffTool = value
	}
}

// Pragma returns a pragma value.
func (vm *VM) Pragma(name string) (string, bool) {
	v, ok := vm.pragmas[name]
	return v, ok
}

// Topics is the number of distinct topics opened by the last Exec,
// whether or not they were enforced successfully.
func (vm *VM) Topics() int {
	return len(vm.topics)
}

// Failures lists the topics that failed during the last Exec.
func (vm *VM) Failures() []Failure {
	return append([]Failure(nil), vm.failures...)
}

// Reports lists the remediation reports of the last Exec, in order.
func (vm *VM) Reports() []resource.Report {
	return append([]resource.Report(nil), vm.reports...)
}

// ACL is the access control list declared by the last Exec, in order.
func (vm *VM) ACL() acl.List {
	return append(acl.List(nil), vm.acl...)
}

// ExitCode is the code passed to exit, or 1 when any topic failed.
func (vm *VM) ExitCode() int {
	if vm.exited {
		return vm.exitCode
	}
	if len(vm.failures) > 0 {
		return 1
	}
	return 0
}

func (vm *VM) log() logging.Logger {
	if vm.Log == nil {
		return logging.Base()
	}
	return vm.Log
}

func (vm *VM) prepareEnv() {
	var env resource.Env
	if vm.Env != nil {
		env = *vm.Env
	} else {
		env = *resource.NewEnv("/", vm.log())
	}
	if env.Remote == nil {
		env.Remote = vm.Remote
	}
	if env.Log == nil {
		env.Log = vm.log()
	}
	if tool, ok := vm.pragmas["diff.tool"]; ok {
		env.DiffTool = tool
	}
	vm.env = &env
}

// Exec runs the loaded program from the beginning. Runtime faults return an
// *EvalError; failed topics do not stop execution and are reported by
// Failures.
func (vm *VM) Exec(ctx context.Context) (err error) {
	if vm.program == nil {
		return ErrNotLoaded
	}
	defer func() {
		if x := recover(); x != nil {
			buf := make([]byte, 16*1024)
			stlen := runtime.Stack(buf, false)
			err = PanicError{x, string(buf[:stlen])}
			vm.log().Errorf("recovered panic in Exec: %v", err)
		}
		vm.ctx = nil
	}()

	vm.Reset()
	vm.ctx = ctx
	vm.prepareEnv()

	for !vm.halted && vm.pc < len(vm.program) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := vm.step(); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) step() error {
	opcode := vm.program[vm.pc]
	spec := &opsByOpcode[vm.version][opcode]
	if spec.op == nil {
		return &EvalError{PC: vm.pc, Op: fmt.Sprintf("0x%02x", opcode), Err: errors.New("illegal opcode")}
	}

	// check args for stack underflow and types
	if len(vm.stack) < len(spec.Args) {
		return &EvalError{PC: vm.pc, Op: spec.Name, Err: ErrStackUnderflow}
	}
	first := len(vm.stack) - len(spec.Args)
	for i, argType := range spec.Args {
		if !opCompat(argType, vm.stack[first+i].argType()) {
			return &EvalError{PC: vm.pc, Op: spec.Name,
				Err: fmt.Errorf("arg %d wanted %s but got %s", i, argType, vm.stack[first+i].argType())}
		}
	}

	preheight := len(vm.stack)
	err := spec.op(vm)
	if vm.Trace != nil {
		vm.trace(spec)
	}
	if err != nil {
		return &EvalError{PC: vm.pc, Op: spec.Name, Err: err}
	}

	if !spec.AlwaysExits() {
		postheight := len(vm.stack)
		if postheight-preheight != len(spec.Returns)-len(spec.Args) {
			return &EvalError{PC: vm.pc, Op: spec.Name,
				Err: fmt.Errorf("changed stack height improperly %d != %d", postheight-preheight, len(spec.Returns)-len(spec.Args))}
		}
	}
	if len(vm.stack) > MaxStackDepth {
		return &EvalError{PC: vm.pc, Op: spec.Name, Err: errors.New("stack overflow")}
	}

	if vm.nextpc != 0 {
		vm.pc = vm.nextpc
		vm.nextpc = 0
	} else {
		vm.pc += spec.Size
	}
	return nil
}

func (vm *VM) trace(spec *OpSpec) {
	line, _, err := disassembleOne(vm.program, vm.pc, vm.version, nil)
	if err != nil {
		line = spec.Name
	}
	var stackString string
	if len(vm.stack) == 0 {
		stackString = "<empty stack>"
	} else {
		parts := make([]string, 0, len(spec.Returns))
		for i := 1; i <= len(spec.Returns) && i <= len(vm.stack); i++ {
			parts = append(parts, "("+vm.stack[len(vm.stack)-i].String()+")")
		}
		stackString = strings.Join(parts, " ")
	}
	fmt.Fprintf(vm.Trace, "%3d %s => %s\n", vm.pc, line, stackString)
}

func (vm *VM) push(sv stackValue) {
	vm.stack = append(vm.stack, sv)
}

func (vm *VM) pushUint(v uint64) {
	vm.stack = append(vm.stack, stackValue{Uint: v})
}

func (vm *VM) pushBytes(b []byte) {
	if b == nil {
		b = []byte{}
	}
	vm.stack = append(vm.stack, stackValue{Bytes: b})
}

func (vm *VM) pop() stackValue {
	last := len(vm.stack) - 1
	sv := vm.stack[last]
	vm.stack = vm.stack[:last]
	return sv
}

type checkState struct {
	program []byte
	version uint64
	start   int
	pc      int
	nextpc  int

	instructionStarts map[int]bool
	branchTargets     map[int]bool
}

// check statically validates every instruction of a program so that Exec
// never reads past an immediate or branches into the middle of one.
func check(program []byte, version uint64, start int) error {
	cs := &checkState{
		program:           program,
		version:           version,
		start:             start,
		pc:                start,
		instructionStarts: make(map[int]bool),
		branchTargets:     make(map[int]bool),
	}
	for cs.pc < len(program) {
		prevpc := cs.pc
		if err := cs.checkStep(); err != nil {
			return &LoadError{Kind: Malformed, PC: prevpc, Err: err}
		}
	}
	for target := range cs.branchTargets {
		if target < len(program) && !cs.instructionStarts[target] {
			return &LoadError{Kind: Malformed, PC: target, Err: fmt.Errorf("branch target %d is not an aligned instruction", target)}
		}
	}
	return nil
}

func (cs *checkState) checkStep() error {
	cs.instructionStarts[cs.pc] = true
	opcode := cs.program[cs.pc]
	spec := &opsByOpcode[cs.version][opcode]
	if spec.op == nil {
		return fmt.Errorf("illegal opcode 0x%02x", opcode)
	}
	if spec.Size != 0 && cs.pc+spec.Size > len(cs.program) {
		return fmt.Errorf("%s program ends short of immediate values", spec.Name)
	}
	if spec.check != nil {
		if err := spec.check(cs); err != nil {
			return fmt.Errorf("%s: %w", spec.Name, err)
		}
	}
	if cs.nextpc != 0 {
		cs.pc = cs.nextpc
		cs.nextpc = 0
	} else {
		cs.pc += spec.Size
	}
	return nil
}

func checkPushInt(cs *checkState) error {
	_, n := binary.Uvarint(cs.program[cs.pc+1:])
	if n <= 0 {
		return errors.New("bad uvarint immediate")
	}
	cs.nextpc = cs.pc + 1 + n
	return nil
}

func checkPushBytes(cs *checkState) error {
	length, n := binary.Uvarint(cs.program[cs.pc+1:])
	if n <= 0 {
		return errors.New("bad length immediate")
	}
	pos := cs.pc + 1 + n
	if length > uint64(len(cs.program)-pos) {
		return errors.New("program ends short of immediate values")
	}
	cs.nextpc = pos + int(length)
	return nil
}

func branchTarget(program []byte, pc int) int {
	offset := int16(binary.BigEndian.Uint16(program[pc+1:]))
	return pc + 3 + int(offset)
}

// checks any branch that is {op} {int16 be offset}
func checkBranch(cs *checkState) error {
	target := branchTarget(cs.program, cs.pc)
	if target < cs.start || target > len(cs.program) {
		return fmt.Errorf("branch target %d outside program", target)
	}
	cs.branchTargets[target] = true
	return nil
}

func checkTopic(cs *checkState) error {
	if k := resource.Kind(cs.program[cs.pc+1]); !k.Valid() {
		return fmt.Errorf("unknown resource kind %d", byte(k))
	}
	return nil
}
