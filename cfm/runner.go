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

package cfm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/algorand/go-clockwork/acl"
	"github.com/algorand/go-clockwork/copydown"
	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/facts"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/network"
	"github.com/algorand/go-clockwork/protocol"
	"github.com/algorand/go-clockwork/resource"
	"github.com/algorand/go-clockwork/vm"
)

// Mode selects what a run does with the policy it obtains.
type Mode int

const (
	// ModeRun executes the policy and reschedules; the daemon loop.
	ModeRun Mode = iota
	// ModeOnce executes the policy a single time.
	ModeOnce
	// ModeCode disassembles the policy without executing it.
	ModeCode
)

// Outcome is how a run ended.
type Outcome int

const (
	// Skipped runs never started: killswitch or lock held.
	Skipped Outcome = iota
	// Aborted runs lost the dialog with the master before obtaining a policy.
	Aborted
	// NoPolicy runs found no valid policy to execute.
	NoPolicy
	// Offline runs executed the cached policy.
	Offline
	// Completed runs executed a freshly retrieved policy.
	Completed
	// Dumped runs disassembled the policy (ModeCode).
	Dumped
	// Interrupted runs started executing a policy that did not run to the
	// end: a runtime fault, the err opcode, or a cancelled context. The
	// image is not kept as the last executed policy.
	Interrupted
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Aborted:
		return "aborted"
	case NoPolicy:
		return "no-policy"
	case Offline:
		return "offline"
	case Completed:
		return "completed"
	case Dumped:
		return "dumped"
	case Interrupted:
		return "interrupted"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// shutdownLinger bounds the close handshake at the end of a dialog.
const shutdownLinger = 500 * time.Millisecond

// Options configure a Runner.
type Options struct {
	FQDN     string
	Identity *crypto.Certificate
	Ring     *Ring
	Dial     network.DialOptions
	// Timeout bounds every request to the master.
	Timeout time.Duration

	// Gatherers is the glob of fact gatherer scripts.
	Gatherers string
	// Copydown is where the gatherer archive is unpacked.
	Copydown string
	DiffTool string

	Mode Mode
	// Code receives the disassembly in ModeCode.
	Code io.Writer
	// Trace, when set, receives the VM execution trace.
	Trace io.Writer
	// Output receives what the policy prints.
	Output io.Writer

	Store Store
	// Gate is consulted before every run except in ModeCode.
	Gate    *Gate
	ACLFile string
	// Env is the resource environment policies act on.
	Env *resource.Env
	// Schedule is advanced after each ModeRun run.
	Schedule *Schedule
}

// Result describes one run.
type Result struct {
	Outcome  Outcome
	State    State
	Stats    Stats
	Enforced int
	Failures []vm.Failure
	Digest   string
	// Err is the reason a run was skipped, aborted, interrupted or had no
	// policy.
	Err error
}

// Runner performs configuration runs. It keeps the facts gathered by the
// last connected run and the host's mesh ACL between runs.
type Runner struct {
	opts  Options
	log   logging.Logger
	facts facts.Facts
	acl   acl.List
}

// NewRunner returns a runner with the given options and starting ACL.
func NewRunner(opts Options, list acl.List, log logging.Logger) *Runner {
	if log == nil {
		log = logging.Base()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = network.DefaultTimeout
	}
	if opts.Ring == nil {
		opts.Ring = NewRing(nil)
	}
	if opts.Code == nil {
		opts.Code = os.Stdout
	}
	return &Runner{opts: opts, log: log, acl: list, facts: make(facts.Facts)}
}

// Reconfigure replaces the options and ACL, keeping the gathered facts,
// the schedule and the ring position.
func (r *Runner) Reconfigure(opts Options, list acl.List) {
	if opts.Schedule == nil {
		opts.Schedule = r.opts.Schedule
	} else if r.opts.Schedule != nil {
		opts.Schedule.NextRun = r.opts.Schedule.NextRun
	}
	if opts.Ring == nil {
		opts.Ring = NewRing(nil)
	}
	if r.opts.Ring != nil && len(opts.Ring.Masters) == len(r.opts.Ring.Masters) {
		opts.Ring.Current = r.opts.Ring.Current
	}
	if opts.Timeout <= 0 {
		opts.Timeout = network.DefaultTimeout
	}
	if opts.Code == nil {
		opts.Code = os.Stdout
	}
	r.opts = opts
	r.acl = list
}

// Facts returns a copy of the facts gathered by the last connected run.
func (r *Runner) Facts() facts.Facts {
	return r.facts.Clone()
}

// ACL returns the current mesh ACL.
func (r *Runner) ACL() acl.List {
	return append(acl.List(nil), r.acl...)
}

// Schedule is the run schedule, or nil outside ModeRun.
func (r *Runner) Schedule() *Schedule {
	return r.opts.Schedule
}

// Run performs one configuration run. Connectivity and protocol problems
// are logged and reflected in the Result; they never abort the caller.
func (r *Runner) Run(ctx context.Context) (res Result) {
	log := r.log
	if r.opts.Mode != ModeCode && r.opts.Gate != nil {
		log.Debugf("acquiring CFM lock '%s'", r.opts.Gate.LockPath())
		release, err := r.opts.Gate.Enter()
		if err != nil {
			log.Warnf("%v; skipping.", err)
			res.Outcome, res.Err = Skipped, err
			r.reschedule()
			return res
		}
		defer release()
	}

	log.Info("Starting configuration run")
	started := time.Now()
	if s := r.opts.Schedule; s != nil && !s.NextRun.IsZero() {
		log.Infof("run was scheduled to start at %s", s.NextRun.Format(time.RFC1123Z))
	}

	var sess *network.Session
	res.Stats.Time(PhaseConnect, func() error {
		sess, res.State = r.opts.Ring.Connect(ctx, r.opts.Identity, r.opts.Dial, r.opts.Timeout, log)
		return nil
	})

	var image []byte
	var err error
	if sess != nil {
		log.Debug("connected")
		image, err = r.retrieve(ctx, sess, &res.Stats)
		if err != nil {
			log.Error(err)
			res.Outcome, res.Err = Aborted, err
			r.finish(sess, started, &res)
			return res
		}
	} else {
		log.Debug("not connected; running in offline/cache mode")
		log.Infof("reading last known good bytecode image from %s", r.opts.Store.ExecutedPath())
		image, err = r.opts.Store.LoadExecuted()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Infof("unable to open %s: %v", r.opts.Store.ExecutedPath(), err)
				log.Error("No cached policy found; giving up")
			} else {
				log.Warn(err)
			}
			res.Outcome, res.Err = NoPolicy, fmt.Errorf("%w: %v", ErrNoPolicy, err)
			r.finish(nil, started, &res)
			return res
		}
	}

	res.Digest = Digest(image)
	machine := vm.New()
	err = res.Stats.Time(PhaseParse, func() error {
		if !vm.IsCode(image) {
			return invalidImage("policy from master", image)
		}
		if err := machine.Load(image); err != nil {
			return err
		}
		machine.SetPragma("diff.tool", r.opts.DiffTool)
		return nil
	})
	if err != nil {
		log.Warn(err)
		res.Outcome, res.Err = NoPolicy, fmt.Errorf("%w: %v", ErrNoPolicy, err)
		r.finish(sess, started, &res)
		return res
	}
	log.Infof("PARSE took %dms (policy %s)", res.Stats.Phases[PhaseParse].Milliseconds(), res.Digest)

	if r.opts.Mode == ModeCode {
		log.Debug("dumping policy code")
		if err := machine.Disasm(r.opts.Code); err != nil {
			log.Errorf("unable to disassemble policy: %v", err)
			res.Err = err
		}
		res.Outcome = Dumped
	} else {
		r.enforce(ctx, machine, sess, image, &res)
	}
	machine.Done()

	if sess != nil {
		res.Stats.Time(PhaseCleanup, func() error {
			r.bye(sess)
			return nil
		})
		log.Infof("CLEANUP took %dms", res.Stats.Phases[PhaseCleanup].Milliseconds())
	}
	r.finish(sess, started, &res)
	return res
}

// retrieve runs the connected part of the dialog up to and including
// POLICY, returning the image the master sent.
func (r *Runner) retrieve(ctx context.Context, s *network.Session, stats *Stats) (image []byte, err error) {
	log := r.log
	err = stats.Time(PhaseHello, func() error {
		_, err := r.request(s, "hello", protocol.MakePDU(protocol.HelloTag, r.opts.FQDN))
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Infof("HELLO took %dms", stats.Phases[PhaseHello].Milliseconds())

	err = stats.Time(PhasePreinit, func() error {
		_, err := r.request(s, "copydown", protocol.MakePDU(protocol.CopydownTag))
		return err
	})
	if err != nil {
		return nil, err
	}
	if err = stats.Time(PhaseCopydown, func() error { return r.copydown(ctx, s) }); err != nil {
		return nil, err
	}
	log.Infof("COPYDOWN took %dms", stats.Phases[PhaseCopydown].Milliseconds())

	err = stats.Time(PhaseFacts, func() error {
		log.Infof("Gathering facts from '%s'", r.opts.Gatherers)
		f, err := facts.Collect(ctx, r.opts.Gatherers, log)
		if err != nil {
			return fmt.Errorf("unable to gather facts from %s: %w", r.opts.Gatherers, err)
		}
		r.facts = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("FACTS took %dms", stats.Phases[PhaseFacts].Milliseconds())

	err = stats.Time(PhaseGetPolicy, func() error {
		reply, err := r.request(s, "policy", protocol.MakePDU(protocol.PolicyTag, r.opts.FQDN, r.facts.String()))
		if err != nil {
			return err
		}
		image = reply.Frame(1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("GETPOLICY took %dms", stats.Phases[PhaseGetPolicy].Milliseconds())
	return image, nil
}

func (r *Runner) request(s *network.Session, phase string, pdu protocol.PDU) (protocol.PDU, error) {
	reply, err := s.Request(pdu, r.opts.Timeout)
	if err != nil {
		return reply, fmt.Errorf("%s failed: %w", pdu.Type, err)
	}
	r.log.Debugf("Received a '%s' PDU", reply.Type)
	if reply.Type == protocol.ErrorTag {
		return reply, &ProtocolError{Phase: phase, Got: reply.Type, Message: reply.Text(1)}
	}
	return reply, nil
}

func (r *Runner) copydown(ctx context.Context, s *network.Session) error {
	spool, err := os.CreateTemp("", "cogd-copydown-*")
	if err != nil {
		return err
	}
	defer os.Remove(spool.Name())
	defer spool.Close()

	err = stream(ctx, s, r.opts.Timeout, "copydown", func(block []byte) error {
		_, err := spool.Write(block)
		return err
	})
	if err != nil {
		return err
	}
	if r.opts.Copydown == "" {
		return nil
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return err
	}
	n, err := copydown.Unpack(spool, r.opts.Copydown)
	if err != nil {
		return fmt.Errorf("unable to perform copydown to %s: %w", r.opts.Copydown, err)
	}
	r.log.Debugf("copydown unpacked %d files into %s", n, r.opts.Copydown)
	return nil
}

func (r *Runner) enforce(ctx context.Context, machine *vm.VM, sess *network.Session, image []byte, res *Result) {
	log := r.log
	machine.Facts = r.facts
	machine.Env = r.opts.Env
	machine.Log = log
	machine.Output = r.opts.Output
	machine.Trace = r.opts.Trace
	if sess != nil {
		machine.Remote = &Remote{Session: sess, Timeout: r.opts.Timeout}
		log.Infof("saving bytecode image at %s", r.opts.Store.RetrievedPath())
		if err := r.opts.Store.SaveRetrieved(image); err != nil {
			log.Errorf("Failed to write %s: %v", r.opts.Store.RetrievedPath(), err)
		}
	}

	execErr := res.Stats.Time(PhaseEnforce, func() error {
		return machine.Exec(ctx)
	})
	log.Infof("ENFORCE took %dms", res.Stats.Phases[PhaseEnforce].Milliseconds())

	res.Enforced = machine.Topics()
	res.Failures = machine.Failures()
	if execErr != nil {
		log.Errorf("policy execution aborted: %v", execErr)
		res.Outcome = Interrupted
		res.Err = fmt.Errorf("%w: %w", ErrInterrupted, execErr)
		return
	}
	if list := machine.ACL(); len(list) > 0 {
		r.acl = list
	}

	if sess != nil {
		res.Outcome = Completed
		log.Infof("saving bytecode image at %s", r.opts.Store.ExecutedPath())
		if err := r.opts.Store.SaveExecuted(image); err != nil {
			log.Errorf("Failed to write %s: %v", r.opts.Store.ExecutedPath(), err)
		}
	} else {
		res.Outcome = Offline
	}
}

func (r *Runner) bye(s *network.Session) {
	if _, err := r.request(s, "bye", protocol.MakePDU(protocol.ByeTag)); err != nil {
		r.log.Errorf("BYE: %v", err)
	}
}

func (r *Runner) finish(sess *network.Session, started time.Time, res *Result) {
	log := r.log
	if sess != nil {
		sess.Shutdown(shutdownLinger)
		log.Info("closed connection")
	}

	log.Infof("complete. enforced %d resources in %0.2fs", res.Enforced, res.Stats.Total().Seconds())
	log.Info(res.Stats.String())

	if r.opts.ACLFile != "" && r.opts.Mode != ModeCode {
		if err := r.acl.Write(r.opts.ACLFile); err != nil {
			log.Errorf("unable to write ACL to %s: %v", r.opts.ACLFile, err)
		}
	}
	if r.opts.Mode != ModeCode && r.opts.Store.Dir != "" {
		r.record(started, res)
	}
	r.reschedule()
}

func (r *Runner) record(started time.Time, res *Result) {
	rec := RunRecord{
		Started:  started.UTC(),
		Outcome:  res.Outcome.String(),
		Digest:   res.Digest,
		Enforced: res.Enforced,
		PhasesMS: res.Stats.Millis(),
	}
	if res.State.Kind == Connected {
		rec.Master = r.opts.Ring.Masters[res.State.Index].Endpoint
	}
	for _, f := range res.Failures {
		rec.Failed = append(rec.Failed, f.String())
	}
	if err := r.opts.Store.SaveRecord(rec); err != nil {
		r.log.Warnf("unable to save run record: %v", err)
	}
}

func (r *Runner) reschedule() {
	s := r.opts.Schedule
	if r.opts.Mode != ModeRun || s == nil {
		return
	}
	s.Advance(time.Now())
	r.log.Infof("Scheduled next configuration run at %s (%s)", s.NextRun.Format(time.RFC1123Z), s.Describe())
}
