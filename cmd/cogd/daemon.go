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


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/algorand/go-clockwork/acl"
	"github.com/algorand/go-clockwork/cfm"
	"github.com/algorand/go-clockwork/config"
	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/facts"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/mesh"
	"github.com/algorand/go-clockwork/network"
	"github.com/algorand/go-clockwork/protocol"
	"github.com/algorand/go-clockwork/resource"
	"github.com/algorand/go-clockwork/util/codecs"
	"github.com/algorand/go-clockwork/util/metrics"
)

// maxPoll bounds a single wait in the main loop so reloads and shutdown
// are noticed while idle.
const maxPoll = 5 * time.Second

type setupFlags struct {
	Foreground bool
	Trace      bool
}

// identity is everything the configuration points at on disk.
type identity struct {
	Self     *crypto.Certificate
	Masters  []cfm.Master
	ACL      acl.List
	Default  acl.Disposition
	MeshCert *crypto.Certificate
}

// loadConfig reads, bounds and validates the configuration at path.
func loadConfig(path string, log logging.Logger) (config.Local, error) {
	cfg, err := config.LoadLocal(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyBounds(log)
	return cfg, cfg.Validate()
}

func startupErr(code int, format string, args ...interface{}) error {
	return &config.StartupError{Code: code, Err: fmt.Errorf(format, args...)}
}

func loadIdentity(cfg config.Local, log logging.Logger) (id identity, err error) {
	id.Self, err = crypto.ReadCertificate(cfg.SecurityCert)
	if err != nil {
		return id, startupErr(config.ExitConfig, "%s: %w", cfg.SecurityCert, err)
	}
	if !id.Self.HasSecret() {
		return id, startupErr(config.ExitConfig, "%s: no secret key found in certificate", cfg.SecurityCert)
	}
	if id.Self.Ident == "" {
		return id, startupErr(config.ExitConfig, "%s: no identity found in certificate", cfg.SecurityCert)
	}

	for i, m := range cfg.Masters {
		cert, err := crypto.ReadCertificate(m.Cert)
		if err != nil {
			return id, startupErr(config.ExitConfig, "cert.%d %s: %w", i+1, m.Cert, err)
		}
		log.Debugf("master.%d %s uses certificate %s (%s)", i+1, m.Endpoint, m.Cert, cert.PublicHex())
		id.Masters = append(id.Masters, cfm.Master{Endpoint: m.Endpoint, Cert: cert.PublicOnly()})
	}

	id.Default, err = cfg.ACLDisposition()
	if err != nil {
		return id, &config.StartupError{Code: config.ExitConfig, Err: err}
	}
	id.ACL, err = acl.Read(cfg.ACL)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Infof("no ACL found at %s; starting with an empty ACL", cfg.ACL)
	case err != nil:
		return id, startupErr(config.ExitConfig, "%s: %w", cfg.ACL, err)
	}

	if cfg.MeshEnabled() {
		id.MeshCert, err = crypto.ReadCertificate(cfg.Mesh.Cert)
		if err != nil {
			return id, startupErr(config.ExitConfig, "mesh.cert %s: %w", cfg.Mesh.Cert, err)
		}
		id.MeshCert = id.MeshCert.PublicOnly()
	}
	return id, nil
}

// dialOptions builds the resolver and connect timeout for masters and the
// mesh.
func dialOptions(cfg config.Local, log logging.Logger) network.DialOptions {
	opts := network.DialOptions{Timeout: cfg.TimeoutDuration(), Log: log}
	if len(cfg.Nameserver) > 0 {
		opts.Resolver = network.MakeDNSResolver(cfg.Nameserver, cfg.TimeoutDuration())
	}
	return opts
}

// buildOptions maps the configuration onto runner options.
func buildOptions(cfg config.Local, id identity, mode cfm.Mode, flags setupFlags, fqdn string, log logging.Logger) cfm.Options {
	env := resource.NewEnv("/", log)
	env.DiffTool = cfg.DiffTool
	gate := cfm.NewGate(cfg.LockDir)
	gate.Log = log

	opts := cfm.Options{
		FQDN:      fqdn,
		Identity:  id.Self,
		Ring:      cfm.NewRing(id.Masters),
		Dial:      dialOptions(cfg, log),
		Timeout:   cfg.TimeoutDuration(),
		Gatherers: cfg.Gatherers,
		Copydown:  cfg.Copydown,
		DiffTool:  cfg.DiffTool,
		Mode:      mode,
		Code:      os.Stdout,
		Output:    os.Stdout,
		Store:     cfm.Store{Dir: cfg.StateDir},
		Gate:      gate,
		ACLFile:   cfg.ACL,
		Env:       env,
	}
	if flags.Trace {
		opts.Trace = os.Stderr
	}
	if mode == cfm.ModeRun {
		opts.Schedule = &cfm.Schedule{Interval: cfg.IntervalDuration()}
	}
	return opts
}

// daemon is one cogd process: the runner, the optional mesh subscription
// and everything reloaded on SIGHUP.
type daemon struct {
	path  string
	mode  cfm.Mode
	flags setupFlags
	log   logging.Logger

	cfg     config.Local
	id      identity
	fqdn    string
	runner  *cfm.Runner
	agent   *mesh.Agent
	sub     *mesh.Subscription
	metrics *metrics.Registry

	logCloser io.Closer
	pidfile   string

	reloads  atomic.Int64
	reloaded int64
}

func newDaemon(ctx context.Context, path string, mode cfm.Mode, flags setupFlags, log logging.Logger) (*daemon, error) {
	d := &daemon{path: path, mode: mode, flags: flags, log: log}
	cfg, err := loadConfig(path, log)
	if err != nil {
		return nil, err
	}
	d.cfg = cfg
	if err := d.configureLogging(); err != nil {
		return nil, &config.StartupError{Code: config.ExitConfig, Err: err}
	}
	d.id, err = loadIdentity(cfg, log)
	if err != nil {
		d.Close()
		return nil, err
	}
	applyUmask(cfg, log)
	if mode == cfm.ModeRun && cfg.PidFile != "" {
		pid := []byte(strconv.Itoa(os.Getpid()) + "\n")
		if err := codecs.WriteFileAtomic(cfg.PidFile, pid, 0644); err != nil {
			d.Close()
			return nil, startupErr(config.ExitEnvironment, "unable to write pidfile %s: %w", cfg.PidFile, err)
		}
		d.pidfile = cfg.PidFile
	}

	hostname, _ := os.Hostname()
	d.fqdn = facts.FQDN(ctx, hostname)
	log.Infof("identifying as %s (%s)", d.fqdn, d.id.Self.Ident)

	opts := buildOptions(cfg, d.id, mode, flags, d.fqdn, log)
	d.runner = cfm.NewRunner(opts, d.id.ACL, log)
	d.agent = &mesh.Agent{
		Env:     opts.Env,
		Version: config.GetCurrentVersion().String(),
		Log:     log,
	}
	if cfg.MetricsTextfile != "" {
		d.metrics = metrics.NewRegistry()
	}
	return d, nil
}

func (d *daemon) configureLogging() error {
	closer, err := logging.Configure(d.log, d.cfg.LogOptions(d.flags.Foreground))
	if err != nil {
		return err
	}
	if d.logCloser != nil {
		d.logCloser.Close()
	}
	d.logCloser = closer
	return nil
}

// Close releases the mesh sessions, the pidfile and the log file.
func (d *daemon) Close() {
	if d.sub != nil {
		d.sub.Close()
		d.sub = nil
	}
	if d.pidfile != "" {
		os.Remove(d.pidfile)
		d.pidfile = ""
	}
	if d.logCloser != nil {
		d.logCloser.Close()
		d.logCloser = nil
	}
}

// Start runs according to the mode and returns the process exit code.
func (d *daemon) Start(ctx context.Context) int {
	if d.mode != cfm.ModeRun {
		d.run(ctx)
		return 0
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				d.reloads.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}()

	d.subscribe(ctx)
	d.loop(ctx)
	d.log.Info("shutting down")
	return 0
}

func (d *daemon) subscribe(ctx context.Context) {
	if !d.cfg.MeshEnabled() {
		d.log.Info("Skipping mesh registration")
		return
	}
	sub, err := mesh.Subscribe(ctx, d.cfg.Mesh.Broadcast, d.cfg.Mesh.Control, d.id.MeshCert, dialOptions(d.cfg, d.log))
	if err != nil {
		d.log.Warnf("unable to join the mesh: %v", err)
		return
	}
	d.sub = sub
}

func (d *daemon) loop(ctx context.Context) {
	for ctx.Err() == nil {
		if n := d.reloads.Load(); n != d.reloaded {
			d.reloaded = n
			d.reload(ctx)
		}

		sched := d.runner.Schedule()
		wait := min(sched.TimeLeft(time.Now()), maxPoll)
		if wait > 0 {
			if d.sub != nil {
				pdu, err := d.sub.Broadcast.Recv(wait)
				switch {
				case err == nil:
					d.handle(ctx, pdu)
				case errors.Is(err, network.ErrTimeout):
				default:
					d.log.Warnf("lost the mesh broadcast subscription: %v", err)
					d.sub.Close()
					d.sub = nil
				}
			} else {
				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
				case <-t.C:
				}
				t.Stop()
			}
			continue
		}

		d.run(ctx)
		if d.sub == nil && d.cfg.MeshEnabled() {
			d.subscribe(ctx)
		}
	}
}

// handle answers one mesh broadcast.
func (d *daemon) handle(ctx context.Context, pdu protocol.PDU) {
	mc := mesh.Context{
		Facts:     d.runner.Facts(),
		ACL:       d.runner.ACL(),
		Default:   d.id.Default,
		FQDN:      d.fqdn,
		Gatherers: d.cfg.Gatherers,
	}
	if err := d.agent.Handle(ctx, mc, pdu, meshReplies{Sender: d.sub.Control, metrics: d.metrics}); err != nil {
		d.log.Warnf("unable to reply to mesh command: %v", err)
	}
	if d.metrics != nil {
		d.writeMetrics()
	}
}

func (d *daemon) run(ctx context.Context) cfm.Result {
	res := d.runner.Run(ctx)
	if d.metrics == nil {
		return res
	}
	master := -1
	if res.State.Kind == cfm.Connected {
		master = res.State.Index
	}
	d.metrics.ObserveRun(metrics.Run{
		Outcome:  res.Outcome.String(),
		Enforced: res.Enforced,
		Failed:   len(res.Failures),
		Master:   master,
		PhasesMS: res.Stats.Millis(),
		Finished: time.Now(),
	})
	d.writeMetrics()
	return res
}

func (d *daemon) writeMetrics() {
	if err := d.metrics.WriteTextfile(d.cfg.MetricsTextfile); err != nil {
		d.log.Warnf("unable to write metrics to %s: %v", d.cfg.MetricsTextfile, err)
	}
}

// reload re-reads the configuration, certificates and ACL. A broken
// configuration is logged and the running one kept.
func (d *daemon) reload(ctx context.Context) {
	d.log.Info("received SIGHUP; reloading configuration")
	cfg, err := loadConfig(d.path, d.log)
	if err != nil {
		d.log.Errorf("unable to reload %s: %v; keeping the running configuration", d.path, err)
		return
	}
	id, err := loadIdentity(cfg, d.log)
	if err != nil {
		d.log.Errorf("unable to reload %s: %v; keeping the running configuration", d.path, err)
		return
	}
	applyUmask(cfg, d.log)

	meshChanged := cfg.Mesh != d.cfg.Mesh
	d.cfg, d.id = cfg, id
	if err := d.configureLogging(); err != nil {
		d.log.Warnf("unable to reconfigure logging: %v", err)
	}
	opts := buildOptions(cfg, id, d.mode, d.flags, d.fqdn, d.log)
	d.runner.Reconfigure(opts, id.ACL)
	d.agent.Env = opts.Env
	if cfg.MetricsTextfile != "" && d.metrics == nil {
		d.metrics = metrics.NewRegistry()
	} else if cfg.MetricsTextfile == "" {
		d.metrics = nil
	}

	if meshChanged {
		if d.sub != nil {
			d.sub.Close()
			d.sub = nil
		}
		d.subscribe(ctx)
	}
}

// meshReplies counts replies by type on their way to the hub.
type meshReplies struct {
	mesh.Sender
	metrics *metrics.Registry
}

func (m meshReplies) Send(pdu protocol.PDU) error {
	if err := m.Sender.Send(pdu); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.ObserveMesh(string(pdu.Type))
	}
	return nil
}
