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

package facts

import (
	"context"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"github.com/algorand/go-clockwork/logging"
)

// Builtin returns the system facts every agent reports regardless of its
// gatherers: sys.fqdn, sys.hostname, sys.kernel.*, sys.cpu.* and, where
// the platform supports it, sys.net.<iface>.*.
func Builtin(ctx context.Context, log logging.Logger) Facts {
	f := make(Facts)
	hostname, err := os.Hostname()
	if err != nil {
		log.Warnf("unable to determine hostname: %v", err)
	}
	f["sys.hostname"] = hostname
	f["sys.fqdn"] = FQDN(ctx, hostname)
	if short, _, ok := strings.Cut(hostname, "."); ok {
		f["sys.hostname"] = short
	}
	f["sys.arch"] = runtime.GOARCH
	f["sys.os"] = runtime.GOOS

	kernelFacts(f)
	cpuFacts(f)
	if err := netFacts(f); err != nil {
		log.Debugf("no interface facts: %v", err)
	}
	return f
}

// FQDN resolves the canonical name of hostname, falling back to hostname
// itself when the resolver has nothing better.
func FQDN(ctx context.Context, hostname string) string {
	if hostname == "" || strings.Contains(hostname, ".") {
		return hostname
	}
	cname, err := net.DefaultResolver.LookupCNAME(ctx, hostname)
	if err != nil || cname == "" {
		return hostname
	}
	return strings.TrimSuffix(cname, ".")
}

func cpuFacts(f Facts) {
	f["sys.cpu.vendor"] = cpuid.CPU.VendorID.String()
	f["sys.cpu.brand"] = cpuid.CPU.BrandName
	f["sys.cpu.cores"] = strconv.Itoa(cpuid.CPU.PhysicalCores)
	f["sys.cpu.threads"] = strconv.Itoa(cpuid.CPU.LogicalCores)
	if cpuid.CPU.Hz > 0 {
		f["sys.cpu.mhz"] = strconv.FormatInt(cpuid.CPU.Hz/1_000_000, 10)
	}
}
