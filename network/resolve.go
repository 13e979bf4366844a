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

package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Resolver turns a host name into one or more addresses, tried in order.
// *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// SystemResolver uses the OS-defined resolver.
func SystemResolver() Resolver {
	return net.DefaultResolver
}

// DNSResolver queries a fixed list of nameservers for A and AAAA records.
// Each server is tried over UDP, then TCP when the answer is truncated.
type DNSResolver struct {
	Servers []string
	Timeout time.Duration
}

// MakeDNSResolver returns a resolver for the given "host" or "host:port" nameservers.
func MakeDNSResolver(servers []string, timeout time.Duration) *DNSResolver {
	out := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		out = append(out, s)
	}
	return &DNSResolver{Servers: out, Timeout: timeout}
}

func (r *DNSResolver) exchange(ctx context.Context, server string, msg *dns.Msg) (resp *dns.Msg, err error) {
	for _, netType := range []string{"udp", "tcp"} {
		if resp, _, err = (&dns.Client{Net: netType, ReadTimeout: r.Timeout}).ExchangeContext(ctx, msg, server); err != nil {
			return nil, err
		}
		if !resp.Truncated {
			return
		}
	}
	return nil, fmt.Errorf("DNS response for %s is still truncated even after retrying TCP", msg.Question[0].Name)
}

func (r *DNSResolver) query(ctx context.Context, name string, qtype uint16) ([]string, error) {
	msg := new(dns.Msg)
	msg.RecursionDesired = true
	msg.SetQuestion(dns.Fqdn(name), qtype)

	var lastErr error
	for _, server := range r.Servers {
		resp, err := r.exchange(ctx, server, msg)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("DNS error: %s", dns.RcodeToString[resp.Rcode])
			continue
		}
		var addrs []string
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				addrs = append(addrs, rec.A.String())
			case *dns.AAAA:
				addrs = append(addrs, rec.AAAA.String())
			}
		}
		return addrs, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no nameservers configured")
	}
	return nil, lastErr
}

// LookupHost returns IPv4 addresses followed by IPv6 addresses for host.
func (r *DNSResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{host}, nil
	}
	v4, err4 := r.query(ctx, host, dns.TypeA)
	v6, err6 := r.query(ctx, host, dns.TypeAAAA)
	addrs := append(v4, v6...)
	if len(addrs) == 0 {
		if err4 != nil {
			return nil, err4
		}
		if err6 != nil {
			return nil, err6
		}
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}
