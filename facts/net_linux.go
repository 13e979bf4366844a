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

//go:build linux

package facts

import (
	"strconv"

	"github.com/jsimonetti/rtnetlink"
)

func netFacts(f Facts) error {
	conn, err := rtnetlink.Dial(nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	links, err := conn.Link.List()
	if err != nil {
		return err
	}
	names := make(map[uint32]string, len(links))
	for _, msg := range links {
		if msg.Attributes == nil || msg.Attributes.Name == "" {
			continue
		}
		name := msg.Attributes.Name
		names[msg.Index] = name
		if len(msg.Attributes.Address) > 0 {
			f["sys.net."+name+".mac"] = msg.Attributes.Address.String()
		}
		f["sys.net."+name+".mtu"] = strconv.FormatUint(uint64(msg.Attributes.MTU), 10)
	}

	addrs, err := conn.Address.List()
	if err != nil {
		return err
	}
	for _, msg := range addrs {
		name, ok := names[msg.Index]
		if !ok || msg.Attributes == nil || msg.Attributes.Address == nil {
			continue
		}
		ip := msg.Attributes.Address
		key := "sys.net." + name + ".addr"
		if ip.To4() == nil {
			key = "sys.net." + name + ".addr6"
		}
		if _, seen := f[key]; seen {
			continue
		}
		f[key] = ip.String()
		f[key+".prefix"] = strconv.Itoa(int(msg.PrefixLength))
	}
	return nil
}
