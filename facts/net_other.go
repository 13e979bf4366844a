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

//go:build !linux

package facts

import (
	"net"
	"strconv"
)

func netFacts(f Facts) error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return err
	}
	for _, iface := range ifaces {
		if len(iface.HardwareAddr) > 0 {
			f["sys.net."+iface.Name+".mac"] = iface.HardwareAddr.String()
		}
		f["sys.net."+iface.Name+".mtu"] = strconv.Itoa(iface.MTU)
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			key := "sys.net." + iface.Name + ".addr"
			if ipnet.IP.To4() == nil {
				key += "6"
			}
			if _, seen := f[key]; seen {
				continue
			}
			ones, _ := ipnet.Mask.Size()
			f[key] = ipnet.IP.String()
			f[key+".prefix"] = strconv.Itoa(ones)
		}
	}
	return nil
}
