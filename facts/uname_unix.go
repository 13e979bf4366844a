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

//go:build !windows

package facts

import "golang.org/x/sys/unix"

func kernelFacts(f Facts) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return
	}
	f["sys.kernel.name"] = unix.ByteSliceToString(u.Sysname[:])
	f["sys.kernel.release"] = unix.ByteSliceToString(u.Release[:])
	f["sys.kernel.version"] = unix.ByteSliceToString(u.Version[:])
	f["sys.kernel.machine"] = unix.ByteSliceToString(u.Machine[:])
}
