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

package resource

import (
	"errors"

	"golang.org/x/sys/unix"
)

func lstat(path string) (fsInfo, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return fsInfo{uid: -1, gid: -1}, nil
		}
		return fsInfo{}, err
	}
	info := fsInfo{
		exists: true,
		uid:    int(st.Uid),
		gid:    int(st.Gid),
		mode:   uint32(st.Mode) & 07777,
	}
	switch uint32(st.Mode) & unix.S_IFMT {
	case unix.S_IFREG:
		info.ftype = typeRegular
	case unix.S_IFDIR:
		info.ftype = typeDir
	case unix.S_IFLNK:
		info.ftype = typeSymlink
	default:
		info.ftype = typeOther
	}
	return info, nil
}

// chmod applies raw permission bits, including setuid, setgid and sticky.
func chmod(path string, mode uint32) error {
	return unix.Chmod(path, mode)
}
