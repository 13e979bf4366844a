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

package resource

import (
	"errors"
	"io/fs"
	"os"
)

func lstat(path string) (fsInfo, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fsInfo{uid: -1, gid: -1}, nil
		}
		return fsInfo{}, err
	}
	info := fsInfo{exists: true, uid: -1, gid: -1, mode: uint32(fi.Mode().Perm())}
	switch {
	case fi.Mode().IsRegular():
		info.ftype = typeRegular
	case fi.IsDir():
		info.ftype = typeDir
	case fi.Mode()&fs.ModeSymlink != 0:
		info.ftype = typeSymlink
	default:
		info.ftype = typeOther
	}
	return info, nil
}

func chmod(path string, mode uint32) error {
	return os.Chmod(path, os.FileMode(mode&0777))
}
