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

// Package copydown unpacks the gatherer archive a master hands out during
// the COPYDOWN phase of a configuration run.
//
// The archive is a tar stream, optionally compressed with gzip, zstd or
// lz4; the compression is recognised from the leading magic bytes.
package copydown

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the outer encoding of an archive.
type Compression uint8

const (
	None Compression = iota
	Gzip
	Zstd
	LZ4
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// MaxEntrySize bounds a single archive member.
const MaxEntrySize = 64 * 1024 * 1024

// ErrUnsafePath is returned for members that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive member escapes destination")

// Detect inspects the leading bytes of an archive.
func Detect(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	case bytes.HasPrefix(head, lz4Magic):
		return LZ4
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	default:
		return None
	}
}

func decompressor(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(4)
	switch Detect(head) {
	case Zstd:
		d, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	case LZ4:
		return lz4.NewReader(br), func() {}, nil
	case Gzip:
		z, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return z, func() { z.Close() }, nil
	default:
		return br, func() {}, nil
	}
}

// Unpack extracts the archive read from r into dir, creating dir when
// needed. Regular files, directories and symlinks are supported; other
// member types are skipped. It returns the number of files written.
func Unpack(r io.Reader, dir string) (int, error) {
	src, done, err := decompressor(r)
	if err != nil {
		return 0, fmt.Errorf("copydown: %w", err)
	}
	defer done()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	tr := tar.NewReader(src)
	files := 0
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return files, fmt.Errorf("copydown: %w", err)
		}
		target, err := member(dir, header.Name)
		if err != nil {
			return files, err
		}
		mode := os.FileMode(header.Mode).Perm()

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, mode|0700); err != nil {
				return files, err
			}
		case tar.TypeReg:
			if header.Size > MaxEntrySize || header.Size < 0 {
				return files, fmt.Errorf("copydown: member %s has size %d", header.Name, header.Size)
			}
			if err := writeMember(target, tr, header.Size, mode); err != nil {
				return files, err
			}
			files++
		case tar.TypeSymlink:
			if filepath.IsAbs(header.Linkname) {
				return files, fmt.Errorf("%w: %s -> %s", ErrUnsafePath, header.Name, header.Linkname)
			}
			if _, err := member(dir, filepath.Join(filepath.Dir(header.Name), header.Linkname)); err != nil {
				return files, err
			}
			os.Remove(target)
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return files, err
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return files, err
			}
		}
	}
}

func member(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(dir, clean), nil
}

func writeMember(target string, r io.Reader, size int64, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	tmp := target + ".copydown"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(f, r, size); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, mode); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, target)
}

// UnpackFile is Unpack over the archive at path.
func UnpackFile(path, dir string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Unpack(f, dir)
}
