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

package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic is the two byte signature at the start of every program image.
const Magic = "pn"

// MaxVersion is the newest program version this VM evaluates.
const MaxVersion uint64 = 1

// LoadErrorKind classifies why an image was rejected.
type LoadErrorKind int

const (
	// Signature means the image does not start with a valid magic and
	// version.
	Signature LoadErrorKind = iota + 1
	// Malformed means the instruction stream failed the static check.
	Malformed
)

func (k LoadErrorKind) String() string {
	switch k {
	case Signature:
		return "bad signature"
	case Malformed:
		return "malformed program"
	}
	return fmt.Sprintf("LoadErrorKind(%d)", int(k))
}

// LoadError is returned by Load; execution never begins after one.
type LoadError struct {
	Kind LoadErrorKind
	PC   int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Kind == Malformed {
		return fmt.Sprintf("%s at %d: %v", e.Kind, e.PC, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

var errShortImage = errors.New("image too short")

// versionCheck validates the signature and returns the program version and
// the offset of the first instruction.
func versionCheck(image []byte) (uint64, int, error) {
	if len(image) < len(Magic)+1 {
		return 0, 0, &LoadError{Kind: Signature, Err: errShortImage}
	}
	if string(image[:len(Magic)]) != Magic {
		return 0, 0, &LoadError{Kind: Signature, Err: fmt.Errorf("bad magic %q", image[:len(Magic)])}
	}
	version, vlen := binary.Uvarint(image[len(Magic):])
	if vlen <= 0 {
		return 0, 0, &LoadError{Kind: Signature, Err: errors.New("invalid version")}
	}
	if version == 0 || version > MaxVersion {
		return 0, 0, &LoadError{Kind: Signature, Err: fmt.Errorf("program version %d not supported (max %d)", version, MaxVersion)}
	}
	return version, len(Magic) + vlen, nil
}

// IsCode reports whether image carries a valid program signature. It does
// not check the instruction stream.
func IsCode(image []byte) bool {
	_, _, err := versionCheck(image)
	return err == nil
}

// Header returns the signature for a program of the given version.
func Header(version uint64) []byte {
	return binary.AppendUvarint([]byte(Magic), version)
}
