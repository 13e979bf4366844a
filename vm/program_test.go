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
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/algorand/go-clockwork/test/partitiontest"
)

func TestLoadedProgramsRoundTrip(t *testing.T) {
	partitiontest.PartitionTest(t)

	rapid.Check(t, func(t *rapid.T) {
		body := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "body")
		image := append(Header(1), body...)

		// never panics, whether or not the program is valid
		_, _ = Disassemble(image)

		vm := New()
		if err := vm.Load(image); err != nil {
			var loadErr *LoadError
			if !errors.As(err, &loadErr) || loadErr.Kind != Malformed {
				t.Fatalf("unexpected load error %v", err)
			}
			return
		}

		text, err := Disassemble(image)
		if err != nil {
			t.Fatalf("loaded program did not disassemble: %v", err)
		}
		again, err := Assemble(text)
		if err != nil {
			t.Fatalf("disassembly did not assemble: %v\n%s", err, text)
		}
		if err := New().Load(again); err != nil {
			t.Fatalf("reassembled program did not load: %v\n%s", err, text)
		}
		text2, err := Disassemble(again)
		if err != nil {
			t.Fatal(err)
		}
		if text2 != text {
			t.Fatalf("disassembly changed:\n%s\n---\n%s", text, text2)
		}
	})
}

func TestArbitraryImagesNeverPanic(t *testing.T) {
	partitiontest.PartitionTest(t)

	rapid.Check(t, func(t *rapid.T) {
		image := rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "image")
		_ = IsCode(image)
		_ = New().Load(image)
		_, _ = Disassemble(image)
	})
}
