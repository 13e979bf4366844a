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

package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/algorand/go-clockwork/test/partitiontest"
)

func samePDU(a, b PDU) bool {
	if a.Type != b.Type || len(a.Frames) != len(b.Frames) {
		return false
	}
	for i := range a.Frames {
		if !bytes.Equal(a.Frames[i], b.Frames[i]) {
			return false
		}
	}
	return true
}

func TestPDURoundTrip(t *testing.T) {
	partitiontest.PartitionTest(t)

	rapid.Check(t, func(t *rapid.T) {
		tag := rapid.StringMatching(`[A-Z]{1,12}`).Draw(t, "tag")
		frames := rapid.SliceOfN(rapid.SliceOf(rapid.Byte()), 0, 16).Draw(t, "frames")

		p := PDU{Type: Tag(tag), Frames: frames}
		buf, err := Encode(p)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		back, err := Decode(buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !samePDU(p, back) {
			t.Fatalf("round trip mismatch: %v != %v", p, back)
		}
	})
}

func TestEncodeFrameLimit(t *testing.T) {
	partitiontest.PartitionTest(t)

	full := PDU{Type: BlockTag, Frames: make([][]byte, MaxFrames-1)}
	for i := range full.Frames {
		full.Frames[i] = []byte{byte(i)}
	}
	buf, err := Encode(full)
	require.NoError(t, err)
	back, err := Decode(buf)
	require.NoError(t, err)
	require.True(t, samePDU(full, back))

	full.Extend([]byte("one too many"))
	_, err = Encode(full)
	require.ErrorIs(t, err, ErrTooManyFrames)

	_, err = Encode(PDU{})
	var fe *FramingError
	require.ErrorAs(t, err, &fe)
}

func TestDecodeZeroFrames(t *testing.T) {
	partitiontest.PartitionTest(t)

	for _, buf := range [][]byte{nil, {}, {0x00}, {0x00, 0x01, 0x02}} {
		_, err := Decode(buf)
		require.ErrorIs(t, err, ErrNoFrames)

		var fe *FramingError
		require.True(t, errors.As(err, &fe))
	}
}

func TestDecodeMalformed(t *testing.T) {
	partitiontest.PartitionTest(t)

	good, err := Encode(MakePDU(HelloTag, "host1.example.com"))
	require.NoError(t, err)
	cases := [][]byte{
		good[:len(good)-1],
		append(append([]byte{}, good...), 0xff),
		{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		{0x05, 0x01, 'A'},
		{0x01, 0x00},
	}
	for _, c := range cases {
		var fe *FramingError
		_, err := Decode(c)
		require.True(t, errors.As(err, &fe), "%x", c)
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	partitiontest.PartitionTest(t)

	rapid.Check(t, func(t *rapid.T) {
		buf := rapid.SliceOf(rapid.Byte()).Draw(t, "buf")
		Decode(buf)
	})
}

func TestPDUAccessors(t *testing.T) {
	partitiontest.PartitionTest(t)
	a := require.New(t)

	p := MakePDU(PongTag, "1")
	p.Extend([]byte{0x00, 0x01})
	a.Equal(3, p.Size())
	a.Equal("PONG", p.Text(0))
	a.Equal("1", p.Text(1))
	a.Equal([]byte{0x00, 0x01}, p.Frame(2))
	a.Nil(p.Frame(3))
	a.Nil(p.Frame(-1))

	v, err := p.Uint(1)
	a.NoError(err)
	a.Equal(Version, v)
	_, err = p.Uint(3)
	a.Error(err)

	a.Equal("PONG[1 2]", p.String())
}
