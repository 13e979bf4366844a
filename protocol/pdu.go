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
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// MaxFrames bounds the number of frames on the wire, the type tag
// included. Encode refuses PDUs carrying more than MaxFrames-1 frames
// after the tag.
const MaxFrames = 1024

// PDU is a protocol data unit: a type tag followed by opaque frames.
// Frames are appended while building; a sent or received PDU is treated
// as read-only.
type PDU struct {
	Type   Tag
	Frames [][]byte
}

// FramingError is returned by Decode for buffers that do not hold a PDU.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return "framing error: " + e.Reason
}

// ErrNoFrames is the FramingError for a buffer carrying zero frames.
var ErrNoFrames = &FramingError{Reason: "zero frames"}

// ErrTooManyFrames is the FramingError for a PDU over MaxFrames.
var ErrTooManyFrames = &FramingError{Reason: fmt.Sprintf("more than %d frames", MaxFrames)}

// MakePDU builds a PDU of type t from string frames.
func MakePDU(t Tag, frames ...string) PDU {
	p := PDU{Type: t, Frames: make([][]byte, 0, len(frames))}
	for _, f := range frames {
		p.Frames = append(p.Frames, []byte(f))
	}
	return p
}

// Extend appends a binary frame.
func (p *PDU) Extend(frame []byte) {
	p.Frames = append(p.Frames, frame)
}

// ExtendString appends a text frame.
func (p *PDU) ExtendString(frame string) {
	p.Frames = append(p.Frames, []byte(frame))
}

// Size is the number of frames including the type frame.
func (p PDU) Size() int {
	return len(p.Frames) + 1
}

// Frame returns frame i, where frame 0 is the type tag. Missing frames are nil.
func (p PDU) Frame(i int) []byte {
	if i == 0 {
		return []byte(p.Type)
	}
	if i < 0 || i > len(p.Frames) {
		return nil
	}
	return p.Frames[i-1]
}

// Text returns frame i as a string.
func (p PDU) Text(i int) string {
	return string(p.Frame(i))
}

// Uint returns frame i parsed as a decimal number.
func (p PDU) Uint(i int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(p.Text(i)), 10, 64)
}

func (p PDU) String() string {
	var b strings.Builder
	b.WriteString(string(p.Type))
	b.WriteString("[")
	for i, f := range p.Frames {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%d", len(f))
	}
	b.WriteString("]")
	return b.String()
}

// Encode renders p on the wire: uvarint(frame count), then uvarint(len)||bytes
// for every frame, type tag first. Only PDUs that Decode accepts are
// encoded: the tag must be non-empty and the frame count within MaxFrames.
func Encode(p PDU) ([]byte, error) {
	if len(p.Type) == 0 {
		return nil, &FramingError{Reason: "empty type tag"}
	}
	if p.Size() > MaxFrames {
		return nil, ErrTooManyFrames
	}
	size := binary.MaxVarintLen64 * (len(p.Frames) + 2)
	size += len(p.Type)
	for _, f := range p.Frames {
		size += len(f)
	}
	out := make([]byte, 0, size)
	out = binary.AppendUvarint(out, uint64(len(p.Frames)+1))
	out = binary.AppendUvarint(out, uint64(len(p.Type)))
	out = append(out, p.Type...)
	for _, f := range p.Frames {
		out = binary.AppendUvarint(out, uint64(len(f)))
		out = append(out, f...)
	}
	return out, nil
}

// Decode parses a buffer produced by Encode. It never blocks and never panics;
// malformed input yields a *FramingError.
func Decode(b []byte) (PDU, error) {
	count, n := binary.Uvarint(b)
	if n <= 0 {
		if len(b) == 0 {
			return PDU{}, ErrNoFrames
		}
		return PDU{}, &FramingError{Reason: "bad frame count"}
	}
	if count == 0 {
		return PDU{}, ErrNoFrames
	}
	b = b[n:]
	if count > MaxFrames || count > uint64(len(b)) {
		return PDU{}, &FramingError{Reason: fmt.Sprintf("frame count %d exceeds buffer", count)}
	}

	frames := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		l, n := binary.Uvarint(b)
		if n <= 0 {
			return PDU{}, &FramingError{Reason: fmt.Sprintf("bad length for frame %d", i)}
		}
		b = b[n:]
		if l > uint64(len(b)) {
			return PDU{}, &FramingError{Reason: fmt.Sprintf("frame %d truncated", i)}
		}
		frame := make([]byte, l)
		copy(frame, b[:l])
		frames = append(frames, frame)
		b = b[l:]
	}
	if len(b) != 0 {
		return PDU{}, &FramingError{Reason: fmt.Sprintf("%d trailing bytes", len(b))}
	}
	if len(frames[0]) == 0 {
		return PDU{}, &FramingError{Reason: "empty type tag"}
	}
	return PDU{Type: Tag(frames[0]), Frames: frames[1:]}, nil
}
