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

// Tag is the type of a PDU. It travels as frame 0 on the wire.
type Tag string

// Tags, in lexicographic sort order of tag values to avoid duplicates.
const (
	BlockTag     Tag = "BLOCK"
	ByeTag       Tag = "BYE"
	CheckTag     Tag = "CHECK"
	CommandTag   Tag = "COMMAND"
	CopydownTag  Tag = "COPYDOWN"
	DataTag      Tag = "DATA"
	DoneTag      Tag = "DONE"
	EOFTag       Tag = "EOF"
	ErrorTag     Tag = "ERROR"
	FileTag      Tag = "FILE"
	HelloTag     Tag = "HELLO"
	OKTag        Tag = "OK"
	OptoutTag    Tag = "OPTOUT"
	PingTag      Tag = "PING"
	PolicyTag    Tag = "POLICY"
	PongTag      Tag = "PONG"
	RequestTag   Tag = "REQUEST"
	ResultTag    Tag = "RESULT"
	SHA1Tag      Tag = "SHA1"
	SubmittedTag Tag = "SUBMITTED"
)

// TagList is a list of all currently used protocol tags.
var TagList = []Tag{
	BlockTag,
	ByeTag,
	CheckTag,
	CommandTag,
	CopydownTag,
	DataTag,
	DoneTag,
	EOFTag,
	ErrorTag,
	FileTag,
	HelloTag,
	OKTag,
	OptoutTag,
	PingTag,
	PolicyTag,
	PongTag,
	RequestTag,
	ResultTag,
	SHA1Tag,
	SubmittedTag,
}

// Reply returns the tag a well-behaved peer answers t with, or "" when the
// answer depends on the dialog state (BLOCK vs EOF, RESULT vs OPTOUT).
func (t Tag) Reply() Tag {
	switch t {
	case PingTag:
		return PongTag
	case RequestTag:
		return SubmittedTag
	case HelloTag, CopydownTag, ByeTag:
		return OKTag
	case PolicyTag:
		return PolicyTag
	case FileTag:
		return SHA1Tag
	default:
		return ""
	}
}
