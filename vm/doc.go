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

// Package vm executes compiled policy programs.
//
// A program image starts with the two byte magic "pn" and a uvarint
// version, followed by the instruction stream. Each instruction is one
// opcode byte and its immediates. Values live on a stack of uint64 and
// byte-string values; 256 global slots persist for the life of a run.
//
// Resources are managed through topics: "topic KIND" pops a key and opens a
// resource of that kind, "attr" sets attributes on it and "enforce" stats
// and remediates it. A failed remediation is recorded and execution
// continues with the next topic.
package vm
