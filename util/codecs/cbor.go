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

package codecs

import (
	"github.com/fxamacker/cbor/v2"
)

// cborEnc uses Core Deterministic Encoding so the same record always
// produces the same bytes.
var cborEnc cbor.EncMode

var cborDec cbor.DecMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codecs: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codecs: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalCBOR encodes v deterministically.
func MarshalCBOR(v interface{}) ([]byte, error) {
	return cborEnc.Marshal(v)
}

// UnmarshalCBOR decodes data into v. Unknown fields are ignored.
func UnmarshalCBOR(data []byte, v interface{}) error {
	return cborDec.Unmarshal(data, v)
}

// SaveCBORToFile atomically replaces filename with the CBOR encoding of v.
func SaveCBORToFile(filename string, v interface{}) error {
	data, err := MarshalCBOR(v)
	if err != nil {
		return err
	}
	return WriteFileAtomic(filename, data, 0600)
}
