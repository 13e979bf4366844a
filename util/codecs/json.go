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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// NewFormattedJSONEncoder indents with tabs and leaves <, > and & alone so
// shell snippets and globs in config files stay readable.
func NewFormattedJSONEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	enc.SetEscapeHTML(false)
	return enc
}

// LoadObjectFromFile decodes the single JSON document in filename into
// object. Fields the document omits keep the value object already holds,
// so callers pre-fill defaults. Unknown fields and trailing data are
// errors.
func LoadObjectFromFile(filename string, object interface{}) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(object); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("%s: unexpected data after the JSON document", filename)
	}
	return nil
}

// SaveObjectToFile atomically replaces filename with object as JSON.
func SaveObjectToFile(filename string, object interface{}, prettyFormat bool) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if prettyFormat {
		enc = NewFormattedJSONEncoder(&buf)
	}
	if err := enc.Encode(object); err != nil {
		return err
	}
	return WriteFileAtomic(filename, buf.Bytes(), 0644)
}
