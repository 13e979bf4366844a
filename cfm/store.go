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

package cfm

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/algorand/go-clockwork/util/codecs"
	"github.com/algorand/go-clockwork/vm"
)

const (
	// RetrievedFile holds the last policy retrieved from a master.
	RetrievedFile = "retr.S"
	// ExecutedFile holds the last policy that ran to completion; it is the
	// offline fallback.
	ExecutedFile = "policy.S"
	// ReportFile holds the CBOR summary of the last completed run.
	ReportFile = "last-run.cbor"
)

// Store is the two-slot bytecode cache under the state directory.
type Store struct {
	Dir string
}

// RetrievedPath is the path of the last-retrieved slot.
func (s Store) RetrievedPath() string {
	return filepath.Join(s.Dir, RetrievedFile)
}

// ExecutedPath is the path of the last-executed slot.
func (s Store) ExecutedPath() string {
	return filepath.Join(s.Dir, ExecutedFile)
}

func (s Store) save(path string, image []byte) error {
	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return err
	}
	return codecs.WriteFileAtomic(path, image, 0600)
}

// SaveRetrieved records an image fetched from a master, before it runs.
func (s Store) SaveRetrieved(image []byte) error {
	return s.save(s.RetrievedPath(), image)
}

// SaveExecuted records an image whose execution returned.
func (s Store) SaveExecuted(image []byte) error {
	return s.save(s.ExecutedPath(), image)
}

// InvalidImageError describes a cached image that fails the signature check.
type InvalidImageError struct {
	Path string
	Head []byte
	Len  int
}

func (e *InvalidImageError) Error() string {
	if e.Len >= 4 {
		return fmt.Sprintf("%s contains an invalid or corrupt bytecode image. File starts %02x %02x %02x %02x",
			e.Path, e.Head[0], e.Head[1], e.Head[2], e.Head[3])
	}
	return fmt.Sprintf("%s contains an invalid or corrupt bytecode image. File is only %d bytes long", e.Path, e.Len)
}

// LoadExecuted reads the last-executed image. A missing slot yields an
// error satisfying errors.Is(err, os.ErrNotExist); a corrupt one yields an
// *InvalidImageError.
func (s Store) LoadExecuted() ([]byte, error) {
	path := s.ExecutedPath()
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !vm.IsCode(image) {
		return nil, invalidImage(path, image)
	}
	return image, nil
}

func invalidImage(source string, image []byte) *InvalidImageError {
	head := image
	if len(head) > 4 {
		head = head[:4]
	}
	return &InvalidImageError{Path: source, Head: append([]byte(nil), head...), Len: len(image)}
}

// Digest is a short blake3 fingerprint of an image, for log lines.
func Digest(image []byte) string {
	sum := blake3.Sum256(image)
	return hex.EncodeToString(sum[:8])
}

// RunRecord summarises one configuration run. It is kept in ReportFile.
type RunRecord struct {
	Started  time.Time        `cbor:"started"`
	Outcome  string           `cbor:"outcome"`
	Master   string           `cbor:"master,omitempty"`
	Digest   string           `cbor:"digest,omitempty"`
	Enforced int              `cbor:"enforced"`
	Failed   []string         `cbor:"failed,omitempty"`
	PhasesMS map[string]int64 `cbor:"phases_ms"`
}

// SaveRecord writes the last-run summary.
func (s Store) SaveRecord(rec RunRecord) error {
	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return err
	}
	return codecs.SaveCBORToFile(filepath.Join(s.Dir, ReportFile), rec)
}

// LoadRecord reads the last-run summary. ok is false when none exists.
func (s Store) LoadRecord() (rec RunRecord, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, ReportFile))
	if errors.Is(err, os.ErrNotExist) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	if err := codecs.UnmarshalCBOR(data, &rec); err != nil {
		return rec, false, err
	}
	return rec, true, nil
}
