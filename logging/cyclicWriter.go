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


package logging

import (
	"fmt"
	"os"

	"github.com/algorand/go-deadlock"
)

// CyclicFileWriter appends to a live log file. Once a write would take the
// file past its limit, the live file is renamed over the archive and a
// fresh one started, so at most two generations are kept on disk.
type CyclicFileWriter struct {
	mu      deadlock.Mutex
	file    *os.File
	live    string
	archive string
	size    uint64
	// limit of 0 never rotates.
	limit uint64
}

// MakeCyclicFileWriter opens live for appending, picking up its current size.
func MakeCyclicFileWriter(live, archive string, limit uint64) (*CyclicFileWriter, error) {
	w := &CyclicFileWriter{live: live, archive: archive, limit: limit}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *CyclicFileWriter) open(mode int) error {
	f, err := os.OpenFile(w.live, os.O_CREATE|os.O_WRONLY|mode, 0640)
	if err != nil {
		return fmt.Errorf("cannot open log file %s: %w", w.live, err)
	}
	w.file, w.size = f, 0
	if st, err := f.Stat(); err == nil {
		w.size = uint64(st.Size())
	}
	return nil
}

func (w *CyclicFileWriter) rotate() error {
	w.file.Close()
	if err := os.Rename(w.live, w.archive); err != nil {
		return fmt.Errorf("cannot archive %s: %w", w.live, err)
	}
	return w.open(os.O_TRUNC)
}

// Write never splits p across generations; an entry larger than the limit
// is refused.
func (w *CyclicFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := uint64(len(p))
	if w.limit > 0 {
		if n > w.limit {
			return 0, fmt.Errorf("log entry of %d bytes exceeds the %d byte log limit", n, w.limit)
		}
		if w.size+n > w.limit {
			if err := w.rotate(); err != nil {
				return 0, err
			}
		}
	}
	written, err := w.file.Write(p)
	w.size += uint64(written)
	return written, err
}

// Close closes the live file.
func (w *CyclicFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
