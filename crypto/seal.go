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

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"

	"github.com/hdevalence/ed25519consensus"
)

const (
	// SealedSize is the length of a sealed authentication nonce.
	SealedSize = 256
	// NonceSize is the length of the random payload inside a sealed nonce.
	NonceSize = SealedSize - ed25519.SignatureSize
)

// ErrBadSeal is returned by Unseal when the signature does not verify.
var ErrBadSeal = errors.New("sealed message failed verification")

// Seal signs msg with a Signing certificate, returning signature||msg.
func Seal(c *Certificate, msg []byte) ([]byte, error) {
	key, err := c.SigningKey()
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(key, msg)
	out := make([]byte, 0, len(sig)+len(msg))
	out = append(out, sig...)
	return append(out, msg...), nil
}

// SealNonce seals NonceSize random bytes read from r (crypto/rand when nil),
// producing the SealedSize proof an operator presents in place of a password.
func SealNonce(c *Certificate, r io.Reader) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, err
	}
	return Seal(c, nonce)
}

// Unseal verifies a sealed message against a signing public key and
// returns the payload.
func Unseal(public [KeySize]byte, sealed []byte) ([]byte, error) {
	if len(sealed) < ed25519.SignatureSize {
		return nil, ErrBadSeal
	}
	sig, msg := sealed[:ed25519.SignatureSize], sealed[ed25519.SignatureSize:]
	if !ed25519consensus.Verify(public[:], msg, sig) {
		return nil, ErrBadSeal
	}
	return msg, nil
}
