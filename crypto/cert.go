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
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/curve25519"
)

// KeyType distinguishes transport (curve25519) identities from signing (ed25519) ones.
type KeyType int

const (
	// Encryption certificates authenticate transport endpoints.
	Encryption KeyType = iota
	// Signing certificates produce sealed mesh authentication proofs.
	Signing
)

// KeySize is the length of every public and secret key.
const KeySize = 32

const (
	encryptionHeader = "%certificate v1"
	signingHeader    = "%signing v1"
)

var (
	// ErrNoSecret is returned when an operation needs the secret half of a certificate.
	ErrNoSecret = errors.New("certificate has no secret key")
	// ErrNoPublic is returned for certificates that lack a public key.
	ErrNoPublic = errors.New("certificate has no public key")
	// ErrWrongType is returned when a certificate of the other KeyType was supplied.
	ErrWrongType = errors.New("incorrect key/certificate type")
)

func (t KeyType) String() string {
	switch t {
	case Encryption:
		return "encryption"
	case Signing:
		return "signing"
	default:
		return fmt.Sprintf("KeyType(%d)", int(t))
	}
}

// Certificate is a public-key identity. It is immutable once loaded or generated.
type Certificate struct {
	Type   KeyType
	Public [KeySize]byte
	// Secret is nil for public-only certificates. For Signing certificates
	// it is the ed25519 seed.
	Secret *[KeySize]byte
	Ident  string
}

// CertificateError reports a malformed certificate file.
type CertificateError struct {
	Source string
	Line   int
	Reason string
}

func (e *CertificateError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

// Generate creates a fresh keypair of type t, reading entropy from r
// (crypto/rand when r is nil).
func Generate(t KeyType, ident string, r io.Reader) (*Certificate, error) {
	if r == nil {
		r = rand.Reader
	}
	var seed [KeySize]byte
	if _, err := io.ReadFull(r, seed[:]); err != nil {
		return nil, fmt.Errorf("generating %s key: %w", t, err)
	}
	return FromSecret(t, ident, seed)
}

// FromSecret derives a full certificate from a secret key.
func FromSecret(t KeyType, ident string, secret [KeySize]byte) (*Certificate, error) {
	c := &Certificate{Type: t, Ident: ident, Secret: &secret}
	switch t {
	case Encryption:
		pub, err := curve25519.X25519(secret[:], curve25519.Basepoint)
		if err != nil {
			return nil, err
		}
		copy(c.Public[:], pub)
	case Signing:
		priv := ed25519.NewKeyFromSeed(secret[:])
		copy(c.Public[:], priv.Public().(ed25519.PublicKey))
	default:
		return nil, ErrWrongType
	}
	return c, nil
}

// HasSecret reports whether the secret half is present.
func (c *Certificate) HasSecret() bool {
	return c != nil && c.Secret != nil
}

// PublicHex is the hex rendering of the public key, as carried in REQUEST frames.
func (c *Certificate) PublicHex() string {
	return hex.EncodeToString(c.Public[:])
}

// PublicOnly returns a copy without the secret key.
func (c *Certificate) PublicOnly() *Certificate {
	return &Certificate{Type: c.Type, Public: c.Public, Ident: c.Ident}
}

// SigningKey returns the ed25519 private key of a Signing certificate.
func (c *Certificate) SigningKey() (ed25519.PrivateKey, error) {
	if c.Type != Signing {
		return nil, ErrWrongType
	}
	if c.Secret == nil {
		return nil, ErrNoSecret
	}
	return ed25519.NewKeyFromSeed(c.Secret[:]), nil
}

// ReadCertificate loads a certificate file.
func ReadCertificate(path string) (*Certificate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCertificate(path, f)
}

// ParseCertificate parses the text certificate format:
//
//	%certificate v1
//	id  host01.example.com
//	pub <64 hex digits>
//	sec <64 hex digits>
func ParseCertificate(source string, r io.Reader) (*Certificate, error) {
	var (
		c         Certificate
		sawHeader bool
		sawPublic bool
		secret    [KeySize]byte
		sawSecret bool
	)

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !sawHeader {
			switch line {
			case encryptionHeader:
				c.Type = Encryption
			case signingHeader:
				c.Type = Signing
			default:
				return nil, &CertificateError{Source: source, Line: lineno, Reason: "not a clockwork certificate"}
			}
			sawHeader = true
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)
		switch key {
		case "id":
			c.Ident = value
		case "pub":
			if err := decodeKey(value, &c.Public); err != nil {
				return nil, &CertificateError{Source: source, Line: lineno, Reason: "bad public key: " + err.Error()}
			}
			sawPublic = true
		case "sec":
			if err := decodeKey(value, &secret); err != nil {
				return nil, &CertificateError{Source: source, Line: lineno, Reason: "bad secret key: " + err.Error()}
			}
			sawSecret = true
		default:
			return nil, &CertificateError{Source: source, Line: lineno, Reason: fmt.Sprintf("unknown directive '%s'", key)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawHeader {
		return nil, &CertificateError{Source: source, Reason: "empty certificate"}
	}

	if sawSecret {
		full, err := FromSecret(c.Type, c.Ident, secret)
		if err != nil {
			return nil, err
		}
		if sawPublic && full.Public != c.Public {
			return nil, &CertificateError{Source: source, Reason: "public key does not match secret key"}
		}
		return full, nil
	}
	if !sawPublic {
		return nil, &CertificateError{Source: source, Reason: ErrNoPublic.Error()}
	}
	return &c, nil
}

func decodeKey(s string, out *[KeySize]byte) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != KeySize {
		return fmt.Errorf("expected %d bytes, got %d", KeySize, len(b))
	}
	copy(out[:], b)
	return nil
}

// WriteTo renders c in the certificate file format, including the secret
// key when present.
func (c *Certificate) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	if c.Type == Signing {
		b.WriteString(signingHeader + "\n")
	} else {
		b.WriteString(encryptionHeader + "\n")
	}
	if c.Ident != "" {
		fmt.Fprintf(&b, "id  %s\n", c.Ident)
	}
	fmt.Fprintf(&b, "pub %s\n", c.PublicHex())
	if c.Secret != nil {
		fmt.Fprintf(&b, "sec %s\n", hex.EncodeToString(c.Secret[:]))
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// WriteCertificate writes c to path. Files holding a secret key are created 0600.
func WriteCertificate(path string, c *Certificate) error {
	perm := os.FileMode(0644)
	if c.Secret != nil {
		perm = 0600
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err = c.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
