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

package network

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/algorand/websocket"
	"golang.org/x/crypto/nacl/box"

	"github.com/algorand/go-clockwork/crypto"
)

// The handshake follows the CurveZMQ shape: both sides prove knowledge of
// their long-term keys and agree on ephemeral keys, and the client vouches
// for its ephemeral key with its long-term one.
const (
	helloKind    = 'H'
	welcomeKind  = 'W'
	initiateKind = 'I'
	readyKind    = 'R'

	nonceSize   = 24
	keySize     = crypto.KeySize
	counterSize = 8

	clientPrefix = "CurveCW-CLIENT-M"
	serverPrefix = "CurveCW-SERVER-M"
)

var (
	errUnauthorized = errors.New("client key not authorized")
	errShortMessage = errors.New("short handshake message")
	errBadBox       = errors.New("cannot open box")
	errReplay       = errors.New("message counter did not advance")
)

var readyPayload = []byte("READY")

// wsConn allows substituting a test double for *websocket.Conn
type wsConn interface {
	RemoteAddr() net.Addr
	NextReader() (int, io.Reader, error)
	WriteMessage(int, []byte) error
	WriteControl(int, []byte, time.Time) error
	SetReadLimit(int64)
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
	Close() error
}

// cipherState boxes session traffic with the ephemeral shared key and a
// per-direction counter nonce.
type cipherState struct {
	shared      [keySize]byte
	sendPrefix  string
	recvPrefix  string
	sendCounter uint64
	recvCounter uint64
}

func newCipherState(peerEphemeral, ownEphemeralSecret *[keySize]byte, client bool) *cipherState {
	c := &cipherState{sendPrefix: serverPrefix, recvPrefix: clientPrefix}
	if client {
		c.sendPrefix, c.recvPrefix = clientPrefix, serverPrefix
	}
	box.Precompute(&c.shared, peerEphemeral, ownEphemeralSecret)
	return c
}

func counterNonce(prefix string, counter uint64) *[nonceSize]byte {
	var n [nonceSize]byte
	copy(n[:], prefix)
	binary.BigEndian.PutUint64(n[16:], counter)
	return &n
}

func (c *cipherState) seal(msg []byte) []byte {
	c.sendCounter++
	out := make([]byte, counterSize, counterSize+len(msg)+box.Overhead)
	binary.BigEndian.PutUint64(out, c.sendCounter)
	return box.SealAfterPrecomputation(out, msg, counterNonce(c.sendPrefix, c.sendCounter), &c.shared)
}

func (c *cipherState) open(msg []byte) ([]byte, error) {
	if len(msg) < counterSize+box.Overhead {
		return nil, errShortMessage
	}
	counter := binary.BigEndian.Uint64(msg[:counterSize])
	if counter <= c.recvCounter {
		return nil, errReplay
	}
	out, ok := box.OpenAfterPrecomputation(nil, msg[counterSize:], counterNonce(c.recvPrefix, counter), &c.shared)
	if !ok {
		return nil, errBadBox
	}
	c.recvCounter = counter
	return out, nil
}

func randomNonce(rnd io.Reader) (*[nonceSize]byte, error) {
	var n [nonceSize]byte
	_, err := io.ReadFull(rnd, n[:])
	return &n, err
}

func readFrame(conn wsConn, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}
	mt, r, err := conn.NextReader()
	if err != nil {
		return nil, err
	}
	if mt != websocket.BinaryMessage {
		return nil, fmt.Errorf("unexpected websocket message type %d", mt)
	}
	return io.ReadAll(r)
}

func writeFrame(conn wsConn, timeout time.Duration, kind byte, parts ...[]byte) error {
	var buf bytes.Buffer
	buf.WriteByte(kind)
	for _, p := range parts {
		buf.Write(p)
	}
	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
		defer conn.SetWriteDeadline(time.Time{})
	}
	return conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

func expectKind(msg []byte, kind byte, minLen int) error {
	if len(msg) < minLen+1 {
		return errShortMessage
	}
	if msg[0] != kind {
		return fmt.Errorf("unexpected handshake message '%c' (wanted '%c')", msg[0], kind)
	}
	return nil
}

// clientHandshake authenticates to a server whose long-term public key is server.
func clientHandshake(conn wsConn, local *crypto.Certificate, server [keySize]byte, timeout time.Duration, rnd io.Reader) (*cipherState, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	if !local.HasSecret() {
		return nil, &HandshakeError{Stage: "hello", Err: crypto.ErrNoSecret}
	}

	ePub, eSec, err := box.GenerateKey(rnd)
	if err != nil {
		return nil, &HandshakeError{Stage: "hello", Err: err}
	}
	nonce, err := randomNonce(rnd)
	if err != nil {
		return nil, &HandshakeError{Stage: "hello", Err: err}
	}
	proof := box.Seal(nil, make([]byte, 64), nonce, &server, eSec)
	if err = writeFrame(conn, timeout, helloKind, ePub[:], nonce[:], proof); err != nil {
		return nil, &HandshakeError{Stage: "hello", Err: err}
	}

	msg, err := readFrame(conn, timeout)
	if err != nil {
		return nil, &HandshakeError{Stage: "welcome", Err: err}
	}
	if err = expectKind(msg, welcomeKind, nonceSize+keySize+box.Overhead); err != nil {
		return nil, &HandshakeError{Stage: "welcome", Err: err}
	}
	copy(nonce[:], msg[1:1+nonceSize])
	opened, ok := box.Open(nil, msg[1+nonceSize:], nonce, &server, eSec)
	if !ok || len(opened) != keySize {
		return nil, &HandshakeError{Stage: "welcome", Err: errBadBox}
	}
	var serverEphemeral [keySize]byte
	copy(serverEphemeral[:], opened)

	vouchNonce, err := randomNonce(rnd)
	if err != nil {
		return nil, &HandshakeError{Stage: "initiate", Err: err}
	}
	vouch := box.Seal(nil, append(append([]byte{}, ePub[:]...), server[:]...), vouchNonce, &serverEphemeral, local.Secret)
	payload := append(append(append([]byte{}, local.Public[:]...), vouchNonce[:]...), vouch...)
	if nonce, err = randomNonce(rnd); err != nil {
		return nil, &HandshakeError{Stage: "initiate", Err: err}
	}
	initiate := box.Seal(nil, payload, nonce, &serverEphemeral, eSec)
	if err = writeFrame(conn, timeout, initiateKind, nonce[:], initiate); err != nil {
		return nil, &HandshakeError{Stage: "initiate", Err: err}
	}

	msg, err = readFrame(conn, timeout)
	if err != nil {
		return nil, &HandshakeError{Stage: "ready", Err: err}
	}
	if err = expectKind(msg, readyKind, nonceSize+box.Overhead); err != nil {
		return nil, &HandshakeError{Stage: "ready", Err: err}
	}
	copy(nonce[:], msg[1:1+nonceSize])
	opened, ok = box.Open(nil, msg[1+nonceSize:], nonce, &serverEphemeral, eSec)
	if !ok || !bytes.Equal(opened, readyPayload) {
		return nil, &HandshakeError{Stage: "ready", Err: errBadBox}
	}
	return newCipherState(&serverEphemeral, eSec, true), nil
}

// serverHandshake authenticates a connecting client and returns its long-term public key.
// authorize may be nil to accept any client that completes the exchange.
func serverHandshake(conn wsConn, local *crypto.Certificate, authorize func([keySize]byte) bool, timeout time.Duration, rnd io.Reader) (*cipherState, [keySize]byte, error) {
	var client [keySize]byte
	if rnd == nil {
		rnd = rand.Reader
	}
	if !local.HasSecret() {
		return nil, client, &HandshakeError{Stage: "hello", Err: crypto.ErrNoSecret}
	}

	msg, err := readFrame(conn, timeout)
	if err != nil {
		return nil, client, &HandshakeError{Stage: "hello", Err: err}
	}
	if err = expectKind(msg, helloKind, keySize+nonceSize+64+box.Overhead); err != nil {
		return nil, client, &HandshakeError{Stage: "hello", Err: err}
	}
	var clientEphemeral [keySize]byte
	var nonce [nonceSize]byte
	copy(clientEphemeral[:], msg[1:1+keySize])
	copy(nonce[:], msg[1+keySize:1+keySize+nonceSize])
	if _, ok := box.Open(nil, msg[1+keySize+nonceSize:], &nonce, &clientEphemeral, local.Secret); !ok {
		return nil, client, &HandshakeError{Stage: "hello", Err: errBadBox}
	}

	sPub, sSec, err := box.GenerateKey(rnd)
	if err != nil {
		return nil, client, &HandshakeError{Stage: "welcome", Err: err}
	}
	wNonce, err := randomNonce(rnd)
	if err != nil {
		return nil, client, &HandshakeError{Stage: "welcome", Err: err}
	}
	welcome := box.Seal(nil, sPub[:], wNonce, &clientEphemeral, local.Secret)
	if err = writeFrame(conn, timeout, welcomeKind, wNonce[:], welcome); err != nil {
		return nil, client, &HandshakeError{Stage: "welcome", Err: err}
	}

	msg, err = readFrame(conn, timeout)
	if err != nil {
		return nil, client, &HandshakeError{Stage: "initiate", Err: err}
	}
	if err = expectKind(msg, initiateKind, nonceSize+box.Overhead); err != nil {
		return nil, client, &HandshakeError{Stage: "initiate", Err: err}
	}
	copy(nonce[:], msg[1:1+nonceSize])
	payload, ok := box.Open(nil, msg[1+nonceSize:], &nonce, &clientEphemeral, sSec)
	if !ok || len(payload) < keySize+nonceSize+box.Overhead {
		return nil, client, &HandshakeError{Stage: "initiate", Err: errBadBox}
	}
	copy(client[:], payload[:keySize])
	copy(nonce[:], payload[keySize:keySize+nonceSize])
	vouched, ok := box.Open(nil, payload[keySize+nonceSize:], &nonce, &client, sSec)
	want := append(append([]byte{}, clientEphemeral[:]...), local.Public[:]...)
	if !ok || !bytes.Equal(vouched, want) {
		return nil, client, &HandshakeError{Stage: "initiate", Err: errBadBox}
	}
	if authorize != nil && !authorize(client) {
		return nil, client, &HandshakeError{Stage: "initiate", Err: errUnauthorized}
	}

	rNonce, err := randomNonce(rnd)
	if err != nil {
		return nil, client, &HandshakeError{Stage: "ready", Err: err}
	}
	ready := box.Seal(nil, readyPayload, rNonce, &clientEphemeral, sSec)
	if err = writeFrame(conn, timeout, readyKind, rNonce[:], ready); err != nil {
		return nil, client, &HandshakeError{Stage: "ready", Err: err}
	}
	return newCipherState(&clientEphemeral, sSec, false), client, nil
}
