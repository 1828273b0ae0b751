// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package nonce builds the DRBG nonce and personalization-string inputs
// described in spec.md §4.7: a 256-bit nonce derived from a time-based
// UUID and a per-process identifier, and a personalization string
// covering the process's identity and environment.
package nonce

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var processStart = time.Now()

// sequence is folded into every nonce so that two nonces requested within
// the same nanosecond still differ.
var sequence uint64

// processIdentifier returns a digest of process name, process start time,
// a nanosecond timer reading, and the calling goroutine's stack identity —
// this module's analogue of spec.md §4.7's "process name, start time,
// identity hash of the class loader, nanosecond timer, current thread id".
// Nothing stands in for the class-loader identity hash.
func processIdentifier() []byte {
	h := sha256.New()
	h.Write([]byte(processName()))

	var startBuf [8]byte
	binary.BigEndian.PutUint64(startBuf[:], uint64(processStart.UnixNano()))
	h.Write(startBuf[:])

	var nowBuf [8]byte
	binary.BigEndian.PutUint64(nowBuf[:], uint64(time.Now().UnixNano()))
	h.Write(nowBuf[:])

	var stack [64]byte
	n := runtime.Stack(stack[:], false)
	h.Write(stack[:n])

	return h.Sum(nil)
}

func processName() string {
	if len(os.Args) > 0 {
		return os.Args[0]
	}
	return "unknown"
}

// New256 builds a 256-bit nonce: a time-based UUID (version 1 carries a
// timestamp, clock sequence, and node id, matching spec.md §4.7's "type-1
// style UUID") concatenated with a monotonically increasing sequence
// counter and the process identifier, all digested with SHA-256.
func New256() []byte {
	id, err := uuid.NewUUID()
	if err != nil {
		// uuid.NewUUID only fails if the host cannot supply a node id or
		// a clock sequence; fall back to a random (version 4) UUID so a
		// nonce is still produced.
		id = uuid.New()
	}

	seq := atomic.AddUint64(&sequence, 1)
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)

	h := sha256.New()
	idBytes := id[:]
	h.Write(idBytes)
	h.Write(seqBuf[:])
	h.Write(processIdentifier())
	return h.Sum(nil)
}

// Personalization builds the SHA-512 personalization string described in
// spec.md §4.7: the process identifier plus the executable path, the
// process's input arguments, and its environment variables. Secrets in
// the environment are not filtered here; callers that inject this into a
// DRBG treat it as input material, not as a value that is ever revealed.
func Personalization() []byte {
	h := sha512.New()
	h.Write(processIdentifier())

	exe, err := os.Executable()
	if err == nil {
		h.Write([]byte(exe))
	}

	h.Write([]byte(strings.Join(os.Args, "\x00")))
	h.Write([]byte(strconv.Itoa(os.Getpid())))

	for _, kv := range os.Environ() {
		h.Write([]byte(kv))
		h.Write([]byte{0x00})
	}

	return h.Sum(nil)
}
