// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package collectors

import (
	"crypto/sha256"
	"encoding/binary"
	"runtime"
	"time"
	"unsafe"
)

// JitterCollector samples the difference between successive
// high-resolution timestamps, per spec.md §4.9's "scheduling jitter".
type JitterCollector struct {
	delay time.Duration
	last  time.Time
}

// NewJitterCollector constructs a scheduling-jitter collector that runs
// every delay.
func NewJitterCollector(delay time.Duration) *JitterCollector {
	return &JitterCollector{delay: delay}
}

func (c *JitterCollector) Name() string       { return "jitter" }
func (c *JitterCollector) Delay() time.Duration { return c.delay }

func (c *JitterCollector) Initialise() bool {
	c.last = time.Now()
	return true
}

func (c *JitterCollector) Run() []byte {
	now := time.Now()
	diff := now.Sub(c.last).Nanoseconds()
	c.last = now

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(diff))
	return buf[:]
}

// HeapCollector samples the address of a freshly allocated object,
// standing in for spec.md §4.9's "identity hash of a freshly allocated
// object" — Go has no identity-hash primitive, so the pointer's bit
// pattern (as reported by runtime, not dereferenced) is used instead.
type HeapCollector struct {
	delay time.Duration
}

// NewHeapCollector constructs a heap-entropy collector.
func NewHeapCollector(delay time.Duration) *HeapCollector {
	return &HeapCollector{delay: delay}
}

func (c *HeapCollector) Name() string         { return "heap" }
func (c *HeapCollector) Delay() time.Duration { return c.delay }
func (c *HeapCollector) Initialise() bool     { return true }

func (c *HeapCollector) Run() []byte {
	obj := new([64]byte)
	addr := uintptr(unsafe.Pointer(obj)) //nolint:gosec // bit pattern only, never dereferenced as an offset.

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(addr))

	h := sha256.Sum256(buf[:])
	return h[:8]
}

// FreeMemoryCollector samples the low-order noise of the Go runtime's
// reported free (idle) heap memory, per spec.md §4.9.
type FreeMemoryCollector struct {
	delay time.Duration
}

// NewFreeMemoryCollector constructs a free-memory collector.
func NewFreeMemoryCollector(delay time.Duration) *FreeMemoryCollector {
	return &FreeMemoryCollector{delay: delay}
}

func (c *FreeMemoryCollector) Name() string         { return "free-memory" }
func (c *FreeMemoryCollector) Delay() time.Duration { return c.delay }
func (c *FreeMemoryCollector) Initialise() bool     { return true }

func (c *FreeMemoryCollector) Run() []byte {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], stats.HeapIdle^stats.HeapReleased)
	return buf[:]
}

// OtherProviderCollector periodically pulls bytes from a named host
// source, per spec.md §4.9's "other-provider RNG output".
type OtherProviderCollector struct {
	name   string
	delay  time.Duration
	pull   func(n int) []byte
	nbytes int
}

// NewOtherProviderCollector wraps an arbitrary host source as a
// collector, pulling nbytes from it every delay.
func NewOtherProviderCollector(name string, delay time.Duration, nbytes int, pull func(n int) []byte) *OtherProviderCollector {
	return &OtherProviderCollector{name: name, delay: delay, pull: pull, nbytes: nbytes}
}

func (c *OtherProviderCollector) Name() string         { return c.name }
func (c *OtherProviderCollector) Delay() time.Duration { return c.delay }
func (c *OtherProviderCollector) Initialise() bool     { return c.pull != nil }

func (c *OtherProviderCollector) Run() []byte {
	n := c.nbytes
	if n <= 0 {
		n = 16
	}
	return c.pull(n)
}

// ScreenCollector and AudioCollector are permission-gated collectors
// (display capture, audio capture) that this headless server build
// cannot satisfy; per spec.md §9 "permission-gated components... check
// at initialise() and self-disable", Initialise unconditionally reports
// false so the scheduler never registers them. They are kept as typed
// stand-ins so a platform-specific build tag can supply a real
// implementation without changing the Collector contract.
type ScreenCollector struct{ delay time.Duration }

func NewScreenCollector(delay time.Duration) *ScreenCollector { return &ScreenCollector{delay: delay} }
func (c *ScreenCollector) Name() string                       { return "screen-capture" }
func (c *ScreenCollector) Delay() time.Duration               { return c.delay }
func (c *ScreenCollector) Initialise() bool                   { return false }
func (c *ScreenCollector) Run() []byte                        { return nil }

type AudioCollector struct{ delay time.Duration }

func NewAudioCollector(delay time.Duration) *AudioCollector { return &AudioCollector{delay: delay} }
func (c *AudioCollector) Name() string                      { return "audio-capture" }
func (c *AudioCollector) Delay() time.Duration              { return c.delay }
func (c *AudioCollector) Initialise() bool                  { return false }
func (c *AudioCollector) Run() []byte                       { return nil }
