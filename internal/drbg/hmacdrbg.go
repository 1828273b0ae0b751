// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package drbg

// HMACDRBG implements the SP 800-90A HMAC_DRBG construction (spec.md
// §4.4) over a configurable HashSpec.
type HMACDRBG struct {
	*Base

	spec HashSpec
	k    []byte
	v    []byte
}

// NewHMACDRBG constructs an HMAC_DRBG seeded from seedMaterial.
func NewHMACDRBG(spec HashSpec, seedMaterial []byte, source EntropySource, resistance uint64) *HMACDRBG {
	if err := RunSelfTests(); err != nil {
		panic(err)
	}
	d := &HMACDRBG{spec: spec}
	d.k = make([]byte, spec.OutputLength)
	d.v = make([]byte, spec.OutputLength)
	for i := range d.v {
		d.v[i] = 0x01
	}
	d.update(seedMaterial)
	d.Base = NewBase(source, resistance, spec.OutputLength, d.generateLocked, d.reseedLocked)
	return d
}

// update implements spec.md §4.4's update(data) function.
func (d *HMACDRBG) update(data []byte) {
	buf := make([]byte, 0, len(d.v)+1+len(data))
	buf = append(buf, d.v...)
	buf = append(buf, 0x00)
	buf = append(buf, data...)
	d.k = d.spec.HMAC(d.k, buf)
	d.v = d.spec.HMAC(d.k, d.v)

	if len(data) == 0 {
		return
	}

	buf = buf[:0]
	buf = append(buf, d.v...)
	buf = append(buf, 0x01)
	buf = append(buf, data...)
	d.k = d.spec.HMAC(d.k, buf)
	d.v = d.spec.HMAC(d.k, d.v)
}

func (d *HMACDRBG) reseedLocked(seed []byte) {
	d.update(seed)
}

// generateLocked fills buf by repeatedly emitting V = HMAC(K, V), then
// performs the no-input update step, per spec.md §4.4.
func (d *HMACDRBG) generateLocked(buf []byte) {
	out := make([]byte, 0, len(buf)+d.spec.OutputLength)
	for len(out) < len(buf) {
		d.v = d.spec.HMAC(d.k, d.v)
		out = append(out, d.v...)
	}
	copy(buf, out[:len(buf)])
	d.update(nil)
}
